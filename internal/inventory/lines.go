package inventory

import "strings"

// Line 批量导入中的一行：value[;note]。
type Line struct {
	Value string
	Note  *string
}

// ParseLines 解析换行分隔的 "value;note" 文本。
// 每行先 trim，空行与 value 为空的行直接跳过，不视为错误。
// note 为第一个 ';' 之后的全部内容（可以再含 ';'）。
func ParseLines(raw string) []Line {
	out := make([]Line, 0)
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		value, rest, _ := strings.Cut(l, ";")
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		line := Line{Value: value}
		if note := strings.TrimSpace(rest); note != "" {
			line.Note = &note
		}
		out = append(out, line)
	}
	return out
}
