package inventory

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadSheetLines 读取 .xlsx 第一张表：A 列为 value，B 列（可选）为 note。
// 单元格原样作为字段，value 中的 ';' 不再拆分；单元格内换行折叠为空格。
func ReadSheetLines(r io.Reader) ([]Line, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	out := make([]Line, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		value := cellText(row[0])
		if value == "" {
			continue
		}
		line := Line{Value: value}
		if len(row) > 1 {
			if note := cellText(row[1]); note != "" {
				line.Note = &note
			}
		}
		out = append(out, line)
	}
	return out, nil
}

func cellText(s string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(s)), " ")
}
