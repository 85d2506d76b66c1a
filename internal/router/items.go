package router

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/inventory"
	"storefront/internal/model"
)

const maxUpload = 8 << 20

func parseItemType(raw string) model.ItemType {
	t := model.ItemType(strings.ToUpper(strings.TrimSpace(raw)))
	if t == "" {
		return model.ItemTypeAccount
	}
	return t
}

func (h *handlers) listItems(c *gin.Context) {
	if raw := c.Query("product_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			badRequest(c, "invalid product_id")
			return
		}
		list, err := h.Inventory.ListByProduct(c.Request.Context(), uint(id))
		if err != nil {
			h.fail(c, err)
			return
		}
		ok(c, list)
		return
	}
	list, err := h.Inventory.ListLatest(c.Request.Context(), queryLimit(c, 100))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

func (h *handlers) createItem(c *gin.Context) {
	var req struct {
		ProductID uint   `json:"product_id" binding:"required,min=1"`
		Type      string `json:"type"`
		Value     string `json:"value"`
		Note      string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	item, err := h.Inventory.Create(c.Request.Context(), req.ProductID, parseItemType(req.Type), req.Value, req.Note)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, item)
}

// bulkImport 支持两种输入：
// - JSON {"product_id", "type", "raw_text"}，每行 "value;note"
// - multipart 表单 product_id/type + file（.xlsx 取第一张表 A/B 列，其他按文本处理）
func (h *handlers) bulkImport(c *gin.Context) {
	var (
		productID uint
		itemType  string
		lines     []inventory.Line
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		id, err := strconv.ParseUint(c.PostForm("product_id"), 10, 32)
		if err != nil {
			badRequest(c, "invalid product_id")
			return
		}
		productID = uint(id)
		itemType = c.PostForm("type")

		fh, err := c.FormFile("file")
		if err != nil {
			badRequest(c, "file is required")
			return
		}
		if fh.Size > maxUpload {
			badRequest(c, "file too large")
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.fail(c, err)
			return
		}
		defer f.Close()

		if strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
			lines, err = inventory.ReadSheetLines(f)
			if err != nil {
				badRequest(c, err.Error())
				return
			}
		} else {
			b, err := io.ReadAll(io.LimitReader(f, maxUpload))
			if err != nil {
				h.fail(c, err)
				return
			}
			lines = inventory.ParseLines(string(b))
		}
	} else {
		var req struct {
			ProductID uint   `json:"product_id" binding:"required,min=1"`
			Type      string `json:"type"`
			RawText   string `json:"raw_text"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		productID, itemType = req.ProductID, req.Type
		lines = inventory.ParseLines(req.RawText)
	}

	n, err := h.Inventory.ImportLines(c.Request.Context(), productID, parseItemType(itemType), lines)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"created": n})
}

func (h *handlers) updateItem(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var req struct {
		Value string `json:"value"`
		Note  string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	item, err := h.Inventory.Update(c.Request.Context(), id, req.Value, req.Note)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, item)
}

func (h *handlers) setItemUsed(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var req struct {
		Used *bool `json:"used"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Used == nil {
		badRequest(c, "used is required")
		return
	}
	item, err := h.Inventory.SetUsed(c.Request.Context(), id, *req.Used)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, item)
}

func (h *handlers) deleteItem(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	if err := h.Inventory.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"id": id})
}

// claimItem 运维工具：为已 PAID 且购买该商品的订单认领一个条目，库存耗尽时 data.item 为 null。
func (h *handlers) claimItem(c *gin.Context) {
	var req struct {
		ProductID uint   `json:"product_id" binding:"required,min=1"`
		OrderID   string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	item, err := h.Orders.ClaimFor(c.Request.Context(), req.ProductID, req.OrderID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"item": item})
}
