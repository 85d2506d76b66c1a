package router

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/catalog"
	"storefront/internal/model"
)

// productView 商品 + 可售库存数。
type productView struct {
	model.Product
	Stock int64 `json:"stock"`
}

func (h *handlers) withStock(c *gin.Context, list []model.Product) ([]productView, error) {
	ids := make([]uint, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	counts, err := h.Inventory.CountAvailableByProducts(c.Request.Context(), ids)
	if err != nil {
		return nil, err
	}
	out := make([]productView, 0, len(list))
	for _, p := range list {
		out = append(out, productView{Product: p, Stock: counts[p.ID]})
	}
	return out, nil
}

func (h *handlers) listProducts(c *gin.Context) {
	list, err := h.Catalog.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	views, err := h.withStock(c, list)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, views)
}

func (h *handlers) listFeatured(c *gin.Context) {
	list, err := h.Catalog.ListFeatured(c.Request.Context(), queryLimit(c, 6))
	if err != nil {
		h.fail(c, err)
		return
	}
	views, err := h.withStock(c, list)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, views)
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.Catalog.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.fail(c, err)
		return
	}
	stock, err := h.Inventory.CountAvailable(c.Request.Context(), p.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, productView{Product: *p, Stock: stock})
}

type productRequest struct {
	Slug        *string `json:"slug"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int64  `json:"price"`
	Currency    *string `json:"currency"`
	ImageURL    *string `json:"image_url"`
	Featured    *bool   `json:"featured"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (h *handlers) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.Catalog.Create(c.Request.Context(), catalog.ProductInput{
		Slug:        deref(req.Slug),
		Name:        deref(req.Name),
		Description: deref(req.Description),
		Price:       deref(req.Price),
		Currency:    deref(req.Currency),
		ImageURL:    deref(req.ImageURL),
		Featured:    deref(req.Featured),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, p)
}

func (h *handlers) updateProduct(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.Catalog.Update(c.Request.Context(), id, catalog.ProductPatch{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		ImageURL:    req.ImageURL,
		Featured:    req.Featured,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, p)
}

func (h *handlers) deleteProduct(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	if err := h.Catalog.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"id": id})
}
