// Package catalog 是商品注册表：商品的增删改查，订单创建时从这里读取价格快照。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/model"
	"storefront/internal/store"

	"gorm.io/gorm"
)

var (
	ErrProductNotFound = apperr.NotFound("catalog: product not found")
	ErrSlugTaken       = apperr.Conflict("catalog: slug already taken")
)

const defaultCurrency = "IDR"

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Registry 商品注册表，持有调用方注入的 *gorm.DB。
type Registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// ProductInput 创建商品的参数。
type ProductInput struct {
	Slug        string
	Name        string
	Description string
	Price       int64
	Currency    string
	ImageURL    string
	Featured    bool
}

// ProductPatch 局部更新，nil 字段保持不变。
type ProductPatch struct {
	Slug        *string
	Name        *string
	Description *string
	Price       *int64
	Currency    *string
	ImageURL    *string
	Featured    *bool
}

// Create 创建商品；slug 冲突返回 ErrSlugTaken。
func (r *Registry) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	p := &model.Product{
		Slug:        strings.TrimSpace(in.Slug),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Currency:    normalizeCurrency(in.Currency),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Featured:    in.Featured,
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if store.IsUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// Update 按 id 局部更新商品。已有订单上的价格快照不受影响。
func (r *Registry) Update(ctx context.Context, id uint, patch ProductPatch) (*model.Product, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if patch.Slug != nil {
		p.Slug = strings.TrimSpace(*patch.Slug)
		updates["slug"] = p.Slug
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
		updates["name"] = p.Name
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
		updates["description"] = p.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
		updates["price"] = p.Price
	}
	if patch.Currency != nil {
		p.Currency = normalizeCurrency(*patch.Currency)
		updates["currency"] = p.Currency
	}
	if patch.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*patch.ImageURL)
		updates["image_url"] = p.ImageURL
	}
	if patch.Featured != nil {
		p.Featured = *patch.Featured
		updates["featured"] = p.Featured
	}
	if len(updates) == 0 {
		return p, nil
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		if store.IsUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

// Delete 删除商品。库存条目和订单不级联：订单靠冗余的 slug 保持可读。
func (r *Registry) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Product{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// List 按创建时间倒序返回全部商品。
func (r *Registry) List(ctx context.Context) ([]model.Product, error) {
	var list []model.Product
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return list, nil
}

// ListFeatured 首页推荐位。
func (r *Registry) ListFeatured(ctx context.Context, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 6
	}
	var list []model.Product
	err := r.db.WithContext(ctx).
		Where("featured = ?", true).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list featured products: %w", err)
	}
	return list, nil
}

func (r *Registry) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).Where("slug = ?", strings.TrimSpace(slug)).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product %q: %w", slug, err)
	}
	return &p, nil
}

func (r *Registry) GetByID(ctx context.Context, id uint) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &p, nil
}

func normalizeCurrency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return defaultCurrency
	}
	return c
}

func validate(p *model.Product) error {
	if !slugPattern.MatchString(p.Slug) {
		return apperr.Field("slug", "must be lower-case letters, digits and single dashes")
	}
	if p.Name == "" {
		return apperr.Field("name", "required")
	}
	if p.Price < 0 {
		return apperr.Field("price", "must be >= 0")
	}
	if !currencyPattern.MatchString(p.Currency) {
		return apperr.Field("currency", "must be a 3-letter code")
	}
	return nil
}
