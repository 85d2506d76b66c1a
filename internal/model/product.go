package model

import "time"

// Product 商品定义：价格与币种在下单时被快照到订单上。
type Product struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Slug        string `gorm:"size:128;uniqueIndex;not null" json:"slug"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Price       int64  `gorm:"not null" json:"price"`
	Currency    string `gorm:"size:8;not null;default:IDR" json:"currency"`
	ImageURL    string `gorm:"size:512" json:"image_url"`
	Featured    bool   `gorm:"not null;default:false;index" json:"featured"`
}

func (Product) TableName() string { return "products" }
