package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Stock         decimal.Decimal `json:"stock"`
	Unit          string          `json:"unit"`
	IsWeightBased bool            `json:"is_weight_based"`
	ImageURL      string          `json:"image_url"`
	Description   string          `json:"description"`
	Weight        decimal.Decimal `json:"weight"`
	CutType       string          `json:"cut_type"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit"`
	Origin        string          `json:"origin"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// StockMeta classifies a stock level against the low-stock threshold.
// Products at or below zero are out of stock and open for backorder.
func StockMeta(stock, lowThreshold decimal.Decimal) (status StockStatus, label string, backorder bool) {
	switch {
	case stock.LessThanOrEqual(decimal.Zero):
		return StockStatusOutOfStock, "Out of stock", true
	case stock.LessThanOrEqual(lowThreshold):
		return StockStatusLowStock, "Low stock", false
	default:
		return StockStatusInStock, "In stock", false
	}
}
