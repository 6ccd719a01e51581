package model

import "time"

// Product is the storefront's read model of a catalogue product.
// Prices are in minor currency units.
type Product struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	BasePrice   int64     `json:"basePrice" db:"base_price"`
	CategoryIDs []string  `json:"categoryIds" db:"category_ids"`
	Discounted  bool      `json:"discounted" db:"discounted"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
