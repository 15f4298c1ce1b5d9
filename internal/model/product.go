package model

import "strings"

// ProductID identifies a catalog product. Numeric ids are carried as their
// decimal text so they can key persisted JSON objects directly.
type ProductID string

// Product is a read-only catalog record.
type Product struct {
	ID            ProductID
	Name          string
	UnitPrice     Money
	BaselineStock int
	Tag           string
	Category      string
}

// NewProduct validates and builds a Product.
func NewProduct(id ProductID, name string, price Money, baseline int) (Product, error) {
	id = ProductID(strings.TrimSpace(string(id)))
	if id == "" {
		return Product{}, NewInvalidProduct(id, "product id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Product{}, NewInvalidProduct(id, "product name is required")
	}
	if price < 0 {
		return Product{}, NewInvalidProduct(id, "unit price cannot be negative")
	}
	if baseline < 0 {
		return Product{}, NewInvalidProduct(id, "baseline stock cannot be negative")
	}
	return Product{ID: id, Name: name, UnitPrice: price, BaselineStock: baseline}, nil
}

// WithTag returns a copy of p carrying tag and category.
func (p Product) WithTag(tag, category string) Product {
	p.Tag = tag
	p.Category = category
	return p
}
