// Package models holds the persistent entities of the storefront.
package models

// All lists every model for migrations.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&ProductImage{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&ReturnRequest{},
	}
}
