package domain

import "time"

// Product is a catalog entry managed through the protected CRUD endpoints.
type Product struct {
	ID          int64
	Name        string
	Description string
	Value       float64
	Quantity    int64
	Image       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductUpdate carries a partial update. Nil fields keep the stored value;
// non-nil fields are applied even when they hold a zero value.
type ProductUpdate struct {
	Name        *string
	Description *string
	Value       *float64
	Quantity    *int64
	Image       *string
}
