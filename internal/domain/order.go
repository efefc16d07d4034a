package domain

import "time"

// OrderRequest is what the live venue is asked to place.
type OrderRequest struct {
	TokenID string
	Price   float64
	Shares  float64
	Side    OrderSide
}

// OrderReceipt is the venue's acknowledgement of a placed order.
type OrderReceipt struct {
	OrderID string
	Status  string
}

// OrderResult describes a filled (paper) or placed (live) order.
type OrderResult struct {
	OrderID     string    `json:"order_id"`
	ConditionID string    `json:"condition_id"`
	TokenID     string    `json:"token_id"`
	Side        OrderSide `json:"side"`
	Price       float64   `json:"price"`
	SizeUSD     float64   `json:"size_usd"`
	IsPaper     bool      `json:"is_paper"`
	FilledAt    time.Time `json:"filled_at"`
}
