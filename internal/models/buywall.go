package models

import "time"

// BuyWallLevel is one configured rung of the wall: a price and the USDT
// amount to commit at that price.
type BuyWallLevel struct {
	Price       float64 `json:"price"`
	USDTAmount  float64 `json:"usdtAmount"`
}

// PlacedOrder tracks one live order the wall placed, so refills can detect
// fills and partial fills on subsequent ticks.
type PlacedOrder struct {
	Price         float64 `json:"price"`
	USDTAmount    float64 `json:"usdtAmount"`
	OrderID       string  `json:"orderId"`
	ClientOrderID string  `json:"clientOrderId"`
	GCBQuantity   float64 `json:"gcbQuantity"`
	Status        string  `json:"status"`
}

// BuyWallBot places a ladder of limit buys once the market reaches a
// target price, then keeps the ladder topped up as orders fill.
type BuyWallBot struct {
	BotBase

	TargetPrice  float64        `json:"targetPrice"`
	BuyOrders    []BuyWallLevel `json:"buyOrders"`
	OrdersPlaced bool           `json:"ordersPlaced"`
	PlacedOrders []PlacedOrder  `json:"placedOrders"`
	TotalRefills int            `json:"totalRefills"`

	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
}

func (b *BuyWallBot) Base() *BotBase { return &b.BotBase }
