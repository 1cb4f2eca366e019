package mockapi

import (
	"sort"
	"strings"
	"sync"
)

// Merchant is a seller enrolled in group buys.
type Merchant struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Contact   string  `json:"contact"`
	Status    string  `json:"status"`
	Rating    float64 `json:"rating"`
	CreatedAt string  `json:"created_at"`
}

// Order is one group-buy order line used by the export.
type Order struct {
	ID       int64
	OrderNo  string
	Merchant string
	Customer string
	Amount   string
	Status   string
	PlacedAt string
}

// Overview is the statistics dashboard payload.
type Overview struct {
	GMV            string `json:"gmv"`
	Orders         int    `json:"orders"`
	ActiveGroups   int    `json:"active_groups"`
	Merchants      int    `json:"merchants"`
	PendingReviews int    `json:"pending_reviews"`
	RefundRequests int    `json:"refund_requests"`
}

type catalog struct {
	mu        sync.RWMutex
	merchants []Merchant
	orders    []Order
}

func newCatalog() *catalog {
	return &catalog{
		merchants: []Merchant{
			{ID: 1, Name: "Fresh Farm Co-op", Contact: "Lin", Status: "approved", Rating: 4.8, CreatedAt: "2026-03-02T09:00:00Z"},
			{ID: 2, Name: "Harbor Seafood", Contact: "Chen", Status: "pending", Rating: 0, CreatedAt: "2026-09-28T14:30:00Z"},
			{ID: 3, Name: "Orchard Street Bakery", Contact: "Wu", Status: "approved", Rating: 4.5, CreatedAt: "2026-05-17T07:45:00Z"},
			{ID: 4, Name: "Mountain Tea House", Contact: "Zhao", Status: "rejected", Rating: 0, CreatedAt: "2026-08-11T11:10:00Z"},
		},
		orders: []Order{
			{ID: 1, OrderNo: "GB20261001001", Merchant: "Fresh Farm Co-op", Customer: "Mei", Amount: "59.90", Status: "paid", PlacedAt: "2026-10-01T10:12:00Z"},
			{ID: 2, OrderNo: "GB20261001002", Merchant: "Orchard Street Bakery", Customer: "Jun", Amount: "23.50", Status: "delivered", PlacedAt: "2026-10-01T11:40:00Z"},
			{ID: 3, OrderNo: "GB20261002001", Merchant: "Fresh Farm Co-op", Customer: "Hao, Jr.", Amount: "120.00", Status: "refunding", PlacedAt: "2026-10-02T08:05:00Z"},
		},
	}
}

func (c *catalog) listMerchants(status string) []Merchant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status = strings.TrimSpace(status)
	out := make([]Merchant, 0, len(c.merchants))
	for _, m := range c.merchants {
		if status == "" || m.Status == status {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *catalog) merchant(id int64) (Merchant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.merchants {
		if m.ID == id {
			return m, true
		}
	}
	return Merchant{}, false
}

func (c *catalog) allOrders() []Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Order(nil), c.orders...)
}

func (c *catalog) overview() Overview {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o := Overview{GMV: "203.40", Orders: len(c.orders), ActiveGroups: 7, Merchants: len(c.merchants)}
	for _, m := range c.merchants {
		if m.Status == "pending" {
			o.PendingReviews++
		}
	}
	for _, order := range c.orders {
		if order.Status == "refunding" {
			o.RefundRequests++
		}
	}
	return o
}
