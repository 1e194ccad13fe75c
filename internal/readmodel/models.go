package readmodel

// Allocation is the read-model row answering "which batch got this order
// line". One row per (order, sku).
type Allocation struct {
	OrderID  string `json:"order_id"`
	Sku      string `json:"sku"`
	BatchRef string `json:"batch_ref"`
	Qty      int    `json:"qty"`
}
