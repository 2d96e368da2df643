// Package queue defines message payloads exchanged over the message broker,
// the publisher that sends them and the consumer that reconciles invoices.
package queue

// Queue names double as routing keys on the default exchange.
const (
	OrderCreatedQueue           = "order.created"
	MemberPackagePurchasedQueue = "member_package.purchased"
)

// OrderCreatedEvent is published after a checkout transaction commits.  It
// contains enough information for downstream consumers to log the sale and
// to create the shop invoice if the request path failed to.
type OrderCreatedEvent struct {
	OrderID     uint64 `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      uint64 `json:"user_id"`
	ItemCount   int    `json:"item_count"`
	TotalAmount string `json:"total_amount"`
	VoucherID   uint64 `json:"voucher_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// MemberPackagePurchasedEvent is published after a member package is sold.
type MemberPackagePurchasedEvent struct {
	MemberPackageID uint64 `json:"member_package_id"`
	UserID          uint64 `json:"user_id"`
	PackageID       uint64 `json:"package_id"`
	PackageName     string `json:"package_name"`
	PricePaid       string `json:"price_paid"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	PurchasedAt     string `json:"purchased_at"`
}
