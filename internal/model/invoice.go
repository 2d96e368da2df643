package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceType records where an invoice came from.
type InvoiceType string

const (
	InvoiceShop       InvoiceType = "shop"
	InvoiceMembership InvoiceType = "membership"
	InvoiceManual     InvoiceType = "manual"
)

type InvoiceStatus string

const (
	InvoiceUnpaid    InvoiceStatus = "unpaid"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceUnpaid, InvoicePaid, InvoiceCancelled:
		return true
	}
	return false
}

// Invoice is a billing document.  At most one invoice exists per order and
// per member package (unique columns).  InvoiceNumber has the form
// INV-YYYYMMDD-NNNN and is unique.
type Invoice struct {
	ID              uint64          `json:"id"`
	InvoiceNumber   string          `json:"invoice_number"`
	UserID          uint64          `json:"user_id"`
	CustomerName    string          `json:"customer_name,omitempty"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	Type            InvoiceType     `json:"type"`
	OrderID         *uint64         `json:"order_id,omitempty"`
	MemberPackageID *uint64         `json:"member_package_id,omitempty"`
	Description     string          `json:"description"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          InvoiceStatus   `json:"status"`
	IssuedAt        time.Time       `json:"issued_at"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
