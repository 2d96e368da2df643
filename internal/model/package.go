package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// StringList is a JSON array column (packages.features).
type StringList []string

// Value encodes the list as JSON; a nil list is stored as [].
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes a JSON array returned by the driver as []byte or string.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("model: unsupported StringList source")
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*l = out
	return nil
}

// Package is a membership plan sold to members.
type Package struct {
	ID           uint64          `json:"id"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days"`
	Features     StringList      `json:"features"`
	IsActive     bool            `json:"is_active"`
	IsPublished  bool            `json:"is_published"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MemberPackageStatus transitions active→expired and active→cancelled only.
type MemberPackageStatus string

const (
	MemberPackageActive    MemberPackageStatus = "active"
	MemberPackageExpired   MemberPackageStatus = "expired"
	MemberPackageCancelled MemberPackageStatus = "cancelled"
)

// MemberPackage is a package bought by a user.  EndDate is StartDate plus
// the package's duration at purchase time.
type MemberPackage struct {
	ID             uint64              `json:"id"`
	UserID         uint64              `json:"user_id"`
	PackageID      uint64              `json:"package_id"`
	PackageName    string              `json:"package_name,omitempty"`
	UserName       string              `json:"user_name,omitempty"`
	StartDate      time.Time           `json:"start_date"`
	EndDate        time.Time           `json:"end_date"`
	Status         MemberPackageStatus `json:"status"`
	PricePaid      decimal.Decimal     `json:"price_paid"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	VoucherID      *uint64             `json:"voucher_id,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}
