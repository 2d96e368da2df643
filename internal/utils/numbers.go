package utils

import (
	"fmt"
	"regexp"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	upperAlnum = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// VoucherCodeLength is the fixed length of voucher codes.
	VoucherCodeLength = 9
	orderSuffixLength = 6
)

var (
	voucherCodeGen = mustGenerator(upperAlnum, VoucherCodeLength)
	orderSuffixGen = mustGenerator(upperAlnum, orderSuffixLength)

	voucherCodeRe = regexp.MustCompile(`^[A-Z0-9]{9}$`)
)

func mustGenerator(alphabet string, length int) func() string {
	gen, err := nanoid.CustomASCII(alphabet, length)
	if err != nil {
		panic(fmt.Sprintf("utils: nanoid generator: %v", err))
	}
	return gen
}

// NewVoucherCode returns a random 9 character upper-case alphanumeric code.
func NewVoucherCode() string { return voucherCodeGen() }

// IsValidVoucherCode reports whether code has the voucher code shape.
func IsValidVoucherCode(code string) bool { return voucherCodeRe.MatchString(code) }

// NewOrderNumber returns ORD-YYYYMMDD-XXXXXX for the given instant.  The
// random suffix makes collisions unlikely; orders.order_number is unique and
// callers retry on a duplicate.
func NewOrderNumber(now time.Time) string {
	return "ORD-" + now.UTC().Format("20060102") + "-" + orderSuffixGen()
}

// InvoicePrefix is the INV-YYYYMMDD- prefix shared by all invoices of day.
func InvoicePrefix(day time.Time) string {
	return "INV-" + day.UTC().Format("20060102") + "-"
}

// InvoiceNumber formats the seq-th invoice of day as INV-YYYYMMDD-NNNN.
func InvoiceNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", InvoicePrefix(day), seq)
}
