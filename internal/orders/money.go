package orders

import "fmt"

// Semua nominal dalam integer cents.

// Tax rate 8%, dalam basis points supaya pembulatannya deterministik.
const taxRateBasisPoints = 800

// TaxCents menghitung pajak 8% dari subtotal, dibulatkan ke cent terdekat
// (half up). 2197 -> 176.
func TaxCents(subtotalCents int) int {
	return (subtotalCents*taxRateBasisPoints + 5000) / 10000
}

// FormatNumber: nomor order human-readable, prefix + 6 digit zero-padded.
func FormatNumber(seq int64) string {
	return fmt.Sprintf("FH%06d", seq)
}
