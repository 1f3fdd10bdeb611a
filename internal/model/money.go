package model

import "fmt"

// Money is an amount in integer minor units of the restaurant's currency
// (đồng for VND, cents for USD).  Arithmetic on Money is exact; there is no
// rounding anywhere in the order pipeline.
type Money int64

// MaxTotal is the largest amount an order total or a product price may
// reach.
const MaxTotal Money = 1_000_000_000_000_000

// Times returns m multiplied by a line quantity.
func (m Money) Times(qty int) Money { return m * Money(qty) }

// MulQty returns m × qty, or false when the result would pass MaxTotal.
func (m Money) MulQty(qty int) (Money, bool) {
	if m < 0 || qty < 0 {
		return 0, false
	}
	if m == 0 || qty == 0 {
		return 0, true
	}
	if Money(qty) > MaxTotal/m {
		return 0, false
	}
	return m * Money(qty), true
}

// Plus returns m + n, or false when the sum would pass MaxTotal.
func (m Money) Plus(n Money) (Money, bool) {
	if m < 0 || n < 0 || n > MaxTotal-m {
		return 0, false
	}
	return m + n, true
}

// String renders the amount with thousands separators, e.g. 130000 -> "130,000".
func (m Money) String() string {
	n := int64(m)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return sign + string(out)
}
