package models

// Cart holds the selected quantity per ticket category. A missing key means zero.
type Cart map[CategoryID]int

// Quantity returns the quantity for id, treating missing and negative values as 0.
func (c Cart) Quantity(id CategoryID) int {
	if q := c[id]; q > 0 {
		return q
	}
	return 0
}

// IsEmpty reports whether no category has a positive quantity.
func (c Cart) IsEmpty() bool {
	for _, q := range c {
		if q > 0 {
			return false
		}
	}
	return true
}

func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for id, q := range c {
		out[id] = q
	}
	return out
}
