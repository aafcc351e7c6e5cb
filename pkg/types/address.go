package types

import "strings"

// Address carries the postal fields captured at checkout. It is stored as
// jsonb on order addresses and serialized into the checkout session cache.
type Address struct {
	FullName   string  `json:"full_name"`
	Phone      *string `json:"phone,omitempty"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// MissingField returns the first required field that is empty, or "" when the
// address is complete enough for checkout.
func (a Address) MissingField() string {
	switch {
	case strings.TrimSpace(a.FullName) == "":
		return "full_name"
	case strings.TrimSpace(a.Country) == "":
		return "country"
	case strings.TrimSpace(a.City) == "":
		return "city"
	case strings.TrimSpace(a.Line1) == "":
		return "line1"
	}
	return ""
}
