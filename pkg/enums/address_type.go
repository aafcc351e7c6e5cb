package enums

// AddressType distinguishes the two address rows written per order.
type AddressType string

const (
	AddressTypeShipping AddressType = "shipping"
	AddressTypeBilling  AddressType = "billing"
)

// IsValid reports whether the value matches the canonical address type enum.
func (a AddressType) IsValid() bool {
	return a == AddressTypeShipping || a == AddressTypeBilling
}
