package enums

// TaxScope distinguishes item-level tax lines from order-scoped ones.
type TaxScope string

const (
	TaxScopeItem  TaxScope = "item"
	TaxScopeOrder TaxScope = "order"
)

// IsValid reports whether the value matches the canonical tax scope enum.
func (s TaxScope) IsValid() bool {
	return s == TaxScopeItem || s == TaxScopeOrder
}
