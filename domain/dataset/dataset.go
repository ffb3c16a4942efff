package dataset

import (
	"fmt"

	"gordd/domain/core"
)

// Supported cart value range in euros. The running variable never leaves it.
const (
	CartMin = 5.0
	CartMax = 200.0
)

// Column names, shared by the generator, the estimators and the tabular codecs.
const (
	ColSessionID         = "session_id"
	ColCustomerAge       = "customer_age"
	ColTenureDays        = "account_tenure_days"
	ColPreviousPurchases = "previous_purchases"
	ColProductCategory   = "product_category"
	ColItemsInCart       = "items_in_cart"
	ColCartValue         = "cart_value"
	ColTreatment         = "treatment"
	ColCompleted         = "completed_purchase"
	ColY0                = "y0"
	ColY1                = "y1"
)

// Headers returns the canonical column order for tabular export.
func Headers() []string {
	return []string{
		ColSessionID,
		ColCustomerAge,
		ColTenureDays,
		ColPreviousPurchases,
		ColProductCategory,
		ColItemsInCart,
		ColCartValue,
		ColTreatment,
		ColCompleted,
		ColY0,
		ColY1,
	}
}

// Dataset is the canonical in-memory representation of a batch of shopping
// sessions, one slice per column. A session's identity is its row index.
// Estimators treat a Dataset as read-only; derived columns (centering,
// interactions) live in per-call scratch space, never here.
type Dataset struct {
	SessionID         []int64   `json:"session_id"`
	CustomerAge       []string  `json:"customer_age"`
	TenureDays        []float64 `json:"account_tenure_days"`
	PreviousPurchases []float64 `json:"previous_purchases"`
	ProductCategory   []string  `json:"product_category"`
	ItemsInCart       []float64 `json:"items_in_cart"`
	CartValue         []float64 `json:"cart_value"`
	Treatment         []float64 `json:"treatment"`
	Completed         []float64 `json:"completed_purchase"`
	Y0                []float64 `json:"y0"`
	Y1                []float64 `json:"y1"`
}

// New allocates a Dataset with capacity for n rows.
func New(n int) *Dataset {
	return &Dataset{
		SessionID:         make([]int64, n),
		CustomerAge:       make([]string, n),
		TenureDays:        make([]float64, n),
		PreviousPurchases: make([]float64, n),
		ProductCategory:   make([]string, n),
		ItemsInCart:       make([]float64, n),
		CartValue:         make([]float64, n),
		Treatment:         make([]float64, n),
		Completed:         make([]float64, n),
		Y0:                make([]float64, n),
		Y1:                make([]float64, n),
	}
}

// Len returns the number of sessions.
func (d *Dataset) Len() int {
	return len(d.CartValue)
}

// Validate checks structural consistency: equal column lengths, binary
// indicator columns, cart values inside the supported range.
func (d *Dataset) Validate() error {
	n := d.Len()
	if n == 0 {
		return core.NewParameterError("dataset", "has no rows")
	}
	cols := map[string]int{
		ColSessionID:         len(d.SessionID),
		ColCustomerAge:       len(d.CustomerAge),
		ColTenureDays:        len(d.TenureDays),
		ColPreviousPurchases: len(d.PreviousPurchases),
		ColProductCategory:   len(d.ProductCategory),
		ColItemsInCart:       len(d.ItemsInCart),
		ColTreatment:         len(d.Treatment),
		ColCompleted:         len(d.Completed),
		ColY0:                len(d.Y0),
		ColY1:                len(d.Y1),
	}
	for name, l := range cols {
		if l != n {
			return core.NewParameterError("dataset", fmt.Sprintf("column %s has %d rows, want %d", name, l, n))
		}
	}
	for i := 0; i < n; i++ {
		if d.CartValue[i] < CartMin || d.CartValue[i] > CartMax {
			return core.NewParameterError(ColCartValue, fmt.Sprintf("row %d value %.2f outside [%.0f, %.0f]", i, d.CartValue[i], CartMin, CartMax))
		}
		if !isBinary(d.Treatment[i]) || !isBinary(d.Completed[i]) || !isBinary(d.Y0[i]) || !isBinary(d.Y1[i]) {
			return core.NewParameterError("dataset", fmt.Sprintf("row %d has a non-binary indicator", i))
		}
	}
	return nil
}

// CheckSharpAssignment verifies treatment == (cart_value >= cutoff) on every row.
func (d *Dataset) CheckSharpAssignment(cutoff float64) error {
	for i := range d.CartValue {
		want := 0.0
		if d.CartValue[i] >= cutoff {
			want = 1.0
		}
		if d.Treatment[i] != want {
			return core.NewParameterError(ColTreatment,
				fmt.Sprintf("row %d violates sharp assignment at cutoff %.2f (cart %.2f, treatment %.0f)", i, cutoff, d.CartValue[i], d.Treatment[i]))
		}
	}
	return nil
}

// NumericColumn resolves a numeric column by name.
func (d *Dataset) NumericColumn(name string) ([]float64, error) {
	switch name {
	case ColTenureDays:
		return d.TenureDays, nil
	case ColPreviousPurchases:
		return d.PreviousPurchases, nil
	case ColItemsInCart:
		return d.ItemsInCart, nil
	case ColCartValue:
		return d.CartValue, nil
	case ColTreatment:
		return d.Treatment, nil
	case ColCompleted:
		return d.Completed, nil
	case ColY0:
		return d.Y0, nil
	case ColY1:
		return d.Y1, nil
	}
	return nil, core.NewParameterError("column", fmt.Sprintf("%q is not a numeric column", name))
}

// LabelColumn resolves a categorical column by name.
func (d *Dataset) LabelColumn(name string) ([]string, error) {
	switch name {
	case ColCustomerAge:
		return d.CustomerAge, nil
	case ColProductCategory:
		return d.ProductCategory, nil
	}
	return nil, core.NewParameterError("column", fmt.Sprintf("%q is not a categorical column", name))
}

// Select copies the given rows into a fresh Dataset, preserving order.
func (d *Dataset) Select(rows []int) *Dataset {
	out := New(len(rows))
	for j, i := range rows {
		out.SessionID[j] = d.SessionID[i]
		out.CustomerAge[j] = d.CustomerAge[i]
		out.TenureDays[j] = d.TenureDays[i]
		out.PreviousPurchases[j] = d.PreviousPurchases[i]
		out.ProductCategory[j] = d.ProductCategory[i]
		out.ItemsInCart[j] = d.ItemsInCart[i]
		out.CartValue[j] = d.CartValue[i]
		out.Treatment[j] = d.Treatment[i]
		out.Completed[j] = d.Completed[i]
		out.Y0[j] = d.Y0[i]
		out.Y1[j] = d.Y1[i]
	}
	return out
}

// LoyaltyTier buckets a session by purchase history: New (0 prior purchases),
// Occasional (1-2), Loyal (3+).
func (d *Dataset) LoyaltyTier(i int) string {
	switch p := d.PreviousPurchases[i]; {
	case p <= 0:
		return "New"
	case p <= 2:
		return "Occasional"
	default:
		return "Loyal"
	}
}

// IndicesWithin returns the row indices where |values[i] - center| <= halfWidth,
// in row order.
func IndicesWithin(values []float64, center, halfWidth float64) []int {
	var idx []int
	for i, v := range values {
		if v >= center-halfWidth && v <= center+halfWidth {
			idx = append(idx, i)
		}
	}
	return idx
}

func isBinary(v float64) bool {
	return v == 0 || v == 1
}
