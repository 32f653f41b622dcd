package entity

// StoreStats aggregates the record store for dashboards and export.
type StoreStats struct {
	TotalRecords int            `json:"total_records"`
	NeedsReview  int            `json:"needs_review"`
	Expired      int            `json:"expired"`
	ExpiringSoon int            `json:"expiring_soon"`
	ByForm       map[string]int `json:"by_form,omitempty"`
	ByCategory   map[string]int `json:"by_category,omitempty"`
}
