package entity

import (
	"github.com/mediscan/mediscan/constants"
)

// ReferenceEntry is one known medicine in the reference set.
type ReferenceEntry struct {
	Name        string               `json:"name"`
	GenericName string               `json:"generic_name"`
	Category    string               `json:"category"`
	CommonForms []constants.DoseForm `json:"common_forms,omitempty"`
}
