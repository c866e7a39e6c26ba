package domain

import "github.com/google/uuid"

// Currency is ISO 4217 reference data. The importer only ever reads it.
type Currency struct {
	ID             uuid.UUID `json:"id"`
	AlphabeticCode string    `json:"alphabetic_code"`
	NumericCode    int       `json:"numeric_code"`
	Name           string    `json:"name"`
	MinorUnit      int       `json:"minor_unit"`
}
