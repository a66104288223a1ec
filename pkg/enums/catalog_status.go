package enums

import "fmt"

// CatalogStatus is the locally owned availability projection exposed to the
// storefront. Only the availability projector writes it.
type CatalogStatus string

const (
	CatalogStatusAvailable CatalogStatus = "available"
	CatalogStatusReserved  CatalogStatus = "reserved"
	CatalogStatusSold      CatalogStatus = "sold"
	CatalogStatusInactive  CatalogStatus = "inactive"
)

var validCatalogStatuses = []CatalogStatus{
	CatalogStatusAvailable,
	CatalogStatusReserved,
	CatalogStatusSold,
	CatalogStatusInactive,
}

// String returns the literal string for the status.
func (s CatalogStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s CatalogStatus) IsValid() bool {
	for _, candidate := range validCatalogStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCatalogStatus converts raw input into a CatalogStatus.
func ParseCatalogStatus(value string) (CatalogStatus, error) {
	for _, candidate := range validCatalogStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid catalog status %q", value)
}
