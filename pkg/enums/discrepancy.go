package enums

import "fmt"

// DiscrepancySeverity ranks reconciliation findings for the review queue.
type DiscrepancySeverity string

const (
	DiscrepancySeverityCritical DiscrepancySeverity = "critical"
	DiscrepancySeverityAutofix  DiscrepancySeverity = "autofix"
	DiscrepancySeverityWarning  DiscrepancySeverity = "warning"
)

var validDiscrepancySeverities = []DiscrepancySeverity{
	DiscrepancySeverityCritical,
	DiscrepancySeverityAutofix,
	DiscrepancySeverityWarning,
}

// String returns the literal string for the severity.
func (s DiscrepancySeverity) String() string {
	return string(s)
}

// IsValid reports whether the severity is known.
func (s DiscrepancySeverity) IsValid() bool {
	for _, candidate := range validDiscrepancySeverities {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDiscrepancySeverity converts raw input into a DiscrepancySeverity.
func ParseDiscrepancySeverity(value string) (DiscrepancySeverity, error) {
	for _, candidate := range validDiscrepancySeverities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discrepancy severity %q", value)
}

// DiscrepancyKind classifies what disagreed.
type DiscrepancyKind string

const (
	// DiscrepancyKindClaimConflict: CDE reports sold/withdrawn while a local
	// active claim is held by someone else.
	DiscrepancyKindClaimConflict DiscrepancyKind = "claim_conflict"
	// DiscrepancyKindPhantomAvailable: catalog says available while CDE no
	// longer reports in_stock.
	DiscrepancyKindPhantomAvailable DiscrepancyKind = "phantom_available"
	// DiscrepancyKindMissingObject: photo record whose storage key is absent
	// or does not resolve in the bucket.
	DiscrepancyKindMissingObject DiscrepancyKind = "missing_object"
	// DiscrepancyKindUnknownObject: bucket object with no photo record.
	DiscrepancyKindUnknownObject DiscrepancyKind = "unknown_object"
)

var validDiscrepancyKinds = []DiscrepancyKind{
	DiscrepancyKindClaimConflict,
	DiscrepancyKindPhantomAvailable,
	DiscrepancyKindMissingObject,
	DiscrepancyKindUnknownObject,
}

// IsValid reports whether the kind is known.
func (k DiscrepancyKind) IsValid() bool {
	for _, candidate := range validDiscrepancyKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseDiscrepancyKind converts raw input into a DiscrepancyKind.
func ParseDiscrepancyKind(value string) (DiscrepancyKind, error) {
	for _, candidate := range validDiscrepancyKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discrepancy kind %q", value)
}
