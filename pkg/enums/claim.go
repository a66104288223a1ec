package enums

import "fmt"

// ClaimStatus tracks the lifecycle of a reservation claim.
// active is the only non-terminal state.
type ClaimStatus string

const (
	ClaimStatusActive   ClaimStatus = "active"
	ClaimStatusPromoted ClaimStatus = "promoted"
	ClaimStatusReleased ClaimStatus = "released"
	ClaimStatusExpired  ClaimStatus = "expired"
)

var validClaimStatuses = []ClaimStatus{
	ClaimStatusActive,
	ClaimStatusPromoted,
	ClaimStatusReleased,
	ClaimStatusExpired,
}

// String returns the literal string for the status.
func (s ClaimStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s ClaimStatus) IsValid() bool {
	for _, candidate := range validClaimStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the claim can no longer change state.
func (s ClaimStatus) IsTerminal() bool {
	return s != ClaimStatusActive
}

// ParseClaimStatus converts raw input into a ClaimStatus.
func ParseClaimStatus(value string) (ClaimStatus, error) {
	for _, candidate := range validClaimStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid claim status %q", value)
}

// ClaimKind distinguishes shopper cart holds from supervised admin overrides.
type ClaimKind string

const (
	ClaimKindCart     ClaimKind = "cart"
	ClaimKindOverride ClaimKind = "override"
)

var validClaimKinds = []ClaimKind{
	ClaimKindCart,
	ClaimKindOverride,
}

// IsValid reports whether the kind is known.
func (k ClaimKind) IsValid() bool {
	for _, candidate := range validClaimKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseClaimKind converts raw input into a ClaimKind.
func ParseClaimKind(value string) (ClaimKind, error) {
	for _, candidate := range validClaimKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid claim kind %q", value)
}
