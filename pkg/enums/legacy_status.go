package enums

import "fmt"

// LegacyStatus mirrors the raw stock state reported by the CDE inventory
// system. It is refreshed exclusively by the reconciliation engine.
type LegacyStatus string

const (
	LegacyStatusInStock          LegacyStatus = "in_stock"
	LegacyStatusInTransit        LegacyStatus = "in_transit"
	LegacyStatusReservedExternal LegacyStatus = "reserved_external"
	LegacyStatusSold             LegacyStatus = "sold"
	LegacyStatusStandby          LegacyStatus = "standby"
	LegacyStatusUnknown          LegacyStatus = "unknown"
)

var validLegacyStatuses = []LegacyStatus{
	LegacyStatusInStock,
	LegacyStatusInTransit,
	LegacyStatusReservedExternal,
	LegacyStatusSold,
	LegacyStatusStandby,
	LegacyStatusUnknown,
}

// String returns the literal string for the status.
func (s LegacyStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s LegacyStatus) IsValid() bool {
	for _, candidate := range validLegacyStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseLegacyStatus converts raw input into a LegacyStatus.
func ParseLegacyStatus(value string) (LegacyStatus, error) {
	for _, candidate := range validLegacyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid legacy status %q", value)
}

// CDE reports its state in Spanish-language codes. Anything outside the
// mapping is normalized to LegacyStatusUnknown so a new CDE vocabulary entry
// can never leak into the catalog as sellable.
var cdeCodeMap = map[string]LegacyStatus{
	"INGRESADO": LegacyStatusInStock,
	"TRANSITO":  LegacyStatusInTransit,
	"RESERVADO": LegacyStatusReservedExternal,
	"RETIRADO":  LegacyStatusSold,
	"VENDIDO":   LegacyStatusSold,
	"STANDBY":   LegacyStatusStandby,
}

// NormalizeCDECode maps a raw CDE status code onto the closed LegacyStatus set.
func NormalizeCDECode(code string) LegacyStatus {
	if status, ok := cdeCodeMap[code]; ok {
		return status
	}
	return LegacyStatusUnknown
}
