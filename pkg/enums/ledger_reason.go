package enums

import "fmt"

// LedgerReason classifies a cashback ledger entry.
type LedgerReason string

const (
	LedgerReasonEarn       LedgerReason = "earn"
	LedgerReasonRedeem     LedgerReason = "redeem"
	LedgerReasonRefundEarn LedgerReason = "refund_earn"
	LedgerReasonManual     LedgerReason = "manual"
)

var validLedgerReasons = []LedgerReason{
	LedgerReasonEarn,
	LedgerReasonRedeem,
	LedgerReasonRefundEarn,
	LedgerReasonManual,
}

// IsValid reports whether the value matches the canonical ledger reason set.
func (r LedgerReason) IsValid() bool {
	for _, candidate := range validLedgerReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseLedgerReason converts raw input into a LedgerReason.
func ParseLedgerReason(value string) (LedgerReason, error) {
	for _, candidate := range validLedgerReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger reason %q", value)
}
