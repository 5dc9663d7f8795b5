package closeout

import (
	"github.com/closeout/backend/internal/domain/integration"
)

// Rejection reasons for raw records
const (
	ReasonMissingWorkplace   = "missing workplace id"
	ReasonInvalidBusinessDay = "business day missing or not YYYY-MM-DD"
	ReasonNoAmountSignal     = "no gross amount or balances"
)

// ValidateRawRecord checks a raw record before mapping. It returns an empty
// string when the record is acceptable, otherwise the rejection reason.
func ValidateRawRecord(doc *integration.Document) string {
	if ResolveString(doc, workplaceIDKeys) == "" {
		return ReasonMissingWorkplace
	}
	if !integration.IsBusinessDay(normalizeBusinessDay(ResolveString(doc, businessDayKeys))) {
		return ReasonInvalidBusinessDay
	}
	if !hasAmountSignal(doc) {
		return ReasonNoAmountSignal
	}
	return ""
}

func hasAmountSignal(doc *integration.Document) bool {
	if amounts := ResolveDocument(doc, amountsKeys); amounts != nil {
		if _, ok := ParseAmountOK(ResolveString(amounts, grossKeys)); ok {
			return true
		}
	}
	for _, key := range grossKeys {
		if v := lookupPath(doc, key, isScalar); v != nil {
			if _, ok := ParseAmountOK(scalarString(v)); ok {
				return true
			}
		}
	}
	return len(ResolveArray(doc, balancesKeys)) > 0
}
