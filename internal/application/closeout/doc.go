// Package closeout implements the reconciliation pipeline that turns raw
// vendor exports into ledger records, and the triggers that drive it.
//
// Stages, leaf to root: field extraction over weakly typed documents,
// payment normalisation, invoice aggregation, source prioritisation with
// proportional attribution, record mapping, and the sync orchestrator that
// rewrites each (workplace, business day) slice of the ledger.
package closeout
