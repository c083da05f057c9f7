// Package finance holds the treatment-plan money rules: nominal plan cost,
// authorized-amount capping, outstanding balances and proportional invoice
// line adjustment.
//
// Every function is pure. Inputs are never mutated and no state is kept
// between calls, so callers may use them from any goroutine. Amounts are
// shopspring decimals; nothing here rounds except AdjustLines, which rounds
// unit costs to cents.
package finance
