package strategy

// Ledger accumulates realized P&L across all symbols for the session. Owned
// by the Engine and touched only by its processing goroutine.
type Ledger struct {
	realized float64
}

// Add folds one realized trade result into the session total.
func (l *Ledger) Add(pnl float64) {
	l.realized += pnl
}

// Realized returns the session's realized P&L so far.
func (l *Ledger) Realized() float64 {
	return l.realized
}
