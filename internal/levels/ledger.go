package levels

import (
	"math"
	"time"

	"github.com/abhisek/levelup/internal/progress"
)

const (
	txAward = "award"
	txSpend = "spend"
)

func validAmount(amount float64) bool {
	return amount >= 0 && !math.IsNaN(amount) && !math.IsInf(amount, 0)
}

// Award credits amount to both the lifetime total and the available
// balance. Negative or non-finite amounts are rejected.
func Award(l *progress.EnergyLedger, amount float64, reason string, now time.Time) bool {
	if !validAmount(amount) {
		return false
	}
	if amount == 0 {
		return true
	}
	l.TotalEnergy += amount
	l.AvailableEnergy += amount
	record(l, txAward, amount, reason, now)
	return true
}

// Spend debits amount from the available balance only. It fails without
// changing anything when the balance is too low.
func Spend(l *progress.EnergyLedger, amount float64, reason string, now time.Time) bool {
	if !validAmount(amount) || amount > l.AvailableEnergy {
		return false
	}
	if amount == 0 {
		return true
	}
	l.AvailableEnergy -= amount
	record(l, txSpend, amount, reason, now)
	return true
}

func record(l *progress.EnergyLedger, kind string, amount float64, reason string, now time.Time) {
	l.Transactions = append(l.Transactions, progress.EnergyTransaction{
		Kind:   kind,
		Amount: amount,
		Reason: reason,
		At:     now.UTC(),
	})
	if n := len(l.Transactions); n > progress.MaxEnergyTransactions {
		l.Transactions = append([]progress.EnergyTransaction(nil), l.Transactions[n-progress.MaxEnergyTransactions:]...)
	}
}
