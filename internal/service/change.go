package service

import (
	"soda-machine/internal/models"

	"github.com/shopspring/decimal"
)

// makeChange withdraws coins worth as close to due as the coin inventory
// allows, taking denominations largest first without backtracking. The
// greedy choice is only minimal for a canonical set such as Dollar,
// Quarter, Dime, Nickel. The caller detects a shortfall by comparing sums.
// On a storage error the coins already withdrawn are returned with it.
func (s *machineService) makeChange(due decimal.Decimal) ([]models.Coin, error) {
	change := make([]models.Coin, 0)
	if !due.IsPositive() {
		return change, nil
	}

	inventory, err := s.store.GetAllCoins()
	if err != nil {
		return nil, err
	}
	available := make(map[string]int64, len(models.Denominations))
	for _, c := range inventory {
		available[c.Name]++
	}

	remaining := due
	for _, denom := range models.Denominations {
		if remaining.IsZero() {
			break
		}
		quotient, _ := remaining.QuoRem(denom.Amount, 0)
		needed := quotient.IntPart()
		if needed <= 0 || available[denom.Name] == 0 {
			continue
		}

		qty := min(needed, available[denom.Name])
		coins, err := s.store.WithdrawCoins(denom.Name, int(qty))
		if err != nil {
			return change, err
		}
		change = append(change, coins...)
		remaining = remaining.Sub(models.SumCoins(coins))
		s.metrics.CoinsDispensed(denom.Name, len(coins))
	}
	return change, nil
}
