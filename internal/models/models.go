package models

import (
	"github.com/shopspring/decimal"
)

// Coin is a single physical coin. Coins with the same name are interchangeable.
type Coin struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Soda is one dispensable unit sitting in a slot.
type Soda struct {
	Name         string `json:"name"`
	SlotOccupied string `json:"slot"`
}

type MachineInfo struct {
	SodaPrice   decimal.Decimal
	CashOnHand  decimal.Decimal
	TotalIncome decimal.Decimal
}

var (
	Dollar  = Coin{Name: "Dollar", Amount: decimal.New(100, -2)}
	Quarter = Coin{Name: "Quarter", Amount: decimal.New(25, -2)}
	Dime    = Coin{Name: "Dime", Amount: decimal.New(10, -2)}
	Nickel  = Coin{Name: "Nickel", Amount: decimal.New(5, -2)}
)

// Denominations lists every accepted coin, largest amount first.
var Denominations = []Coin{Dollar, Quarter, Dime, Nickel}

// CoinByName returns the canonical coin for name.
func CoinByName(name string) (Coin, bool) {
	for _, c := range Denominations {
		if c.Name == name {
			return c, true
		}
	}
	return Coin{}, false
}

// CoinByAmount returns the denomination worth exactly amount.
func CoinByAmount(amount decimal.Decimal) (Coin, bool) {
	for _, c := range Denominations {
		if c.Amount.Equal(amount) {
			return c, true
		}
	}
	return Coin{}, false
}

// SumCoins adds up the face value of coins.
func SumCoins(coins []Coin) decimal.Decimal {
	total := decimal.Zero
	for _, c := range coins {
		total = total.Add(c.Amount)
	}
	return total
}
