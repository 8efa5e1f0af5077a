package api

import (
	"soda-machine/internal/models"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Errors *string `json:"errors,omitempty"`
}

type SessionResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type OperatorAuthRequest struct {
	Password string `json:"password"`
}

type AuthResponse struct {
	Token *string `json:"token,omitempty"`
}

type PriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

type PriceResponse struct {
	Price decimal.Decimal `json:"price"`
}

type CreditResponse struct {
	Credit decimal.Decimal `json:"credit"`
}

type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type BuyRequest struct {
	Name string `json:"name"`
	Slot string `json:"slot,omitempty"`
}

// BuyResponse is returned for every processed soda request. Soda is nil
// when the request was refused and Message carries the reason.
type BuyResponse struct {
	SaleID  string        `json:"saleId,omitempty"`
	Soda    *models.Soda  `json:"soda,omitempty"`
	Change  []models.Coin `json:"change"`
	Message string        `json:"message,omitempty"`
}

type RestockCoinsRequest struct {
	Coins []CoinQuantity `json:"coins"`
}

type CoinQuantity struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type RestockSodasRequest struct {
	Sodas []SodaQuantity `json:"sodas"`
}

type SodaQuantity struct {
	Name     string `json:"name"`
	Slot     string `json:"slot"`
	Quantity int    `json:"quantity"`
}

type CoinInventoryResponse struct {
	Coins []models.Coin   `json:"coins"`
	Count map[string]int  `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type EmptyCashResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

type IncomeResponse struct {
	CashOnHand  decimal.Decimal `json:"cashOnHand"`
	TotalIncome decimal.Decimal `json:"totalIncome"`
}
