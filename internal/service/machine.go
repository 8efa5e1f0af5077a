package service

import (
	"errors"
	"fmt"
	"sync"

	"soda-machine/internal/db"
	"soda-machine/internal/metrics"
	"soda-machine/internal/models"
	"soda-machine/pkg"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrOutOfStock          = errors.New("out of stock")
	ErrChangeShortfall     = errors.New("ran out of change")
	ErrInvalidDenomination = errors.New("amount is not an accepted denomination")
	ErrUnknownCoin         = errors.New("unknown coin")
	ErrInvalidSoda         = errors.New("soda name is required")
	ErrInvalidPrice        = errors.New("price must not be negative")
)

// Messages shown to the customer for each soda request outcome.
const (
	MsgInsufficientFunds = "Insufficient Funds"
	MsgOutOfStock        = "Out of Stock"
	MsgChangeShortfall   = "Sorry, we ran out of change"
)

// Dispense is the outcome of a soda request. Soda and Change are both nil
// when the request was refused; Err says why. A sale that could not return
// full change has a Soda and Err set to ErrChangeShortfall.
type Dispense struct {
	SaleID string
	Soda   *models.Soda
	Change []models.Coin
	Err    error
}

// Message returns the customer-facing text, empty on full success.
func (d Dispense) Message() string {
	switch {
	case d.Err == nil:
		return ""
	case errors.Is(d.Err, ErrInsufficientFunds):
		return MsgInsufficientFunds
	case errors.Is(d.Err, ErrOutOfStock):
		return MsgOutOfStock
	case errors.Is(d.Err, ErrChangeShortfall):
		return MsgChangeShortfall
	default:
		return d.Err.Error()
	}
}

type MachineService interface {
	ListSodaTypes() ([]models.Soda, error)
	Deposit(userID string, amount decimal.Decimal) (decimal.Decimal, error)
	GetSodaPrice() (decimal.Decimal, error)
	SetSodaPrice(price decimal.Decimal) error
	RequestSoda(soda models.Soda, userID string) (Dispense, error)
	IssueFullRefund(userID string) error
	GetMoneyInsertedTotal(userID string) (decimal.Decimal, error)

	AddToSodaInventory(sodas []models.Soda) error
	AddToCoinInventory(coins []models.Coin) error
	GetSodaInventory() ([]models.Soda, error)
	GetCoinInventory() ([]models.Coin, error)
	EmptyMoneyFromMachine() (decimal.Decimal, error)
	// GetCurrentIncome returns the cash currently held by the machine.
	GetCurrentIncome() (decimal.Decimal, error)
	// GetTotalIncome returns lifetime revenue, unaffected by emptying cash.
	GetTotalIncome() (decimal.Decimal, error)
}

type Option func(*machineService)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *machineService) { s.metrics = m }
}

// WithStrictDeposits makes Deposit reject amounts that are not a coin denomination.
func WithStrictDeposits(strict bool) Option {
	return func(s *machineService) { s.strictDeposits = strict }
}

// machineService serializes every operation behind mu so a sale's
// read-validate-commit sequence cannot interleave with other calls.
type machineService struct {
	mu             sync.Mutex
	store          db.Storage
	log            pkg.Logger
	metrics        *metrics.Metrics
	strictDeposits bool
}

func NewMachineService(store db.Storage, log pkg.Logger, opts ...Option) MachineService {
	s := &machineService{
		store: store,
		log:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *machineService) ListSodaTypes() ([]models.Soda, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	types, err := s.store.GetSodaTypes()
	if err != nil {
		s.log.Error("failed to list soda types", zap.Error(err))
		return nil, err
	}
	return types, nil
}

func (s *machineService) Deposit(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.strictDeposits {
		if _, ok := models.CoinByAmount(amount); !ok {
			s.log.Warn("rejected deposit", zap.String("userID", userID), zap.Stringer("amount", amount))
			return decimal.Zero, fmt.Errorf("%s: %w", amount, ErrInvalidDenomination)
		}
	}

	if err := s.store.InsertUserCredit(userID, amount); err != nil {
		s.log.Error("failed to insert credit", zap.String("userID", userID), zap.Error(err))
		return decimal.Zero, err
	}
	total, err := s.store.GetUserCredit(userID)
	if err != nil {
		s.log.Error("failed to get credit", zap.String("userID", userID), zap.Error(err))
		return decimal.Zero, err
	}
	s.metrics.Deposit()
	s.log.Info("Money inserted",
		zap.String("userID", userID),
		zap.Stringer("amount", amount),
		zap.Stringer("total", total))
	return total, nil
}

func (s *machineService) GetSodaPrice() (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetSodaPrice()
}

func (s *machineService) SetSodaPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetSodaPrice(price); err != nil {
		s.log.Error("failed to set soda price", zap.Error(err))
		return err
	}
	s.log.Info("Soda price changed", zap.Stringer("price", price))
	return nil
}

func (s *machineService) RequestSoda(soda models.Soda, userID string) (Dispense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	credit, err := s.store.GetUserCredit(userID)
	if err != nil {
		s.log.Error("failed to get credit", zap.String("userID", userID), zap.Error(err))
		return Dispense{}, err
	}
	price, err := s.store.GetSodaPrice()
	if err != nil {
		s.log.Error("failed to get soda price", zap.Error(err))
		return Dispense{}, err
	}

	if credit.LessThan(price) {
		s.metrics.Rejected("insufficient_funds")
		s.log.Warn("insufficient funds",
			zap.String("userID", userID),
			zap.Stringer("credit", credit),
			zap.Stringer("price", price))
		return Dispense{Err: ErrInsufficientFunds}, nil
	}

	// The unit is claimed before any money moves.
	dispensed, err := s.store.RemoveSoda(soda)
	if err != nil {
		s.log.Error("failed to claim soda", zap.String("soda", soda.Name), zap.Error(err))
		return Dispense{}, err
	}
	if dispensed == nil {
		s.metrics.Rejected("out_of_stock")
		s.log.Warn("soda out of stock", zap.String("userID", userID), zap.String("soda", soda.Name))
		return Dispense{Err: ErrOutOfStock}, nil
	}

	if credit.IsZero() {
		err = s.store.ClearUserCredit(userID)
	} else {
		err = s.store.DepositUserCredit(userID)
	}
	if err != nil {
		s.log.Error("failed to deposit credit", zap.String("userID", userID), zap.Error(err))
		if restockErr := s.store.AddSodas([]models.Soda{*dispensed}); restockErr != nil {
			s.log.Error("failed to return claimed soda", zap.String("soda", dispensed.Name), zap.Error(restockErr))
		}
		return Dispense{}, err
	}

	// The sale is committed from here on. Coins already withdrawn are handed
	// out even if a later withdrawal fails.
	changeDue := credit.Sub(price)
	change, changeErr := s.makeChange(changeDue)
	if changeErr != nil {
		s.log.Error("failed to make change", zap.Stringer("due", changeDue), zap.Error(changeErr))
	}

	out := Dispense{
		SaleID: uuid.NewString(),
		Soda:   dispensed,
		Change: change,
	}
	s.metrics.Sale()

	given := models.SumCoins(change)
	if !given.Equal(changeDue) {
		out.Err = ErrChangeShortfall
		if changeErr != nil {
			out.Err = fmt.Errorf("%w: %v", ErrChangeShortfall, changeErr)
		}
		s.metrics.ChangeShortfall()
		s.log.Warn("ran out of change",
			zap.String("saleID", out.SaleID),
			zap.Stringer("due", changeDue),
			zap.Stringer("given", given))
	}

	s.log.Info("Soda dispensed",
		zap.String("saleID", out.SaleID),
		zap.String("userID", userID),
		zap.String("soda", dispensed.Name),
		zap.String("slot", dispensed.SlotOccupied),
		zap.Stringer("paid", credit),
		zap.Stringer("change", given))
	return out, nil
}

func (s *machineService) IssueFullRefund(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ClearUserCredit(userID); err != nil {
		s.log.Error("failed to clear credit", zap.String("userID", userID), zap.Error(err))
		return err
	}
	s.log.Info("Credit refunded", zap.String("userID", userID))
	return nil
}

func (s *machineService) GetMoneyInsertedTotal(userID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetUserCredit(userID)
}

func (s *machineService) AddToSodaInventory(sodas []models.Soda) error {
	for _, soda := range sodas {
		if soda.Name == "" {
			return ErrInvalidSoda
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.AddSodas(sodas); err != nil {
		s.log.Error("failed to add sodas", zap.Error(err))
		return err
	}
	s.log.Info("Soda inventory restocked", zap.Int("count", len(sodas)))
	return nil
}

func (s *machineService) AddToCoinInventory(coins []models.Coin) error {
	canonical := make([]models.Coin, 0, len(coins))
	for _, c := range coins {
		known, ok := models.CoinByName(c.Name)
		if !ok {
			return fmt.Errorf("%q: %w", c.Name, ErrUnknownCoin)
		}
		canonical = append(canonical, known)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.AddCoins(canonical); err != nil {
		s.log.Error("failed to add coins", zap.Error(err))
		return err
	}
	s.log.Info("Coin inventory restocked",
		zap.Int("count", len(canonical)),
		zap.Stringer("value", models.SumCoins(canonical)))
	return nil
}

func (s *machineService) GetSodaInventory() ([]models.Soda, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetAllSodas()
}

func (s *machineService) GetCoinInventory() ([]models.Coin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetAllCoins()
}

func (s *machineService) EmptyMoneyFromMachine() (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cash, err := s.store.EmptyCash()
	if err != nil {
		s.log.Error("failed to empty cash", zap.Error(err))
		return decimal.Zero, err
	}
	s.log.Info("Cash emptied", zap.Stringer("amount", cash))
	return cash, nil
}

func (s *machineService) GetCurrentIncome() (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetCashOnHand()
}

func (s *machineService) GetTotalIncome() (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetTotalIncome()
}
