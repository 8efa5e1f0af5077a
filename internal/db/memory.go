package db

import (
	"fmt"
	"sync"

	"soda-machine/internal/models"

	"github.com/shopspring/decimal"
)

// MemoryStorage keeps all four tables in process memory behind one lock.
type MemoryStorage struct {
	mu      sync.RWMutex
	coins   []models.Coin
	sodas   []models.Soda
	machine models.MachineInfo
	credit  map[string]decimal.Decimal
}

func NewMemoryStorage(price decimal.Decimal) *MemoryStorage {
	return &MemoryStorage{
		coins:   make([]models.Coin, 0),
		sodas:   make([]models.Soda, 0),
		machine: models.MachineInfo{SodaPrice: price, CashOnHand: decimal.Zero, TotalIncome: decimal.Zero},
		credit:  make(map[string]decimal.Decimal),
	}
}

// SetMachineInfo overwrites the machine record. Used for seeding.
func (m *MemoryStorage) SetMachineInfo(info models.MachineInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.machine = info
}

func (m *MemoryStorage) MachineInfo() models.MachineInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.machine
}

// HasCreditEntry reports whether userID has an open balance, as opposed to none.
func (m *MemoryStorage) HasCreditEntry(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.credit[userID]
	return ok
}

func (m *MemoryStorage) GetAllCoins() ([]models.Coin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Coin{}, m.coins...), nil
}

func (m *MemoryStorage) WithdrawCoins(name string, quantity int) ([]models.Coin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	taken := make([]models.Coin, 0, max(quantity, 0))
	kept := m.coins[:0]
	for _, c := range m.coins {
		if c.Name == name && len(taken) < quantity {
			taken = append(taken, c)
			continue
		}
		kept = append(kept, c)
	}
	m.coins = kept
	return taken, nil
}

func (m *MemoryStorage) AddCoins(coins []models.Coin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coins = append(m.coins, coins...)
	return nil
}

func (m *MemoryStorage) GetAllSodas() ([]models.Soda, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Soda{}, m.sodas...), nil
}

func (m *MemoryStorage) GetSodaTypes() ([]models.Soda, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sodaTypes(m.sodas), nil
}

func (m *MemoryStorage) FindSoda(name string) (*models.Soda, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sodas {
		if s.Name == name {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) AddSodas(sodas []models.Soda) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sodas = append(m.sodas, sodas...)
	return nil
}

func (m *MemoryStorage) IsSodaInStock(soda models.Soda) (bool, error) {
	found, err := m.FindSoda(soda.Name)
	return found != nil, err
}

func (m *MemoryStorage) RemoveSoda(soda models.Soda) (*models.Soda, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.sodas {
		if s.Name == soda.Name {
			m.sodas = append(m.sodas[:i], m.sodas[i+1:]...)
			return &s, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) GetSodaPrice() (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.machine.SodaPrice, nil
}

func (m *MemoryStorage) SetSodaPrice(price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.machine.SodaPrice = price
	return nil
}

func (m *MemoryStorage) GetCashOnHand() (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.machine.CashOnHand, nil
}

func (m *MemoryStorage) GetTotalIncome() (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.machine.TotalIncome, nil
}

func (m *MemoryStorage) EmptyCash() (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cash := m.machine.CashOnHand
	m.machine.CashOnHand = decimal.Zero
	return cash, nil
}

func (m *MemoryStorage) GetUserCredit(userID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if amount, ok := m.credit[userID]; ok {
		return amount, nil
	}
	return decimal.Zero, nil
}

func (m *MemoryStorage) InsertUserCredit(userID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.credit[userID]
	if !ok {
		current = decimal.Zero
	}
	m.credit[userID] = current.Add(amount)
	return nil
}

func (m *MemoryStorage) ClearUserCredit(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.credit, userID)
	return nil
}

func (m *MemoryStorage) DepositUserCredit(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	amount, ok := m.credit[userID]
	if !ok {
		return fmt.Errorf("failed to deposit credit for %q: %w", userID, ErrUserNotFound)
	}
	m.machine.CashOnHand = m.machine.CashOnHand.Add(amount)
	m.machine.TotalIncome = m.machine.TotalIncome.Add(amount)
	delete(m.credit, userID)
	return nil
}

func (m *MemoryStorage) WithdrawUserCredit(userID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.credit[userID]
	if !ok {
		return fmt.Errorf("failed to withdraw credit for %q: %w", userID, ErrUserNotFound)
	}
	if current.LessThan(amount) {
		return ErrInsufficientCredit
	}
	m.credit[userID] = current.Sub(amount)
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
