package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"soda-machine/internal/models"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

const (
	coinsFile   = "coins.csv"
	sodasFile   = "sodas.csv"
	machineFile = "machine.csv"
	creditFile  = "credit.csv"
)

type coinRecord struct {
	Name string `csv:"name"`
}

type sodaRecord struct {
	Name string `csv:"name"`
	Slot string `csv:"slot"`
}

type machineRecord struct {
	SodaPrice   string `csv:"soda_price"`
	CashOnHand  string `csv:"cash_on_hand"`
	TotalIncome string `csv:"total_income"`
}

type creditRecord struct {
	UserID string `csv:"user_id"`
	Amount string `csv:"amount"`
}

// FileStorage persists every table as a CSV file under dir. Each call reads
// the files it needs, applies the change and rewrites them.
type FileStorage struct {
	mu  sync.Mutex
	dir string
}

func NewFileStorage(dir string, price decimal.Decimal) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	fs := &FileStorage{dir: dir}

	for name, empty := range map[string]any{
		coinsFile:  []coinRecord{},
		sodasFile:  []sodaRecord{},
		creditFile: []creditRecord{},
	} {
		if err := fs.ensureFile(name, empty); err != nil {
			return nil, err
		}
	}
	seed := []machineRecord{{
		SodaPrice:   price.StringFixed(2),
		CashOnHand:  decimal.Zero.StringFixed(2),
		TotalIncome: decimal.Zero.StringFixed(2),
	}}
	if err := fs.ensureFile(machineFile, seed); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *FileStorage) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *FileStorage) ensureFile(name string, initial any) error {
	if _, err := os.Stat(f.path(name)); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}
	return f.write(name, initial)
}

func (f *FileStorage) read(name string, out any) error {
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := gocsv.UnmarshalBytes(data, out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil
		}
		return fmt.Errorf("failed to parse %s: %v: %w", name, err, ErrCorruptData)
	}
	return nil
}

func (f *FileStorage) write(name string, in any) error {
	data, err := gocsv.MarshalBytes(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	tmp := f.path(name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, f.path(name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

func (f *FileStorage) loadCoins() ([]models.Coin, error) {
	var records []coinRecord
	if err := f.read(coinsFile, &records); err != nil {
		return nil, err
	}
	coins := make([]models.Coin, 0, len(records))
	for i, r := range records {
		coin, ok := models.CoinByName(r.Name)
		if !ok {
			return nil, fmt.Errorf("%s row %d: unknown coin %q: %w", coinsFile, i+1, r.Name, ErrCorruptData)
		}
		coins = append(coins, coin)
	}
	return coins, nil
}

func (f *FileStorage) saveCoins(coins []models.Coin) error {
	records := make([]coinRecord, 0, len(coins))
	for _, c := range coins {
		records = append(records, coinRecord{Name: c.Name})
	}
	return f.write(coinsFile, &records)
}

func (f *FileStorage) loadSodas() ([]models.Soda, error) {
	var records []sodaRecord
	if err := f.read(sodasFile, &records); err != nil {
		return nil, err
	}
	sodas := make([]models.Soda, 0, len(records))
	for i, r := range records {
		if r.Name == "" {
			return nil, fmt.Errorf("%s row %d: missing soda name: %w", sodasFile, i+1, ErrCorruptData)
		}
		sodas = append(sodas, models.Soda{Name: r.Name, SlotOccupied: r.Slot})
	}
	return sodas, nil
}

func (f *FileStorage) saveSodas(sodas []models.Soda) error {
	records := make([]sodaRecord, 0, len(sodas))
	for _, s := range sodas {
		records = append(records, sodaRecord{Name: s.Name, Slot: s.SlotOccupied})
	}
	return f.write(sodasFile, &records)
}

func (f *FileStorage) loadMachine() (models.MachineInfo, error) {
	var records []machineRecord
	if err := f.read(machineFile, &records); err != nil {
		return models.MachineInfo{}, err
	}
	if len(records) == 0 {
		return models.MachineInfo{}, ErrMachineInfoMissing
	}

	r := records[0]
	var info models.MachineInfo
	for _, field := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{r.SodaPrice, &info.SodaPrice},
		{r.CashOnHand, &info.CashOnHand},
		{r.TotalIncome, &info.TotalIncome},
	} {
		v, err := decimal.NewFromString(field.raw)
		if err != nil {
			return models.MachineInfo{}, fmt.Errorf("%s: bad amount %q: %w", machineFile, field.raw, ErrCorruptData)
		}
		*field.dst = v
	}
	return info, nil
}

func (f *FileStorage) saveMachine(info models.MachineInfo) error {
	records := []machineRecord{{
		SodaPrice:   info.SodaPrice.StringFixed(2),
		CashOnHand:  info.CashOnHand.StringFixed(2),
		TotalIncome: info.TotalIncome.StringFixed(2),
	}}
	return f.write(machineFile, &records)
}

func (f *FileStorage) loadCredit() (map[string]decimal.Decimal, error) {
	var records []creditRecord
	if err := f.read(creditFile, &records); err != nil {
		return nil, err
	}
	credit := make(map[string]decimal.Decimal, len(records))
	for i, r := range records {
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil || r.UserID == "" {
			return nil, fmt.Errorf("%s row %d: bad credit record: %w", creditFile, i+1, ErrCorruptData)
		}
		credit[r.UserID] = amount
	}
	return credit, nil
}

func (f *FileStorage) saveCredit(credit map[string]decimal.Decimal) error {
	records := make([]creditRecord, 0, len(credit))
	ids := make([]string, 0, len(credit))
	for id := range credit {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		records = append(records, creditRecord{UserID: id, Amount: credit[id].StringFixed(2)})
	}
	return f.write(creditFile, &records)
}

func (f *FileStorage) GetAllCoins() ([]models.Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadCoins()
}

func (f *FileStorage) WithdrawCoins(name string, quantity int) ([]models.Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	coins, err := f.loadCoins()
	if err != nil {
		return nil, err
	}
	taken := make([]models.Coin, 0)
	kept := make([]models.Coin, 0, len(coins))
	for _, c := range coins {
		if c.Name == name && len(taken) < quantity {
			taken = append(taken, c)
			continue
		}
		kept = append(kept, c)
	}
	if len(taken) == 0 {
		return taken, nil
	}
	if err := f.saveCoins(kept); err != nil {
		return nil, err
	}
	return taken, nil
}

func (f *FileStorage) AddCoins(coins []models.Coin) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.loadCoins()
	if err != nil {
		return err
	}
	return f.saveCoins(append(current, coins...))
}

func (f *FileStorage) GetAllSodas() ([]models.Soda, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadSodas()
}

func (f *FileStorage) GetSodaTypes() ([]models.Soda, error) {
	sodas, err := f.GetAllSodas()
	if err != nil {
		return nil, err
	}
	return sodaTypes(sodas), nil
}

func (f *FileStorage) FindSoda(name string) (*models.Soda, error) {
	sodas, err := f.GetAllSodas()
	if err != nil {
		return nil, err
	}
	for _, s := range sodas {
		if s.Name == name {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *FileStorage) AddSodas(sodas []models.Soda) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.loadSodas()
	if err != nil {
		return err
	}
	return f.saveSodas(append(current, sodas...))
}

func (f *FileStorage) IsSodaInStock(soda models.Soda) (bool, error) {
	found, err := f.FindSoda(soda.Name)
	return found != nil, err
}

func (f *FileStorage) RemoveSoda(soda models.Soda) (*models.Soda, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sodas, err := f.loadSodas()
	if err != nil {
		return nil, err
	}
	for i, s := range sodas {
		if s.Name != soda.Name {
			continue
		}
		if err := f.saveSodas(append(sodas[:i], sodas[i+1:]...)); err != nil {
			return nil, err
		}
		return &s, nil
	}
	return nil, nil
}

func (f *FileStorage) GetSodaPrice() (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, err := f.loadMachine()
	return info.SodaPrice, err
}

func (f *FileStorage) SetSodaPrice(price decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, err := f.loadMachine()
	if err != nil {
		return err
	}
	info.SodaPrice = price
	return f.saveMachine(info)
}

func (f *FileStorage) GetCashOnHand() (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, err := f.loadMachine()
	return info.CashOnHand, err
}

func (f *FileStorage) GetTotalIncome() (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, err := f.loadMachine()
	return info.TotalIncome, err
}

func (f *FileStorage) EmptyCash() (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := f.loadMachine()
	if err != nil {
		return decimal.Zero, err
	}
	cash := info.CashOnHand
	info.CashOnHand = decimal.Zero
	if err := f.saveMachine(info); err != nil {
		return decimal.Zero, err
	}
	return cash, nil
}

func (f *FileStorage) GetUserCredit(userID string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	credit, err := f.loadCredit()
	if err != nil {
		return decimal.Zero, err
	}
	if amount, ok := credit[userID]; ok {
		return amount, nil
	}
	return decimal.Zero, nil
}

func (f *FileStorage) InsertUserCredit(userID string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	credit, err := f.loadCredit()
	if err != nil {
		return err
	}
	current, ok := credit[userID]
	if !ok {
		current = decimal.Zero
	}
	credit[userID] = current.Add(amount)
	return f.saveCredit(credit)
}

func (f *FileStorage) ClearUserCredit(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	credit, err := f.loadCredit()
	if err != nil {
		return err
	}
	if _, ok := credit[userID]; !ok {
		return nil
	}
	delete(credit, userID)
	return f.saveCredit(credit)
}

func (f *FileStorage) DepositUserCredit(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	credit, err := f.loadCredit()
	if err != nil {
		return err
	}
	amount, ok := credit[userID]
	if !ok {
		return fmt.Errorf("failed to deposit credit for %q: %w", userID, ErrUserNotFound)
	}
	info, err := f.loadMachine()
	if err != nil {
		return err
	}
	info.CashOnHand = info.CashOnHand.Add(amount)
	info.TotalIncome = info.TotalIncome.Add(amount)
	delete(credit, userID)

	if err := f.saveCredit(credit); err != nil {
		return err
	}
	return f.saveMachine(info)
}

func (f *FileStorage) WithdrawUserCredit(userID string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	credit, err := f.loadCredit()
	if err != nil {
		return err
	}
	current, ok := credit[userID]
	if !ok {
		return fmt.Errorf("failed to withdraw credit for %q: %w", userID, ErrUserNotFound)
	}
	if current.LessThan(amount) {
		return ErrInsufficientCredit
	}
	credit[userID] = current.Sub(amount)
	return f.saveCredit(credit)
}

func (f *FileStorage) Close() error {
	return nil
}
