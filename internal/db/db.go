package db

import (
	"database/sql"
	"errors"
	"fmt"

	"soda-machine/internal/config"
	"soda-machine/internal/models"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrCorruptData        = errors.New("corrupted storage data")
	ErrMachineInfoMissing = errors.New("machine info missing")
)

// Storage is the persistence contract used by the machine service.
// Every method is atomic on its own.
type Storage interface {
	GetAllCoins() ([]models.Coin, error)
	// WithdrawCoins removes up to quantity coins called name and returns
	// the ones actually removed.
	WithdrawCoins(name string, quantity int) ([]models.Coin, error)
	AddCoins(coins []models.Coin) error

	GetAllSodas() ([]models.Soda, error)
	GetSodaTypes() ([]models.Soda, error)
	// FindSoda returns nil when no unit called name is stocked.
	FindSoda(name string) (*models.Soda, error)
	AddSodas(sodas []models.Soda) error
	IsSodaInStock(soda models.Soda) (bool, error)
	RemoveSoda(soda models.Soda) (*models.Soda, error)

	GetSodaPrice() (decimal.Decimal, error)
	SetSodaPrice(price decimal.Decimal) error
	GetCashOnHand() (decimal.Decimal, error)
	GetTotalIncome() (decimal.Decimal, error)
	EmptyCash() (decimal.Decimal, error)

	GetUserCredit(userID string) (decimal.Decimal, error)
	InsertUserCredit(userID string, amount decimal.Decimal) error
	ClearUserCredit(userID string) error
	// DepositUserCredit moves the user's whole credit into cash on hand and
	// total income. Returns ErrUserNotFound when the user has no entry.
	DepositUserCredit(userID string) error
	WithdrawUserCredit(userID string, amount decimal.Decimal) error

	Close() error
}

// Open builds the storage selected by cfg.Storage.
func Open(cfg *config.Config) (Storage, error) {
	price, err := decimal.NewFromString(cfg.SodaPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid soda price %q: %w", cfg.SodaPrice, err)
	}

	switch cfg.Storage {
	case "memory":
		return NewMemoryStorage(price), nil
	case "file":
		return NewFileStorage(cfg.DataDir, price)
	case "postgres":
		conn, err := Connect(cfg)
		if err != nil {
			return nil, err
		}
		if err := Migrate(conn, cfg.MigrationsDir); err != nil {
			_ = conn.Close()
			return nil, err
		}
		if err := SeedMachineInfo(conn, price); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return NewPostgresStorage(conn), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

func Connect(cfg *config.Config) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DatabaseHost,
		cfg.DatabasePort,
		cfg.DatabaseUser,
		cfg.DatabasePassword,
		cfg.DatabaseName,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func sodaTypes(sodas []models.Soda) []models.Soda {
	seen := make(map[string]struct{}, len(sodas))
	types := make([]models.Soda, 0)
	for _, s := range sodas {
		if _, ok := seen[s.Name]; ok {
			continue
		}
		seen[s.Name] = struct{}{}
		types = append(types, s)
	}
	return types
}
