package db

import (
	"database/sql"
	"errors"
	"fmt"

	"soda-machine/internal/models"

	"github.com/shopspring/decimal"
)

type postgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(dbConn *sql.DB) Storage {
	return &postgresStorage{
		db: dbConn,
	}
}

// SeedMachineInfo creates the machine record with the given starting price.
// An existing record is left untouched.
func SeedMachineInfo(dbConn *sql.DB, price decimal.Decimal) error {
	_, err := dbConn.Exec("INSERT INTO machine_info (id, soda_price) VALUES (1, $1) ON CONFLICT (id) DO NOTHING", price)
	if err != nil {
		return fmt.Errorf("failed to seed machine info: %w", err)
	}
	return nil
}

func (p *postgresStorage) beginTx() (*sql.Tx, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}

func scanCoins(rows *sql.Rows) ([]models.Coin, error) {
	defer rows.Close()

	coins := make([]models.Coin, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan coin: %w", err)
		}
		coin, ok := models.CoinByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown coin %q in coin_inventory: %w", name, ErrCorruptData)
		}
		coins = append(coins, coin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read coins: %w", err)
	}
	return coins, nil
}

func (p *postgresStorage) GetAllCoins() ([]models.Coin, error) {
	rows, err := p.db.Query("SELECT name FROM coin_inventory ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query coins: %w", err)
	}
	return scanCoins(rows)
}

func (p *postgresStorage) WithdrawCoins(name string, quantity int) ([]models.Coin, error) {
	if quantity <= 0 {
		return []models.Coin{}, nil
	}
	rows, err := p.db.Query(`
DELETE FROM coin_inventory
WHERE id IN (SELECT id FROM coin_inventory WHERE name=$1 ORDER BY id LIMIT $2 FOR UPDATE)
RETURNING name`, name, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to withdraw %d %s coins: %w", quantity, name, err)
	}
	return scanCoins(rows)
}

func (p *postgresStorage) AddCoins(coins []models.Coin) error {
	tx, err := p.beginTx()
	if err != nil {
		return err
	}
	defer rollback(tx)

	for _, c := range coins {
		if _, err := tx.Exec("INSERT INTO coin_inventory (name) VALUES ($1)", c.Name); err != nil {
			return fmt.Errorf("failed to insert coin: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit coins: %w", err)
	}
	return nil
}

func (p *postgresStorage) GetAllSodas() ([]models.Soda, error) {
	rows, err := p.db.Query("SELECT name, slot FROM soda_inventory ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query sodas: %w", err)
	}
	defer rows.Close()

	sodas := make([]models.Soda, 0)
	for rows.Next() {
		var s models.Soda
		if err := rows.Scan(&s.Name, &s.SlotOccupied); err != nil {
			return nil, fmt.Errorf("failed to scan soda: %w", err)
		}
		sodas = append(sodas, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sodas: %w", err)
	}
	return sodas, nil
}

func (p *postgresStorage) GetSodaTypes() ([]models.Soda, error) {
	sodas, err := p.GetAllSodas()
	if err != nil {
		return nil, err
	}
	return sodaTypes(sodas), nil
}

func (p *postgresStorage) FindSoda(name string) (*models.Soda, error) {
	var s models.Soda
	err := p.db.QueryRow("SELECT name, slot FROM soda_inventory WHERE name=$1 ORDER BY id LIMIT 1", name).
		Scan(&s.Name, &s.SlotOccupied)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find soda %q: %w", name, err)
	}
	return &s, nil
}

func (p *postgresStorage) AddSodas(sodas []models.Soda) error {
	tx, err := p.beginTx()
	if err != nil {
		return err
	}
	defer rollback(tx)

	for _, s := range sodas {
		if _, err := tx.Exec("INSERT INTO soda_inventory (name, slot) VALUES ($1, $2)", s.Name, s.SlotOccupied); err != nil {
			return fmt.Errorf("failed to insert soda: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sodas: %w", err)
	}
	return nil
}

func (p *postgresStorage) IsSodaInStock(soda models.Soda) (bool, error) {
	var exists bool
	err := p.db.QueryRow("SELECT EXISTS (SELECT 1 FROM soda_inventory WHERE name=$1)", soda.Name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check stock for %q: %w", soda.Name, err)
	}
	return exists, nil
}

func (p *postgresStorage) RemoveSoda(soda models.Soda) (*models.Soda, error) {
	var s models.Soda
	err := p.db.QueryRow(`
DELETE FROM soda_inventory
WHERE id = (SELECT id FROM soda_inventory WHERE name=$1 ORDER BY id LIMIT 1 FOR UPDATE)
RETURNING name, slot`, soda.Name).Scan(&s.Name, &s.SlotOccupied)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove soda %q: %w", soda.Name, err)
	}
	return &s, nil
}

func (p *postgresStorage) machineValue(column string) (decimal.Decimal, error) {
	var v decimal.Decimal
	err := p.db.QueryRow("SELECT " + column + " FROM machine_info WHERE id=1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrMachineInfoMissing
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get %s: %w", column, err)
	}
	return v, nil
}

func (p *postgresStorage) GetSodaPrice() (decimal.Decimal, error) {
	return p.machineValue("soda_price")
}

func (p *postgresStorage) GetCashOnHand() (decimal.Decimal, error) {
	return p.machineValue("cash_on_hand")
}

func (p *postgresStorage) GetTotalIncome() (decimal.Decimal, error) {
	return p.machineValue("total_income")
}

func (p *postgresStorage) SetSodaPrice(price decimal.Decimal) error {
	res, err := p.db.Exec("UPDATE machine_info SET soda_price = $1 WHERE id=1", price)
	if err != nil {
		return fmt.Errorf("failed to set soda price: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMachineInfoMissing
	}
	return nil
}

func (p *postgresStorage) EmptyCash() (decimal.Decimal, error) {
	tx, err := p.beginTx()
	if err != nil {
		return decimal.Zero, err
	}
	defer rollback(tx)

	var cash decimal.Decimal
	err = tx.QueryRow("SELECT cash_on_hand FROM machine_info WHERE id=1 FOR UPDATE").Scan(&cash)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrMachineInfoMissing
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get cash on hand: %w", err)
	}
	if _, err := tx.Exec("UPDATE machine_info SET cash_on_hand = 0 WHERE id=1"); err != nil {
		return decimal.Zero, fmt.Errorf("failed to empty cash: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit empty cash: %w", err)
	}
	return cash, nil
}

func (p *postgresStorage) GetUserCredit(userID string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := p.db.QueryRow("SELECT amount FROM user_credit WHERE user_id=$1", userID).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get credit for user %q: %w", userID, err)
	}
	return amount, nil
}

func (p *postgresStorage) InsertUserCredit(userID string, amount decimal.Decimal) error {
	_, err := p.db.Exec(`
INSERT INTO user_credit (user_id, amount) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET amount = user_credit.amount + EXCLUDED.amount`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to insert credit for user %q: %w", userID, err)
	}
	return nil
}

func (p *postgresStorage) ClearUserCredit(userID string) error {
	if _, err := p.db.Exec("DELETE FROM user_credit WHERE user_id=$1", userID); err != nil {
		return fmt.Errorf("failed to clear credit for user %q: %w", userID, err)
	}
	return nil
}

func (p *postgresStorage) DepositUserCredit(userID string) error {
	tx, err := p.beginTx()
	if err != nil {
		return err
	}
	defer rollback(tx)

	var amount decimal.Decimal
	err = tx.QueryRow("DELETE FROM user_credit WHERE user_id=$1 RETURNING amount", userID).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to deposit credit for %q: %w", userID, ErrUserNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to take credit for user %q: %w", userID, err)
	}

	res, err := tx.Exec("UPDATE machine_info SET cash_on_hand = cash_on_hand + $1, total_income = total_income + $1 WHERE id=1", amount)
	if err != nil {
		return fmt.Errorf("failed to deposit credit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMachineInfoMissing
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deposit: %w", err)
	}
	return nil
}

func (p *postgresStorage) WithdrawUserCredit(userID string, amount decimal.Decimal) error {
	tx, err := p.beginTx()
	if err != nil {
		return err
	}
	defer rollback(tx)

	var current decimal.Decimal
	err = tx.QueryRow("SELECT amount FROM user_credit WHERE user_id=$1 FOR UPDATE", userID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to withdraw credit for %q: %w", userID, ErrUserNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get credit for user %q: %w", userID, err)
	}
	if current.LessThan(amount) {
		return ErrInsufficientCredit
	}
	if _, err := tx.Exec("UPDATE user_credit SET amount = amount - $1 WHERE user_id=$2", amount, userID); err != nil {
		return fmt.Errorf("failed to withdraw credit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withdrawal: %w", err)
	}
	return nil
}

func (p *postgresStorage) Close() error {
	return p.db.Close()
}
