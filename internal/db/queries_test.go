package db

import (
	"errors"
	"regexp"
	"testing"

	"soda-machine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func newMockStorage(t *testing.T) (Storage, sqlmock.Sqlmock) {
	t.Helper()
	dbConn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %s", err)
	}
	t.Cleanup(func() { _ = dbConn.Close() })
	return NewPostgresStorage(dbConn), mock
}

func TestPostgres_GetAllCoins(t *testing.T) {
	store, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{"name"}).AddRow("Quarter").AddRow("Dime")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM coin_inventory ORDER BY id")).WillReturnRows(rows)

	coins, err := store.GetAllCoins()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(coins) != 2 || coins[0] != models.Quarter || coins[1] != models.Dime {
		t.Errorf("unexpected coins: %v", coins)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgres_GetAllCoins_UnknownName(t *testing.T) {
	store, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{"name"}).AddRow("Peso")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM coin_inventory")).WillReturnRows(rows)

	if _, err := store.GetAllCoins(); !errors.Is(err, ErrCorruptData) {
		t.Errorf("expected ErrCorruptData, got %v", err)
	}
}

func TestPostgres_WithdrawCoins(t *testing.T) {
	store, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{"name"}).AddRow("Quarter").AddRow("Quarter")
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM coin_inventory")).
		WithArgs("Quarter", 3).
		WillReturnRows(rows)

	coins, err := store.WithdrawCoins("Quarter", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(coins) != 2 {
		t.Errorf("expected 2 coins withdrawn, got %v", coins)
	}

	coins, err = store.WithdrawCoins("Quarter", 0)
	if err != nil || len(coins) != 0 {
		t.Errorf("expected no-op for zero quantity, got %v %v", coins, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgres_AddCoins(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO coin_inventory (name) VALUES ($1)")).
		WithArgs("Quarter").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO coin_inventory (name) VALUES ($1)")).
		WithArgs("Nickel").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	if err := store.AddCoins([]models.Coin{models.Quarter, models.Nickel}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgres_AddCoins_RollsBackOnError(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO coin_inventory")).
		WithArgs("Quarter").
		WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	if err := store.AddCoins([]models.Coin{models.Quarter}); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgres_SodaTypes(t *testing.T) {
	store, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{"name", "slot"}).
		AddRow("Coke", "1").
		AddRow("Coke", "1").
		AddRow("Sprite", "3")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, slot FROM soda_inventory ORDER BY id")).WillReturnRows(rows)

	types, err := store.GetSodaTypes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(types) != 2 || types[0].Name != "Coke" || types[1].Name != "Sprite" {
		t.Errorf("unexpected types: %v", types)
	}
}

func TestPostgres_FindSoda(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, slot FROM soda_inventory WHERE name=$1")).
		WithArgs("Coke").
		WillReturnRows(sqlmock.NewRows([]string{"name", "slot"}).AddRow("Coke", "1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, slot FROM soda_inventory WHERE name=$1")).
		WithArgs("Fanta").
		WillReturnRows(sqlmock.NewRows([]string{"name", "slot"}))

	found, err := store.FindSoda("Coke")
	if err != nil || found == nil || found.SlotOccupied != "1" {
		t.Errorf("expected Coke in slot 1, got %v %v", found, err)
	}
	found, err = store.FindSoda("Fanta")
	if err != nil || found != nil {
		t.Errorf("expected nil for missing soda, got %v %v", found, err)
	}
}

func TestPostgres_IsSodaInStock(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM soda_inventory WHERE name=$1)")).
		WithArgs("Coke").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.IsSodaInStock(models.Soda{Name: "Coke"})
	if err != nil || !ok {
		t.Errorf("expected in stock, got %v %v", ok, err)
	}
}

func TestPostgres_RemoveSoda(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM soda_inventory")).
		WithArgs("Coke").
		WillReturnRows(sqlmock.NewRows([]string{"name", "slot"}).AddRow("Coke", "1"))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM soda_inventory")).
		WithArgs("Coke").
		WillReturnRows(sqlmock.NewRows([]string{"name", "slot"}))

	removed, err := store.RemoveSoda(models.Soda{Name: "Coke"})
	if err != nil || removed == nil || removed.Name != "Coke" {
		t.Errorf("expected Coke removed, got %v %v", removed, err)
	}
	removed, err = store.RemoveSoda(models.Soda{Name: "Coke"})
	if err != nil || removed != nil {
		t.Errorf("expected nil when nothing stocked, got %v %v", removed, err)
	}
}

func TestPostgres_MachineInfo(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT soda_price FROM machine_info WHERE id=1")).
		WillReturnRows(sqlmock.NewRows([]string{"soda_price"}).AddRow("0.75"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT total_income FROM machine_info WHERE id=1")).
		WillReturnRows(sqlmock.NewRows([]string{"total_income"}))

	price, err := store.GetSodaPrice()
	if err != nil || !price.Equal(decimal.RequireFromString("0.75")) {
		t.Errorf("expected 0.75, got %s %v", price, err)
	}
	if _, err := store.GetTotalIncome(); !errors.Is(err, ErrMachineInfoMissing) {
		t.Errorf("expected ErrMachineInfoMissing, got %v", err)
	}
}

func TestPostgres_SetSodaPrice(t *testing.T) {
	store, mock := newMockStorage(t)
	price := decimal.RequireFromString("1.25")

	mock.ExpectExec(regexp.QuoteMeta("UPDATE machine_info SET soda_price = $1 WHERE id=1")).
		WithArgs(price).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE machine_info SET soda_price = $1 WHERE id=1")).
		WithArgs(price).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.SetSodaPrice(price); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := store.SetSodaPrice(price); !errors.Is(err, ErrMachineInfoMissing) {
		t.Errorf("expected ErrMachineInfoMissing, got %v", err)
	}
}

func TestPostgres_EmptyCash(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT cash_on_hand FROM machine_info WHERE id=1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"cash_on_hand"}).AddRow("25.65"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE machine_info SET cash_on_hand = 0 WHERE id=1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cash, err := store.EmptyCash()
	if err != nil || !cash.Equal(decimal.RequireFromString("25.65")) {
		t.Errorf("expected 25.65, got %s %v", cash, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgres_UserCredit(t *testing.T) {
	store, mock := newMockStorage(t)
	amount := decimal.RequireFromString("0.25")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_credit (user_id, amount) VALUES ($1, $2)")).
		WithArgs("u1", amount).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT amount FROM user_credit WHERE user_id=$1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("0.25"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT amount FROM user_credit WHERE user_id=$1")).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_credit WHERE user_id=$1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.InsertUserCredit("u1", amount); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	credit, err := store.GetUserCredit("u1")
	if err != nil || !credit.Equal(amount) {
		t.Errorf("expected 0.25, got %s %v", credit, err)
	}
	credit, err = store.GetUserCredit("nobody")
	if err != nil || !credit.IsZero() {
		t.Errorf("expected zero for absent user, got %s %v", credit, err)
	}
	if err := store.ClearUserCredit("u1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgres_DepositUserCredit(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM user_credit WHERE user_id=$1 RETURNING amount")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("1.25"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE machine_info SET cash_on_hand = cash_on_hand + $1, total_income = total_income + $1 WHERE id=1")).
		WithArgs(decimal.RequireFromString("1.25")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.DepositUserCredit("u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgres_DepositUserCredit_UserNotFound(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM user_credit WHERE user_id=$1 RETURNING amount")).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}))
	mock.ExpectRollback()

	if err := store.DepositUserCredit("nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgres_WithdrawUserCredit(t *testing.T) {
	store, mock := newMockStorage(t)
	amount := decimal.RequireFromString("0.50")
	selectCredit := regexp.QuoteMeta("SELECT amount FROM user_credit WHERE user_id=$1 FOR UPDATE")

	mock.ExpectBegin()
	mock.ExpectQuery(selectCredit).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("1.00"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_credit SET amount = amount - $1 WHERE user_id=$2")).
		WithArgs(amount, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(selectCredit).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("0.25"))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(selectCredit).WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}))
	mock.ExpectRollback()

	if err := store.WithdrawUserCredit("u1", amount); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.WithdrawUserCredit("u1", amount); !errors.Is(err, ErrInsufficientCredit) {
		t.Errorf("expected ErrInsufficientCredit, got %v", err)
	}
	if err := store.WithdrawUserCredit("nobody", amount); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSeedMachineInfo_UsesConfiguredPrice(t *testing.T) {
	dbConn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %s", err)
	}
	defer dbConn.Close()
	price := decimal.RequireFromString("1.25")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO machine_info (id, soda_price) VALUES (1, $1) ON CONFLICT (id) DO NOTHING")).
		WithArgs(price).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO machine_info")).
		WithArgs(price).
		WillReturnError(errors.New("connection reset"))

	if err := SeedMachineInfo(dbConn, price); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := SeedMachineInfo(dbConn, price); err == nil {
		t.Errorf("expected seed error to propagate")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
