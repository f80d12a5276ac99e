// Package ledger is a double-entry audit trail over courier box capacity:
// every tentative assignment places a Hold, every confirmed plan commits it
// as a Debit/Credit pair, and every reassignment is a Transfer between two
// courier accounts. Adapted from internal/ledger/ledger.go, substituting
// box counts for money: Balance/Available/Hold track capacity instead of
// cash, but the locking and versioning discipline is unchanged.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

// Ledger implements a double-entry capacity ledger.
type Ledger struct {
	db        *sql.DB
	msgClient *messaging.Client
}

// Account represents one courier's box-capacity account.
type Account struct {
	ID        uuid.UUID
	CourierID string
	Currency  string // unit label, e.g. "boxes"
	Balance   decimal.Decimal
	Available decimal.Decimal
	Hold      decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

// Entry represents a ledger entry against a capacity account.
type Entry struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Type        string // "debit" or "credit"
	Amount      decimal.Decimal
	Balance     decimal.Decimal
	Reference   string
	Description string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Transfer represents moving committed box load from one courier to
// another, e.g. when a replan reassigns an order.
type Transfer struct {
	ID            uuid.UUID
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Reference     string
	Status        string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// NewLedger creates a new capacity ledger.
func NewLedger(db *sql.DB, msgClient *messaging.Client) *Ledger {
	return &Ledger{
		db:        db,
		msgClient: msgClient,
	}
}

// CreateAccount opens a capacity account for a courier with zero balance.
func (l *Ledger) CreateAccount(ctx context.Context, courierID string) (*Account, error) {
	account := &Account{
		ID:        uuid.New(),
		CourierID: courierID,
		Currency:  "boxes",
		Balance:   decimal.Zero,
		Available: decimal.Zero,
		Hold:      decimal.Zero,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Version:   1,
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO capacity_accounts (id, courier_id, currency, balance, available, hold, created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.ID, account.CourierID, account.Currency,
		account.Balance, account.Available, account.Hold,
		account.CreatedAt, account.UpdatedAt, account.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// GetAccount retrieves a capacity account.
func (l *Ledger) GetAccount(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	var account Account
	err := l.db.QueryRowContext(ctx,
		`SELECT id, courier_id, currency, balance, available, hold, created_at, updated_at, version
		 FROM capacity_accounts WHERE id = $1`,
		accountID,
	).Scan(&account.ID, &account.CourierID, &account.Currency,
		&account.Balance, &account.Available, &account.Hold,
		&account.CreatedAt, &account.UpdatedAt, &account.Version)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// Credit raises a courier's committed capacity balance (e.g. capacity
// increase for the day).
func (l *Ledger) Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, reference, description string) (*Entry, error) {
	return l.createEntry(ctx, accountID, "credit", amount, reference, description)
}

// Debit lowers a courier's committed capacity balance (e.g. a confirmed
// delivery releasing capacity back).
func (l *Ledger) Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, reference, description string) (*Entry, error) {
	return l.createEntry(ctx, accountID, "debit", amount, reference, description)
}

func (l *Ledger) createEntry(ctx context.Context, accountID uuid.UUID, entryType string, amount decimal.Decimal, reference, description string) (*Entry, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var account Account
	err = tx.QueryRowContext(ctx,
		`SELECT id, courier_id, currency, balance, available, hold, version
		 FROM capacity_accounts WHERE id = $1 FOR UPDATE`,
		accountID,
	).Scan(&account.ID, &account.CourierID, &account.Currency,
		&account.Balance, &account.Available, &account.Hold, &account.Version)

	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	var newBalance decimal.Decimal
	if entryType == "credit" {
		newBalance = account.Balance.Add(amount)
	} else {
		newBalance = account.Balance.Sub(amount)
		if newBalance.LessThan(decimal.Zero) {
			return nil, fmt.Errorf("insufficient capacity balance")
		}
	}

	entry := &Entry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Type:        entryType,
		Amount:      amount,
		Balance:     newBalance,
		Reference:   reference,
		Description: description,
		CreatedAt:   time.Now(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO capacity_entries (id, account_id, type, amount, balance, reference, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.AccountID, entry.Type, entry.Amount,
		entry.Balance, entry.Reference, entry.Description, entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE capacity_accounts SET balance = $1, available = $2, updated_at = $3, version = version + 1
		 WHERE id = $4 AND version = $5`,
		newBalance, newBalance.Sub(account.Hold), time.Now(), accountID, account.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, fmt.Errorf("concurrent modification detected")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	l.publishEntryEvent(ctx, entry)

	return entry, nil
}

// Transfer moves committed box load from one courier account to another,
// used when a replan reassigns an order mid-route.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal, reference string) (*Transfer, error) {
	tx, err := l.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var fromAccount Account
	err = tx.QueryRowContext(ctx,
		`SELECT id, balance, available, version FROM capacity_accounts WHERE id = $1 FOR UPDATE`,
		fromID,
	).Scan(&fromAccount.ID, &fromAccount.Balance, &fromAccount.Available, &fromAccount.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to lock from account: %w", err)
	}

	var toAccount Account
	err = tx.QueryRowContext(ctx,
		`SELECT id, balance, available, version FROM capacity_accounts WHERE id = $1 FOR UPDATE`,
		toID,
	).Scan(&toAccount.ID, &toAccount.Balance, &toAccount.Available, &toAccount.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to lock to account: %w", err)
	}

	if fromAccount.Available.LessThan(amount) {
		return nil, fmt.Errorf("insufficient available capacity")
	}

	transfer := &Transfer{
		ID:            uuid.New(),
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        amount,
		Reference:     reference,
		Status:        "completed",
		CreatedAt:     time.Now(),
	}
	now := time.Now()
	transfer.CompletedAt = &now

	newFromBalance := fromAccount.Balance.Sub(amount)
	_, err = tx.ExecContext(ctx,
		`UPDATE capacity_accounts SET balance = $1, available = $2, updated_at = $3, version = version + 1
		 WHERE id = $4`,
		newFromBalance, newFromBalance, time.Now(), fromID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to debit account: %w", err)
	}

	newToBalance := toAccount.Balance.Add(amount)
	_, err = tx.ExecContext(ctx,
		`UPDATE capacity_accounts SET balance = $1, available = $2, updated_at = $3, version = version + 1
		 WHERE id = $4`,
		newToBalance, newToBalance, time.Now(), toID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO capacity_transfers (id, from_account_id, to_account_id, amount, reference, status, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		transfer.ID, transfer.FromAccountID, transfer.ToAccountID,
		transfer.Amount, transfer.Reference, transfer.Status,
		transfer.CreatedAt, transfer.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}

	l.createEntryInTx(tx, ctx, fromID, "debit", amount, reference, "Reassigned out")
	l.createEntryInTx(tx, ctx, toID, "credit", amount, reference, "Reassigned in")

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return transfer, nil
}

func (l *Ledger) createEntryInTx(tx *sql.Tx, ctx context.Context, accountID uuid.UUID, entryType string, amount decimal.Decimal, reference, description string) error {
	entry := &Entry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Type:        entryType,
		Amount:      amount,
		Reference:   reference,
		Description: description,
		CreatedAt:   time.Now(),
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO capacity_entries (id, account_id, type, amount, reference, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.AccountID, entry.Type, entry.Amount,
		entry.Reference, entry.Description, entry.CreatedAt,
	)

	return err
}

// Hold places a tentative hold on boxes ahead of a plan being confirmed.
func (l *Ledger) Hold(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, reference string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var account Account
	err = tx.QueryRowContext(ctx,
		`SELECT id, balance, available, hold, version FROM capacity_accounts WHERE id = $1 FOR UPDATE`,
		accountID,
	).Scan(&account.ID, &account.Balance, &account.Available, &account.Hold, &account.Version)
	if err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}

	if account.Available.LessThan(amount) {
		return fmt.Errorf("insufficient available capacity for hold")
	}

	newAvailable := account.Available.Sub(amount)
	newHold := account.Hold.Add(amount)

	_, err = tx.ExecContext(ctx,
		`UPDATE capacity_accounts SET available = $1, hold = $2, updated_at = $3, version = version + 1
		 WHERE id = $4`,
		newAvailable, newHold, time.Now(), accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	return tx.Commit()
}

// ReleaseHold releases a previously placed hold, e.g. a plan was rejected
// or the order it covered was reassigned.
func (l *Ledger) ReleaseHold(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var account Account
	err = tx.QueryRowContext(ctx,
		`SELECT id, balance, available, hold, version FROM capacity_accounts WHERE id = $1 FOR UPDATE`,
		accountID,
	).Scan(&account.ID, &account.Balance, &account.Available, &account.Hold, &account.Version)
	if err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}

	if account.Hold.LessThan(amount) {
		return fmt.Errorf("hold amount exceeds current hold")
	}

	newAvailable := account.Available.Add(amount)
	newHold := account.Hold.Sub(amount)

	_, err = tx.ExecContext(ctx,
		`UPDATE capacity_accounts SET available = $1, hold = $2, updated_at = $3, version = version + 1
		 WHERE id = $4`,
		newAvailable, newHold, time.Now(), accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	return tx.Commit()
}

func (l *Ledger) publishEntryEvent(ctx context.Context, entry *Entry) {
	event := messaging.LedgerEntryEvent{
		EntryID:     entry.ID,
		Type:        entry.Type,
		Reference:   entry.Reference,
		Description: entry.Description,
	}

	l.msgClient.Publish(ctx, messaging.EventTypeLedgerEntry, event)
}

// GetEntries returns entries for a capacity account.
func (l *Ledger) GetEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, account_id, type, amount, balance, reference, description, created_at
		 FROM capacity_entries WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Type, &entry.Amount,
			&entry.Balance, &entry.Reference, &entry.Description, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
