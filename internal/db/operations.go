package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type AccountOperations struct {
	db *DB
}

func (o *AccountOperations) Create(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	apiKey, err := o.db.seal(a.APIKey)
	if err != nil {
		return err
	}
	secret, err := o.db.seal(a.WebhookSecret)
	if err != nil {
		return err
	}
	if _, err := o.db.conn.ExecContext(ctx, InsertAccount, a.ID, a.Name, apiKey, secret, a.IsActive); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (o *AccountOperations) Upsert(ctx context.Context, a *Account) error {
	return o.upsert(ctx, o.db.conn, a)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (o *AccountOperations) upsert(ctx context.Context, ex execer, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	apiKey, err := o.db.seal(a.APIKey)
	if err != nil {
		return err
	}
	secret, err := o.db.seal(a.WebhookSecret)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, UpsertAccount, a.ID, a.Name, apiKey, secret, a.IsActive); err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// GetByID returns sql.ErrNoRows when the account does not exist. Inactive
// accounts are returned.
func (o *AccountOperations) GetByID(ctx context.Context, id string) (*Account, error) {
	a, err := o.scan(o.db.conn.QueryRowContext(ctx, GetAccountByID, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

func (o *AccountOperations) ListActive(ctx context.Context) ([]*Account, error) {
	rows, err := o.db.conn.QueryContext(ctx, ListActiveAccounts)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := o.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (o *AccountOperations) Update(ctx context.Context, a *Account) error {
	apiKey, err := o.db.seal(a.APIKey)
	if err != nil {
		return err
	}
	secret, err := o.db.seal(a.WebhookSecret)
	if err != nil {
		return err
	}
	res, err := o.db.conn.ExecContext(ctx, UpdateAccount, a.Name, apiKey, secret, a.IsActive, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return requireRow(res)
}

// Deactivate soft-deletes an account. Rows are never removed.
func (o *AccountOperations) Deactivate(ctx context.Context, id string) error {
	res, err := o.db.conn.ExecContext(ctx, DeactivateAccount, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (o *AccountOperations) scan(row rowScanner) (*Account, error) {
	a := &Account{}
	if err := row.Scan(&a.ID, &a.Name, &a.APIKey, &a.WebhookSecret, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.APIKey, err = o.db.open(a.APIKey); err != nil {
		return nil, err
	}
	if a.WebhookSecret, err = o.db.open(a.WebhookSecret); err != nil {
		return nil, err
	}
	return a, nil
}

type PrinterOperations struct {
	db *DB
}

func (o *PrinterOperations) Create(ctx context.Context, p *Printer) error {
	return o.write(ctx, o.db.conn, InsertPrinter, p, "create")
}

func (o *PrinterOperations) Upsert(ctx context.Context, p *Printer) error {
	return o.write(ctx, o.db.conn, UpsertPrinter, p, "upsert")
}

func (o *PrinterOperations) write(ctx context.Context, ex execer, query string, p *Printer, verb string) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	apiKey, err := o.db.seal(p.PrintAPIKey)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, query,
		p.ID, p.AccountID, p.PrinterName, apiKey, p.DeviceID, p.IsDefault, p.IsActive); err != nil {
		return fmt.Errorf("failed to %s printer: %w", verb, err)
	}
	return nil
}

// ListActiveByAccount returns the account's active printers in insertion
// order.
func (o *PrinterOperations) ListActiveByAccount(ctx context.Context, accountID string) ([]*Printer, error) {
	rows, err := o.db.conn.QueryContext(ctx, ListActivePrintersByAccount, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()

	var printers []*Printer
	for rows.Next() {
		p := &Printer{}
		if err := rows.Scan(&p.ID, &p.AccountID, &p.PrinterName, &p.PrintAPIKey, &p.DeviceID,
			&p.IsDefault, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan printer: %w", err)
		}
		if p.PrintAPIKey, err = o.db.open(p.PrintAPIKey); err != nil {
			return nil, err
		}
		printers = append(printers, p)
	}
	return printers, rows.Err()
}

func (o *PrinterOperations) Deactivate(ctx context.Context, id string) error {
	res, err := o.db.conn.ExecContext(ctx, DeactivatePrinter, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate printer: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
