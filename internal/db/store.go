package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/orrn/labelrelay/internal/core"
)

// AccountStore exposes the database to the pipeline.
type AccountStore struct {
	db *DB
}

func NewAccountStore(d *DB) *AccountStore {
	return &AccountStore{db: d}
}

func (s *AccountStore) GetAccount(ctx context.Context, id string) (*core.TenantAccount, error) {
	a, err := s.db.Accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrAccountNotFound
		}
		return nil, err
	}
	account := toTenantAccount(a)
	return &account, nil
}

func (s *AccountStore) ListAccounts(ctx context.Context) ([]core.TenantAccount, error) {
	accounts, err := s.db.Accounts.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.TenantAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toTenantAccount(a))
	}
	return out, nil
}

func (s *AccountStore) ListPrinters(ctx context.Context, tenantID string) ([]core.PrinterConfig, error) {
	printers, err := s.db.Printers.ListActiveByAccount(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]core.PrinterConfig, 0, len(printers))
	for _, p := range printers {
		out = append(out, core.PrinterConfig{
			ID:         p.ID,
			TenantID:   p.AccountID,
			Name:       p.PrinterName,
			Credential: p.PrintAPIKey,
			DeviceID:   p.DeviceID,
			IsDefault:  p.IsDefault,
			Active:     p.IsActive,
		})
	}
	return out, nil
}

func toTenantAccount(a *Account) core.TenantAccount {
	return core.TenantAccount{
		ID:            a.ID,
		Name:          a.Name,
		Credential:    a.APIKey,
		WebhookSecret: a.WebhookSecret,
		Active:        a.IsActive,
	}
}

var _ core.AccountStore = (*AccountStore)(nil)
