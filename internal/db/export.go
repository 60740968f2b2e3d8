package db

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Export dumps active accounts and their active printers, credentials in
// plaintext.
func (d *DB) Export(ctx context.Context) (*ConfigExport, error) {
	accounts, err := d.Accounts.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	out := &ConfigExport{
		Accounts:        make([]ExportedAccount, 0, len(accounts)),
		ExportTimestamp: time.Now().UTC(),
	}
	for _, a := range accounts {
		printers, err := d.Printers.ListActiveByAccount(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		ea := ExportedAccount{Account: *a, Printers: make([]Printer, 0, len(printers))}
		for _, p := range printers {
			ea.Printers = append(ea.Printers, *p)
		}
		out.Accounts = append(out.Accounts, ea)
	}
	return out, nil
}

// importFile is the subset of an export Import reads. Timestamps are
// ignored; rows get fresh ones.
type importFile struct {
	Accounts []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		APIKey        string `json:"api_key"`
		WebhookSecret string `json:"webhook_secret"`
		IsActive      *bool  `json:"is_active"`
		Printers      []struct {
			ID          string `json:"id"`
			PrinterName string `json:"printer_name"`
			PrintAPIKey string `json:"printnode_api_key"`
			DeviceID    string `json:"printer_id"`
			IsDefault   bool   `json:"is_default"`
			IsActive    *bool  `json:"is_active"`
		} `json:"printers"`
	} `json:"accounts"`
}

// Import upserts every account and printer in r inside one transaction.
// It returns the number of accounts written.
func (d *DB) Import(ctx context.Context, r io.Reader) (int, error) {
	var file importFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return 0, fmt.Errorf("failed to decode config: %w", err)
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	for i, a := range file.Accounts {
		if a.Name == "" || a.APIKey == "" {
			return 0, fmt.Errorf("account %d: name and api_key are required", i)
		}
		account := &Account{
			ID:            a.ID,
			Name:          a.Name,
			APIKey:        a.APIKey,
			WebhookSecret: a.WebhookSecret,
			IsActive:      boolOr(a.IsActive, true),
		}
		if err := d.Accounts.upsert(ctx, tx, account); err != nil {
			return 0, err
		}

		for _, p := range a.Printers {
			printer := &Printer{
				ID:          p.ID,
				AccountID:   account.ID,
				PrinterName: p.PrinterName,
				PrintAPIKey: p.PrintAPIKey,
				DeviceID:    p.DeviceID,
				IsDefault:   p.IsDefault,
				IsActive:    boolOr(p.IsActive, true),
			}
			if err := d.Printers.write(ctx, tx, UpsertPrinter, printer, "upsert"); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return len(file.Accounts), nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
