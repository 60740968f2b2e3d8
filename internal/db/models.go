package db

import (
	"time"
)

type Account struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	APIKey        string    `json:"api_key"`
	WebhookSecret string    `json:"webhook_secret,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Printer struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	PrinterName string    `json:"printer_name"`
	PrintAPIKey string    `json:"printnode_api_key"`
	DeviceID    string    `json:"printer_id"`
	IsDefault   bool      `json:"is_default"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExportedAccount is an account with its printers, as written by Export.
type ExportedAccount struct {
	Account
	Printers []Printer `json:"printers"`
}

type ConfigExport struct {
	Accounts        []ExportedAccount `json:"accounts"`
	ExportTimestamp time.Time         `json:"export_timestamp"`
}
