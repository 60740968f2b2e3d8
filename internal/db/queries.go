package db

const (
	accountColumns = `id, name, api_key, webhook_secret, is_active, created_at, updated_at`
	printerColumns = `id, account_id, printer_name, printnode_api_key, printer_id, is_default, is_active, created_at, updated_at`

	InsertAccount = `
		INSERT INTO easypost_accounts (id, name, api_key, webhook_secret, is_active)
		VALUES (?, ?, ?, ?, ?)
	`

	UpsertAccount = `
		INSERT INTO easypost_accounts (id, name, api_key, webhook_secret, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			api_key = excluded.api_key,
			webhook_secret = excluded.webhook_secret,
			is_active = excluded.is_active,
			updated_at = CURRENT_TIMESTAMP
	`

	GetAccountByID = `SELECT ` + accountColumns + ` FROM easypost_accounts WHERE id = ?`

	ListActiveAccounts = `SELECT ` + accountColumns + ` FROM easypost_accounts WHERE is_active = 1 ORDER BY rowid ASC`

	UpdateAccount = `
		UPDATE easypost_accounts
		SET name = ?, api_key = ?, webhook_secret = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	DeactivateAccount = `
		UPDATE easypost_accounts SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`

	InsertPrinter = `
		INSERT INTO printer_configs (id, account_id, printer_name, printnode_api_key, printer_id, is_default, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	UpsertPrinter = `
		INSERT INTO printer_configs (id, account_id, printer_name, printnode_api_key, printer_id, is_default, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			printer_name = excluded.printer_name,
			printnode_api_key = excluded.printnode_api_key,
			printer_id = excluded.printer_id,
			is_default = excluded.is_default,
			is_active = excluded.is_active,
			updated_at = CURRENT_TIMESTAMP
	`

	ListActivePrintersByAccount = `
		SELECT ` + printerColumns + ` FROM printer_configs
		WHERE account_id = ? AND is_active = 1 ORDER BY rowid ASC
	`

	DeactivatePrinter = `
		UPDATE printer_configs SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`
)
