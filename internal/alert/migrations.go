package alert

import (
	"database/sql"

	"github.com/HerbHall/netglance/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create alert history and device settings tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS alert_history (
						id TEXT PRIMARY KEY,
						device_id TEXT NOT NULL,
						device_name TEXT NOT NULL DEFAULT '',
						device_type TEXT NOT NULL DEFAULT '',
						device_ip TEXT NOT NULL DEFAULT '',
						alert_type TEXT NOT NULL,
						alert_level TEXT NOT NULL,
						message TEXT NOT NULL,
						sent INTEGER NOT NULL DEFAULT 0,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_alert_history_created ON alert_history(created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_alert_history_device ON alert_history(device_id, created_at)`,

					`CREATE TABLE IF NOT EXISTS alert_device_settings (
						device_id TEXT PRIMARY KEY,
						enabled INTEGER NOT NULL DEFAULT 1,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
