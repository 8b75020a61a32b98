package topo

import (
	"database/sql"

	"github.com/HerbHall/netglance/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create topology tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS topo_devices (
						id TEXT PRIMARY KEY,
						data TEXT NOT NULL,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,

					`CREATE TABLE IF NOT EXISTS topo_connections (
						id TEXT PRIMARY KEY,
						source TEXT NOT NULL,
						target TEXT NOT NULL,
						source_port TEXT,
						target_port TEXT,
						status TEXT NOT NULL DEFAULT 'unknown',
						traffic REAL,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_topo_connections_source ON topo_connections(source)`,
					`CREATE INDEX IF NOT EXISTS idx_topo_connections_target ON topo_connections(target)`,

					`CREATE TABLE IF NOT EXISTS topo_config (
						user_id TEXT NOT NULL DEFAULT 'default',
						key TEXT NOT NULL,
						value TEXT NOT NULL,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						PRIMARY KEY (user_id, key)
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
