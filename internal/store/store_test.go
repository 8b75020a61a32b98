package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/HerbHall/netglance/pkg/plugin"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrate_AppliesOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	applied := 0
	migs := []plugin.Migration{
		{
			Version:     1,
			Description: "create test table",
			Up: func(tx *sql.Tx) error {
				applied++
				_, err := tx.Exec(`CREATE TABLE t (id TEXT PRIMARY KEY)`)
				return err
			},
		},
	}

	if err := s.Migrate(ctx, "test", migs); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	if err := s.Migrate(ctx, "test", migs); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if applied != 1 {
		t.Errorf("migration applied %d times, want 1", applied)
	}
}

func TestMigrate_FailedMigrationRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	migs := []plugin.Migration{
		{
			Version:     1,
			Description: "failing migration",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec(`CREATE TABLE t (id TEXT PRIMARY KEY)`); err != nil {
					return err
				}
				return fmt.Errorf("boom")
			},
		},
	}

	if err := s.Migrate(ctx, "test", migs); err == nil {
		t.Fatal("Migrate succeeded, want error")
	}

	// The table must not exist after rollback.
	var n int
	err := s.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='t'`,
	).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if n != 0 {
		t.Error("table t exists after failed migration, want rolled back")
	}
}

func TestMigrate_TrackedPerPlugin(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mk := func(table string) []plugin.Migration {
		return []plugin.Migration{{
			Version:     1,
			Description: "create " + table,
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(fmt.Sprintf(`CREATE TABLE %s (id TEXT)`, table))
				return err
			},
		}}
	}

	if err := s.Migrate(ctx, "topo", mk("topo_devices")); err != nil {
		t.Fatalf("migrate topo: %v", err)
	}
	if err := s.Migrate(ctx, "alert", mk("alert_history")); err != nil {
		t.Fatalf("migrate alert: %v", err)
	}
}

func TestTx_CommitsOnNil(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.DB().Exec(`CREATE TABLE t (id TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	err := s.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO t (id) VALUES ('a')`)
		return err
	})
	if err != nil {
		t.Fatalf("Tx: %v", err)
	}

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("row count = %d, want 1", n)
	}
}

func TestTx_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.DB().Exec(`CREATE TABLE t (id TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	wantErr := fmt.Errorf("abort")
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO t (id) VALUES ('a')`); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Tx error = %v, want %v", err, wantErr)
	}

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("row count = %d after rollback, want 0", n)
	}
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		current string
		wantErr bool
	}{
		{"first run records version", "", "0.2.0", false},
		{"same version passes", "0.2.0", "0.2.0", false},
		{"newer binary passes", "0.1.0", "0.2.0", false},
		{"older binary rejected", "0.3.0", "0.2.0", true},
		{"dev always passes", "0.9.0", "dev", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			ctx := context.Background()

			if tt.stored != "" {
				if err := s.CheckVersion(ctx, tt.stored); err != nil {
					t.Fatalf("seed stored version: %v", err)
				}
			}

			err := s.CheckVersion(ctx, tt.current)
			if tt.wantErr {
				if !errors.Is(err, ErrNewerSchema) {
					t.Errorf("CheckVersion = %v, want ErrNewerSchema", err)
				}
			} else if err != nil {
				t.Errorf("CheckVersion: %v", err)
			}
		})
	}
}
