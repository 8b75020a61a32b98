package topo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/netglance/internal/cache"
	"github.com/HerbHall/netglance/pkg/models"
	"github.com/HerbHall/netglance/pkg/plugin"
)

// ErrDuplicateConnection is returned when a new connection would link a
// pair of devices that is already linked, in either direction.
var ErrDuplicateConnection = errors.New("connection already exists between devices")

// configUser scopes config rows. A single scope for now; the column
// exists so per-user layouts can land without a schema change.
const configUser = "default"

const (
	cacheKeyDevices     = "all_devices"
	cacheKeyConnections = "all_connections"
)

// StorageObserver receives the duration and outcome of each database
// round-trip. Cache hits are not reported.
type StorageObserver func(d time.Duration, err error)

// Gateway is the persistence surface for topology data. Implementations
// back it with SQLite or, in degraded mode, process memory.
type Gateway interface {
	Device(ctx context.Context, id string) (*models.Device, error)
	Devices(ctx context.Context) ([]*models.Device, error)
	SaveDevice(ctx context.Context, p *models.DevicePatch) (*models.Device, error)
	DeleteDevice(ctx context.Context, id string) error

	Connections(ctx context.Context) ([]*models.Connection, error)
	SaveConnection(ctx context.Context, c *models.Connection) error
	DeleteConnection(ctx context.Context, id string) error

	ConfigValue(ctx context.Context, key string) (json.RawMessage, error)
	SetConfigValue(ctx context.Context, key string, value json.RawMessage) error
	AllConfig(ctx context.Context) (map[string]json.RawMessage, error)
}

// Store is the SQLite-backed Gateway. List reads are memoized in a
// short-lived cache; every write invalidates the affected key before
// returning, so a read that follows a write always sees the new state.
type Store struct {
	db    *sql.DB
	cache *cache.Cache
	obs   StorageObserver
}

// NewStore creates a topology store on top of an opened plugin store.
// A nil observer disables storage metrics.
func NewStore(ps plugin.Store, c *cache.Cache, obs StorageObserver) *Store {
	return &Store{db: ps.DB(), cache: c, obs: obs}
}

// observe reports one database round-trip to the storage observer.
func (s *Store) observe(start time.Time, err error) {
	if s.obs != nil {
		s.obs(time.Since(start), err)
	}
}

// Device returns the device with the given id, or nil when absent.
func (s *Store) Device(ctx context.Context, id string) (*models.Device, error) {
	start := time.Now()
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM topo_devices WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		s.observe(start, nil)
		return nil, nil
	}
	s.observe(start, err)
	if err != nil {
		return nil, fmt.Errorf("query device %s: %w", id, err)
	}
	var d models.Device
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("decode device %s: %w", id, err)
	}
	return &d, nil
}

// Devices returns every stored device. The result may be served from
// the read cache and must be treated as read-only; use Clone before
// mutating an entry.
func (s *Store) Devices(ctx context.Context) ([]*models.Device, error) {
	if v, ok := s.cache.Get(cacheKeyDevices); ok {
		return v.([]*models.Device), nil
	}
	start := time.Now()
	devices, err := s.queryDevices(ctx)
	s.observe(start, err)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKeyDevices, devices, 0)
	return devices, nil
}

func (s *Store) queryDevices(ctx context.Context) ([]*models.Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM topo_devices ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		var d models.Device
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, fmt.Errorf("decode device: %w", err)
		}
		devices = append(devices, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}
	return devices, nil
}

// SaveDevice merges the patch into the stored record (creating it when
// absent) and returns the merged device.
func (s *Store) SaveDevice(ctx context.Context, p *models.DevicePatch) (*models.Device, error) {
	if p.ID == "" {
		return nil, errors.New("device patch missing id")
	}
	existing, err := s.Device(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	merged := MergeDevice(existing, p)
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode device %s: %w", p.ID, err)
	}
	start := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO topo_devices (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		merged.ID, string(data))
	s.observe(start, err)
	if err != nil {
		return nil, fmt.Errorf("save device %s: %w", p.ID, err)
	}
	s.cache.Delete(cacheKeyDevices)
	return merged, nil
}

// DeleteDevice removes a device and, in the same transaction, every
// connection that references it from either end.
func (s *Store) DeleteDevice(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe(start, err) }(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete device: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM topo_connections WHERE source = ? OR target = ?`, id, id); err != nil {
		return fmt.Errorf("delete connections for device %s: %w", id, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM topo_devices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete device %s: %w", id, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete device: %w", err)
	}
	s.cache.Delete(cacheKeyDevices)
	s.cache.Delete(cacheKeyConnections)
	return nil
}

// Connections returns every stored connection.
func (s *Store) Connections(ctx context.Context) ([]*models.Connection, error) {
	if v, ok := s.cache.Get(cacheKeyConnections); ok {
		return v.([]*models.Connection), nil
	}
	start := time.Now()
	conns, err := s.queryConnections(ctx)
	s.observe(start, err)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKeyConnections, conns, 0)
	return conns, nil
}

func (s *Store) queryConnections(ctx context.Context) ([]*models.Connection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, target, source_port, target_port, status, traffic
		FROM topo_connections ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		var c models.Connection
		var srcPort, dstPort sql.NullString
		var traffic sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.Source, &c.Target, &srcPort, &dstPort, &c.Status, &traffic); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		c.SourcePort = srcPort.String
		c.TargetPort = dstPort.String
		c.Traffic = traffic.Float64
		conns = append(conns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return conns, nil
}

// SaveConnection inserts or updates a connection. A new connection is
// rejected with ErrDuplicateConnection when another connection already
// links the same device pair in either direction.
func (s *Store) SaveConnection(ctx context.Context, c *models.Connection) error {
	if c.ID == "" || c.Source == "" || c.Target == "" {
		return errors.New("connection requires id, source and target")
	}
	if c.Status == "" {
		c.Status = models.DeviceStatusUnknown
	}
	existing, err := s.Connections(ctx)
	if err != nil {
		return err
	}
	if err := checkDuplicateConnection(existing, c); err != nil {
		return err
	}
	start := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO topo_connections (id, source, target, source_port, target_port, status, traffic)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			target = excluded.target,
			source_port = excluded.source_port,
			target_port = excluded.target_port,
			status = excluded.status,
			traffic = excluded.traffic,
			updated_at = CURRENT_TIMESTAMP`,
		c.ID, c.Source, c.Target, nullString(c.SourcePort), nullString(c.TargetPort),
		string(c.Status), c.Traffic)
	s.observe(start, err)
	if err != nil {
		return fmt.Errorf("save connection %s: %w", c.ID, err)
	}
	s.cache.Delete(cacheKeyConnections)
	return nil
}

// DeleteConnection removes a single connection by id.
func (s *Store) DeleteConnection(ctx context.Context, id string) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `DELETE FROM topo_connections WHERE id = ?`, id)
	s.observe(start, err)
	if err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	}
	s.cache.Delete(cacheKeyConnections)
	return nil
}

// ConfigValue returns the stored JSON value for key, or nil when unset.
func (s *Store) ConfigValue(ctx context.Context, key string) (json.RawMessage, error) {
	start := time.Now()
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM topo_config WHERE user_id = ? AND key = ?`, configUser, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		s.observe(start, nil)
		return nil, nil
	}
	s.observe(start, err)
	if err != nil {
		return nil, fmt.Errorf("query config %s: %w", key, err)
	}
	return json.RawMessage(value), nil
}

// SetConfigValue stores a JSON value under key, replacing any previous
// value.
func (s *Store) SetConfigValue(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("config %s: invalid JSON value", key)
	}
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO topo_config (user_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		configUser, key, string(value))
	s.observe(start, err)
	if err != nil {
		return fmt.Errorf("save config %s: %w", key, err)
	}
	return nil
}

// AllConfig returns every stored config key with its raw JSON value.
func (s *Store) AllConfig(ctx context.Context) (map[string]json.RawMessage, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM topo_config WHERE user_id = ?`, configUser)
	if err != nil {
		s.observe(start, err)
		return nil, fmt.Errorf("query config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			s.observe(start, err)
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		s.observe(start, err)
		return nil, fmt.Errorf("iterate config: %w", err)
	}
	s.observe(start, nil)
	return out, nil
}

func checkDuplicateConnection(existing []*models.Connection, c *models.Connection) error {
	for _, other := range existing {
		if other.ID == c.ID {
			continue
		}
		if other.SameEndpoints(c) {
			return fmt.Errorf("%w: %s and %s", ErrDuplicateConnection, c.Source, c.Target)
		}
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
