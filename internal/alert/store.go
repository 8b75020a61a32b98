package alert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HerbHall/netglance/pkg/models"
	"github.com/HerbHall/netglance/pkg/plugin"
)

// HistoryStore persists the append-only alert history and the
// per-device notification settings.
type HistoryStore interface {
	AppendRecord(ctx context.Context, rec *models.AlertRecord) error
	ListRecords(ctx context.Context, since time.Time, limit int) ([]*models.AlertRecord, error)
	CountSince(ctx context.Context, since time.Time) (int, error)

	DeviceAlertEnabled(ctx context.Context, deviceID string) (enabled, stored bool, err error)
	SetDeviceAlertEnabled(ctx context.Context, deviceID string, enabled bool) error
	ListDeviceAlertSettings(ctx context.Context) ([]models.DeviceAlertSetting, error)
}

// Store is the SQLite-backed HistoryStore.
type Store struct {
	db *sql.DB
}

// NewStore creates an alert store on top of an opened plugin store.
func NewStore(ps plugin.Store) *Store {
	return &Store{db: ps.DB()}
}

// AppendRecord writes one dispatch attempt. Records are never updated
// afterwards.
func (s *Store) AppendRecord(ctx context.Context, rec *models.AlertRecord) error {
	if rec.ID == "" {
		return errors.New("alert record missing id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_history
			(id, device_id, device_name, device_type, device_ip, alert_type, alert_level, message, sent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DeviceID, rec.DeviceName, rec.DeviceType, rec.DeviceIP,
		string(rec.Type), string(rec.Level), rec.Message, boolToInt(rec.Sent), rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("append alert record: %w", err)
	}
	return nil
}

// ListRecords returns the newest records first, capped at limit. A
// zero since returns records from any date.
func (s *Store) ListRecords(ctx context.Context, since time.Time, limit int) ([]*models.AlertRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, device_name, device_type, device_ip, alert_type, alert_level, message, sent, created_at
		FROM alert_history WHERE created_at >= ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	var records []*models.AlertRecord
	for rows.Next() {
		var rec models.AlertRecord
		var sent int
		var alertType, level string
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.DeviceName, &rec.DeviceType, &rec.DeviceIP,
			&alertType, &level, &rec.Message, &sent, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert record: %w", err)
		}
		rec.Type = models.AlertType(alertType)
		rec.Level = models.AlertLevel(level)
		rec.Sent = sent != 0
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert history: %w", err)
	}
	return records, nil
}

// CountSince counts device alert records created at or after since.
// The daily cap gate uses this with local midnight; health-rule
// records share the table but never count against the device cap.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alert_history WHERE created_at >= ? AND alert_type != ?`,
		since.UTC(), string(models.AlertTypeRule)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count alert records: %w", err)
	}
	return count, nil
}

// DeviceAlertEnabled reports whether alerts are enabled for a device.
// stored is false when the device has no explicit setting; callers
// default to enabled in that case.
func (s *Store) DeviceAlertEnabled(ctx context.Context, deviceID string) (bool, bool, error) {
	var enabled int
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled FROM alert_device_settings WHERE device_id = ?`, deviceID).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return true, false, nil
	}
	if err != nil {
		return true, false, fmt.Errorf("query device alert setting %s: %w", deviceID, err)
	}
	return enabled != 0, true, nil
}

// SetDeviceAlertEnabled stores the per-device opt-out.
func (s *Store) SetDeviceAlertEnabled(ctx context.Context, deviceID string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_device_settings (device_id, enabled) VALUES (?, ?)
		ON CONFLICT(device_id) DO UPDATE SET enabled = excluded.enabled, updated_at = CURRENT_TIMESTAMP`,
		deviceID, boolToInt(enabled))
	if err != nil {
		return fmt.Errorf("save device alert setting %s: %w", deviceID, err)
	}
	return nil
}

// ListDeviceAlertSettings returns every stored per-device setting.
func (s *Store) ListDeviceAlertSettings(ctx context.Context) ([]models.DeviceAlertSetting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT device_id, enabled FROM alert_device_settings`)
	if err != nil {
		return nil, fmt.Errorf("query device alert settings: %w", err)
	}
	defer rows.Close()

	var settings []models.DeviceAlertSetting
	for rows.Next() {
		var setting models.DeviceAlertSetting
		var enabled int
		if err := rows.Scan(&setting.DeviceID, &enabled); err != nil {
			return nil, fmt.Errorf("scan device alert setting: %w", err)
		}
		setting.Enabled = enabled != 0
		settings = append(settings, setting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device alert settings: %w", err)
	}
	return settings, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// MemoryHistory is the degraded-mode HistoryStore used when SQLite is
// unavailable. History lives in a bounded in-memory buffer.
type MemoryHistory struct {
	mu       sync.Mutex
	records  []*models.AlertRecord
	settings map[string]bool
	cap      int
}

// NewMemoryHistory creates an in-memory history bounded to capacity.
func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryHistory{settings: make(map[string]bool), cap: capacity}
}

func (m *MemoryHistory) AppendRecord(_ context.Context, rec *models.AlertRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if len(m.records) > m.cap {
		m.records = m.records[len(m.records)-m.cap:]
	}
	return nil
}

func (m *MemoryHistory) ListRecords(_ context.Context, since time.Time, limit int) ([]*models.AlertRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AlertRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].CreatedAt.Before(since) {
			continue
		}
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *MemoryHistory) CountSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, rec := range m.records {
		if rec.Type == models.AlertTypeRule {
			continue
		}
		if !rec.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryHistory) DeviceAlertEnabled(_ context.Context, deviceID string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	enabled, ok := m.settings[deviceID]
	if !ok {
		return true, false, nil
	}
	return enabled, true, nil
}

func (m *MemoryHistory) SetDeviceAlertEnabled(_ context.Context, deviceID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[deviceID] = enabled
	return nil
}

func (m *MemoryHistory) ListDeviceAlertSettings(_ context.Context) ([]models.DeviceAlertSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DeviceAlertSetting, 0, len(m.settings))
	for id, enabled := range m.settings {
		out = append(out, models.DeviceAlertSetting{DeviceID: id, Enabled: enabled})
	}
	return out, nil
}
