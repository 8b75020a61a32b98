package topo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/HerbHall/netglance/pkg/models"
)

// MemoryStore is the degraded-mode Gateway used when SQLite cannot be
// opened at startup. Everything lives in process memory and is lost on
// restart; the rest of the system runs unchanged against it.
type MemoryStore struct {
	mu          sync.RWMutex
	devices     map[string]*models.Device
	deviceOrder []string
	conns       map[string]*models.Connection
	connOrder   []string
	config      map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory gateway.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices: make(map[string]*models.Device),
		conns:   make(map[string]*models.Connection),
		config:  make(map[string]json.RawMessage),
	}
}

func (m *MemoryStore) Device(_ context.Context, id string) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, nil
	}
	return d.Clone(), nil
}

func (m *MemoryStore) Devices(_ context.Context) ([]*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Device, 0, len(m.deviceOrder))
	for _, id := range m.deviceOrder {
		out = append(out, m.devices[id].Clone())
	}
	return out, nil
}

func (m *MemoryStore) SaveDevice(_ context.Context, p *models.DevicePatch) (*models.Device, error) {
	if p.ID == "" {
		return nil, errors.New("device patch missing id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.devices[p.ID]
	merged := MergeDevice(existing, p)
	m.devices[p.ID] = merged
	if !ok {
		m.deviceOrder = append(m.deviceOrder, p.ID)
	}
	return merged.Clone(), nil
}

func (m *MemoryStore) DeleteDevice(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return nil
	}
	delete(m.devices, id)
	m.deviceOrder = removeID(m.deviceOrder, id)
	for connID, c := range m.conns {
		if c.Source == id || c.Target == id {
			delete(m.conns, connID)
			m.connOrder = removeID(m.connOrder, connID)
		}
	}
	return nil
}

func (m *MemoryStore) Connections(_ context.Context) ([]*models.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Connection, 0, len(m.connOrder))
	for _, id := range m.connOrder {
		c := *m.conns[id]
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryStore) SaveConnection(_ context.Context, c *models.Connection) error {
	if c.ID == "" || c.Source == "" || c.Target == "" {
		return errors.New("connection requires id, source and target")
	}
	if c.Status == "" {
		c.Status = models.DeviceStatusUnknown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.conns {
		if id == c.ID {
			continue
		}
		if other.SameEndpoints(c) {
			return fmt.Errorf("%w: %s and %s", ErrDuplicateConnection, c.Source, c.Target)
		}
	}
	stored := *c
	if _, ok := m.conns[c.ID]; !ok {
		m.connOrder = append(m.connOrder, c.ID)
	}
	m.conns[c.ID] = &stored
	return nil
}

func (m *MemoryStore) DeleteConnection(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conns[id]; ok {
		delete(m.conns, id)
		m.connOrder = removeID(m.connOrder, id)
	}
	return nil
}

func (m *MemoryStore) ConfigValue(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.config[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (m *MemoryStore) SetConfigValue(_ context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("config %s: invalid JSON value", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = append(json.RawMessage(nil), value...)
	return nil
}

func (m *MemoryStore) AllConfig(_ context.Context) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(m.config))
	for k, v := range m.config {
		out[k] = v
	}
	return out, nil
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
