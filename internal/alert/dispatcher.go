package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/netglance/internal/cache"
	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/pkg/models"
)

// deviceSettingTTL bounds how long a per-device enabled lookup is
// reused before going back to the store.
const deviceSettingTTL = 5 * time.Minute

// Dispatcher gates alert candidates and delivers the survivors through
// the push provider. Gate-blocked candidates never reach the provider
// and leave no history; once a provider call is attempted the outcome
// is always recorded.
type Dispatcher struct {
	store    HistoryStore
	notifier Notifier
	cache    *cache.Cache
	logger   *zap.Logger

	now func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(store HistoryStore, notifier Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		cache:    cache.New(deviceSettingTTL),
		logger:   logger,
		now:      time.Now,
	}
}

// Dispatch runs one candidate through the gates and, if all pass,
// sends the rendered message. Gate-blocked candidates return a nil
// record; after a provider attempt the returned record carries the
// delivery outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, c Candidate, settings topo.Settings) (*models.AlertRecord, bool) {
	if !settings.PushEnabled {
		d.logger.Debug("push disabled, skipping alert", zap.String("device_id", c.Device.ID))
		return nil, false
	}
	if settings.PushSendKey == "" {
		d.logger.Warn("push send key not configured, skipping alert")
		return nil, false
	}
	if !d.deviceAlertEnabled(ctx, c.Device.ID) {
		d.logger.Debug("alerts disabled for device", zap.String("device_id", c.Device.ID))
		return nil, false
	}
	if d.dailyCapReached(ctx, settings.AlertMaxPerDay) {
		d.logger.Warn("daily alert cap reached, skipping alert",
			zap.Int("cap", settings.AlertMaxPerDay))
		return nil, false
	}
	tpl := FindTemplate(settings.Templates, c.Type)
	if tpl == nil {
		d.logger.Warn("no enabled template for alert kind", zap.String("kind", string(c.Type)))
		return nil, false
	}

	vars := NewTemplateVars(c.Device, d.now())
	title := RenderTemplate(tpl.Title, vars)
	body := RenderTemplate(tpl.Body, vars)

	sent, err := d.notifier.Send(ctx, PushCredentials{
		APIURL:  settings.PushAPIURL,
		SendKey: settings.PushSendKey,
	}, title, body)
	if err != nil {
		d.logger.Warn("push delivery failed",
			zap.String("device_id", c.Device.ID), zap.Error(err))
	}

	rec := &models.AlertRecord{
		ID:         uuid.NewString(),
		DeviceID:   c.Device.ID,
		DeviceName: c.Device.Label,
		DeviceType: string(c.Device.Type),
		DeviceIP:   c.Device.IP,
		Type:       c.Type,
		Level:      c.Level,
		Message:    body,
		Sent:       sent,
		CreatedAt:  d.now(),
	}
	if err := d.store.AppendRecord(ctx, rec); err != nil {
		d.logger.Warn("failed to record alert history",
			zap.String("device_id", c.Device.ID), zap.Error(err))
	}

	if sent {
		d.logger.Info("alert dispatched",
			zap.String("device_id", c.Device.ID),
			zap.String("kind", string(c.Type)))
	}
	return rec, sent
}

// deviceAlertEnabled checks the per-device opt-out with a short-lived
// cache in front of the store. Lookup failures default to enabled.
func (d *Dispatcher) deviceAlertEnabled(ctx context.Context, deviceID string) bool {
	if v, ok := d.cache.Get(deviceID); ok {
		return v.(bool)
	}
	enabled, _, err := d.store.DeviceAlertEnabled(ctx, deviceID)
	if err != nil {
		d.logger.Debug("device alert setting lookup failed, defaulting to enabled",
			zap.String("device_id", deviceID), zap.Error(err))
		return true
	}
	d.cache.Set(deviceID, enabled, 0)
	return enabled
}

// InvalidateDeviceSetting drops a cached per-device lookup after the
// setting changes.
func (d *Dispatcher) InvalidateDeviceSetting(deviceID string) {
	d.cache.Delete(deviceID)
}

func (d *Dispatcher) dailyCapReached(ctx context.Context, maxPerDay int) bool {
	if maxPerDay <= 0 {
		return false
	}
	now := d.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := d.store.CountSince(ctx, midnight)
	if err != nil {
		d.logger.Warn("failed to count alerts for daily cap", zap.Error(err))
		return false
	}
	return count >= maxPerDay
}
