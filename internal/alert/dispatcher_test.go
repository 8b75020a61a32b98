package alert

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/pkg/models"
)

type fakeNotifier struct {
	calls  int
	titles []string
	bodies []string
	accept bool
}

func (f *fakeNotifier) Send(_ context.Context, _ PushCredentials, title, body string) (bool, error) {
	f.calls++
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, body)
	return f.accept, nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *MemoryHistory, *fakeNotifier) {
	t.Helper()
	store := NewMemoryHistory(0)
	notifier := &fakeNotifier{accept: true}
	return NewDispatcher(store, notifier, zap.NewNop()), store, notifier
}

func pushSettings() topo.Settings {
	s := topo.DefaultSettings()
	s.PushEnabled = true
	s.PushSendKey = "SCT0TESTKEY"
	return s
}

func warningCandidate(id string) Candidate {
	ping := 150.0
	return Candidate{
		Device: &models.Device{
			ID:       id,
			Label:    "core-" + id,
			IP:       "10.0.0.1",
			Status:   models.DeviceStatusUp,
			PingTime: &ping,
		},
		Type:  models.AlertTypePingWarning,
		Level: models.AlertLevelWarning,
	}
}

func TestDispatchSendsAndRecords(t *testing.T) {
	d, store, notifier := newTestDispatcher(t)
	ctx := context.Background()

	rec, sent := d.Dispatch(ctx, warningCandidate("d1"), pushSettings())
	if !sent || rec == nil {
		t.Fatalf("sent=%v rec=%v, want accepted dispatch", sent, rec)
	}
	if notifier.calls != 1 {
		t.Fatalf("notifier calls = %d, want 1", notifier.calls)
	}
	if !strings.Contains(notifier.bodies[0], "core-d1") {
		t.Fatalf("body %q missing device name", notifier.bodies[0])
	}

	records, err := store.ListRecords(ctx, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("history size = %d, want 1", len(records))
	}
	if !records[0].Sent {
		t.Fatal("record not marked sent")
	}
	if records[0].Type != models.AlertTypePingWarning {
		t.Fatalf("record type = %s", records[0].Type)
	}
}

func TestDispatchGatesLeaveNoHistory(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*topo.Settings)
	}{
		{"push disabled", func(s *topo.Settings) { s.PushEnabled = false }},
		{"missing send key", func(s *topo.Settings) { s.PushSendKey = "" }},
		{"no enabled template", func(s *topo.Settings) {
			for i := range s.Templates {
				s.Templates[i].Enabled = false
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, store, notifier := newTestDispatcher(t)
			settings := pushSettings()
			tt.mutate(&settings)

			rec, sent := d.Dispatch(context.Background(), warningCandidate("d1"), settings)
			if sent || rec != nil {
				t.Fatalf("sent=%v rec=%v, want blocked", sent, rec)
			}
			if notifier.calls != 0 {
				t.Fatalf("provider called %d times through a closed gate", notifier.calls)
			}
			records, _ := store.ListRecords(context.Background(), time.Time{}, 10)
			if len(records) != 0 {
				t.Fatalf("blocked dispatch left %d history records", len(records))
			}
		})
	}
}

func TestDispatchHonorsDeviceOptOut(t *testing.T) {
	d, store, notifier := newTestDispatcher(t)
	ctx := context.Background()

	if err := store.SetDeviceAlertEnabled(ctx, "d1", false); err != nil {
		t.Fatalf("set device setting: %v", err)
	}
	rec, sent := d.Dispatch(ctx, warningCandidate("d1"), pushSettings())
	if sent || rec != nil || notifier.calls != 0 {
		t.Fatal("opted-out device still dispatched")
	}

	// Re-enabling takes effect once the cached lookup is invalidated.
	if err := store.SetDeviceAlertEnabled(ctx, "d1", true); err != nil {
		t.Fatalf("set device setting: %v", err)
	}
	if rec, _ := d.Dispatch(ctx, warningCandidate("d1"), pushSettings()); rec != nil {
		t.Fatal("cached opt-out ignored")
	}
	d.InvalidateDeviceSetting("d1")
	if rec, _ := d.Dispatch(ctx, warningCandidate("d1"), pushSettings()); rec == nil {
		t.Fatal("dispatch still blocked after invalidation")
	}
}

func TestDispatchDailyCap(t *testing.T) {
	d, store, notifier := newTestDispatcher(t)
	ctx := context.Background()

	settings := pushSettings()
	settings.AlertMaxPerDay = 3

	for i := 0; i < 4; i++ {
		d.Dispatch(ctx, warningCandidate("d1"), settings)
	}
	if notifier.calls != 3 {
		t.Fatalf("provider calls = %d, want 3", notifier.calls)
	}
	records, _ := store.ListRecords(ctx, time.Time{}, 10)
	if len(records) != 3 {
		t.Fatalf("history size = %d, want 3", len(records))
	}
}

func TestDispatchDailyCapIgnoresRuleRecords(t *testing.T) {
	d, store, notifier := newTestDispatcher(t)
	ctx := context.Background()

	settings := pushSettings()
	settings.AlertMaxPerDay = 100

	// A noisy health rule can write far more history than the device
	// cap allows; those records must not consume it.
	for i := 0; i < 100; i++ {
		rec := testRecord(fmt.Sprintf("r%d", i), time.Now())
		rec.Type = models.AlertTypeRule
		rec.DeviceID = ""
		if err := store.AppendRecord(ctx, rec); err != nil {
			t.Fatalf("append rule record: %v", err)
		}
	}

	rec, sent := d.Dispatch(ctx, warningCandidate("d1"), settings)
	if !sent || rec == nil {
		t.Fatalf("sent=%v rec=%v, want device alert dispatched", sent, rec)
	}
	if notifier.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", notifier.calls)
	}
}

func TestDispatchRejectedDeliveryStillRecorded(t *testing.T) {
	d, store, notifier := newTestDispatcher(t)
	notifier.accept = false
	ctx := context.Background()

	rec, sent := d.Dispatch(ctx, warningCandidate("d1"), pushSettings())
	if sent {
		t.Fatal("rejected delivery reported as sent")
	}
	if rec == nil {
		t.Fatal("attempted dispatch returned no record")
	}
	records, _ := store.ListRecords(ctx, time.Time{}, 10)
	if len(records) != 1 || records[0].Sent {
		t.Fatalf("records = %+v, want one unsent record", records)
	}
}

func TestDispatchDailyCapResetsAtMidnight(t *testing.T) {
	d, store, notifier := newTestDispatcher(t)
	ctx := context.Background()

	settings := pushSettings()
	settings.AlertMaxPerDay = 1

	base := time.Date(2026, 3, 10, 23, 50, 0, 0, time.Local)
	d.now = func() time.Time { return base }
	d.Dispatch(ctx, warningCandidate("d1"), settings)
	d.Dispatch(ctx, warningCandidate("d1"), settings)
	if notifier.calls != 1 {
		t.Fatalf("provider calls = %d, want 1 before midnight", notifier.calls)
	}

	d.now = func() time.Time { return base.Add(20 * time.Minute) }
	d.Dispatch(ctx, warningCandidate("d1"), settings)
	if notifier.calls != 2 {
		t.Fatalf("provider calls = %d, want 2 after the day rolls over", notifier.calls)
	}
	records, _ := store.ListRecords(ctx, time.Time{}, 10)
	if len(records) != 2 {
		t.Fatalf("history size = %d, want 2", len(records))
	}
}
