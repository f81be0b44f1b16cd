package correlator

import (
	"context"
	"testing"
	"time"

	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/repository/memory"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestCorrelationWindowIsSymmetric(t *testing.T) {
	event := models.EventRef{ID: "evt_1", Serial: "SN-1", Kind: models.EventKindDelivery, OccurredAt: base}
	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"4 minutes before", -4 * time.Minute, true},
		{"4 minutes after", 4 * time.Minute, true},
		{"exactly at the edge", 5 * time.Minute, true},
		{"6 minutes before", -6 * time.Minute, false},
		{"6 minutes after", 6 * time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := &models.CapturedImage{Serial: "SN-1", CapturedAt: base.Add(tt.offset)}
			got := Best(img, []models.EventRef{event}, DefaultWindow)
			if (got != nil) != tt.want {
				t.Errorf("matched=%v, want %v", got != nil, tt.want)
			}
		})
	}
}

func TestClosestCandidateWins(t *testing.T) {
	img := &models.CapturedImage{Serial: "SN-1", CapturedAt: base}
	candidates := []models.EventRef{
		{ID: "far", Serial: "SN-1", OccurredAt: base.Add(-3 * time.Minute)},
		{ID: "near", Serial: "SN-1", OccurredAt: base.Add(40 * time.Second)},
		{ID: "mid", Serial: "SN-1", OccurredAt: base.Add(2 * time.Minute)},
	}
	got := Best(img, candidates, DefaultWindow)
	if got == nil || got.Event.ID != "near" {
		t.Fatalf("got %+v, want near", got)
	}
	if got.Distance != 40*time.Second {
		t.Errorf("distance = %v", got.Distance)
	}
}

func TestStrategyOrder(t *testing.T) {
	img := &models.CapturedImage{Serial: "SN-1", DeviceID: strPtr("dev_1"), CapturedAt: base}

	// a device-id match wins even though a serial match is closer in time
	candidates := []models.EventRef{
		{ID: "by-serial", Serial: "SN-1", OccurredAt: base.Add(5 * time.Second)},
		{ID: "by-device", DeviceID: strPtr("dev_1"), Serial: "SN-1", OccurredAt: base.Add(3 * time.Minute)},
	}
	got := Best(img, candidates, DefaultWindow)
	if got == nil || got.Event.ID != "by-device" || got.Strategy != "device_id" {
		t.Fatalf("got %+v, want device_id match", got)
	}

	// orphan events carry no device id and match an image by serial alone
	imgNoDevice := &models.CapturedImage{Serial: "SN-9", CapturedAt: base}
	orphan := &models.OrphanEvent{ID: "oev_9", Serial: "SN-9", Kind: models.EventKindDelivery, OccurredAt: base.Add(time.Minute)}
	candidates = []models.EventRef{
		orphan.Ref(),
		{ID: "other", Serial: "SN-8", OccurredAt: base},
	}
	got = Best(imgNoDevice, candidates, DefaultWindow)
	if got == nil || got.Event.ID != "oev_9" || got.Strategy != "serial" {
		t.Fatalf("got %+v, want serial match on the orphan event", got)
	}
	if got.Event.Source != models.EventSourceOrphan {
		t.Errorf("source = %v, want orphan", got.Event.Source)
	}

	for _, strategy := range Strategies {
		if strategy.Name != "device_id" && strategy.Name != "serial" {
			t.Errorf("unexpected strategy %q", strategy.Name)
		}
	}
}

func TestNoMatchIsNotAnError(t *testing.T) {
	db := memory.NewDB()
	store := db.Store()
	c := New(store.Events, store.Images, DefaultWindow, time.Second)

	match, err := c.Correlate(context.Background(), &models.CapturedImage{ID: "img_1", Serial: "SN-1", CapturedAt: base})
	if err != nil {
		t.Fatal(err)
	}
	if match != nil {
		t.Errorf("expected no match, got %+v", match)
	}
}

func TestCorrelateAgainstStore(t *testing.T) {
	db := memory.NewDB()
	store := db.Store()
	ctx := context.Background()

	orphan := &models.OrphanEvent{ID: "oev_1", Serial: "SN-1", Kind: models.EventKindDelivery, DetectionMethod: models.DetectionWeightSensor, OccurredAt: base}
	open := &models.OrphanEvent{ID: "oev_2", Serial: "SN-1", Kind: models.EventKindOpen, DetectionMethod: models.DetectionReedSensor, OccurredAt: base.Add(10 * time.Second)}
	for _, e := range []*models.OrphanEvent{orphan, open} {
		if err := store.Events.CreateOrphan(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	c := New(store.Events, store.Images, DefaultWindow, time.Second)
	match, err := c.Correlate(ctx, &models.CapturedImage{
		ID:         "img_1",
		Serial:     "SN-1",
		Kind:       models.EventKindDelivery,
		CapturedAt: base.Add(8 * time.Second),
	})
	if err != nil {
		t.Fatal(err)
	}
	if match == nil || match.Event.ID != "oev_1" || match.Event.Source != models.EventSourceOrphan {
		t.Fatalf("got %+v, want the delivery event", match)
	}
}

func TestAttachPending(t *testing.T) {
	db := memory.NewDB()
	store := db.Store()
	ctx := context.Background()

	early := &models.CapturedImage{ID: "img_early", Serial: "SN-1", Kind: models.EventKindDelivery, CapturedAt: base.Add(-2 * time.Minute)}
	stale := &models.CapturedImage{ID: "img_stale", Serial: "SN-1", Kind: models.EventKindDelivery, CapturedAt: base.Add(-20 * time.Minute)}
	for _, img := range []*models.CapturedImage{early, stale} {
		if err := store.Images.Create(ctx, img); err != nil {
			t.Fatal(err)
		}
	}

	event := &models.CanonicalEvent{ID: "evt_1", DeviceID: "dev_1", Serial: "SN-1", AccountID: "acct_1", Kind: models.EventKindDelivery, DetectionMethod: models.DetectionWeightSensor, OccurredAt: base}
	if err := store.Events.CreateCanonical(ctx, event); err != nil {
		t.Fatal(err)
	}

	c := New(store.Events, store.Images, DefaultWindow, time.Second)
	attached, err := c.AttachPending(ctx, event.Ref())
	if err != nil {
		t.Fatal(err)
	}
	if len(attached) != 1 || attached[0].ID != "img_early" {
		t.Fatalf("attached %v, want only img_early", attached)
	}

	stored, _ := store.Images.Get(ctx, "img_early")
	if stored.EventID == nil || *stored.EventID != "evt_1" {
		t.Error("attachment not persisted")
	}
	if stored.DeviceID == nil || *stored.DeviceID != "dev_1" {
		t.Error("device id should be filled from the event")
	}
	if s, _ := store.Images.Get(ctx, "img_stale"); s.EventID != nil {
		t.Error("image outside the window must stay unmatched")
	}
}
