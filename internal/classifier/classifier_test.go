package classifier

import (
	"context"
	"testing"

	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
)

type mapBaseline map[string]float64

func (m mapBaseline) LastWeight(ctx context.Context, serial string) (*float64, error) {
	w, ok := m[serial]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

type brokenBaseline struct{}

func (brokenBaseline) LastWeight(ctx context.Context, serial string) (*float64, error) {
	return nil, errors.NewDatabaseError("timeout", nil)
}

func ptr[T any](v T) *T { return &v }

func TestReedOnlyInputs(t *testing.T) {
	c := New(mapBaseline{}, DefaultThreshold, 0)
	for _, reed := range []bool{true, false} {
		d, err := c.Classify(context.Background(), Input{Serial: "S", ReedSensor: ptr(reed)})
		if err != nil {
			t.Fatal(err)
		}
		want := models.EventKindClose
		if reed {
			want = models.EventKindOpen
		}
		if d.Kind != want || d.Method != models.DetectionReedSensor {
			t.Errorf("reed=%v: got %s/%s", reed, d.Kind, d.Method)
		}
	}
}

func TestWeightDeltaOverridesReed(t *testing.T) {
	tests := []struct {
		name      string
		previous  float64
		current   float64
		threshold *float64
		reed      bool
		wantKind  models.EventKind
		wantMeth  models.DetectionMethod
	}{
		{"increase over threshold", 100, 200, nil, true, models.EventKindDelivery, models.DetectionWeightSensor},
		{"decrease over threshold", 300, 100, nil, true, models.EventKindRemoval, models.DetectionWeightSensor},
		{"exactly at threshold", 100, 150, nil, false, models.EventKindDelivery, models.DetectionWeightSensor},
		{"exactly at negative threshold", 150, 100, nil, true, models.EventKindRemoval, models.DetectionWeightSensor},
		{"below threshold falls back", 100, 149, nil, true, models.EventKindOpen, models.DetectionReedSensor},
		{"caller threshold", 100, 110, ptr(10.0), false, models.EventKindDelivery, models.DetectionWeightSensor},
		{"caller threshold not reached", 100, 180, ptr(100.0), false, models.EventKindClose, models.DetectionReedSensor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(mapBaseline{"S": tt.previous}, DefaultThreshold, 0)
			d, err := c.Classify(context.Background(), Input{
				Serial:     "S",
				ReedSensor: ptr(tt.reed),
				Weight:     ptr(tt.current),
				Threshold:  tt.threshold,
			})
			if err != nil {
				t.Fatal(err)
			}
			if d.Kind != tt.wantKind || d.Method != tt.wantMeth {
				t.Errorf("got %s/%s, want %s/%s", d.Kind, d.Method, tt.wantKind, tt.wantMeth)
			}
			if d.WeightData == nil || d.WeightData.Delta == nil {
				t.Fatal("weight data missing")
			}
			if got := *d.WeightData.Delta; got != tt.current-tt.previous {
				t.Errorf("delta = %v", got)
			}
			if d.WeightData.Detected != (tt.wantMeth == models.DetectionWeightSensor) {
				t.Errorf("detected = %v", d.WeightData.Detected)
			}
		})
	}
}

func TestMailboxScenario(t *testing.T) {
	baseline := mapBaseline{}
	c := New(baseline, DefaultThreshold, 0)
	ctx := context.Background()

	// first-ever report: no baseline, weight ignored
	d, err := c.Classify(ctx, Input{Serial: "SN-1", ReedSensor: ptr(true), Weight: ptr(500.0)})
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != models.EventKindOpen || d.Method != models.DetectionReedSensor {
		t.Errorf("report 1: got %s/%s", d.Kind, d.Method)
	}
	if d.WeightData.Previous != nil || d.WeightData.Delta != nil || d.WeightData.Detected {
		t.Errorf("report 1: no baseline expected, got %+v", d.WeightData)
	}
	baseline["SN-1"] = 500

	d, err = c.Classify(ctx, Input{Serial: "SN-1", ReedSensor: ptr(false), Weight: ptr(620.0), Threshold: ptr(50.0)})
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != models.EventKindDelivery || d.Method != models.DetectionWeightSensor {
		t.Errorf("report 2: got %s/%s", d.Kind, d.Method)
	}
	if *d.WeightData.Delta != 120 {
		t.Errorf("report 2: delta = %v", *d.WeightData.Delta)
	}
	baseline["SN-1"] = 620

	d, err = c.Classify(ctx, Input{Serial: "SN-1", ReedSensor: ptr(false), Weight: ptr(600.0)})
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != models.EventKindClose || d.Method != models.DetectionReedSensor {
		t.Errorf("report 3: got %s/%s", d.Kind, d.Method)
	}
	if *d.WeightData.Delta != -20 {
		t.Errorf("report 3: delta = %v", *d.WeightData.Delta)
	}
}

func TestExplicitLabel(t *testing.T) {
	c := New(mapBaseline{"S": 0}, DefaultThreshold, 0)
	tests := []struct {
		label    string
		hint     string
		wantKind models.EventKind
		wantMeth models.DetectionMethod
	}{
		{"open", "", models.EventKindOpen, models.DetectionExplicit},
		{"CLOSED", "", models.EventKindClose, models.DetectionExplicit},
		{"mail_delivered", "", models.EventKindDelivery, models.DetectionExplicit},
		{"Mail_Removed", "", models.EventKindRemoval, models.DetectionExplicit},
		{"delivery", "weight_sensor", models.EventKindDelivery, models.DetectionWeightSensor},
		{"open", "weight_sensor", models.EventKindOpen, models.DetectionExplicit},
	}
	for _, tt := range tests {
		t.Run(tt.label+"/"+tt.hint, func(t *testing.T) {
			// weight and reed would say otherwise; the label wins
			d, err := c.Classify(context.Background(), Input{
				Serial:     "S",
				Label:      tt.label,
				MethodHint: tt.hint,
				ReedSensor: ptr(false),
				Weight:     ptr(-1000.0),
			})
			if err != nil {
				t.Fatal(err)
			}
			if d.Kind != tt.wantKind || d.Method != tt.wantMeth {
				t.Errorf("got %s/%s, want %s/%s", d.Kind, d.Method, tt.wantKind, tt.wantMeth)
			}
		})
	}
}

func TestUnknownLabelFallsThrough(t *testing.T) {
	c := New(mapBaseline{}, DefaultThreshold, 0)
	d, err := c.Classify(context.Background(), Input{Serial: "S", Label: "knock", ReedSensor: ptr(true)})
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != models.EventKindOpen || d.Rule != "reed_sensor" {
		t.Errorf("got %s via %s", d.Kind, d.Rule)
	}

	_, err = c.Classify(context.Background(), Input{Serial: "S", Label: "knock"})
	if !errors.IsValidation(err) {
		t.Errorf("unknown label without reed: got %v", err)
	}
}

func TestMissingSignalsIsValidationError(t *testing.T) {
	c := New(mapBaseline{}, DefaultThreshold, 0)
	_, err := c.Classify(context.Background(), Input{Serial: "S", Weight: ptr(10.0)})
	if !errors.IsValidation(err) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestBaselineFailureFallsBackToReed(t *testing.T) {
	c := New(brokenBaseline{}, DefaultThreshold, 0)
	d, err := c.Classify(context.Background(), Input{Serial: "S", ReedSensor: ptr(false), Weight: ptr(900.0)})
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != models.EventKindClose || d.Method != models.DetectionReedSensor {
		t.Errorf("got %s/%s", d.Kind, d.Method)
	}
}
