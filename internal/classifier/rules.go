// FilePath: internal/classifier/rules.go
package classifier

import (
	"context"
	"math"
	"time"

	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/monitoring"
	nuts "github.com/vaudience/go-nuts"
)

// ExplicitLabelRule trusts a recognized on-device label
type ExplicitLabelRule struct{}

func (ExplicitLabelRule) Name() string { return "explicit_label" }

func (ExplicitLabelRule) Apply(ctx context.Context, ev *Evaluation) (models.EventKind, models.DetectionMethod, bool) {
	if ev.Input.Label == "" {
		return "", "", false
	}
	kind, ok := models.ParseEventKind(ev.Input.Label)
	if !ok {
		nuts.L.Debugf("[Classifier] %s: unrecognized label %q", ev.Input.Serial, ev.Input.Label)
		return "", "", false
	}
	method := models.DetectionExplicit
	// the device may already have derived the label from its load cell
	if models.DetectionMethod(ev.Input.MethodHint) == models.DetectionWeightSensor &&
		(kind == models.EventKindDelivery || kind == models.EventKindRemoval) {
		method = models.DetectionWeightSensor
	}
	return kind, method, true
}

// WeightDeltaRule compares the reported weight with the previous sample
type WeightDeltaRule struct {
	Baseline BaselineSource
	Timeout  time.Duration
}

func (WeightDeltaRule) Name() string { return "weight_delta" }

func (r *WeightDeltaRule) Apply(ctx context.Context, ev *Evaluation) (models.EventKind, models.DetectionMethod, bool) {
	if ev.Input.Weight == nil || r.Baseline == nil {
		return "", "", false
	}
	current := *ev.Input.Weight
	ev.WeightData = &models.WeightData{Current: current, Threshold: ev.Threshold}

	lookupCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	previous, err := r.Baseline.LastWeight(lookupCtx, ev.Input.Serial)
	if err != nil {
		monitoring.SecondaryFailuresTotal.WithLabelValues("weight_baseline").Inc()
		nuts.L.Warnf("[Classifier] %s: weight baseline unavailable, falling back: %v", ev.Input.Serial, err)
		return "", "", false
	}
	if previous == nil {
		// first report: no baseline, not a zero delta
		return "", "", false
	}

	delta := current - *previous
	ev.WeightData.Previous = previous
	ev.WeightData.Delta = &delta
	if math.Abs(delta) < ev.Threshold {
		return "", "", false
	}
	ev.WeightData.Detected = true
	if delta > 0 {
		return models.EventKindDelivery, models.DetectionWeightSensor, true
	}
	return models.EventKindRemoval, models.DetectionWeightSensor, true
}

// ReedSensorRule maps the door contact onto open or close
type ReedSensorRule struct{}

func (ReedSensorRule) Name() string { return "reed_sensor" }

func (ReedSensorRule) Apply(ctx context.Context, ev *Evaluation) (models.EventKind, models.DetectionMethod, bool) {
	if ev.Input.ReedSensor == nil {
		return "", "", false
	}
	if *ev.Input.ReedSensor {
		return models.EventKindOpen, models.DetectionReedSensor, true
	}
	return models.EventKindClose, models.DetectionReedSensor, true
}
