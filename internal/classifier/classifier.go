// FilePath: internal/classifier/classifier.go
package classifier

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// DefaultThreshold is the weight change in grams that counts as an item
const DefaultThreshold = 50.0

// Input is the raw signal set of one telemetry report
type Input struct {
	Serial     string
	ReedSensor *bool
	Label      string
	MethodHint string
	Weight     *float64
	Threshold  *float64
}

// Decision is the classification of one report
type Decision struct {
	Kind       models.EventKind
	Method     models.DetectionMethod
	Rule       string
	WeightData *models.WeightData
}

// BaselineSource returns the most recent prior weight of a serial, or nil if there is none
type BaselineSource interface {
	LastWeight(ctx context.Context, serial string) (*float64, error)
}

// Evaluation carries state between rules of one classification
type Evaluation struct {
	Input      Input
	Threshold  float64
	WeightData *models.WeightData
}

// Rule is one step of the classification pipeline; ok=false passes to the next rule
type Rule interface {
	Name() string
	Apply(ctx context.Context, ev *Evaluation) (kind models.EventKind, method models.DetectionMethod, ok bool)
}

// Classifier runs rules in order and returns the first decision
type Classifier struct {
	rules            []Rule
	defaultThreshold float64
}

// New builds the standard pipeline: explicit label, weight delta, reed sensor
func New(baseline BaselineSource, defaultThreshold float64, timeout time.Duration) *Classifier {
	return NewWithRules(defaultThreshold,
		ExplicitLabelRule{},
		&WeightDeltaRule{Baseline: baseline, Timeout: timeout},
		ReedSensorRule{},
	)
}

// NewWithRules builds a classifier from an explicit rule list
func NewWithRules(defaultThreshold float64, rules ...Rule) *Classifier {
	if defaultThreshold <= 0 {
		defaultThreshold = DefaultThreshold
	}
	return &Classifier{rules: rules, defaultThreshold: defaultThreshold}
}

// Classify always returns a concrete kind, or a validation error when no signal is usable
func (c *Classifier) Classify(ctx context.Context, in Input) (*Decision, error) {
	if in.Label == "" && in.ReedSensor == nil {
		return nil, errors.NewValidationError("event_data.reed_sensor or event_data.event_type is required", nil).
			WithDetails(map[string]string{"field": "event_data.reed_sensor"})
	}

	ev := &Evaluation{Input: in, Threshold: c.defaultThreshold}
	if in.Threshold != nil && *in.Threshold > 0 {
		ev.Threshold = *in.Threshold
	}

	for _, rule := range c.rules {
		kind, method, ok := rule.Apply(ctx, ev)
		if !ok {
			continue
		}
		nuts.L.Debugf("[Classifier] %s: %s via %s (rule %s)", in.Serial, kind, method, rule.Name())
		return &Decision{Kind: kind, Method: method, Rule: rule.Name(), WeightData: ev.WeightData}, nil
	}

	return nil, errors.NewValidationError("event_data.event_type not recognized and no reed_sensor value given", nil).
		WithDetails(map[string]string{"field": "event_data.event_type", "value": in.Label})
}

// StatusBaseline reads the prior weight from the device status snapshot
type StatusBaseline struct {
	Status repository.StatusRepository
}

func (b StatusBaseline) LastWeight(ctx context.Context, serial string) (*float64, error) {
	status, err := b.Status.Get(ctx, serial)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return status.LastWeight, nil
}
