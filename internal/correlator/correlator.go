// FilePath: internal/correlator/correlator.go
package correlator

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// DefaultWindow is the time span on either side of a capture that may hold its event
const DefaultWindow = 5 * time.Minute

// Strategy decides whether an event belongs to the device of an image
type Strategy struct {
	Name    string
	Matches func(img *models.CapturedImage, ev models.EventRef) bool
}

// Strategies are tried in order; the first one with any candidate wins
var Strategies = []Strategy{
	{
		Name: "device_id",
		Matches: func(img *models.CapturedImage, ev models.EventRef) bool {
			return img.DeviceID != nil && ev.DeviceID != nil && *img.DeviceID == *ev.DeviceID
		},
	},
	{
		Name: "serial",
		Matches: func(img *models.CapturedImage, ev models.EventRef) bool {
			return img.Serial != "" && img.Serial == ev.Serial
		},
	},
}

// Match is the event chosen for an image
type Match struct {
	Event    models.EventRef
	Strategy string
	Distance time.Duration
}

// Best picks the closest event within window using the first strategy that matches anything
func Best(img *models.CapturedImage, candidates []models.EventRef, window time.Duration) *Match {
	for _, strategy := range Strategies {
		var best *Match
		for _, ev := range candidates {
			if !strategy.Matches(img, ev) {
				continue
			}
			distance := absDuration(ev.OccurredAt.Sub(img.CapturedAt))
			if distance > window {
				continue
			}
			if best == nil || distance < best.Distance {
				best = &Match{Event: ev, Strategy: strategy.Name, Distance: distance}
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

// Correlator finds the event an asynchronously uploaded image belongs to
type Correlator struct {
	events  repository.EventRepository
	images  repository.ImageRepository
	window  time.Duration
	timeout time.Duration
}

func New(events repository.EventRepository, images repository.ImageRepository, window, timeout time.Duration) *Correlator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Correlator{events: events, images: images, window: window, timeout: timeout}
}

// Window returns the correlation window
func (c *Correlator) Window() time.Duration {
	return c.window
}

// Correlate returns the best event for img, or nil when nothing matches
func (c *Correlator) Correlate(ctx context.Context, img *models.CapturedImage) (*Match, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	candidates, err := c.events.Find(ctx, models.EventQuery{
		Serial: img.Serial,
		From:   img.CapturedAt.Add(-c.window),
		To:     img.CapturedAt.Add(c.window),
		Kind:   img.Kind,
	})
	if err != nil {
		return nil, err
	}

	match := Best(img, candidates, c.window)
	if match == nil {
		nuts.L.Debugf("[Correlator] No event for image %s of %s among %d candidates", img.ID, img.Serial, len(candidates))
		return nil, nil
	}
	nuts.L.Debugf("[Correlator] Image %s -> event %s (%s, %v)", img.ID, match.Event.ID, match.Strategy, match.Distance)
	return match, nil
}

// AttachPending links unmatched images that were uploaded before event was written.
// An image is only attached when event is its best match.
func (c *Correlator) AttachPending(ctx context.Context, event models.EventRef) ([]*models.CapturedImage, error) {
	listCtx, cancel := context.WithTimeout(ctx, c.timeout)
	pending, err := c.images.ListUnmatched(listCtx, event.Serial, event.OccurredAt.Add(-c.window), event.OccurredAt.Add(c.window))
	cancel()
	if err != nil {
		return nil, err
	}

	attached := []*models.CapturedImage{}
	for _, img := range pending {
		if img.Kind != "" && img.Kind != event.Kind {
			continue
		}
		match, err := c.Correlate(ctx, img)
		if err != nil {
			return attached, err
		}
		if match == nil || match.Event.ID != event.ID {
			continue
		}
		attachCtx, cancel := context.WithTimeout(ctx, c.timeout)
		ok, err := c.images.AttachEvent(attachCtx, img.ID, match.Event, match.Strategy)
		cancel()
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return attached, err
		}
		if ok {
			id, source, strategy := match.Event.ID, match.Event.Source, match.Strategy
			img.EventID, img.EventSource, img.MatchStrategy = &id, &source, &strategy
			attached = append(attached, img)
		}
	}
	return attached, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
