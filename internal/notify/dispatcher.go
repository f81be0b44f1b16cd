// FilePath: internal/notify/dispatcher.go
package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/monitoring"
	"github.com/mailguard/ingest/internal/repository"
	gobreaker "github.com/sony/gobreaker/v2"
	nuts "github.com/vaudience/go-nuts"
)

// Outcome of one notification job
const (
	OutcomeSent        = "sent"
	OutcomeDisabled    = "disabled"
	OutcomeDuplicate   = "duplicate"
	OutcomeNoRecipient = "no_recipient"
	OutcomeFailed      = "failed"
	OutcomeDropped     = "dropped"
)

// Options tunes the dispatcher
type Options struct {
	Workers       int
	QueueSize     int
	MaxAttempts   int
	Backoff       time.Duration
	ImageGrace    time.Duration
	Timeout       time.Duration
	PublicBaseURL string
}

// Dispatcher sends notifications for persisted canonical events on a bounded worker pool
type Dispatcher struct {
	events    repository.EventRepository
	images    repository.ImageRepository
	prefs     repository.PreferenceRepository
	provider  IdentityProvider
	transport Transport
	opts      Options
	queue     chan models.NotificationJob

	mu      sync.Mutex
	pending map[string]*time.Timer
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(store *repository.Store, provider IdentityProvider, transport Transport, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Dispatcher{
		events:    store.Events,
		images:    store.Images,
		prefs:     store.Preferences,
		provider:  provider,
		transport: transport,
		opts:      opts,
		queue:     make(chan models.NotificationJob, opts.QueueSize),
		pending:   make(map[string]*time.Timer),
		sleep:     sleepContext,
	}
}

// ImageURL returns the public locator of an image
func ImageURL(baseURL, imageID string) string {
	return strings.TrimRight(baseURL, "/") + "/api/v1/images/" + imageID
}

// Schedule queues a job; delivery jobs without an image wait for a late upload first
func (d *Dispatcher) Schedule(job models.NotificationJob) {
	if job.Kind == models.EventKindDelivery && job.ImageID == nil && d.opts.ImageGrace > 0 {
		d.enqueueAfter(job, d.opts.ImageGrace)
		return
	}
	d.Enqueue(job)
}

// Enqueue hands a job to the workers without blocking; a full queue drops the job
func (d *Dispatcher) Enqueue(job models.NotificationJob) bool {
	d.mu.Lock()
	if t, ok := d.pending[job.EventID]; ok {
		// an image arrived during the grace period; send now
		t.Stop()
		delete(d.pending, job.EventID)
	}
	d.mu.Unlock()

	select {
	case d.queue <- job:
		nuts.L.Debugf("[Notify] Queued %s notification for event %s", job.Kind, job.EventID)
		return true
	default:
		monitoring.NotificationsTotal.WithLabelValues(OutcomeDropped).Inc()
		nuts.L.Warnf("[Notify] Queue full, dropping notification for event %s", job.EventID)
		return false
	}
}

func (d *Dispatcher) enqueueAfter(job models.NotificationJob, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pending[job.EventID]; ok {
		return
	}
	d.pending[job.EventID] = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.pending, job.EventID)
		d.mu.Unlock()
		d.Enqueue(job)
	})
}

// Serve runs the worker pool until ctx is done
func (d *Dispatcher) Serve(ctx context.Context) error {
	nuts.L.Infof("[Notify] Starting %d notification workers", d.opts.Workers)
	var wg sync.WaitGroup
	for i := 0; i < d.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-d.queue:
					d.Process(ctx, job)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) String() string {
	return "notification-dispatcher"
}

// Process runs one job to completion; every failure is logged and swallowed
func (d *Dispatcher) Process(ctx context.Context, job models.NotificationJob) string {
	outcome := d.process(ctx, job)
	monitoring.NotificationsTotal.WithLabelValues(outcome).Inc()
	return outcome
}

func (d *Dispatcher) process(ctx context.Context, job models.NotificationJob) string {
	var pref *models.NotificationPreference
	err := d.withTimeout(ctx, func(ctx context.Context) (err error) {
		pref, err = d.prefs.Get(ctx, job.AccountID)
		return err
	})
	if err != nil && !errors.IsNotFound(err) {
		nuts.L.Errorf("[Notify] Failed to load preferences of %s for event %s: %v", job.AccountID, job.EventID, err)
		return OutcomeFailed
	}
	if !pref.Allows(job.Kind) {
		nuts.L.Debugf("[Notify] %s notifications disabled for account %s", job.Kind, job.AccountID)
		return OutcomeDisabled
	}

	var claimed bool
	err = d.withTimeout(ctx, func(ctx context.Context) (err error) {
		claimed, err = d.events.MarkNotified(ctx, job.EventID, time.Now().UTC())
		return err
	})
	if err != nil {
		nuts.L.Errorf("[Notify] Failed to claim event %s: %v", job.EventID, err)
		return OutcomeFailed
	}
	if !claimed {
		return OutcomeDuplicate
	}

	var address string
	err = d.withTimeout(ctx, func(ctx context.Context) (err error) {
		address, err = d.provider.ResolveContactAddress(ctx, job.AccountID)
		return err
	})
	if err != nil || address == "" {
		nuts.L.Warnf("[Notify] No contact address for account %s (event %s): %v", job.AccountID, job.EventID, err)
		return OutcomeNoRecipient
	}

	imageURL := d.imageURL(ctx, job)
	n, err := Render(job, address, imageURL)
	if err != nil {
		nuts.L.Errorf("[Notify] Failed to render notification for event %s: %v", job.EventID, err)
		return OutcomeFailed
	}

	if err := d.send(ctx, n); err != nil {
		nuts.L.Errorf("[Notify] Giving up on event %s: %v", job.EventID, err)
		return OutcomeFailed
	}
	nuts.L.Infof("[Notify] Sent %s notification for event %s", job.Kind, job.EventID)
	return OutcomeSent
}

func (d *Dispatcher) imageURL(ctx context.Context, job models.NotificationJob) string {
	if job.ImageID != nil {
		return ImageURL(d.opts.PublicBaseURL, *job.ImageID)
	}
	var img *models.CapturedImage
	err := d.withTimeout(ctx, func(ctx context.Context) (err error) {
		img, err = d.images.GetByEvent(ctx, job.EventID)
		return err
	})
	if err != nil {
		if !errors.IsNotFound(err) {
			nuts.L.Warnf("[Notify] Image lookup for event %s failed: %v", job.EventID, err)
		}
		return ""
	}
	return ImageURL(d.opts.PublicBaseURL, img.ID)
}

// send retries with exponential backoff; an open breaker ends the attempts
func (d *Dispatcher) send(ctx context.Context, n *models.Notification) error {
	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		lastErr = d.withTimeout(ctx, func(ctx context.Context) error {
			return d.transport.Send(ctx, n)
		})
		if lastErr == nil {
			return nil
		}
		if stderrors.Is(lastErr, gobreaker.ErrOpenState) || stderrors.Is(lastErr, gobreaker.ErrTooManyRequests) {
			break
		}
		if attempt < d.opts.MaxAttempts {
			nuts.L.Warnf("[Notify] Attempt %d/%d failed: %v", attempt, d.opts.MaxAttempts, lastErr)
			if err := d.sleep(ctx, d.opts.Backoff*time.Duration(1<<(attempt-1))); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("notification not delivered: %w", lastErr)
}

func (d *Dispatcher) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()
	return fn(opCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
