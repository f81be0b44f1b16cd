package cleanup

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mailguard/ingest/internal/monitoring"
	"github.com/mailguard/ingest/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// Sweep events emitted after each pass
const (
	EventDevicesOffline = "devices.offline"
	EventHealthPruned   = "health.pruned"
	EventStatePruned    = "state.pruned"
)

// Pruner drops expired in-process state and reports how many entries went
type Pruner interface {
	Prune() int
}

// CleanupService periodically marks silent devices offline and prunes old health samples
type CleanupService struct {
	status       repository.StatusRepository
	health       repository.HealthRepository
	offlineAfter time.Duration
	retention    time.Duration
	interval     time.Duration
	timeout      time.Duration
	events       *nuts.EventEmitter
	monitor      *monitoring.Service
	pruners      map[string]Pruner
	now          func() time.Time
}

// New creates a new CleanupService
func New(
	status repository.StatusRepository,
	health repository.HealthRepository,
	offlineAfter, retention, interval, timeout time.Duration,
) *CleanupService {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CleanupService{
		status:       status,
		health:       health,
		offlineAfter: offlineAfter,
		retention:    retention,
		interval:     interval,
		timeout:      timeout,
		events:       nuts.NewEventEmitter(),
		monitor:      monitoring.NewService(),
		pruners:      make(map[string]Pruner),
		now:          time.Now,
	}
}

// Serve sweeps on every interval until ctx is done
func (s *CleanupService) Serve(ctx context.Context) error {
	nuts.L.Infof("[Cleanup] Sweeping every %v (offline after %v, retention %v)", s.interval, s.offlineAfter, s.retention)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				nuts.L.Warnf("[Cleanup] Sweep failed: %v", err)
			}
		}
	}
}

func (s *CleanupService) String() string {
	return "status-sweeper"
}

// Sweep runs one pass. Both steps run even if the first fails.
func (s *CleanupService) Sweep(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	now := s.now().UTC()

	var firstErr error
	if s.offlineAfter > 0 {
		n, err := s.status.MarkOffline(ctx, now.Add(-s.offlineAfter))
		if err != nil {
			firstErr = fmt.Errorf("failed to mark devices offline: %w", err)
		} else if n > 0 {
			nuts.L.Infof("[Cleanup] Marked %d device(s) offline", n)
			s.monitor.RecordEvent(EventDevicesOffline, map[string]string{"count": strconv.FormatInt(n, 10)})
			s.events.Emit(EventDevicesOffline, n)
		}
	}

	if s.retention > 0 {
		n, err := s.health.DeleteOlderThan(ctx, now.Add(-s.retention))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to prune health samples: %w", err)
			}
		} else if n > 0 {
			nuts.L.Infof("[Cleanup] Pruned %d health sample(s)", n)
			s.monitor.RecordEvent(EventHealthPruned, map[string]string{"count": strconv.FormatInt(n, 10)})
			s.events.Emit(EventHealthPruned, n)
		}
	}

	for name, p := range s.pruners {
		if n := p.Prune(); n > 0 {
			nuts.L.Debugf("[Cleanup] Pruned %d expired %s entries", n, name)
			s.events.Emit(EventStatePruned, int64(n))
		}
	}
	return firstErr
}

// AddPruner registers in-process state that is pruned on every sweep.
// Must be called before Serve.
func (s *CleanupService) AddPruner(name string, p Pruner) {
	s.pruners[name] = p
}

// OnCleanup registers a callback for sweep events
func (s *CleanupService) OnCleanup(event string, handler func(count int64)) {
	s.events.On(event, "cleanup_handler", func(args ...interface{}) {
		if len(args) > 0 {
			if n, ok := args[0].(int64); ok {
				handler(n)
			}
		}
	})
}
