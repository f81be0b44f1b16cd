package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"github.com/mailguard/ingest/internal/config"
	"github.com/mailguard/ingest/internal/notify"
	"github.com/mailguard/ingest/internal/ratelimit"
)

type fakeHTTPServer struct {
	started  chan struct{}
	stop     chan struct{}
	listen   error
	shutdown int
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{started: make(chan struct{}), stop: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listen != nil {
		return f.listen
	}
	close(f.started)
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.shutdown++
	close(f.stop)
	return nil
}

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	fake := newFakeHTTPServer()
	svc := newHTTPService(fake, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	select {
	case <-fake.started:
	case <-time.After(time.Second):
		t.Fatal("listener did not start")
	}
	cancel()

	select {
	case err := <-done:
		if !stderrors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if fake.shutdown != 1 {
		t.Errorf("Shutdown called %d times, want 1", fake.shutdown)
	}
	if svc.String() != "http-server" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestHTTPServiceListenError(t *testing.T) {
	fake := newFakeHTTPServer()
	fake.listen = stderrors.New("address in use")

	err := newHTTPService(fake, 0).Serve(context.Background())
	if err == nil {
		t.Fatal("expected listen error")
	}
}

func TestBuildDependenciesInMemory(t *testing.T) {
	cfg := &config.Config{
		Database:  config.DatabaseConfig{Driver: "memory"},
		BlobStore: config.BlobStoreConfig{Driver: "filesystem", BasePath: t.TempDir()},
		Notification: config.NotificationConfig{
			Transport:        "log",
			BreakerFailures:  3,
			BreakerOpenFor:   time.Second,
			StaticRecipients: map[string]string{"acct_1": "owner@example.com"},
		},
	}

	deps, err := buildDependencies(context.Background(), cfg)
	if err != nil {
		t.Fatalf("buildDependencies() error = %v", err)
	}
	defer deps.Close()

	if deps.store == nil || deps.store.Events == nil {
		t.Fatal("store not wired")
	}
	if deps.blobs == nil {
		t.Fatal("blob store not wired")
	}
	if _, ok := deps.limiter.(*ratelimit.MemoryLimiter); !ok {
		t.Errorf("limiter = %T, want *ratelimit.MemoryLimiter", deps.limiter)
	}
	if _, ok := deps.transport.(*notify.BreakerTransport); !ok {
		t.Errorf("transport = %T, want *notify.BreakerTransport", deps.transport)
	}
	addr, err := deps.provider.ResolveContactAddress(context.Background(), "acct_1")
	if err != nil || addr != "owner@example.com" {
		t.Errorf("ResolveContactAddress() = %q, %v", addr, err)
	}
}
