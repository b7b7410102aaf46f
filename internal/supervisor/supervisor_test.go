package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	listenErr error
	stop      chan struct{}
	once      sync.Once
	shutdowns atomic.Int32
}

func newFakeServer(listenErr error) *fakeServer {
	return &fakeServer{listenErr: listenErr, stop: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.once.Do(func() { close(f.stop) })
	return nil
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	srv := newFakeServer(nil)
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.Equal(t, int32(1), srv.shutdowns.Load())
	assert.Equal(t, "http-server", svc.String())
}

func TestHTTPServiceListenFailure(t *testing.T) {
	boom := errors.New("address in use")
	svc := NewHTTPService(newFakeServer(boom), 0)

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

type countingGC struct {
	calls atomic.Int32
	err   error
}

func (c *countingGC) RunGC(float64) error {
	c.calls.Add(1)
	return c.err
}

func TestGCServiceRunsOnInterval(t *testing.T) {
	for name, gcErr := range map[string]error{"ok": nil, "failing": errors.New("busy")} {
		t.Run(name, func(t *testing.T) {
			target := &countingGC{err: gcErr}
			svc := NewGCService("score-cache-gc", target, 5*time.Millisecond)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- svc.Serve(ctx) }()

			assert.Eventually(t, func() bool { return target.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
			cancel()
			assert.ErrorIs(t, <-done, context.Canceled)
		})
	}
}

func TestSupervisorStopsServices(t *testing.T) {
	srv := newFakeServer(nil)
	gc := &countingGC{}

	sup := New("verifai-test", Config{ShutdownTimeout: time.Second})
	sup.Add(NewHTTPService(srv, time.Second))
	sup.Add(NewGCService("gc", gc, time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, sup) }()

	assert.Eventually(t, func() bool { return gc.calls.Load() > 0 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("supervisor did not stop")
	}
	assert.Equal(t, int32(1), srv.shutdowns.Load())
}
