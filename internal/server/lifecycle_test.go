package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/flapper/internal/config"
	"github.com/cory-johannsen/flapper/internal/game/room"
	"github.com/cory-johannsen/flapper/internal/relay"
	"github.com/cory-johannsen/flapper/internal/transport/ws"
)

// blockingService blocks in Start until Stop and records the stop order.
type blockingService struct {
	name    string
	started chan struct{}
	done    chan struct{}
	once    sync.Once
	order   *stopOrder
}

type stopOrder struct {
	mu    sync.Mutex
	names []string
}

func (o *stopOrder) add(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, name)
}

func (o *stopOrder) get() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.names...)
}

func newBlockingService(name string, order *stopOrder) *blockingService {
	return &blockingService{
		name:    name,
		started: make(chan struct{}),
		done:    make(chan struct{}),
		order:   order,
	}
}

func (b *blockingService) Start() error {
	close(b.started)
	<-b.done
	return nil
}

func (b *blockingService) Stop() {
	b.once.Do(func() {
		b.order.add(b.name)
		close(b.done)
	})
}

func waitStarted(t *testing.T, svcs ...*blockingService) {
	t.Helper()
	for _, s := range svcs {
		select {
		case <-s.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("service %s did not start", s.name)
		}
	}
}

func TestLifecycle_CancelStopsInReverseOrder(t *testing.T) {
	order := &stopOrder{}
	lc := NewLifecycle(zaptest.NewLogger(t))
	first := newBlockingService("first", order)
	second := newBlockingService("second", order)
	lc.Add("first", first)
	lc.Add("second", second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	waitStarted(t, first, second)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.Equal(t, []string{"second", "first"}, order.get())
}

func TestLifecycle_ServiceFailureReturnsError(t *testing.T) {
	order := &stopOrder{}
	lc := NewLifecycle(zaptest.NewLogger(t))
	steady := newBlockingService("steady", order)
	boom := errors.New("bind failed")

	lc.Add("steady", steady)
	lc.Add("http", &FuncService{StartFn: func() error { return boom }})

	done := make(chan error, 1)
	go func() { done <- lc.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "service http")
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.Equal(t, []string{"steady"}, order.get())
}

func TestLifecycle_CleanExitShutsDownOthers(t *testing.T) {
	order := &stopOrder{}
	lc := NewLifecycle(zaptest.NewLogger(t))
	steady := newBlockingService("steady", order)
	lc.Add("steady", steady)
	lc.Add("oneshot", &FuncService{StartFn: func() error { return nil }})

	err := lc.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"steady"}, order.get())
}

func TestLifecycle_CancelledContextStopsHTTPServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	svc := relay.NewService(room.NewRegistry(), logger)
	httpServer := ws.NewServer(
		config.HTTPConfig{Host: "127.0.0.1", ShutdownTimeout: time.Second},
		config.WebSocketConfig{PongWait: time.Second, WriteWait: time.Second},
		svc, logger,
	)

	served := make(chan error, 1)
	lc := NewLifecycle(logger)
	lc.Add("http", &FuncService{
		StartFn: func() error {
			err := httpServer.ListenAndServe()
			served <- err
			return err
		},
		StopFn: httpServer.Stop,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, lc.Run(ctx))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("http server still serving after Run returned")
	}
	assert.False(t, httpServer.IsRunning())
}

func TestFuncService(t *testing.T) {
	started := false
	stopped := false

	svc := &FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func() {
			stopped = true
		},
	}

	require.NoError(t, svc.Start())
	assert.True(t, started)

	svc.Stop()
	assert.True(t, stopped)
}

func TestFuncService_NilStop(t *testing.T) {
	svc := &FuncService{StartFn: func() error { return nil }}
	assert.NotPanics(t, svc.Stop)
}
