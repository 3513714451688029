package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/blockedby/channel-map/internal/logger"
)

type countingHandler struct {
	calls atomic.Int32
}

func (h *countingHandler) OnGroupEvent(context.Context) error {
	h.calls.Add(1)
	return nil
}

func TestRegenerator_CoalescesBurst(t *testing.T) {
	h := &countingHandler{}
	r := newRegenerator(h, logger.Get())
	r.quiet = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.loop(ctx)

	for i := 0; i < 20; i++ {
		r.trigger()
	}

	assert.Eventually(t, func() bool { return h.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), h.calls.Load())

	r.trigger()
	assert.Eventually(t, func() bool { return h.calls.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestRegenerator_StopsWithContext(t *testing.T) {
	h := &countingHandler{}
	r := newRegenerator(h, logger.Get())
	r.quiet = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.loop(ctx)
		close(done)
	}()

	r.trigger()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Zero(t, h.calls.Load())
}
