package main

import (
	"context"
	"time"

	"github.com/blockedby/channel-map/internal/logger"
)

type eventHandler interface {
	OnGroupEvent(ctx context.Context) error
}

// regenerator coalesces bursts of triggers into one regeneration.
type regenerator struct {
	handler eventHandler
	quiet   time.Duration
	pending chan struct{}
	log     *logger.Logger
}

func newRegenerator(h eventHandler, log *logger.Logger) *regenerator {
	return &regenerator{
		handler: h,
		quiet:   regenerateQuiet,
		pending: make(chan struct{}, 1),
		log:     log,
	}
}

func (r *regenerator) trigger() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

func (r *regenerator) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.pending:
		}

		// wait until the burst is over
		timer := time.NewTimer(r.quiet)
	quiet:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-r.pending:
				timer.Reset(r.quiet)
			case <-timer.C:
				break quiet
			}
		}

		if err := r.handler.OnGroupEvent(ctx); err != nil {
			r.log.Warn().Err(err).Msg("failed to regenerate map")
			continue
		}
		r.log.Info().Msg("map regenerated after data change")
	}
}
