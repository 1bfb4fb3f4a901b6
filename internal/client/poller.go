package client

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// poller emulates a standing query over a request/response backend:
// it re-fetches on a fixed interval and invokes apply only when the
// encoded result actually changed. The first successful fetch always
// delivers.
type poller struct {
	interval time.Duration
	fetch    func(ctx context.Context) (interface{}, error)
	apply    func(result interface{})
	cancel   context.CancelFunc
}

func newPoller(interval time.Duration, fetch func(ctx context.Context) (interface{}, error), apply func(interface{})) *poller {
	return &poller{interval: interval, fetch: fetch, apply: apply}
}

// start runs the poll loop until stop is called. Fetch errors are
// skipped; the next tick retries.
func (p *poller) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go func() {
		var last []byte
		deliver := func() {
			result, err := p.fetch(ctx)
			if err != nil || ctx.Err() != nil {
				// A response that lands after stop is ignored so a
				// stale session cannot corrupt current state.
				return
			}
			encoded, err := json.Marshal(result)
			if err != nil {
				return
			}
			if last != nil && bytes.Equal(last, encoded) {
				return
			}
			last = encoded
			p.apply(result)
		}

		deliver()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deliver()
			}
		}
	}()
}

func (p *poller) stop() {
	if p.cancel != nil {
		p.cancel()
	}
}
