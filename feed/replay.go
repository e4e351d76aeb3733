package feed

import (
	"context"
	"sync"
	"time"

	"github.com/alpaquero/alpaquero/market"
)

// Replay feeds historical series through the live path, so a paper
// session exercises the exact code a real feed would. Series are
// merged by timestamp; on equal timestamps the argument order decides
// who goes first. A positive delay paces emission per timestamp.
type Replay struct {
	bars chan market.Bar
	done chan struct{}

	mu   sync.Mutex
	err  error
	once sync.Once
}

// StartReplay begins emitting immediately. The feed ends when every
// series is drained, the context is canceled, or Close is called.
func StartReplay(ctx context.Context, delay time.Duration, series ...*market.Series) *Replay {
	r := &Replay{
		bars: make(chan market.Bar),
		done: make(chan struct{}),
	}
	go r.run(ctx, delay, series)
	return r
}

func (r *Replay) Bars() <-chan market.Bar { return r.bars }

func (r *Replay) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Replay) Close() error {
	r.once.Do(func() { close(r.done) })
	return nil
}

func (r *Replay) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *Replay) run(ctx context.Context, delay time.Duration, series []*market.Series) {
	defer close(r.bars)

	idx := make([]int, len(series))
	var timer *time.Timer
	if delay > 0 {
		timer = time.NewTimer(0)
		defer timer.Stop()
	}

	for {
		// Next timestamp across all series heads.
		var ts time.Time
		found := false
		for i, s := range series {
			if idx[i] >= s.Len() {
				continue
			}
			if t := s.At(idx[i]).Time; !found || t.Before(ts) {
				ts, found = t, true
			}
		}
		if !found {
			return
		}

		if timer != nil {
			timer.Reset(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				r.setErr(ctx.Err())
				return
			case <-r.done:
				return
			}
		}

		for i, s := range series {
			if idx[i] >= s.Len() || !s.At(idx[i]).Time.Equal(ts) {
				continue
			}
			b := s.At(idx[i])
			idx[i]++

			select {
			case r.bars <- b:
			case <-ctx.Done():
				r.setErr(ctx.Err())
				return
			case <-r.done:
				return
			}
		}
	}
}
