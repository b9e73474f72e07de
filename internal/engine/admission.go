package engine

import (
	"context"
	"time"
)

// beginGeneration admits one chat generation: first a bounded queue slot,
// then the single inflight slot. The returned release frees both in order.
func (e *Engine) beginGeneration(ctx context.Context) (func(), error) {
	select {
	case e.queueCh <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(e.cfg.MaxWait):
		return nil, ErrTooBusy()
	}

	acquired := false
	defer func() {
		if !acquired {
			<-e.queueCh
		}
	}()

	select {
	case e.genCh <- struct{}{}:
		acquired = true
		return func() {
			<-e.genCh
			<-e.queueCh
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(e.cfg.MaxWait):
		return nil, ErrTooBusy()
	}
}
