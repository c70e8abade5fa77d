package ble

import (
	"context"
	"sync"
)

type dialResult[T any] struct {
	conn T
	err  error
}

// awaitDial runs dial in the background and waits for it or for ctx. Some
// transports cannot abort a connect attempt, so a dial that succeeds after
// ctx ended is handed to drop instead of being leaked.
func awaitDial[T any](ctx context.Context, dial func() (T, error), drop func(T)) (T, error) {
	ch := make(chan dialResult[T], 1)
	go func() {
		c, err := dial()
		ch <- dialResult[T]{c, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if late := <-ch; late.err == nil {
				drop(late.conn)
			}
		}()
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.conn, r.err
	}
}

// scanFilter drops repeated advertisements. A peripheral first seen without
// a name or the cloud service is let through again once either shows up,
// since names often arrive only in the scan response.
type scanFilter struct {
	mu   sync.Mutex
	seen map[string]bool // id -> name or cloud service already reported
}

func newScanFilter() *scanFilter {
	return &scanFilter{seen: make(map[string]bool)}
}

func (f *scanFilter) admit(p Peripheral) bool {
	identified := p.Name != "" || p.IsCloud()
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.seen[p.ID]
	if ok && (prev || !identified) {
		return false
	}
	f.seen[p.ID] = identified
	return true
}
