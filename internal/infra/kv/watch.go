package kv

import (
	"bytes"
	"context"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/port"
)

// Fetcher reads the current snapshot of a path.
type Fetcher func(ctx context.Context) (port.Snapshot, error)

// PollWatch turns repeated reads into a change feed. The first snapshot is
// always delivered; later ones only when the encoded value changed. A read
// error is delivered once and ends the feed. The channel closes when ctx is
// done.
func PollWatch(ctx context.Context, interval time.Duration, path string, fetch Fetcher) <-chan port.Snapshot {
	ch := make(chan port.Snapshot, 1)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last []byte
		first := true
		for {
			snap, err := fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					send(ctx, ch, port.Snapshot{Path: path, Err: err})
				}
				return
			}
			if first || !bytes.Equal(last, snap.Value) {
				if !send(ctx, ch, snap) {
					return
				}
				last = snap.Value
				first = false
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return ch
}

func send(ctx context.Context, ch chan<- port.Snapshot, s port.Snapshot) bool {
	select {
	case ch <- s:
		return true
	case <-ctx.Done():
		return false
	}
}
