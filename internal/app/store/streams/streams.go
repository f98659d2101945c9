// Package streams turns Mongo change streams into snapshot subscriptions.
//
// Every subscribe* primitive in the store layer has the same shape: deliver
// the current result set immediately, then re-deliver the full result set
// whenever the underlying collection changes. Consumers always see whole
// snapshots, never deltas, so a late or dropped event can only delay an
// update, not corrupt state.
package streams

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// pollInterval is the fallback cadence when change streams are unavailable
// (standalone mongod without a replica set).
const pollInterval = 3 * time.Second

const (
	backoffMin = time.Second
	backoffMax = 30 * time.Second
)

// Loader fetches the current snapshot.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Watcher opens a change stream over the collection(s) the loader reads.
type Watcher func(ctx context.Context) (*mongo.ChangeStream, error)

// Snapshot starts a snapshot subscription and returns its channel. The
// channel carries the latest snapshot (stale queued snapshots are replaced,
// not queued behind) and is closed when ctx ends. Transient load and watch
// failures are retried with backoff; they never close the channel.
func Snapshot[T any](ctx context.Context, log *zap.Logger, name string, watch Watcher, load Loader[T]) <-chan []T {
	out := make(chan []T, 1)

	go func() {
		defer close(out)

		// Initial snapshot, retried until it succeeds or ctx ends.
		if !loadAndSend(ctx, log, name, load, out) {
			return
		}

		backoff := backoffMin
		for {
			cs, err := watch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("change stream unavailable, polling",
					zap.String("stream", name), zap.Error(err))
				if !poll(ctx, log, name, load, out) {
					return
				}
				continue
			}

			backoff = backoffMin
			for cs.Next(ctx) {
				// Coalesce bursts: drain whatever is immediately pending
				// before reloading once.
				for cs.TryNext(ctx) {
				}
				if !loadAndSend(ctx, log, name, load, out) {
					cs.Close(context.Background())
					return
				}
			}
			cs.Close(context.Background())

			if ctx.Err() != nil {
				return
			}
			log.Warn("change stream interrupted, retrying",
				zap.String("stream", name), zap.Error(cs.Err()),
				zap.Duration("backoff", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff *= 2; backoff > backoffMax {
				backoff = backoffMax
			}
		}
	}()

	return out
}

// Changes emits a coalesced signal whenever the watched collection changes.
// It carries no payload; the consumer requeries on its own terms. When a
// change stream cannot be opened the channel stays silent until the next
// successful open, so consumers keep their own fallback cadence. The channel
// is closed when ctx ends.
func Changes(ctx context.Context, log *zap.Logger, name string, watch Watcher) <-chan struct{} {
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)

		backoff := backoffMin
		for {
			cs, err := watch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("change signal unavailable, retrying",
					zap.String("stream", name), zap.Error(err),
					zap.Duration("backoff", backoff))
				if !sleep(ctx, backoff) {
					return
				}
				if backoff *= 2; backoff > backoffMax {
					backoff = backoffMax
				}
				continue
			}

			backoff = backoffMin
			for cs.Next(ctx) {
				for cs.TryNext(ctx) {
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
			cs.Close(context.Background())

			if ctx.Err() != nil {
				return
			}
		}
	}()

	return out
}

// poll reloads on a fixed ticker until ctx ends. Returns false when ctx is
// done. Used only when change streams cannot be opened.
func poll[T any](ctx context.Context, log *zap.Logger, name string, load Loader[T], out chan []T) bool {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if !loadAndSend(ctx, log, name, load, out) {
				return false
			}
		}
	}
}

func loadAndSend[T any](ctx context.Context, log *zap.Logger, name string, load Loader[T], out chan []T) bool {
	backoff := backoffMin
	for {
		snap, err := load(ctx)
		if err == nil {
			send(out, snap)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		log.Warn("snapshot load failed, retrying",
			zap.String("stream", name), zap.Error(err),
			zap.Duration("backoff", backoff))
		if !sleep(ctx, backoff) {
			return false
		}
		if backoff *= 2; backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

// send delivers the latest snapshot, replacing any undelivered one.
func send[T any](ch chan []T, v []T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
