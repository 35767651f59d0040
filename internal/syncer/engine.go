// Package syncer maintains a locally consistent, time-ordered view of a room's
// messages, live. The engine is stateless across snapshots except for the log
// itself: every delivery replaces the local set wholesale and re-sorts it,
// trading bandwidth for immunity to missed-diff bugs.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ctins/internal/chat"
	"github.com/vovakirdan/ctins/internal/store"
)

// ConnState is the engine's connection-state signal.
type ConnState int

const (
	// StateConnecting means the subscription is being (re)opened.
	StateConnecting ConnState = iota
	// StateConnected means the live feed is delivering snapshots.
	StateConnected
	// StateError means the live feed is broken; the last-known log is
	// retained for display while the engine retries.
	StateError
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Update carries the ordered log and connection state to the consumer.
type Update struct {
	Messages []chat.Message
	State    ConnState
}

var errRoomChanged = errors.New("room changed")

const (
	defaultRetryMin = time.Second
	defaultRetryMax = 30 * time.Second
)

// Engine reconciles store snapshots into an ordered, deduplicated message
// log and reports connection state. One engine serves one consumer.
type Engine struct {
	store store.Store
	log   *zerolog.Logger

	retryMin time.Duration
	retryMax time.Duration

	mu      sync.Mutex
	room    string
	gen     int
	ordered []chat.Message
	state   ConnState

	updates     chan Update
	subErr      chan error
	roomChanged chan struct{}
}

// New creates an engine for the given room. Run must be called for snapshots
// to flow.
func New(st store.Store, room string, logger *zerolog.Logger) *Engine {
	return &Engine{
		store:       st,
		log:         logger,
		retryMin:    defaultRetryMin,
		retryMax:    defaultRetryMax,
		room:        room,
		state:       StateConnecting,
		updates:     make(chan Update, 1),
		subErr:      make(chan error, 1),
		roomChanged: make(chan struct{}, 1),
	}
}

// Updates returns the consumer channel. It carries the latest ordered log
// and state; intermediate updates may be dropped in favor of newer ones. The
// channel is closed when Run returns.
func (e *Engine) Updates() <-chan Update {
	return e.updates
}

// Messages returns a copy of the current ordered log.
func (e *Engine) Messages() []chat.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]chat.Message, len(e.ordered))
	copy(out, e.ordered)
	return out
}

// State returns the current connection state.
func (e *Engine) State() ConnState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Room returns the room the engine is currently attached to.
func (e *Engine) Room() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room
}

// SwitchRoom detaches from the current room and re-subscribes to another.
// The local log is cleared; deliveries from the old subscription can never
// interleave with the new one.
func (e *Engine) SwitchRoom(room string) {
	e.mu.Lock()
	if room == e.room {
		e.mu.Unlock()
		return
	}
	e.room = room
	e.gen++ // invalidates in-flight deliveries of the old subscription
	e.ordered = nil
	e.state = StateConnecting
	e.mu.Unlock()

	select {
	case e.roomChanged <- struct{}{}:
	default:
	}
}

// Run drives the subscription until ctx is done, reopening it with
// exponential backoff after failures. The existing log is retained across
// failures. Closes the updates channel on return.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.updates)

	backoff := e.retryMin
	for {
		err := e.runSubscription(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, errRoomChanged):
			backoff = e.retryMin
			continue
		}

		e.log.Warn().Err(err).Str("room", e.Room()).
			Dur("retry_in", backoff).Msg("subscription lost")
		e.setState(StateError)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.roomChanged:
			backoff = e.retryMin
			continue
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, e.retryMax)
	}
}

// runSubscription opens one subscription and blocks until it dies, the room
// changes, or ctx is done.
func (e *Engine) runSubscription(ctx context.Context) error {
	e.setState(StateConnecting)

	e.mu.Lock()
	room := e.room
	gen := e.gen
	e.mu.Unlock()

	// Drop any error left over from a previous subscription.
	select {
	case <-e.subErr:
	default:
	}

	cancel, err := e.store.Subscribe(ctx, room,
		func(snap store.Snapshot) { e.apply(gen, snap) },
		func(err error) {
			select {
			case e.subErr <- err:
			default:
			}
		})
	if err != nil {
		return err
	}
	defer cancel()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.roomChanged:
		return errRoomChanged
	case err := <-e.subErr:
		return err
	}
}

// apply reconciles one snapshot: wholesale replacement keyed by id, then a
// stable time sort. Deliveries from a stale generation are dropped.
func (e *Engine) apply(gen int, snap store.Snapshot) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}

	msgs := dedupByID(snap.Messages())
	chat.SortByTime(msgs)
	e.ordered = msgs
	e.state = StateConnected

	update := Update{Messages: e.snapshotLocked(), State: e.state}
	e.mu.Unlock()

	e.publish(update)
}

func (e *Engine) setState(s ConnState) {
	e.mu.Lock()
	e.state = s
	update := Update{Messages: e.snapshotLocked(), State: s}
	e.mu.Unlock()
	e.publish(update)
}

// snapshotLocked copies the ordered log. Caller holds the lock.
func (e *Engine) snapshotLocked() []chat.Message {
	out := make([]chat.Message, len(e.ordered))
	copy(out, e.ordered)
	return out
}

// publish delivers latest-wins: a slow consumer sees the newest update, not
// a backlog.
func (e *Engine) publish(u Update) {
	for {
		select {
		case e.updates <- u:
			return
		default:
		}
		select {
		case <-e.updates:
		default:
		}
	}
}

// dedupByID keeps one entry per id. A later duplicate replaces the earlier
// one's content but keeps its position.
func dedupByID(msgs []chat.Message) []chat.Message {
	seen := make(map[string]int, len(msgs))
	out := msgs[:0]
	for _, m := range msgs {
		if i, ok := seen[m.ID]; ok {
			out[i] = m
			continue
		}
		seen[m.ID] = len(out)
		out = append(out, m)
	}
	return out
}
