// Package reconcile keeps a locally held game snapshot consistent with the
// authoritative server. The Reconciler is the sole owner and sole writer of
// the snapshot: stream events, timer callbacks, and external resyncs all run
// as closures on one internal goroutine, so each unit of work completes
// before the next is dispatched. Updates that cannot be applied incrementally
// (an event referencing state the snapshot does not contain) fall back to a
// full reload.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/sushigo/live/internal/countdown"
	"github.com/sushigo/live/internal/game"
	"github.com/sushigo/live/internal/selection"
	"github.com/sushigo/live/internal/stream"
)

const defaultGraceDelay = time.Second

// API is what the reconciler needs from the game server's request surface.
type API interface {
	LoadGame(ctx context.Context, id uuid.UUID) (*game.Game, error)
	SelectCards(ctx context.Context, id uuid.UUID, cards []int) error
}

// Subscription is one open push subscription, as the reconciler consumes it.
type Subscription interface {
	On(kind stream.EventType, h stream.Handler)
	OnError(fn func(error))
	Listen()
	Close() error
}

// Dialer opens push subscriptions.
type Dialer interface {
	Subscribe(ctx context.Context, gameID uuid.UUID) (Subscription, error)
}

// StreamDialer adapts a stream.Client to the Dialer interface.
type StreamDialer struct {
	Client *stream.Client
}

func (d StreamDialer) Subscribe(ctx context.Context, gameID uuid.UUID) (Subscription, error) {
	sub, err := d.Client.Subscribe(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// View is the read-only pair handed to the presentation layer: the current
// snapshot with the live selection overlaid, and the countdown seconds (nil
// when no countdown is active).
type View struct {
	Game      game.Game
	Countdown *int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock replaces the wall clock; tests use a fake.
func WithClock(c clockwork.Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

// WithGraceDelay changes the delay between a turnover event and the full
// reload it triggers.
func WithGraceDelay(d time.Duration) Option {
	return func(r *Reconciler) { r.grace = d }
}

// Reconciler orchestrates one mounted game view.
type Reconciler struct {
	api    API
	dialer Dialer
	clock  clockwork.Clock
	grace  time.Duration

	onChange      func(View)
	onRoundOver   func(game.RoundSummary)
	onGameMissing func()

	mu        sync.RWMutex
	snap      game.Game
	sel       *selection.Selector
	lastRound *game.RoundSummary

	cd  *countdown.Controller
	sub Subscription

	gameID uuid.UUID
	ctx    context.Context

	graceMu    sync.Mutex
	graceTimer clockwork.Timer

	cmds chan func()
	done chan struct{}

	mounted     bool
	unmountOnce sync.Once
}

// New builds a reconciler over the given API and stream dialer. Callbacks
// must be registered before Mount.
func New(api API, dialer Dialer, opts ...Option) *Reconciler {
	r := &Reconciler{
		api:    api,
		dialer: dialer,
		clock:  clockwork.NewRealClock(),
		grace:  defaultGraceDelay,
		cmds:   make(chan func(), 64),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnChange registers the callback invoked with a fresh View after every
// state change.
func (r *Reconciler) OnChange(fn func(View)) { r.onChange = fn }

// OnRoundOver registers the callback invoked when a round boundary is
// crossed. The summary drives no snapshot change; surfacing it is up to the
// caller.
func (r *Reconciler) OnRoundOver(fn func(game.RoundSummary)) { r.onRoundOver = fn }

// OnGameMissing registers the callback invoked when a full reload finds the
// game gone; the caller should navigate away.
func (r *Reconciler) OnGameMissing(fn func()) { r.onGameMissing = fn }

// Mount installs the initial snapshot, opens the push subscription, and
// starts processing. ctx bounds the subscription and all reloads.
func (r *Reconciler) Mount(ctx context.Context, gameID uuid.UUID, initial *game.Game) error {
	if initial == nil {
		return fmt.Errorf("mount game %s: nil initial snapshot", gameID)
	}
	if r.mounted {
		return fmt.Errorf("mount game %s: already mounted", gameID)
	}

	r.gameID = gameID
	r.ctx = ctx
	r.snap = initial.Clone()
	r.sel = selection.FromPlayer(r.snap.Player)
	r.cd = countdown.New(r.clock, func() {
		// Runs under the controller's lock; hand the repaint to the loop.
		r.tryEnqueue(r.publish)
	})

	sub, err := r.dialer.Subscribe(ctx, gameID)
	if err != nil {
		return fmt.Errorf("mount game %s: %w", gameID, err)
	}
	r.sub = sub
	r.wireHandlers(sub)
	sub.Listen()

	go r.loop()
	r.mounted = true

	log.Info().Str("game_id", gameID.String()).Int("round", r.snap.Round).Msg("game view mounted")
	return nil
}

// Unmount tears the view down: subscription closed, countdown disposed, the
// pending grace timer stopped, the loop drained. Idempotent. Events or ticks
// that resolve afterwards are no-ops.
func (r *Reconciler) Unmount() {
	r.unmountOnce.Do(func() {
		if r.sub != nil {
			r.sub.Close()
		}
		r.stopGraceTimer()
		if r.cd != nil {
			r.cd.Dispose()
		}
		close(r.done)
		log.Info().Str("game_id", r.gameID.String()).Msg("game view unmounted")
	})
}

// Snapshot returns the current view. The caller owns the result; it shares
// no mutable state with the reconciler.
func (r *Reconciler) Snapshot() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.sel == nil {
		return View{}
	}
	return r.viewLocked()
}

// LastRoundSummary returns the most recent round boundary seen, if any.
func (r *Reconciler) LastRoundSummary() *game.RoundSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastRound == nil {
		return nil
	}
	s := *r.lastRound
	return &s
}

// ToggleCard flips the local selection state of one card. Ids not present in
// the hand are ignored, which keeps the selection a subset of the hand at
// all times. Meaningless once the game is terminal.
func (r *Reconciler) ToggleCard(cardID int) {
	r.mu.Lock()
	if r.snap.Terminal() {
		r.mu.Unlock()
		return
	}
	if _, ok := r.snap.Player.Hand[cardID]; !ok {
		r.mu.Unlock()
		return
	}
	r.sel.Toggle(cardID)
	r.mu.Unlock()
	// Repaint on the loop so the presentation callback is never entered
	// from two goroutines at once.
	r.enqueue(r.publish)
}

// ConfirmSelection submits the current selection. The selection is a pure
// read: local state is not cleared here, and on failure the snapshot stays
// untouched and the error is surfaced. The "ready" state change arrives via
// the player's own cardsselected echo or the next full reload.
func (r *Reconciler) ConfirmSelection(ctx context.Context) error {
	r.mu.RLock()
	if r.sel == nil {
		r.mu.RUnlock()
		return fmt.Errorf("confirm selection: view not mounted")
	}
	cards := r.sel.Selected()
	gameID := r.gameID
	r.mu.RUnlock()

	return r.api.SelectCards(ctx, gameID, cards)
}

// Replace installs an externally supplied snapshot wholesale, rebuilding the
// selection machine (and its multi-select flag) from it.
func (r *Reconciler) Replace(g *game.Game) {
	if g == nil {
		return
	}
	snap := g.Clone()
	r.enqueue(func() { r.install(snap) })
}

// wireHandlers registers one handler per event kind. Each handler decodes on
// the stream goroutine and hands the application to the loop; a payload of
// an unexpected shape is reported and dropped without touching state.
func (r *Reconciler) wireHandlers(sub Subscription) {
	sub.OnError(func(err error) {
		log.Error().Err(err).Str("game_id", r.gameID.String()).Msg("stream event dropped")
	})

	sub.On(stream.EventCardsSelected, func(data json.RawMessage) {
		var playerID string
		if err := json.Unmarshal(data, &playerID); err != nil {
			r.decodeFailure(stream.EventCardsSelected, err)
			return
		}
		r.enqueue(func() { r.applyCardsSelected(playerID) })
	})

	sub.On(stream.EventCountdownStarted, func(data json.RawMessage) {
		var ms int64
		if err := json.Unmarshal(data, &ms); err != nil {
			r.decodeFailure(stream.EventCountdownStarted, err)
			return
		}
		r.enqueue(func() { r.applyCountdownStarted(ms) })
	})

	sub.On(stream.EventCountdownCancelled, func(json.RawMessage) {
		r.enqueue(func() {
			if r.terminal() {
				return
			}
			r.cd.Cancel()
		})
	})

	sub.On(stream.EventTurnOver, func(json.RawMessage) {
		r.enqueue(r.applyTurnOver)
	})

	sub.On(stream.EventRoundOver, func(data json.RawMessage) {
		var summary game.RoundSummary
		if err := json.Unmarshal(data, &summary); err != nil {
			r.decodeFailure(stream.EventRoundOver, err)
			return
		}
		r.enqueue(func() { r.applyRoundOver(summary) })
	})

	sub.On(stream.EventGameOver, func(data json.RawMessage) {
		var winner string
		if err := json.Unmarshal(data, &winner); err != nil {
			r.decodeFailure(stream.EventGameOver, err)
			return
		}
		r.enqueue(func() { r.applyGameOver(winner) })
	})
}

// applyCardsSelected marks the opponent ready, or falls back to a full
// reload when the id is unknown — the opponent list then predates the
// current turn and the snapshot is stale, not the event wrong.
func (r *Reconciler) applyCardsSelected(playerID string) {
	if r.terminal() {
		return
	}

	r.mu.Lock()
	next, ok := r.snap.WithOpponentReady(playerID)
	if ok {
		r.snap = next
	}
	r.mu.Unlock()

	if !ok {
		log.Info().Str("game_id", r.gameID.String()).Str("player_id", playerID).
			Msg("cardsselected for unknown opponent, reloading")
		r.reload()
		return
	}

	log.Debug().Str("game_id", r.gameID.String()).Str("player_id", playerID).Msg("opponent ready")
	r.publish()
}

func (r *Reconciler) applyCountdownStarted(ms int64) {
	if r.terminal() {
		return
	}
	r.cd.Start(time.Duration(ms) * time.Millisecond)
}

// applyTurnOver schedules the reload after a short grace delay so final turn
// state stays visible for a beat. Scheduling, not sleeping: the loop keeps
// processing other events in the meantime.
func (r *Reconciler) applyTurnOver() {
	if r.terminal() {
		return
	}

	r.graceMu.Lock()
	if r.graceTimer != nil {
		r.graceTimer.Stop()
	}
	r.graceTimer = r.clock.AfterFunc(r.grace, func() {
		r.enqueue(func() {
			if r.terminal() {
				return
			}
			r.cd.Cancel()
			r.reload()
		})
	})
	r.graceMu.Unlock()

	log.Debug().Str("game_id", r.gameID.String()).Dur("grace", r.grace).Msg("turn over, reload scheduled")
}

func (r *Reconciler) applyRoundOver(summary game.RoundSummary) {
	if r.terminal() {
		return
	}

	r.mu.Lock()
	r.lastRound = &summary
	r.mu.Unlock()

	log.Info().Str("game_id", r.gameID.String()).Int("round", summary.Round).Msg("round over")
	if r.onRoundOver != nil {
		r.onRoundOver(summary)
	}
}

func (r *Reconciler) applyGameOver(winner string) {
	r.mu.Lock()
	if r.snap.Terminal() {
		r.mu.Unlock()
		return
	}
	r.snap = r.snap.WithWinner(winner)
	r.mu.Unlock()

	log.Info().Str("game_id", r.gameID.String()).Str("winner", winner).Msg("game over")
	r.publish()
}

// reload fetches the full current state and replaces the snapshot wholesale.
// A failed reload is logged and dropped: the view stays stale until the next
// corrective event or reload heals it.
func (r *Reconciler) reload() {
	g, err := r.api.LoadGame(r.ctx, r.gameID)
	if err != nil {
		log.Warn().Err(err).Str("game_id", r.gameID.String()).Msg("full reload failed")
		return
	}
	if g == nil {
		log.Warn().Str("game_id", r.gameID.String()).Msg("game no longer exists")
		if r.onGameMissing != nil {
			r.onGameMissing()
		}
		return
	}
	r.install(g.Clone())
}

// install replaces the snapshot and rebuilds the selection machine from it.
func (r *Reconciler) install(snap game.Game) {
	r.mu.Lock()
	r.snap = snap
	r.sel = selection.FromPlayer(snap.Player)
	r.mu.Unlock()
	r.publish()
}

func (r *Reconciler) viewLocked() View {
	v := View{Game: r.snap.Clone()}
	v.Game.Player.SelectedCards = r.sel.Selected()
	if remaining, ok := r.cd.Remaining(); ok {
		v.Countdown = &remaining
	}
	return v
}

func (r *Reconciler) publish() {
	if r.onChange == nil {
		return
	}
	r.onChange(r.Snapshot())
}

func (r *Reconciler) terminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap.Terminal()
}

func (r *Reconciler) decodeFailure(kind stream.EventType, err error) {
	log.Error().Err(err).Str("game_id", r.gameID.String()).Str("event", string(kind)).
		Msg("unexpected event payload, dropping")
}

func (r *Reconciler) stopGraceTimer() {
	r.graceMu.Lock()
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
	r.graceMu.Unlock()
}

// loop serializes all snapshot mutation. One unit of work runs to completion
// before the next is taken.
func (r *Reconciler) loop() {
	for {
		select {
		case <-r.done:
			return
		case fn := <-r.cmds:
			fn()
		}
	}
}

// enqueue hands a unit of work to the loop, giving up once the view is
// unmounted.
func (r *Reconciler) enqueue(fn func()) {
	select {
	case r.cmds <- fn:
	case <-r.done:
	}
}

// tryEnqueue is enqueue for repaint-only work that may be dropped under
// backpressure; a later publish repaints anyway.
func (r *Reconciler) tryEnqueue(fn func()) {
	select {
	case r.cmds <- fn:
	case <-r.done:
	default:
	}
}
