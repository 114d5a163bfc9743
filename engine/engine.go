// engine/engine.go
package engine

import (
	"errors"
	"time"

	"github.com/wfunc/pongserver/bracket"
	"github.com/wfunc/pongserver/config"
	"github.com/wfunc/pongserver/logger"
	"github.com/wfunc/pongserver/models"
	"github.com/wfunc/pongserver/persistence"
	"github.com/wfunc/pongserver/services"
	"github.com/wfunc/pongserver/timer"
)

var (
	ErrInvalidMode      = errors.New("unknown party mode")
	ErrNotInGame        = errors.New("not in a game")
	ErrPartyNotFound    = errors.New("party not found")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrShuttingDown     = errors.New("engine shutting down")
)

// Broadcaster is the delivery surface the engine pushes state through.
// Defined here to break the import cycle with the broadcast package.
type Broadcaster interface {
	SendToUser(identity string, v interface{}) error
	SendGameState(identity string, state models.GameState) error
	SendToParty(identities []string, except string, v interface{})
}

// Metrics is the slice of the monitor the engine reports into. May be nil.
type Metrics interface {
	SetActiveParties(count int)
	SetPausedParties(count int)
	IncMatchesFinished()
	IncDeliveryFailures()
	ObserveTickDuration(d time.Duration)
}

// Engine owns every piece of live, ephemeral match state: the session
// registry, tournament brackets and pause deadlines. A single worker
// goroutine mutates all of it; public operations post closures onto the
// command channel and wait, so every command and every tick runs to
// completion before the next one starts. No locks.
type Engine struct {
	db      persistence.Database
	matches *services.MatchService
	bc      Broadcaster
	cfg     config.GameConfig
	metrics Metrics
	timers  *timer.Manager

	cmds    chan func()
	stop    chan struct{}
	stopped chan struct{}

	sessions map[uint]*Session
	brackets map[uint]*bracket.Bracket
	pausedAt map[uint]time.Time
	pilots   map[uint]*pilot
}

func New(db persistence.Database, bc Broadcaster, cfg config.GameConfig) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 16 * time.Millisecond
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Second
	}
	if cfg.PauseTimeout <= 0 {
		cfg.PauseTimeout = 90 * time.Second
	}
	if cfg.NextRoundDelay <= 0 {
		cfg.NextRoundDelay = 5 * time.Second
	}

	return &Engine{
		db:       db,
		matches:  services.NewMatchService(db),
		bc:       bc,
		cfg:      cfg,
		timers:   timer.NewManager(),
		cmds:     make(chan func(), 64),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		sessions: make(map[uint]*Session),
		brackets: make(map[uint]*bracket.Bracket),
		pausedAt: make(map[uint]time.Time),
		pilots:   make(map[uint]*pilot),
	}
}

// SetMetrics attaches a monitor. Call before Start.
func (e *Engine) SetMetrics(m Metrics) {
	e.metrics = m
}

// Start launches the worker goroutine.
func (e *Engine) Start() {
	go e.run()
}

// Shutdown stops the simulation deterministically: the worker finishes its
// current tick or command, then exits. Safe to call once.
func (e *Engine) Shutdown() {
	close(e.stop)
	<-e.stopped
	e.timers.Stop()
}

func (e *Engine) run() {
	tick := time.NewTicker(e.cfg.TickInterval)
	sweep := time.NewTicker(e.cfg.SweepInterval)
	defer tick.Stop()
	defer sweep.Stop()

	logger.Log.Infof("Engine worker started (tick %v, sweep %v)", e.cfg.TickInterval, e.cfg.SweepInterval)

	for {
		select {
		case <-e.stop:
			// Drain already queued commands so callers are not stranded.
			for {
				select {
				case cmd := <-e.cmds:
					cmd()
				default:
					close(e.stopped)
					return
				}
			}
		case cmd := <-e.cmds:
			cmd()
		case <-tick.C:
			e.simulate()
		case <-sweep.C:
			e.sweepPaused()
		}
	}
}

// do runs fn on the worker goroutine and waits for it.
func (e *Engine) do(fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}

	select {
	case e.cmds <- wrapped:
	case <-e.stopped:
		return ErrShuttingDown
	}

	select {
	case <-done:
		return nil
	case <-e.stopped:
		return ErrShuttingDown
	}
}

func presentOf(members []models.PartyPlayer) []models.PartyPlayer {
	present := make([]models.PartyPlayer, 0, len(members))
	for _, m := range members {
		if m.Status.Present() {
			present = append(present, m)
		}
	}
	return present
}

func identitiesOf(members []models.PartyPlayer) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.Identity)
	}
	return ids
}
