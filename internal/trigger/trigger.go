// Package trigger decides when to run reconciliation passes.
//
// The service fires a pass on three events:
//  1. Start for an owner identity (the mount analogue)
//  2. A connectivity transition from offline to online, observed either
//     by the built-in probe or reported through Notify
//  3. A fixed-interval timer while the identity is present
//
// The service is inert without an owner identity; Stop tears down the
// timer, the probe and the notification listener. A pass already in
// flight finishes against its original identity.
package trigger

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ajandahq/ajanda-sync/internal/reconciler"
)

// Runner runs one reconciliation pass. Satisfied by *reconciler.Reconciler.
type Runner interface {
	Run(ctx context.Context, ownerID string) (*reconciler.Stats, error)
}

// Probe reports whether the backend is currently reachable.
// Satisfied by (*remote.Client).Ping.
type Probe func(ctx context.Context) bool

// Config holds service configuration.
type Config struct {
	// Interval is how often to run a scheduled pass (default 5m).
	Interval time.Duration

	// ProbeInterval is how often to check connectivity (default 15s).
	// A zero probe disables the built-in connectivity watcher; online
	// transitions can still be reported through Notify.
	ProbeInterval time.Duration

	// Logger for trigger activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:      5 * time.Minute,
		ProbeInterval: 15 * time.Second,
		Logger:        log.New(os.Stderr, "[trigger] ", log.LstdFlags),
	}
}

// Service owns the timer, the connectivity probe and the notification
// channel that drive the reconciler.
type Service struct {
	runner Runner
	probe  Probe
	config *Config

	notify chan struct{}

	mu      sync.Mutex
	running bool
	ownerID string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a trigger service. probe may be nil when no connectivity
// watcher is wanted.
func New(runner Runner, probe Probe, config *Config) (*Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[trigger] ", log.LstdFlags)
	}
	return &Service{
		runner: runner,
		probe:  probe,
		config: config,
		notify: make(chan struct{}, 1),
	}, nil
}

// Start binds the service to an owner identity, runs an immediate pass,
// and launches the background loop. It is an error to Start an already
// running service or to Start without an identity.
func (s *Service) Start(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return fmt.Errorf("owner id cannot be empty")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("trigger already running for owner %s", s.ownerID)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.ownerID = ownerID
	s.cancel = cancel
	s.mu.Unlock()

	s.config.Logger.Printf("Trigger started for owner %s (interval %v)", ownerID, s.config.Interval)

	// Mount pass: identity just became available.
	s.runPass(loopCtx, ownerID, "start")

	s.wg.Add(1)
	go s.loop(loopCtx, ownerID)

	return nil
}

// Stop tears down the timer and listeners and waits for the background
// loop to exit. A pass in flight runs to completion first.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	// Drop any queued notification so a later Start begins clean.
	select {
	case <-s.notify:
	default:
	}

	s.config.Logger.Println("Trigger stopped")
}

// Notify reports an externally observed online event (e.g. the host
// application's network monitor). Coalesces while a pass is pending.
func (s *Service) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Service) loop(ctx context.Context, ownerID string) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	var probeC <-chan time.Time
	if s.probe != nil && s.config.ProbeInterval > 0 {
		probeTicker := time.NewTicker(s.config.ProbeInterval)
		defer probeTicker.Stop()
		probeC = probeTicker.C
	}

	// Assume online at start; the initial pass just ran.
	online := true

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			s.runPass(ctx, ownerID, "interval")

		case <-s.notify:
			s.runPass(ctx, ownerID, "notify")

		case <-probeC:
			was := online
			online = s.probe(ctx)
			if !was && online {
				s.config.Logger.Println("Connectivity restored")
				s.runPass(ctx, ownerID, "online")
			}
		}
	}
}

func (s *Service) runPass(ctx context.Context, ownerID, reason string) {
	if ctx.Err() != nil {
		return
	}

	stats, err := s.runner.Run(ctx, ownerID)
	if err != nil {
		s.config.Logger.Printf("WARNING: %s pass failed for owner %s: %v", reason, ownerID, err)
		return
	}

	s.config.Logger.Printf("%s pass done for owner %s: pushed=%d pulled=%d failed=%d",
		reason, ownerID,
		stats.Tasks.Pushed+stats.Habits.Pushed+stats.Completions.Pushed,
		stats.Tasks.Pulled+stats.Habits.Pulled+stats.Completions.Pulled,
		stats.Tasks.PushFailed+stats.Habits.PushFailed+stats.Completions.PushFailed)
}
