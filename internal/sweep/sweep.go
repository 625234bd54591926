// Package sweep physically removes expired pairing requests and, when a
// retention window is configured, archives and prunes old audit events.
//
// Nothing in the pairing core depends on the sweeper: expired requests are
// already invisible to every read and write. Sweeping only reclaims space.
package sweep

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/pairing/internal/clock"
	"github.com/alfredjeanlab/pairing/internal/store"
)

// DefaultBatchSize bounds the rows touched by one statement.
const DefaultBatchSize = 500

// Destination receives archived audit events before they are deleted.
type Destination interface {
	// Write stores data under name. Names are unique per archive batch.
	Write(ctx context.Context, name string, data []byte) error
}

// Config tunes a Sweeper.
type Config struct {
	// Retention is how long audit events are kept. Zero keeps them forever.
	Retention time.Duration
	// BatchSize caps rows per statement; zero selects DefaultBatchSize.
	BatchSize int
	// Destinations receive each audit batch before it is deleted. With no
	// destinations, old events are deleted without an archive.
	Destinations []Destination
}

// Result summarizes one sweep.
type Result struct {
	RequestsPurged int
	EventsArchived int
	EventsDeleted  int
}

// Sweeper performs sweeps against a store.
type Sweeper struct {
	store  store.Store
	clock  clock.Clock
	cfg    Config
	logger *slog.Logger
}

// New returns a Sweeper.
func New(s store.Store, clk clock.Clock, cfg Config, logger *slog.Logger) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: s, clock: clk, cfg: cfg, logger: logger}
}

// Once runs a single sweep. Requests are purged first; audit pruning stops
// at the first batch that any destination fails to accept, leaving that
// batch in place for the next run.
func (sw *Sweeper) Once(ctx context.Context) (Result, error) {
	var res Result
	now := sw.clock.Now()

	for {
		n, err := sw.store.PurgeExpiredRequests(ctx, now, sw.cfg.BatchSize)
		if err != nil {
			return res, fmt.Errorf("purge expired requests: %w", err)
		}
		res.RequestsPurged += n
		if n < sw.cfg.BatchSize {
			break
		}
	}

	if sw.cfg.Retention <= 0 {
		return res, nil
	}

	cutoff := now.Add(-sw.cfg.Retention)
	for {
		evs, err := sw.store.ListEventsBefore(ctx, cutoff, sw.cfg.BatchSize)
		if err != nil {
			return res, fmt.Errorf("list audit events: %w", err)
		}
		if len(evs) == 0 {
			break
		}

		if len(sw.cfg.Destinations) > 0 {
			var buf bytes.Buffer
			if err := ExportEvents(&buf, evs, now); err != nil {
				return res, err
			}
			name := archiveName(evs[0].ID, evs[len(evs)-1].ID)
			for i, dest := range sw.cfg.Destinations {
				if err := dest.Write(ctx, name, buf.Bytes()); err != nil {
					return res, fmt.Errorf("archive %s to destination %d: %w", name, i, err)
				}
			}
			res.EventsArchived += len(evs)
		}

		n, err := sw.store.DeleteEventsThrough(ctx, cutoff, evs[len(evs)-1].ID)
		if err != nil {
			return res, fmt.Errorf("delete audit events: %w", err)
		}
		res.EventsDeleted += n
		if n == 0 || len(evs) < sw.cfg.BatchSize {
			break
		}
	}
	return res, nil
}

func archiveName(firstID, lastID int64) string {
	return fmt.Sprintf("audit-%020d-%020d.jsonl", firstID, lastID)
}

// Scheduler runs sweeps on a fixed interval.
type Scheduler struct {
	sweeper  *Sweeper
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler returns a scheduler that runs sw every interval.
func NewScheduler(sw *Sweeper, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{sweeper: sw, interval: interval, logger: logger}
}

// Start runs one sweep immediately, then one per tick, until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Scheduler) sweepOnce(ctx context.Context) {
	res, err := s.sweeper.Once(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "err", err,
			"requests_purged", res.RequestsPurged, "events_deleted", res.EventsDeleted)
		return
	}
	if res.RequestsPurged > 0 || res.EventsDeleted > 0 {
		s.logger.Info("sweep completed",
			"requests_purged", res.RequestsPurged,
			"events_archived", res.EventsArchived,
			"events_deleted", res.EventsDeleted)
	}
}
