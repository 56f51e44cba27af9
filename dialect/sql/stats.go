package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stratumdb/stratum"
	"github.com/stratumdb/stratum/dialect"
)

// QueryStats accumulates counters for one instrumented driver. Failed
// statements are tallied by their classified kind, so constraint pressure
// is distinguishable from connectivity trouble.
type QueryStats struct {
	queries  atomic.Int64
	execs    atomic.Int64
	duration atomic.Int64 // nanoseconds
	slow     atomic.Int64

	constraints atomic.Int64
	notFound    atomic.Int64
	connections atomic.Int64
	failed      atomic.Int64 // any other classified failure
}

// observe folds one statement outcome into the counters.
func (s *QueryStats) observe(d time.Duration, err error, isQuery bool) {
	if isQuery {
		s.queries.Add(1)
	} else {
		s.execs.Add(1)
	}
	s.duration.Add(int64(d))
	switch {
	case err == nil:
	case stratum.IsConstraintError(err):
		s.constraints.Add(1)
	case stratum.IsNotFound(err):
		s.notFound.Add(1)
	case stratum.IsConnectionError(err):
		s.connections.Add(1)
	default:
		s.failed.Add(1)
	}
}

// Snapshot returns a point-in-time copy of the counters.
func (s *QueryStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Queries:     s.queries.Load(),
		Execs:       s.execs.Load(),
		Duration:    time.Duration(s.duration.Load()),
		Slow:        s.slow.Load(),
		Constraints: s.constraints.Load(),
		NotFound:    s.notFound.Load(),
		Connections: s.connections.Load(),
		Failed:      s.failed.Load(),
	}
}

// Reset zeroes every counter.
func (s *QueryStats) Reset() {
	for _, c := range []*atomic.Int64{
		&s.queries, &s.execs, &s.duration, &s.slow,
		&s.constraints, &s.notFound, &s.connections, &s.failed,
	} {
		c.Store(0)
	}
}

// StatsSnapshot is one reading of a driver's counters.
type StatsSnapshot struct {
	Queries     int64
	Execs       int64
	Duration    time.Duration
	Slow        int64
	Constraints int64
	NotFound    int64
	Connections int64
	Failed      int64
}

// Errors is the total failed-statement count across every classified kind.
func (s StatsSnapshot) Errors() int64 {
	return s.Constraints + s.NotFound + s.Connections + s.Failed
}

// AvgDuration is the mean statement duration over queries and execs.
func (s StatsSnapshot) AvgDuration() time.Duration {
	total := s.Queries + s.Execs
	if total == 0 {
		return 0
	}
	return s.Duration / time.Duration(total)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d (constraint=%d not_found=%d connection=%d other=%d)",
		s.Queries, s.Execs, s.Duration, s.AvgDuration(), s.Slow,
		s.Errors(), s.Constraints, s.NotFound, s.Connections, s.Failed,
	)
}

// SlowQueryHook observes statements that crossed the slow threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver instruments a Driver: every statement is counted, failures
// are classified into the engine's error kinds, and slow statements are
// logged and reported to an optional hook.
type StatsDriver struct {
	*Driver
	stats *QueryStats
	log   *slog.Logger

	mu            sync.RWMutex
	slowThreshold time.Duration
	slowHook      SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the slow-statement threshold. Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook registers a callback for slow statements, in addition
// to the log line.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithStatsLogger routes slow-statement logs to the given logger instead
// of slog.Default().
func WithStatsLogger(log *slog.Logger) StatsOption {
	return func(s *StatsDriver) {
		s.log = log
	}
}

// NewStatsDriver instruments drv.
func NewStatsDriver(drv *Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &QueryStats{},
		log:           slog.Default(),
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns the driver's counters.
func (d *StatsDriver) Stats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow-statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow-statement threshold at runtime.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(ctx, query, args, start, err, true)
	return err
}

func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(ctx, query, args, start, err, false)
	return err
}

// record observes one statement and reports it when slow. Bound arguments
// stay out of the log line: columns may be flagged sensitive at the
// snapshot level and their values do not belong in logs.
func (d *StatsDriver) record(ctx context.Context, query string, args any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	d.stats.observe(duration, err, isQuery)

	d.mu.RLock()
	threshold := d.slowThreshold
	hook := d.slowHook
	d.mu.RUnlock()

	if duration <= threshold {
		return
	}
	d.stats.slow.Add(1)
	d.log.Warn("slow statement", "duration", duration, "threshold", threshold, "query", query)
	if hook != nil {
		argv, _ := args.([]any)
		hook(ctx, query, argv, duration)
	}
}

// Tx starts a transaction whose statements feed the same counters.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// StatsTx instruments one transaction.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.driver.record(ctx, query, args, start, err, true)
	return err
}

func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.driver.record(ctx, query, args, start, err, false)
	return err
}
