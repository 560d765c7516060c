package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/davidleathers/callshield-core/internal/domain/call"
	"github.com/davidleathers/callshield-core/internal/domain/errors"
	"github.com/davidleathers/callshield-core/internal/infrastructure/auth"
	"github.com/davidleathers/callshield-core/internal/metrics"
)

// Config tunes the reconciler. Zero values fall back to sane defaults.
type Config struct {
	// Timeout bounds each individual push or pull against the remote.
	Timeout time.Duration
	// Interval enables periodic background sync when positive.
	Interval time.Duration
	// PushesPerMin throttles how often SyncNow actually hits the remote.
	PushesPerMin int
	// CallBatchLimit caps how many recent calls a single sync transfers.
	CallBatchLimit int
}

func (c *Config) withDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 8 * time.Second
	}
	if c.PushesPerMin <= 0 {
		c.PushesPerMin = 6
	}
	if c.CallBatchLimit <= 0 || c.CallBatchLimit > call.MaxLogEntries {
		c.CallBatchLimit = 100
	}
}

// Reconciler pushes local state to the remote store and pulls remote
// snapshots. Sync cycles are serialized: a second caller blocks until the
// first finishes.
//
// The three state parts (settings, custom list, blocked calls) are pushed
// independently. Pending calls are only cleared when all three succeed,
// so a partial failure keeps the data queued for the next attempt.
type Reconciler struct {
	queue   Queue
	remote  RemoteStore
	cfg     Config
	clock   call.Clock
	logger  *zap.Logger
	metrics *metrics.Registry
	limiter *rate.Limiter

	mu       sync.Mutex
	identity *auth.TokenClaims
	online   bool
	syncing  bool

	stopOnce sync.Once
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewReconciler(queue Queue, remote RemoteStore, cfg Config, clock call.Clock, logger *zap.Logger, reg *metrics.Registry) *Reconciler {
	cfg.withDefaults()
	return &Reconciler{
		queue:   queue,
		remote:  remote,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		metrics: reg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.PushesPerMin)), 1),
		online:  true,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// SetIdentity installs the authenticated user all remote state is keyed
// by. Sync is refused until an identity is present.
func (r *Reconciler) SetIdentity(claims *auth.TokenClaims) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identity = claims
}

// SetOnline records connectivity. Coming back online with pending data
// triggers an immediate sync attempt.
func (r *Reconciler) SetOnline(ctx context.Context, online bool) {
	r.mu.Lock()
	wasOnline := r.online
	r.online = online
	r.mu.Unlock()

	if online && !wasOnline && r.queue.HasPendingSync() {
		if err := r.SyncNow(ctx); err != nil {
			r.logger.Warn("reconnect sync failed", zap.Error(err))
		}
	}
}

func (r *Reconciler) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

func (r *Reconciler) Status() Status {
	r.mu.Lock()
	online, syncing := r.online, r.syncing
	r.mu.Unlock()

	return Status{
		Online:       online,
		Syncing:      syncing,
		PendingCalls: len(r.queue.PendingCalls()),
		LastSync:     r.queue.LastSync(),
	}
}

// SyncNow pushes all three state parts to the remote store. It returns
// the first error encountered but still attempts every part, so one
// failing part does not starve the others.
func (r *Reconciler) SyncNow(ctx context.Context) error {
	r.mu.Lock()
	if r.identity == nil {
		r.mu.Unlock()
		return errors.NewUnauthorizedError("sync requires an authenticated user")
	}
	if !r.online {
		r.mu.Unlock()
		return errors.NewBusinessError("OFFLINE", "cannot sync while offline")
	}
	if r.syncing {
		r.mu.Unlock()
		return errors.NewConflictError("sync already in progress")
	}
	if !r.limiter.Allow() {
		r.mu.Unlock()
		return errors.NewBusinessError("RATE_LIMITED", "sync attempted too frequently")
	}
	r.syncing = true
	userID := r.identity.UserID
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.syncing = false
		r.mu.Unlock()
	}()

	start := r.clock.Now()
	var firstErr error
	record := func(part string, err error) {
		if err == nil {
			return
		}
		r.logger.Warn("sync part failed",
			zap.String("part", part),
			zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	record("settings", r.withTimeout(ctx, func(ctx context.Context) error {
		return r.remote.UpsertSettings(ctx, userID, r.queue.Settings())
	}))
	record("custom_list", r.withTimeout(ctx, func(ctx context.Context) error {
		return r.remote.ReplaceCustomList(ctx, userID, r.queue.CustomList().Entries())
	}))
	record("blocked_calls", r.withTimeout(ctx, func(ctx context.Context) error {
		calls := r.queue.Calls()
		if len(calls) > r.cfg.CallBatchLimit {
			calls = calls[:r.cfg.CallBatchLimit]
		}
		return r.remote.ReplaceBlockedCalls(ctx, userID, calls)
	}))

	if r.metrics != nil {
		r.metrics.SyncDuration.Observe(r.clock.Now().Sub(start).Seconds())
	}

	if firstErr != nil {
		r.observeAttempt("failure")
		return firstErr
	}

	r.queue.MarkSynced(ctx, r.clock.Now().UnixMilli())
	r.observeAttempt("success")
	r.logger.Info("sync completed", zap.String("user_id", userID.String()))
	return nil
}

// Pull fetches the remote snapshot without applying it. Adopting the
// snapshot into local state is the caller's decision.
func (r *Reconciler) Pull(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	if r.identity == nil {
		r.mu.Unlock()
		return nil, errors.NewUnauthorizedError("sync requires an authenticated user")
	}
	if !r.online {
		r.mu.Unlock()
		return nil, errors.NewBusinessError("OFFLINE", "cannot sync while offline")
	}
	userID := r.identity.UserID
	r.mu.Unlock()

	snap := &Snapshot{}
	err := r.withTimeout(ctx, func(ctx context.Context) error {
		settings, err := r.remote.FetchSettings(ctx, userID)
		if err != nil {
			return err
		}
		entries, err := r.remote.FetchCustomList(ctx, userID)
		if err != nil {
			return err
		}
		calls, err := r.remote.FetchBlockedCalls(ctx, userID, r.cfg.CallBatchLimit)
		if err != nil {
			return err
		}
		snap.Settings = settings
		snap.CustomList = entries
		snap.Calls = calls
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Start runs periodic background sync until Stop is called. It is a
// no-op when the configured interval is zero.
func (r *Reconciler) Start(ctx context.Context) {
	if r.cfg.Interval <= 0 {
		return
	}
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	go func() {
		defer close(r.doneCh)
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !r.queue.HasPendingSync() {
					continue
				}
				if err := r.SyncNow(ctx); err != nil {
					r.logger.Debug("periodic sync skipped", zap.Error(err))
				}
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if started {
		<-r.doneCh
	}
}

func (r *Reconciler) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	return fn(ctx)
}

func (r *Reconciler) observeAttempt(result string) {
	if r.metrics == nil {
		return
	}
	r.metrics.SyncAttempts.WithLabelValues(result).Inc()
	r.metrics.PendingSyncDepth.Set(float64(len(r.queue.PendingCalls())))
}
