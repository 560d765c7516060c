package blocker

import (
	"context"

	"go.uber.org/zap"

	"github.com/davidleathers/callshield-core/internal/domain/call"
	"github.com/davidleathers/callshield-core/internal/domain/errors"
	"github.com/davidleathers/callshield-core/internal/domain/rules"
	"github.com/davidleathers/callshield-core/internal/infrastructure/storage"
	"github.com/davidleathers/callshield-core/internal/metrics"
	"github.com/davidleathers/callshield-core/internal/service/analytics"
	"github.com/davidleathers/callshield-core/internal/service/classification"
	"github.com/davidleathers/callshield-core/internal/service/patterns"
	"github.com/davidleathers/callshield-core/internal/service/sync"
)

// Service orchestrates the filtering engine: it classifies incoming
// calls, records blocked ones, keeps the platform bridge in step with
// settings and list changes, and exposes analytics over the call log.
type Service struct {
	queue    *storage.Queue
	engine   *classification.Engine
	analyzer *patterns.Analyzer
	stats    *analytics.Aggregator
	bridge   NativeBridge
	clock    call.Clock
	logger   *zap.Logger
	metrics  *metrics.Registry
}

func NewService(
	queue *storage.Queue,
	engine *classification.Engine,
	analyzer *patterns.Analyzer,
	stats *analytics.Aggregator,
	bridge NativeBridge,
	clock call.Clock,
	logger *zap.Logger,
	reg *metrics.Registry,
) *Service {
	if bridge == nil {
		bridge = NoopBridge{}
	}
	s := &Service{
		queue:    queue,
		engine:   engine,
		analyzer: analyzer,
		stats:    stats,
		bridge:   bridge,
		clock:    clock,
		logger:   logger,
		metrics:  reg,
	}
	// Stored pattern entries may have gone invalid across versions; they
	// never match, but the defect must be visible.
	for _, e := range s.queue.CustomList().InvalidPatterns() {
		s.logger.Warn("custom list entry has an invalid pattern",
			zap.String("entry_id", e.ID),
			zap.String("value", e.Value),
			zap.Error(e.PatternErr()))
	}
	return s
}

// HandleIncomingCall classifies a call against the current settings and
// custom list. Blocked calls are logged and queued for sync; an inactive
// engine lets everything through.
func (s *Service) HandleIncomingCall(ctx context.Context, in classification.Input) (classification.Decision, error) {
	if !s.queue.Active() {
		return classification.Decision{}, nil
	}

	start := s.clock.Now()
	decision := s.engine.Classify(in, s.queue.Settings(), s.queue.CustomList())
	if s.metrics != nil {
		s.metrics.ClassificationDuration.Observe(s.clock.Now().Sub(start).Seconds())
	}

	if !decision.Blocked {
		if s.metrics != nil {
			s.metrics.AllowedCalls.Inc()
		}
		return decision, nil
	}

	event, err := call.NewEvent(in.PhoneNumber, in.SourceAddress, *decision.Reason, in.VoIP, s.clock.Now())
	if err != nil {
		return classification.Decision{}, errors.Wrap(err, "recording blocked call")
	}
	s.queue.AddCall(ctx, *event)

	if s.metrics != nil {
		s.metrics.BlockedCalls.WithLabelValues(string(event.Reason)).Inc()
	}
	s.logger.Info("call blocked",
		zap.String("reason", string(event.Reason)),
		zap.Bool("voip", event.VoIP))

	s.alertOnAttacks()
	return decision, nil
}

// alertOnAttacks surfaces coordinated-attack signatures in the log. This
// runs after every blocked call; the analyzer only walks the last 24h.
func (s *Service) alertOnAttacks() {
	for _, attack := range s.analyzer.IdentifyPotentialAttacks(s.queue.Calls()) {
		s.logger.Warn("potential attack pattern detected",
			zap.String("type", string(attack.Type)),
			zap.String("evidence", attack.Evidence),
			zap.Int("events", len(attack.EventIDs)))
	}
}

// UpdateSettings stores new block settings and pushes them to the
// platform bridge. A bridge failure is logged but never rolls back the
// stored state.
func (s *Service) UpdateSettings(ctx context.Context, settings rules.BlockSettings) {
	s.queue.UpdateSettings(ctx, settings)
	if err := s.bridge.UpdateBlockSettings(ctx, settings); err != nil {
		s.logger.Warn("bridge rejected settings update", zap.Error(err))
	}
}

func (s *Service) Settings() rules.BlockSettings {
	return s.queue.Settings()
}

// AddEntry creates a custom-list entry and propagates the updated list.
func (s *Service) AddEntry(ctx context.Context, value string, kind rules.EntryKind, blocked bool, notes string) (*rules.Entry, error) {
	entry, err := rules.NewEntry(value, kind, blocked, notes, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if perr := entry.PatternErr(); perr != nil {
		s.logger.Warn("custom list entry has an invalid pattern",
			zap.String("entry_id", entry.ID),
			zap.String("value", entry.Value),
			zap.Error(perr))
	}
	s.queue.MutateList(ctx, func(l *rules.List) {
		l.Add(entry)
	})
	s.pushList(ctx)
	return entry, nil
}

// RemoveEntry deletes a custom-list entry by id.
func (s *Service) RemoveEntry(ctx context.Context, id string) error {
	var removeErr error
	s.queue.MutateList(ctx, func(l *rules.List) {
		removeErr = l.Remove(id)
	})
	if removeErr != nil {
		return removeErr
	}
	s.pushList(ctx)
	return nil
}

func (s *Service) CustomList() *rules.List {
	return s.queue.CustomList()
}

// ApplySecurityLevel swaps in the preset rules and settings for the
// level, keeping user-authored entries intact.
func (s *Service) ApplySecurityLevel(ctx context.Context, level rules.SecurityLevel) error {
	if !level.Valid() {
		return errors.NewValidationError("INVALID_LEVEL", "unknown security level: "+string(level))
	}
	s.queue.MutateList(ctx, func(l *rules.List) {
		l.ApplyPreset(level, s.clock.Now())
	})
	s.UpdateSettings(ctx, rules.PresetSettings(level))
	s.pushList(ctx)
	s.logger.Info("security level applied", zap.String("level", string(level)))
	return nil
}

// SetActive turns the whole engine on or off. Activation requires the
// platform's screening permission.
func (s *Service) SetActive(ctx context.Context, active bool) error {
	if active {
		granted, err := s.bridge.CheckPermissions(ctx)
		if err != nil {
			return errors.Wrap(err, "checking screening permissions")
		}
		if !granted {
			granted, err = s.bridge.RequestPermissions(ctx)
			if err != nil {
				return errors.Wrap(err, "requesting screening permissions")
			}
			if !granted {
				return errors.NewBusinessError("PERMISSION_DENIED",
					"call screening permission was not granted")
			}
		}
	}

	s.queue.SetActive(ctx, active)
	if err := s.bridge.EnableBlocking(ctx, active); err != nil {
		s.logger.Warn("bridge rejected blocking toggle", zap.Error(err))
	}
	return nil
}

func (s *Service) Active() bool {
	return s.queue.Active()
}

// ApplyRemoteSnapshot adopts remote state. Only parts the remote actually
// holds overwrite local state; empty remote parts leave local data alone.
func (s *Service) ApplyRemoteSnapshot(ctx context.Context, snap *sync.Snapshot) {
	if snap == nil {
		return
	}
	if snap.Settings != nil {
		s.UpdateSettings(ctx, *snap.Settings)
	}
	if len(snap.CustomList) > 0 {
		s.queue.ReplaceCustomList(ctx, rules.NewList(snap.CustomList...))
		s.pushList(ctx)
	}
	if len(snap.Calls) > 0 {
		s.queue.ReplaceCalls(ctx, snap.Calls)
	}
}

func (s *Service) CallLog() []call.Event {
	return s.queue.Calls()
}

func (s *Service) ClearCallLog(ctx context.Context) {
	s.queue.ClearCalls(ctx)
}

func (s *Service) Stats() analytics.Summary {
	return s.stats.GenerateSummary(s.queue.Calls())
}

func (s *Service) DetailedStats() analytics.DetailedStats {
	return s.stats.GenerateDetailed(s.queue.Calls())
}

func (s *Service) Attacks() []patterns.Attack {
	return s.analyzer.IdentifyPotentialAttacks(s.queue.Calls())
}

func (s *Service) RepeatCallers(threshold int) patterns.RepeatCallers {
	return s.analyzer.IdentifyRepeatCallers(s.queue.Calls(), threshold)
}

func (s *Service) TimePatterns() []patterns.HourCount {
	return s.analyzer.AnalyzeTimePatterns(s.queue.Calls())
}

func (s *Service) pushList(ctx context.Context) {
	if err := s.bridge.UpdateCustomList(ctx, s.queue.CustomList().Entries()); err != nil {
		s.logger.Warn("bridge rejected custom list update", zap.Error(err))
	}
}
