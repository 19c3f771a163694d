package processor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/djb258/barton-outreach-core/internal/bus"
	"github.com/djb258/barton-outreach-core/internal/scoring"
	"github.com/djb258/barton-outreach-core/internal/trigger"
)

// Store is the persistence surface the processor needs. *store.Store
// satisfies it; tests use an in-memory fake.
type Store interface {
	SignalsForEntity(ctx context.Context, entityID uuid.UUID) ([]scoring.Signal, error)
	GetContact(ctx context.Context, entityID uuid.UUID) (*scoring.Contact, error)
	GetSnapshot(ctx context.Context, entityID uuid.UUID) (*scoring.Snapshot, error)
	UpsertSnapshot(ctx context.Context, entityID uuid.UUID, rawScore, decayedScore int, tier scoring.Tier, signalCount int, lastSignalAt *time.Time, computedAt time.Time) error
	RecordAction(ctx context.Context, entityID uuid.UUID, action trigger.Action, priority, reason string, score int, tier scoring.Tier) (uuid.UUID, error)
	EntitiesDueForRecalc(ctx context.Context, interval time.Duration, limit int) ([]uuid.UUID, error)
}

// Publisher is the outbound event surface. *bus.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

// Outcome summarizes one entity evaluation for callers (API, CLI, events).
type Outcome struct {
	EntityID      uuid.UUID             `json:"entity_id"`
	Skipped       bool                  `json:"skipped"`
	Score         scoring.Result        `json:"score"`
	CappedScore   int                   `json:"capped_score"`
	IncreaseCheck scoring.IncreaseCheck `json:"increase_check"`
	Tier          scoring.Tier          `json:"tier"`
	Delta         scoring.DeltaInfo     `json:"delta"`
	Trigger       trigger.Result        `json:"trigger"`
	Suppressed    bool                  `json:"suppressed"`
	Reason        string                `json:"reason"`
}

// Processor drives the read-compute-decide-write cycle for entities. The
// scoring and trigger cores stay pure; all I/O goes through the injected
// Store and Publisher.
type Processor struct {
	store  Store
	calc   *scoring.Calculator
	eval   *trigger.Evaluator
	pub    Publisher
	logger *slog.Logger

	thresholds        []scoring.Threshold
	recalcInterval    time.Duration
	maxIncreasePerDay int
	sweepInterval     time.Duration
	sweepWorkers      int
	sweepBatchSize    int

	now func() time.Time
}

// Options carries the processor knobs from config.
type Options struct {
	Thresholds        []scoring.Threshold
	RecalcInterval    time.Duration
	MaxIncreasePerDay int
	SweepInterval     time.Duration
	SweepWorkers      int
	SweepBatchSize    int
	Now               func() time.Time // nil means time.Now
}

func New(s Store, calc *scoring.Calculator, eval *trigger.Evaluator, pub Publisher, opts Options, logger *slog.Logger) *Processor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.SweepWorkers < 1 {
		opts.SweepWorkers = 1
	}
	return &Processor{
		store:             s,
		calc:              calc,
		eval:              eval,
		pub:               pub,
		logger:            logger,
		thresholds:        opts.Thresholds,
		recalcInterval:    opts.RecalcInterval,
		maxIncreasePerDay: opts.MaxIncreasePerDay,
		sweepInterval:     opts.SweepInterval,
		sweepWorkers:      opts.SweepWorkers,
		sweepBatchSize:    opts.SweepBatchSize,
		now:               now,
	}
}

// EvaluateEntity recomputes one entity's score and decides whether a
// trigger fires. force bypasses the recalculation debounce. One entity's
// evaluation is atomic: it is never interrupted mid-flight.
func (p *Processor) EvaluateEntity(ctx context.Context, entityID uuid.UUID, force bool) (*Outcome, error) {
	snap, err := p.store.GetSnapshot(ctx, entityID)
	if err != nil {
		return nil, err
	}

	if !force && !p.calc.ShouldRecalculate(snap, p.recalcInterval) {
		return &Outcome{EntityID: entityID, Skipped: true, Reason: "recalculated recently"}, nil
	}

	signals, err := p.store.SignalsForEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	contact, err := p.store.GetContact(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		contact = &scoring.Contact{EntityID: entityID}
	}

	res := p.calc.Calculate(signals, contact)

	var oldScore *int
	if snap != nil {
		oldScore = &snap.DecayedScore
	}
	inc := scoring.ValidateIncrease(oldScore, res.DecayedScore, p.maxIncreasePerDay)
	if !inc.Valid {
		p.logger.Warn("score increase capped",
			"entity_id", entityID,
			"new_score", res.DecayedScore,
			"capped_score", inc.CappedScore,
			"reason", inc.Reason,
		)
	}

	tier, ok := scoring.ScoreTier(inc.CappedScore, p.thresholds)
	if !ok {
		p.logger.Warn("no threshold bracket matched score, falling back to cold",
			"entity_id", entityID,
			"score", inc.CappedScore,
		)
	}

	capped := res
	capped.DecayedScore = inc.CappedScore
	delta := scoring.DeltaAnalysis(snap, capped, tier)

	trigRes := p.eval.Evaluate(inc.CappedScore, tier, *contact, snap)

	outcome := &Outcome{
		EntityID:      entityID,
		Score:         res,
		CappedScore:   inc.CappedScore,
		IncreaseCheck: inc,
		Tier:          tier,
		Delta:         delta,
		Trigger:       trigRes,
		Reason:        trigger.Reason(trigRes, delta),
	}

	if trigRes.ShouldTrigger {
		dd, err := p.eval.CheckDeduplication(ctx, trigRes.Action, entityID)
		if err != nil {
			return nil, err
		}
		if dd.IsDuplicate {
			outcome.Suppressed = true
			outcome.Reason = dd.Reason
			p.logger.Info("trigger suppressed by dedup",
				"entity_id", entityID,
				"action", trigRes.Action,
				"reason", dd.Reason,
			)
		} else {
			// Audit row first so the dedup window observes the action
			// before the dispatcher does.
			actionID, err := p.store.RecordAction(ctx, entityID, trigRes.Action, trigRes.Priority, outcome.Reason, inc.CappedScore, tier)
			if err != nil {
				return nil, err
			}
			p.publishTrigger(entityID, actionID, outcome)
		}
	}

	if err := p.store.UpsertSnapshot(ctx, entityID, res.RawScore, inc.CappedScore, tier, res.SignalCount, res.LastSignalAt, p.now()); err != nil {
		return nil, err
	}

	p.publishScoreUpdated(entityID, outcome)
	return outcome, nil
}

// Preview scores a signal list without touching the store or firing
// anything. Used by the API's dry-run endpoint and the CLI.
func (p *Processor) Preview(signals []scoring.Signal, contact *scoring.Contact) (scoring.Result, scoring.Tier) {
	res := p.calc.Calculate(signals, contact)
	tier, ok := scoring.ScoreTier(res.DecayedScore, p.thresholds)
	if !ok {
		p.logger.Warn("no threshold bracket matched preview score", "score", res.DecayedScore)
	}
	return res, tier
}

// HandleSignalRecorded is the NATS handler for outreach.bit.signal.recorded.
// A fresh signal always forces a recomputation for its entity.
func (p *Processor) HandleSignalRecorded(subject string, data []byte) {
	ctx := context.Background()

	var evt bus.SignalRecordedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse signal event", "error", err)
		return
	}

	entityID, err := uuid.Parse(evt.EntityID)
	if err != nil {
		p.logger.Error("invalid entity id in signal event", "entity_id", evt.EntityID, "error", err)
		return
	}

	outcome, err := p.EvaluateEntity(ctx, entityID, true)
	if err != nil {
		p.logger.Error("entity evaluation failed", "entity_id", entityID, "error", err)
		return
	}

	p.logger.Info("signal processed",
		"entity_id", entityID,
		"signal_type", evt.SignalType,
		"decayed_score", outcome.CappedScore,
		"tier", outcome.Tier,
		"triggered", outcome.Trigger.ShouldTrigger && !outcome.Suppressed,
	)
}

func (p *Processor) publishTrigger(entityID, actionID uuid.UUID, out *Outcome) {
	if p.pub == nil {
		return
	}
	evt := bus.TriggerFiredEvent{
		ActionID:      actionID.String(),
		EntityID:      entityID.String(),
		ActionType:    string(out.Trigger.Action),
		Priority:      out.Trigger.Priority,
		PriorityScore: out.Trigger.Action.PriorityScore(),
		Tier:          string(out.Tier),
		DecayedScore:  out.CappedScore,
		Reason:        out.Reason,
		Metadata:      out.Trigger.Metadata,
	}
	if err := p.pub.Publish(bus.SubjectTriggerFired, evt); err != nil {
		p.logger.Error("failed to publish trigger event", "entity_id", entityID, "error", err)
	}
}

func (p *Processor) publishScoreUpdated(entityID uuid.UUID, out *Outcome) {
	if p.pub == nil {
		return
	}
	evt := bus.ScoreUpdatedEvent{
		EntityID:     entityID.String(),
		RawScore:     out.Score.RawScore,
		DecayedScore: out.CappedScore,
		Tier:         string(out.Tier),
		SignalCount:  out.Score.SignalCount,
		TierChanged:  out.Delta.TierChanged,
	}
	if err := p.pub.Publish(bus.SubjectScoreUpdated, evt); err != nil {
		p.logger.Error("failed to publish score update", "entity_id", entityID, "error", err)
	}
}
