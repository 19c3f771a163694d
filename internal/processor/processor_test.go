package processor

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/djb258/barton-outreach-core/internal/bus"
	"github.com/djb258/barton-outreach-core/internal/scoring"
	"github.com/djb258/barton-outreach-core/internal/trigger"
)

var procNow = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

type recordedAction struct {
	EntityID uuid.UUID
	Action   trigger.Action
	Priority string
	Reason   string
	Score    int
	Tier     scoring.Tier
}

type fakeStore struct {
	mu        sync.Mutex
	signals   map[uuid.UUID][]scoring.Signal
	contacts  map[uuid.UUID]*scoring.Contact
	snapshots map[uuid.UUID]*scoring.Snapshot
	actions   []recordedAction
	due       []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		signals:   make(map[uuid.UUID][]scoring.Signal),
		contacts:  make(map[uuid.UUID]*scoring.Contact),
		snapshots: make(map[uuid.UUID]*scoring.Snapshot),
	}
}

func (f *fakeStore) SignalsForEntity(ctx context.Context, entityID uuid.UUID) ([]scoring.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signals[entityID], nil
}

func (f *fakeStore) GetContact(ctx context.Context, entityID uuid.UUID) (*scoring.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contacts[entityID], nil
}

func (f *fakeStore) GetSnapshot(ctx context.Context, entityID uuid.UUID) (*scoring.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots[entityID], nil
}

func (f *fakeStore) UpsertSnapshot(ctx context.Context, entityID uuid.UUID, rawScore, decayedScore int, tier scoring.Tier, signalCount int, lastSignalAt *time.Time, computedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[entityID] = &scoring.Snapshot{DecayedScore: decayedScore, Tier: tier, ComputedAt: computedAt}
	return nil
}

func (f *fakeStore) RecordAction(ctx context.Context, entityID uuid.UUID, action trigger.Action, priority, reason string, score int, tier scoring.Tier) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, recordedAction{entityID, action, priority, reason, score, tier})
	return uuid.New(), nil
}

func (f *fakeStore) EntitiesDueForRecalc(ctx context.Context, interval time.Duration, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit < len(f.due) {
		return f.due[:limit], nil
	}
	return f.due, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events map[string][]any
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{events: make(map[string][]any)}
}

func (f *fakePublisher) Publish(subject string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[subject] = append(f.events[subject], data)
	return nil
}

func (f *fakePublisher) count(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events[subject])
}

func testThresholds() []scoring.Threshold {
	max := func(v int) *int { return &v }
	return []scoring.Threshold{
		{Tier: scoring.TierCold, MinScore: 0, MaxScore: max(49), Action: "ignore", AutoExecute: false, Priority: "low"},
		{Tier: scoring.TierWarm, MinScore: 50, MaxScore: max(99), Action: "nurture", AutoExecute: true, Priority: "medium", NurtureSequence: "warm_intro"},
		{Tier: scoring.TierEngaged, MinScore: 100, MaxScore: max(199), Action: "nurture", AutoExecute: true, Priority: "medium"},
		{Tier: scoring.TierHot, MinScore: 200, MaxScore: max(349), Action: "sdr_escalate", AutoExecute: true, Priority: "high"},
		{Tier: scoring.TierBurning, MinScore: 350, MaxScore: nil, Action: "auto_meeting", AutoExecute: true, Priority: "urgent"},
	}
}

func newTestProcessor(s Store, pub Publisher, dedup trigger.DedupConfig) *Processor {
	cfg := scoring.Config{
		Weights:       map[string]int{"email_open": 5, "email_reply": 30, "meeting_held": 50},
		DefaultWeight: 5,
		MinScoreFloor: 0,
		MaxScoreCap:   1000,
	}
	calc := scoring.NewCalculator(cfg, scoring.NoDecay(), func() time.Time { return procNow })
	eval := trigger.NewEvaluator(testThresholds(), trigger.DefaultRules(), dedup)

	return New(s, calc, eval, pub, Options{
		Thresholds:        testThresholds(),
		RecalcInterval:    6 * time.Hour,
		MaxIncreasePerDay: 150,
		SweepInterval:     time.Minute,
		SweepWorkers:      2,
		SweepBatchSize:    100,
		Now:               func() time.Time { return procNow },
	}, slog.Default())
}

func seedEntity(s *fakeStore, signalTypes ...string) uuid.UUID {
	entityID := uuid.New()
	for _, st := range signalTypes {
		s.signals[entityID] = append(s.signals[entityID], scoring.Signal{
			ID:         uuid.New(),
			EntityID:   entityID,
			Type:       st,
			DetectedAt: procNow.Add(-time.Hour),
		})
	}
	s.contacts[entityID] = &scoring.Contact{EntityID: entityID, Email: "lee@globex.example"}
	return entityID
}

func TestEvaluateEntity_FirstScoreTriggers(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	proc := newTestProcessor(store, pub, trigger.DedupConfig{})

	// 5 + 30 + 50 = 85 -> warm, nurture.
	entityID := seedEntity(store, "email_open", "email_reply", "meeting_held")

	outcome, err := proc.EvaluateEntity(context.Background(), entityID, false)
	if err != nil {
		t.Fatal(err)
	}

	if outcome.CappedScore != 85 || outcome.Tier != scoring.TierWarm {
		t.Errorf("expected 85/warm, got %d/%s", outcome.CappedScore, outcome.Tier)
	}
	if !outcome.Trigger.ShouldTrigger || outcome.Trigger.Action != trigger.ActionNurture {
		t.Errorf("expected nurture trigger, got %+v", outcome.Trigger)
	}
	if len(store.actions) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(store.actions))
	}
	if pub.count(bus.SubjectTriggerFired) != 1 {
		t.Errorf("expected 1 trigger event, got %d", pub.count(bus.SubjectTriggerFired))
	}
	if pub.count(bus.SubjectScoreUpdated) != 1 {
		t.Errorf("expected 1 score event, got %d", pub.count(bus.SubjectScoreUpdated))
	}
	if store.snapshots[entityID] == nil || store.snapshots[entityID].DecayedScore != 85 {
		t.Errorf("expected snapshot persisted at 85, got %+v", store.snapshots[entityID])
	}
}

func TestEvaluateEntity_SameTierDoesNotTrigger(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	proc := newTestProcessor(store, pub, trigger.DedupConfig{})

	entityID := seedEntity(store, "email_open", "email_reply", "meeting_held")
	store.snapshots[entityID] = &scoring.Snapshot{
		DecayedScore: 80,
		Tier:         scoring.TierWarm,
		ComputedAt:   procNow.Add(-24 * time.Hour),
	}

	outcome, err := proc.EvaluateEntity(context.Background(), entityID, false)
	if err != nil {
		t.Fatal(err)
	}

	if outcome.Trigger.ShouldTrigger {
		t.Errorf("expected no trigger on unchanged tier, got %+v", outcome.Trigger)
	}
	if pub.count(bus.SubjectTriggerFired) != 0 {
		t.Error("expected no trigger event")
	}
	if len(store.actions) != 0 {
		t.Error("expected no audit row")
	}
}

func TestEvaluateEntity_DebounceSkips(t *testing.T) {
	store := newFakeStore()
	proc := newTestProcessor(store, newFakePublisher(), trigger.DedupConfig{})

	entityID := seedEntity(store, "email_reply")
	store.snapshots[entityID] = &scoring.Snapshot{
		DecayedScore: 30,
		Tier:         scoring.TierCold,
		ComputedAt:   procNow.Add(-time.Hour), // fresher than the 6h interval
	}

	outcome, err := proc.EvaluateEntity(context.Background(), entityID, false)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Skipped {
		t.Error("expected debounced evaluation to be skipped")
	}

	forced, err := proc.EvaluateEntity(context.Background(), entityID, true)
	if err != nil {
		t.Fatal(err)
	}
	if forced.Skipped {
		t.Error("expected force to bypass the debounce")
	}
}

func TestEvaluateEntity_IncreaseCapApplied(t *testing.T) {
	store := newFakeStore()
	proc := newTestProcessor(store, newFakePublisher(), trigger.DedupConfig{})

	// 10 meetings = 500 raw, against a prior snapshot of 100.
	entityID := seedEntity(store,
		"meeting_held", "meeting_held", "meeting_held", "meeting_held", "meeting_held",
		"meeting_held", "meeting_held", "meeting_held", "meeting_held", "meeting_held")
	store.snapshots[entityID] = &scoring.Snapshot{
		DecayedScore: 100,
		Tier:         scoring.TierEngaged,
		ComputedAt:   procNow.Add(-24 * time.Hour),
	}

	outcome, err := proc.EvaluateEntity(context.Background(), entityID, false)
	if err != nil {
		t.Fatal(err)
	}

	if outcome.IncreaseCheck.Valid {
		t.Error("expected increase cap violation to be reported")
	}
	if outcome.CappedScore != 250 {
		t.Errorf("expected capped score 100+150=250, got %d", outcome.CappedScore)
	}
	if outcome.Tier != scoring.TierHot {
		t.Errorf("expected tier derived from capped score, got %s", outcome.Tier)
	}
	if snap := store.snapshots[entityID]; snap.DecayedScore != 250 {
		t.Errorf("expected capped score persisted, got %d", snap.DecayedScore)
	}
}

func TestEvaluateEntity_DedupSuppressesTrigger(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	dedup := trigger.DedupConfig{
		Enabled: true,
		Window:  72 * time.Hour,
		RecentAction: func(ctx context.Context, id uuid.UUID, action trigger.Action, window time.Duration) (bool, error) {
			return true, nil
		},
	}
	proc := newTestProcessor(store, pub, dedup)

	entityID := seedEntity(store, "email_open", "email_reply", "meeting_held")

	outcome, err := proc.EvaluateEntity(context.Background(), entityID, false)
	if err != nil {
		t.Fatal(err)
	}

	if !outcome.Suppressed {
		t.Error("expected trigger suppressed by dedup")
	}
	if len(store.actions) != 0 {
		t.Error("expected no audit row for suppressed trigger")
	}
	if pub.count(bus.SubjectTriggerFired) != 0 {
		t.Error("expected no trigger event for suppressed trigger")
	}
	// The snapshot still advances; suppression only affects dispatch.
	if store.snapshots[entityID] == nil {
		t.Error("expected snapshot persisted despite suppression")
	}
}

func TestEvaluateEntity_NoContactFailsValidation(t *testing.T) {
	store := newFakeStore()
	proc := newTestProcessor(store, newFakePublisher(), trigger.DedupConfig{})

	entityID := uuid.New()
	store.signals[entityID] = []scoring.Signal{
		{ID: uuid.New(), EntityID: entityID, Type: "email_reply", DetectedAt: procNow.Add(-time.Hour)},
		{ID: uuid.New(), EntityID: entityID, Type: "meeting_held", DetectedAt: procNow.Add(-time.Hour)},
	}
	// No contact row at all: nurture requires an email.

	outcome, err := proc.EvaluateEntity(context.Background(), entityID, false)
	if err != nil {
		t.Fatal(err)
	}

	if outcome.Trigger.ShouldTrigger {
		t.Error("expected validation to block the trigger")
	}
	if outcome.Trigger.ValidationPassed {
		t.Error("expected validation_passed=false")
	}
}

func TestHandleSignalRecorded_BadPayload(t *testing.T) {
	proc := newTestProcessor(newFakeStore(), newFakePublisher(), trigger.DedupConfig{})

	// Must not panic or write anything.
	proc.HandleSignalRecorded(bus.SubjectSignalRecorded, []byte("{not json"))
	proc.HandleSignalRecorded(bus.SubjectSignalRecorded, []byte(`{"entity_id":"not-a-uuid"}`))
}

func TestRunSweep(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	proc := newTestProcessor(store, pub, trigger.DedupConfig{})

	for i := 0; i < 5; i++ {
		entityID := seedEntity(store, "email_open", "email_reply", "meeting_held")
		store.due = append(store.due, entityID)
	}

	res := proc.RunSweep(context.Background())

	if res.EntitiesFound != 5 || res.Evaluated != 5 {
		t.Errorf("expected 5 found and evaluated, got %+v", res)
	}
	if res.Triggered != 5 {
		t.Errorf("expected 5 triggers, got %d", res.Triggered)
	}
	if len(res.Errors) != 0 {
		t.Errorf("unexpected sweep errors: %v", res.Errors)
	}
	if pub.count(bus.SubjectTriggerFired) != 5 {
		t.Errorf("expected 5 trigger events, got %d", pub.count(bus.SubjectTriggerFired))
	}
}
