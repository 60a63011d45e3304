package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/llm"
	"github.com/Harshitk-cp/cognicore/internal/store"
	"github.com/Harshitk-cp/cognicore/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBeliefNotFound     = errors.New("belief not found")
	ErrInvalidProposition = errors.New("subject, predicate and object are required")
)

// HighImportanceThreshold marks observations and belief changes as
// significant.
const HighImportanceThreshold = 0.7

// BeliefService maintains the agent's world model. At most one live belief
// exists per (subject, predicate); confidence is always read through decay.
type BeliefService struct {
	store    domain.BeliefStore
	episodes *EpisodicMemory
	reasoner domain.Reasoner
	recorder telemetry.Recorder
	logger   *zap.Logger

	Decay DecayModel
	Retry llm.RetryConfig
	Now   func() time.Time
}

func NewBeliefService(
	bs domain.BeliefStore,
	episodes *EpisodicMemory,
	reasoner domain.Reasoner,
	recorder telemetry.Recorder,
	logger *zap.Logger,
) *BeliefService {
	if recorder == nil {
		recorder = telemetry.Nop{}
	}
	return &BeliefService{
		store:    bs,
		episodes: episodes,
		reasoner: reasoner,
		recorder: recorder,
		logger:   logger,
		Decay:    DecayLinear,
		Retry:    llm.DefaultRetryConfig(),
		Now:      time.Now,
	}
}

// EffectiveConfidence returns b's confidence decayed to now.
func (s *BeliefService) EffectiveConfidence(b *domain.Belief) float64 {
	return EffectiveConfidence(b, s.Now(), s.Decay)
}

// Update revises beliefs from a batch of observations. Each observation is
// recorded as an episode and linked as evidence. Failures on individual
// propositions are collected and do not stop the batch.
func (s *BeliefService) Update(ctx context.Context, scope domain.Scope, observations []domain.Observation) ([]domain.BeliefChange, error) {
	var (
		changes []domain.BeliefChange
		touched = make(map[domain.BeliefKey]bool)
		errs    []error
	)

	for i := range observations {
		obs := &observations[i]
		source := obs.Kind
		if !domain.ValidBeliefSource(string(source)) {
			source = domain.SourceObservation
		}

		evidence := s.recordEvidence(ctx, scope, obs)

		for _, prop := range s.propositions(ctx, scope, obs) {
			if prop.Source == "" {
				prop.Source = source
			}
			if prop.Importance <= 0 {
				prop.Importance = obs.Importance
			}
			change, err := s.apply(ctx, scope, prop, evidence, true)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			changes = append(changes, change...)
			touched[domain.BeliefKey{Subject: prop.Subject, Predicate: prop.Predicate}] = true
		}
	}

	resolved, err := s.resolveConflicts(ctx, scope, touched)
	changes = append(changes, resolved...)
	if err != nil {
		errs = append(errs, err)
	}
	return changes, errors.Join(errs...)
}

// Apply revises beliefs from internally produced propositions, such as the
// outcome of an action.
func (s *BeliefService) Apply(ctx context.Context, scope domain.Scope, props []domain.Proposition, evidence []uuid.UUID) ([]domain.BeliefChange, error) {
	var (
		changes []domain.BeliefChange
		touched = make(map[domain.BeliefKey]bool)
		errs    []error
	)
	for _, prop := range props {
		if prop.Source == "" {
			prop.Source = domain.SourceInference
		}
		change, err := s.apply(ctx, scope, prop, evidence, true)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		changes = append(changes, change...)
		touched[domain.BeliefKey{Subject: prop.Subject, Predicate: prop.Predicate}] = true
	}
	resolved, err := s.resolveConflicts(ctx, scope, touched)
	changes = append(changes, resolved...)
	if err != nil {
		errs = append(errs, err)
	}
	return changes, errors.Join(errs...)
}

func (s *BeliefService) recordEvidence(ctx context.Context, scope domain.Scope, obs *domain.Observation) []uuid.UUID {
	if s.episodes == nil {
		return nil
	}
	desc := obs.Content
	if desc == "" {
		desc = fmt.Sprintf("observation from %s", obs.Source)
	}
	var occurred *time.Time
	if !obs.ObservedAt.IsZero() {
		occurred = &obs.ObservedAt
	}
	ep, err := s.episodes.Record(ctx, scope, domain.EpisodeInput{
		Type:             domain.EpisodeObservation,
		Description:      desc,
		Payload:          obs.Payload,
		FlaggedImportant: obs.Importance >= HighImportanceThreshold,
		OccurredAt:       occurred,
	})
	if err != nil {
		s.logger.Warn("failed to record observation episode",
			zap.String("agent_id", scope.AgentID.String()),
			zap.String("source", obs.Source),
			zap.Error(err))
		return nil
	}
	return []uuid.UUID{ep.ID}
}

// propositions returns the structured propositions of an observation, asking
// the reasoner when the producer supplied none. Extraction failures yield no
// propositions.
func (s *BeliefService) propositions(ctx context.Context, scope domain.Scope, obs *domain.Observation) []domain.Proposition {
	if len(obs.Propositions) > 0 {
		return obs.Propositions
	}
	if s.reasoner == nil || obs.Content == "" {
		return nil
	}
	props, err := llm.Retry(ctx, s.Retry, func(ctx context.Context) ([]domain.Proposition, error) {
		return s.reasoner.ExtractPropositions(ctx, domain.ExtractionRequest{Observation: *obs})
	})
	if err != nil {
		s.logger.Warn("proposition extraction failed",
			zap.String("agent_id", scope.AgentID.String()),
			zap.String("source", obs.Source),
			zap.Error(err))
		return nil
	}
	return props
}

func (s *BeliefService) apply(ctx context.Context, scope domain.Scope, prop domain.Proposition, evidence []uuid.UUID, retry bool) ([]domain.BeliefChange, error) {
	if prop.Subject == "" || prop.Predicate == "" || prop.Object.IsZero() {
		return nil, ErrInvalidProposition
	}

	live, err := s.store.GetLive(ctx, scope, prop.Subject, prop.Predicate)
	if err != nil {
		return nil, fmt.Errorf("get belief %s.%s: %w", prop.Subject, prop.Predicate, err)
	}

	if len(live) == 0 {
		b, err := s.form(ctx, scope, prop, evidence)
		if err != nil {
			if retry && errors.Is(err, store.ErrConflict) {
				// Another writer formed it first; revise that one instead.
				return s.apply(ctx, scope, prop, evidence, false)
			}
			return nil, fmt.Errorf("form belief %s.%s: %w", prop.Subject, prop.Predicate, err)
		}
		change := domain.BeliefChange{
			Kind:          domain.BeliefFormed,
			BeliefID:      b.ID,
			Subject:       b.Subject,
			Predicate:     b.Predicate,
			Object:        b.Object,
			NewConfidence: b.Confidence,
			Importance:    b.Importance,
			Source:        b.Source,
		}
		s.emit(ctx, scope, change)
		return []domain.BeliefChange{change}, nil
	}

	now := s.Now()
	cur := &live[0]
	eff := EffectiveConfidence(cur, now, s.Decay)
	weight := SourceWeight(prop.Source)

	change := domain.BeliefChange{
		BeliefID:      cur.ID,
		Subject:       cur.Subject,
		Predicate:     cur.Predicate,
		Object:        prop.Object,
		OldConfidence: eff,
		Importance:    cur.Importance,
		Source:        prop.Source,
	}

	if cur.Object.Equal(prop.Object) {
		cur.Confidence = Agree(eff, weight)
		change.Kind = domain.BeliefReinforced
	} else {
		weakened := Disagree(eff, weight)
		if weakened < ReplacementThreshold {
			return s.replace(ctx, scope, cur, eff, prop, evidence)
		}
		cur.Confidence = weakened
		change.Kind = domain.BeliefWeakened
		change.Object = cur.Object
		change.PreviousObject = &prop.Object
	}

	cur.LastUpdatedAt = now
	cur.Evidence = append(cur.Evidence, evidence...)
	if prop.Importance > cur.Importance {
		cur.Importance = clamp01(prop.Importance)
		change.Importance = cur.Importance
	}
	if err := s.store.Update(ctx, cur); err != nil {
		return nil, fmt.Errorf("update belief %s: %w", cur.ID, err)
	}
	change.NewConfidence = cur.Confidence
	s.emit(ctx, scope, change)
	return []domain.BeliefChange{change}, nil
}

// replace archives a belief that fell below the replacement threshold and
// forms a fresh one from the contradicting proposition.
func (s *BeliefService) replace(ctx context.Context, scope domain.Scope, old *domain.Belief, oldEff float64, prop domain.Proposition, evidence []uuid.UUID) ([]domain.BeliefChange, error) {
	if err := s.store.Archive(ctx, scope, old.ID, domain.ArchiveSuperseded, s.Now()); err != nil {
		return nil, fmt.Errorf("archive belief %s: %w", old.ID, err)
	}
	if prop.Importance < old.Importance {
		prop.Importance = old.Importance
	}
	b, err := s.form(ctx, scope, prop, evidence)
	if err != nil {
		return nil, err
	}
	prevID := old.ID
	prevObj := old.Object
	change := domain.BeliefChange{
		Kind:           domain.BeliefReplaced,
		BeliefID:       b.ID,
		PreviousID:     &prevID,
		Subject:        b.Subject,
		Predicate:      b.Predicate,
		Object:         b.Object,
		PreviousObject: &prevObj,
		OldConfidence:  oldEff,
		NewConfidence:  b.Confidence,
		Importance:     b.Importance,
		Source:         b.Source,
	}
	s.emit(ctx, scope, change)
	return []domain.BeliefChange{change}, nil
}

func (s *BeliefService) form(ctx context.Context, scope domain.Scope, prop domain.Proposition, evidence []uuid.UUID) (*domain.Belief, error) {
	now := s.Now()
	importance := prop.Importance
	if importance <= 0 {
		importance = DefaultBeliefImportance
	}
	decay := prop.DecayRate
	if decay <= 0 {
		decay = DefaultBeliefDecayRate
	}
	b := &domain.Belief{
		TenantID:      scope.TenantID,
		AgentID:       scope.AgentID,
		Subject:       prop.Subject,
		Predicate:     prop.Predicate,
		Object:        prop.Object,
		Confidence:    InitialBeliefConfidence,
		Source:        prop.Source,
		DecayRate:     decay,
		Importance:    clamp01(importance),
		Evidence:      append([]uuid.UUID(nil), evidence...),
		FormedAt:      now,
		LastUpdatedAt: now,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// resolveConflicts archives all but the most confident live belief for each
// touched key. More than one live belief is a defect and is logged as such.
func (s *BeliefService) resolveConflicts(ctx context.Context, scope domain.Scope, touched map[domain.BeliefKey]bool) ([]domain.BeliefChange, error) {
	var (
		changes []domain.BeliefChange
		errs    []error
	)
	now := s.Now()
	for key := range touched {
		live, err := s.store.GetLive(ctx, scope, key.Subject, key.Predicate)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(live) <= 1 {
			continue
		}

		s.logger.Error("duplicate live beliefs",
			zap.String("agent_id", scope.AgentID.String()),
			zap.String("subject", key.Subject),
			zap.String("predicate", key.Predicate),
			zap.Int("count", len(live)))

		sort.SliceStable(live, func(i, j int) bool {
			return EffectiveConfidence(&live[i], now, s.Decay) > EffectiveConfidence(&live[j], now, s.Decay)
		})
		for i := 1; i < len(live); i++ {
			b := &live[i]
			if err := s.store.Archive(ctx, scope, b.ID, domain.ArchiveConflictResolution, now); err != nil {
				errs = append(errs, err)
				continue
			}
			eff := EffectiveConfidence(b, now, s.Decay)
			change := domain.BeliefChange{
				Kind:          domain.BeliefArchived,
				BeliefID:      b.ID,
				Subject:       b.Subject,
				Predicate:     b.Predicate,
				Object:        b.Object,
				OldConfidence: eff,
				NewConfidence: eff,
				Importance:    b.Importance,
				Source:        b.Source,
			}
			s.emit(ctx, scope, change)
			changes = append(changes, change)
		}
	}
	return changes, errors.Join(errs...)
}

func (s *BeliefService) emit(ctx context.Context, scope domain.Scope, c domain.BeliefChange) {
	id := c.BeliefID
	s.recorder.Record(ctx, telemetry.NewEvent(ctx, scope, domain.EventBeliefChanged, &id, "", string(c.Kind), map[string]any{
		"subject":        c.Subject,
		"predicate":      c.Predicate,
		"object":         c.Object.String(),
		"old_confidence": c.OldConfidence,
		"new_confidence": c.NewConfidence,
		"source":         string(c.Source),
	}))
}

// decayed returns a copy of b whose Confidence is the effective value now.
func (s *BeliefService) decayed(b domain.Belief, now time.Time) domain.Belief {
	b.Confidence = EffectiveConfidence(&b, now, s.Decay)
	return b
}

// Get returns the live belief for (subject, predicate) with decayed
// confidence.
func (s *BeliefService) Get(ctx context.Context, scope domain.Scope, subject, predicate string) (*domain.Belief, error) {
	live, err := s.store.GetLive(ctx, scope, subject, predicate)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, ErrBeliefNotFound
	}
	b := s.decayed(live[0], s.Now())
	return &b, nil
}

// List returns beliefs matching filter. MinConfidence is checked against
// decayed confidence.
func (s *BeliefService) List(ctx context.Context, scope domain.Scope, filter domain.BeliefFilter) ([]domain.Belief, error) {
	limit, minConf := filter.Limit, filter.MinConfidence
	filter.Limit, filter.MinConfidence = 0, 0

	all, err := s.store.List(ctx, scope, filter)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	out := make([]domain.Belief, 0, len(all))
	for _, b := range all {
		b = s.decayed(b, now)
		if b.Confidence < minConf {
			continue
		}
		out = append(out, b)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// About returns every live belief whose subject is entity or whose object is
// the string entity.
func (s *BeliefService) About(ctx context.Context, scope domain.Scope, entity string) ([]domain.Belief, error) {
	all, err := s.store.About(ctx, scope, entity)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	for i := range all {
		all[i] = s.decayed(all[i], now)
	}
	return all, nil
}
