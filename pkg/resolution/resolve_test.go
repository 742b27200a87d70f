package resolution

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/llm"
	"github.com/Ramsey-B/fern/pkg/locking"
	"github.com/Ramsey-B/fern/pkg/models"
)

// fuzzyFixture seeds two PERSON candidates discoverable through blocking
// keys and pins their scores: "Jon Smith" at strong, "Bob Jones" at 0.40.
// Resolving "Jon Smyth" then lands in whichever band strong selects.
func fuzzyFixture(t *testing.T, strong float64, mutate func(*Options)) (*resolverFixture, *models.Entity) {
	t.Helper()

	fx := newResolverFixture(t, mutate)
	fx.resolver.strategy = staticStrategy{"blk"}
	fx.resolver.scorer = stubScorer{"jon smith": strong, "bob jones": 0.40}

	best := fx.seedEntity(t, "cand-1", "Jon Smith", "jon smith", models.EntityTypePerson)
	fx.seedEntity(t, "cand-2", "Bob Jones", "bob jones", models.EntityTypePerson)
	fx.indexEntity(t, "cand-1", "blk")
	fx.indexEntity(t, "cand-2", "blk")
	return fx, best
}

func TestResolver_Resolve_InputValidation(t *testing.T) {
	fx := newResolverFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		input      string
		entityType string
		wantErr    string
	}{
		{
			name:       "blank name",
			input:      "   ",
			entityType: models.EntityTypeCompany,
			wantErr:    "name must not be blank",
		},
		{
			name:       "name too long",
			input:      strings.Repeat("a", 1001),
			entityType: models.EntityTypeCompany,
			wantErr:    "name exceeds 1000 characters",
		},
		{
			name:       "control characters",
			input:      "acme\x00corp",
			entityType: models.EntityTypeCompany,
			wantErr:    "name contains control characters",
		},
		{
			name:       "delete character",
			input:      "acme\x7fcorp",
			entityType: models.EntityTypeCompany,
			wantErr:    "name contains control characters",
		},
		{
			name:       "blank entity type",
			input:      "Acme Corp",
			entityType: "  ",
			wantErr:    "entity type must not be blank",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := fx.resolver.Resolve(ctx, tt.input, tt.entityType)

			assert.Nil(t, res)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	t.Run("tabs and newlines are allowed", func(t *testing.T) {
		res, err := fx.resolver.Resolve(ctx, "acme\tcorp", models.EntityTypeCompany)

		require.NoError(t, err)
		assert.Equal(t, models.DecisionNoMatch, res.Decision)
	})

	t.Run("empty normalization is rejected", func(t *testing.T) {
		empty := newResolverFixture(t, nil)
		empty.resolver.normalizer = staticNormalizer("")

		res, err := empty.resolver.Resolve(ctx, "Acme Corp", models.EntityTypeCompany)

		assert.Nil(t, res)
		assert.ErrorContains(t, err, "name normalizes to an empty string")
	})
}

func TestResolver_Resolve_ExactMatch(t *testing.T) {
	fx := newResolverFixture(t, nil)
	ctx := context.Background()

	nName := fx.resolver.normalizer.Normalize("Acme Corporation", models.EntityTypeCompany)
	ent := fx.seedEntity(t, "ent-acme", "Acme Corporation", nName, models.EntityTypeCompany)
	fx.seedSynonym(t, ent.ID, "Acme Global", "acme global")

	res, err := fx.resolver.Resolve(ctx, "ACME CORPORATION", models.EntityTypeCompany)

	require.NoError(t, err)
	assert.Equal(t, models.DecisionAutoMerge, res.Decision)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "exact normalized match", res.Reasoning)
	assert.Equal(t, ent.ID, res.Entity.ID)
	assert.Equal(t, "Acme Corporation", res.MatchedName)
	assert.Equal(t, "ACME CORPORATION", res.InputName)
	assert.False(t, res.WasMatchedViaSynonym)
	assert.False(t, res.IsNewEntity)
	assert.Len(t, res.Synonyms, 1)
	assert.NotEmpty(t, res.CorrelationID)
	require.NotNil(t, res.Ref)
	assert.Equal(t, ent.ID, res.Ref.OriginalID())
	assert.Equal(t, 1, fx.locker.acquires)
	assert.Equal(t, 1, fx.locker.releases)

	// A different raw spelling of the same normalized name is served from
	// the cache without touching the store or the lock.
	res2, err := fx.resolver.Resolve(ctx, "Acme Corporation", models.EntityTypeCompany)

	require.NoError(t, err)
	assert.Equal(t, 1, fx.state.findCalls())
	assert.Equal(t, 1, fx.locker.acquires)
	assert.NotSame(t, res, res2)
	assert.Equal(t, ent.ID, res2.Entity.ID)
	require.NotNil(t, res2.Ref)
	assert.Equal(t, ent.ID, res2.Ref.OriginalID())
}

func TestResolver_Resolve_SynonymMatch(t *testing.T) {
	t.Run("matches and reinforces", func(t *testing.T) {
		fx := newResolverFixture(t, nil)
		ctx := context.Background()

		ent := fx.seedEntity(t, "ent-acme", "Acme Corporation", "acme", models.EntityTypeCompany)
		syn := fx.seedSynonym(t, ent.ID, "Acme Global", "acme global")

		res, err := fx.resolver.Resolve(ctx, "ACME GLOBAL", models.EntityTypeCompany)

		require.NoError(t, err)
		assert.Equal(t, models.DecisionAutoMerge, res.Decision)
		assert.Equal(t, 1.0, res.Confidence)
		assert.Equal(t, "synonym match", res.Reasoning)
		assert.True(t, res.WasMatchedViaSynonym)
		assert.Equal(t, ent.ID, res.Entity.ID)
		assert.Equal(t, "Acme Global", res.MatchedName)
		assert.Len(t, res.Synonyms, 1)

		reinforced := fx.state.synonym(syn.ID)
		assert.Equal(t, int64(1), reinforced.SupportCount)
		assert.False(t, reinforced.LastConfirmedAt.IsZero())
	})

	t.Run("reinforce failure is non-fatal", func(t *testing.T) {
		fx := newResolverFixture(t, nil)
		ctx := context.Background()

		ent := fx.seedEntity(t, "ent-acme", "Acme Corporation", "acme", models.EntityTypeCompany)
		syn := fx.seedSynonym(t, ent.ID, "Acme Global", "acme global")
		fx.state.reinforceErr = errors.New("write conflict")

		res, err := fx.resolver.Resolve(ctx, "ACME GLOBAL", models.EntityTypeCompany)

		require.NoError(t, err)
		assert.True(t, res.WasMatchedViaSynonym)
		assert.Equal(t, int64(0), fx.state.synonym(syn.ID).SupportCount)
	})
}

func TestResolver_Resolve_NoMatchCreatesEntity(t *testing.T) {
	fx := newResolverFixture(t, nil)
	ctx := context.Background()

	res, err := fx.resolver.Resolve(ctx, "Jane Smith", models.EntityTypePerson)

	require.NoError(t, err)
	assert.Equal(t, models.DecisionNoMatch, res.Decision)
	assert.True(t, res.IsNewEntity)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "no candidate at or above the review threshold", res.Reasoning)
	assert.Equal(t, res.CorrelationID, res.Entity.ID)

	created := fx.state.entity(res.Entity.ID)
	require.NotNil(t, created)
	assert.Equal(t, "Jane Smith", created.CanonicalName)
	assert.Equal(t, "jane smith", created.NormalizedName)
	assert.Equal(t, models.EntityStatusActive, created.Status)
	assert.NotEmpty(t, fx.state.keysFor(res.Entity.ID))

	assert.Equal(t, []models.AuditAction{models.AuditActionEntityCreated}, fx.state.auditActions())
	assert.Equal(t, []string{res.Entity.ID}, fx.emitter.created)
	assert.Empty(t, fx.state.decisionsFor(res.CorrelationID))

	// The result is cached; a repeat call is a copy served without the store.
	res2, err := fx.resolver.Resolve(ctx, "Jane Smith", models.EntityTypePerson)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.state.findCalls())
	assert.NotSame(t, res, res2)
	assert.Equal(t, res.Entity.ID, res2.Entity.ID)
}

func TestResolver_Resolve_FuzzyAutoMerge(t *testing.T) {
	fx, best := fuzzyFixture(t, 0.95, nil)
	ctx := context.Background()

	res, err := fx.resolver.Resolve(ctx, "Jon Smyth", models.EntityTypePerson)

	require.NoError(t, err)
	assert.Equal(t, models.DecisionAutoMerge, res.Decision)
	assert.True(t, res.WasMerged)
	assert.True(t, res.WasNewSynonymCreated)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)
	assert.Equal(t, "composite similarity 0.9500", res.Reasoning)
	assert.Equal(t, best.ID, res.Entity.ID)
	assert.Equal(t, "Jon Smith", res.MatchedName)
	require.NotNil(t, res.Ref)
	assert.Equal(t, best.ID, res.Ref.OriginalID())

	require.Equal(t, 1, fx.merger.callCount())
	call := fx.merger.calls[0]
	assert.Equal(t, res.CorrelationID, call.sourceID)
	assert.Equal(t, best.ID, call.targetID)
	assert.Equal(t, models.DefaultEvaluator, call.triggeredBy)
	assert.Equal(t, models.MergeStrategyKeepTarget, call.strategy)
	assert.InDelta(t, 0.95, call.match.Confidence, 1e-9)
	assert.Equal(t, models.DecisionAutoMerge, call.match.Decision)
	assert.Equal(t, res.CorrelationID, call.match.CorrelationID)

	// The input was persisted as a real entity, then folded into the winner.
	source := fx.state.entity(res.CorrelationID)
	require.NotNil(t, source)
	assert.Equal(t, models.EntityStatusMerged, source.Status)
	assert.Empty(t, fx.state.keysFor(res.CorrelationID))

	records := fx.state.decisionsFor(res.CorrelationID)
	require.Len(t, records, 2)
	assert.Equal(t, "cand-1", records[0].CandidateEntityID)
	assert.Equal(t, "Jon Smith", records[0].CandidateName)
	assert.Equal(t, "Jon Smyth", records[0].InputName)
	assert.InDelta(t, 0.95, records[0].FinalScore, 1e-9)
	assert.InDelta(t, 0.95, records[0].Scores.Levenshtein, 1e-9)
	assert.Nil(t, records[0].Scores.LLM)
	assert.Equal(t, models.MatchOutcomeAutoMerge, records[0].Outcome)
	assert.Equal(t, models.DefaultEvaluator, records[0].Evaluator)
	assert.InDelta(t, 0.92, records[0].AutoMergeThreshold, 1e-9)
	assert.Equal(t, "cand-2", records[1].CandidateEntityID)
	assert.Equal(t, models.MatchOutcomeNoMatch, records[1].Outcome)

	assert.True(t, fx.cached(models.EntityTypePerson, "jon smyth"))
}

func TestResolver_Resolve_AutoMergeDisabledDowngradesToReview(t *testing.T) {
	fx, best := fuzzyFixture(t, 0.95, func(o *Options) { o.AutoMergeEnabled = false })
	ctx := context.Background()

	res, err := fx.resolver.Resolve(ctx, "Jon Smyth", models.EntityTypePerson)

	require.NoError(t, err)
	assert.Equal(t, models.DecisionReview, res.Decision)
	assert.Equal(t, "auto-merge disabled", res.Reasoning)
	assert.True(t, res.IsNewEntity)
	assert.Equal(t, res.CorrelationID, res.Entity.ID)
	assert.Equal(t, best.CanonicalName, res.MatchedName)
	assert.Equal(t, 0, fx.merger.callCount())

	// The input becomes a findable entity awaiting the human verdict.
	assert.NotEmpty(t, fx.state.keysFor(res.Entity.ID))

	// No queue configured: the handoff lands on the audit trail.
	details := fx.state.auditDetails(models.AuditActionManualReviewRequested)
	require.NotNil(t, details)
	assert.Equal(t, best.ID, details["candidateEntityId"])
	assert.InDelta(t, 0.95, details["similarityScore"].(float64), 1e-9)

	assert.False(t, fx.cached(models.EntityTypePerson, "jon smyth"))
}

func TestResolver_Resolve_MergeFailureDowngradesToReview(t *testing.T) {
	fx, best := fuzzyFixture(t, 0.95, nil)
	fx.merger.err = errors.New("saga exploded")
	queue := fx.withQueue()
	ctx := context.Background()

	res, err := fx.resolver.Resolve(ctx, "Jon Smyth", models.EntityTypePerson)

	require.NoError(t, err)
	assert.Equal(t, models.DecisionReview, res.Decision)
	assert.Equal(t, "auto-merge failed: saga exploded", res.Reasoning)
	assert.True(t, res.IsNewEntity)
	assert.Equal(t, res.CorrelationID, res.Entity.ID)

	// The merge never happened, so the input entity stays live and gets
	// indexed after the fact.
	source := fx.state.entity(res.CorrelationID)
	require.NotNil(t, source)
	assert.Equal(t, models.EntityStatusActive, source.Status)
	assert.NotEmpty(t, fx.state.keysFor(res.CorrelationID))

	require.Len(t, queue.items, 1)
	assert.Equal(t, res.CorrelationID, queue.items[0].SourceEntityID)
	assert.Equal(t, best.ID, queue.items[0].CandidateEntityID)
	assert.InDelta(t, 0.95, queue.items[0].SimilarityScore, 1e-9)

	assert.False(t, fx.cached(models.EntityTypePerson, "jon smyth"))
}

func TestResolver_Resolve_SynonymBand(t *testing.T) {
	fx, best := fuzzyFixture(t, 0.85, nil)
	ctx := context.Background()

	res, err := fx.resolver.Resolve(ctx, "Jon Smyth", models.EntityTypePerson)

	require.NoError(t, err)
	assert.Equal(t, models.DecisionSynonymOnly, res.Decision)
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
	assert.Equal(t, "composite similarity 0.8500", res.Reasoning)
	assert.True(t, res.WasNewSynonymCreated)
	assert.False(t, res.IsNewEntity)
	assert.Equal(t, best.ID, res.Entity.ID)
	assert.Equal(t, "Jon Smith", res.MatchedName)

	require.Len(t, res.Synonyms, 1)
	stored := fx.state.synonym(res.Synonyms[0].ID)
	require.NotNil(t, stored)
	assert.Equal(t, "Jon Smyth", stored.Value)
	assert.Equal(t, "jon smyth", stored.NormalizedValue)
	assert.Equal(t, models.SynonymSourceSystem, stored.Source)
	assert.InDelta(t, 0.85, stored.Confidence, 1e-9)
	assert.Equal(t, best.ID, stored.EntityID)

	details := fx.state.auditDetails(models.AuditActionSynonymCreated)
	require.NotNil(t, details)
	assert.Equal(t, stored.ID, details["synonymId"])
	assert.Equal(t, "Jon Smyth", details["value"])

	records := fx.state.decisionsFor(res.CorrelationID)
	require.Len(t, records, 2)
	assert.Equal(t, models.MatchOutcomeSynonym, records[0].Outcome)

	assert.True(t, fx.cached(models.EntityTypePerson, "jon smyth"))
}

func TestResolver_Resolve_ReviewBand(t *testing.T) {
	t.Run("submits to the queue", func(t *testing.T) {
		fx, best := fuzzyFixture(t, 0.70, nil)
		queue := fx.withQueue()
		ctx := context.Background()

		res, err := fx.resolver.Resolve(ctx, "Jon Smyth", models.EntityTypePerson)

		require.NoError(t, err)
		assert.Equal(t, models.DecisionReview, res.Decision)
		assert.InDelta(t, 0.70, res.Confidence, 1e-9)
		assert.True(t, res.IsNewEntity)
		assert.Equal(t, res.CorrelationID, res.Entity.ID)
		assert.Equal(t, "Jon Smith", res.MatchedName)

		require.Len(t, queue.items, 1)
		item := queue.items[0]
		assert.Equal(t, res.CorrelationID, item.SourceEntityID)
		assert.Equal(t, best.ID, item.CandidateEntityID)
		assert.Equal(t, "Jon Smyth", item.SourceName)
		assert.Equal(t, "Jon Smith", item.CandidateName)
		assert.Equal(t, models.EntityTypePerson, item.EntityType)
		assert.InDelta(t, 0.70, item.SimilarityScore, 1e-9)

		// The queue took it, so no audit fallback.
		assert.NotContains(t, fx.state.auditActions(), models.AuditActionManualReviewRequested)

		// REVIEW is undecided; it never enters the cache.
		assert.False(t, fx.cached(models.EntityTypePerson, "jon smyth"))
	})

	t.Run("queue failure falls back to the audit trail", func(t *testing.T) {
		fx, _ := fuzzyFixture(t, 0.70, nil)
		queue := fx.withQueue()
		queue.submitErr = errors.New("queue full")
		ctx := context.Background()

		res, err := fx.resolver.Resolve(ctx, "Jon Smyth", models.EntityTypePerson)

		require.NoError(t, err)
		assert.Equal(t, models.DecisionReview, res.Decision)
		assert.Empty(t, queue.items)
		assert.Contains(t, fx.state.auditActions(), models.AuditActionManualReviewRequested)
	})
}

func TestResolver_Resolve_FullScanFallback(t *testing.T) {
	fx := newResolverFixture(t, nil)
	fx.resolver.strategy = staticStrategy{"blk"}
	fx.resolver.scorer = stubScorer{"jon smith": 0.95}
	ctx := context.Background()

	// The candidate exists but was never indexed, so blocking keys find
	// nothing and the scan falls back to every active entity of the type.
	fx.seedEntity(t, "cand-1", "Jon Smith", "jon smith", models.EntityTypePerson)

	res, err := fx.resolver.Resolve(ctx, "Jon Smyth", models.EntityTypePerson)

	require.NoError(t, err)
	assert.Equal(t, models.DecisionAutoMerge, res.Decision)
	assert.Equal(t, 1, fx.merger.callCount())
	assert.Equal(t, "cand-1", res.Entity.ID)
}

func TestResolver_Resolve_LLMEnrichment(t *testing.T) {
	t.Run("verdict above confidence threshold is applied", func(t *testing.T) {
		fx, best := fuzzyFixture(t, 0.75, func(o *Options) { o.UseLLM = true })
		fx.llm.available = true
		fx.llm.verdict = &llm.Verdict{Score: 0.97, Decision: models.DecisionAutoMerge, Reasoning: "same person, spelling variant"}
		ctx := context.Background()

		res, err := fx.resolver.Resolve(ctx, "Jon Smyth", models.EntityTypePerson)

		require.NoError(t, err)
		assert.Equal(t, models.DecisionAutoMerge, res.Decision)
		assert.True(t, res.WasMerged)
		assert.InDelta(t, 0.97, res.Confidence, 1e-9)
		assert.Equal(t, "same person, spelling variant", res.Reasoning)

		require.Len(t, fx.llm.requests, 1)
		assert.Equal(t, llm.Request{
			InputName:         "Jon Smyth",
			CandidateName:     "Jon Smith",
			EntityType:        models.EntityTypePerson,
			CandidateEntityID: best.ID,
			CompositeScore:    0.75,
		}, fx.llm.requests[0])

		records := fx.state.decisionsFor(res.CorrelationID)
		require.Len(t, records, 2)
		assert.Equal(t, "LLM", records[0].Evaluator)
		require.NotNil(t, records[0].Scores.LLM)
		assert.InDelta(t, 0.97, *records[0].Scores.LLM, 1e-9)
		assert.InDelta(t, 0.97, records[0].FinalScore, 1e-9)
		assert.Equal(t, models.MatchOutcomeAutoMerge, records[0].Outcome)

		actions := fx.state.auditActions()
		assert.Contains(t, actions, models.AuditActionLLMEnrichmentRequested)
		assert.Contains(t, actions, models.AuditActionLLMEnrichmentCompleted)
		details := fx.state.auditDetails(models.AuditActionLLMEnrichmentCompleted)
		require.NotNil(t, details)
		assert.Equal(t, true, details["applied"])
	})

	t.Run("verdict below confidence threshold is ignored", func(t *testing.T) {
		fx, _ := fuzzyFixture(t, 0.75, func(o *Options) { o.UseLLM = true })
		fx.llm.available = true
		fx.llm.verdict = &llm.Verdict{Score: 0.70, Decision: models.DecisionReview, Reasoning: "uncertain"}
		ctx := context.Background()

		res, err := fx.resolver.Resolve(ctx, "Jon Smyth", models.EntityTypePerson)

		require.NoError(t, err)
		assert.Equal(t, models.DecisionReview, res.Decision)
		assert.InDelta(t, 0.75, res.Confidence, 1e-9)
		assert.Equal(t, "composite similarity 0.7500", res.Reasoning)
		assert.Equal(t, 0, fx.merger.callCount())

		records := fx.state.decisionsFor(res.CorrelationID)
		require.Len(t, records, 2)
		assert.Equal(t, models.DefaultEvaluator, records[0].Evaluator)
		assert.Nil(t, records[0].Scores.LLM)

		details := fx.state.auditDetails(models.AuditActionLLMEnrichmentCompleted)
		require.NotNil(t, details)
		assert.Equal(t, false, details["applied"])
	})

	t.Run("provider error is non-fatal", func(t *testing.T) {
		fx, _ := fuzzyFixture(t, 0.75, func(o *Options) { o.UseLLM = true })
		fx.llm.available = true
		fx.llm.err = errors.New("model overloaded")
		ctx := context.Background()

		res, err := fx.resolver.Resolve(ctx, "Jon Smyth", models.EntityTypePerson)

		require.NoError(t, err)
		assert.Equal(t, models.DecisionReview, res.Decision)

		actions := fx.state.auditActions()
		assert.Contains(t, actions, models.AuditActionLLMEnrichmentRequested)
		assert.NotContains(t, actions, models.AuditActionLLMEnrichmentCompleted)
	})

	t.Run("unavailable provider is skipped", func(t *testing.T) {
		fx, _ := fuzzyFixture(t, 0.75, func(o *Options) { o.UseLLM = true })
		fx.llm.available = false
		ctx := context.Background()

		res, err := fx.resolver.Resolve(ctx, "Jon Smyth", models.EntityTypePerson)

		require.NoError(t, err)
		assert.Equal(t, models.DecisionReview, res.Decision)
		assert.Empty(t, fx.llm.requests)
	})

	t.Run("not consulted outside the borderline band", func(t *testing.T) {
		tests := []struct {
			name         string
			score        float64
			wantDecision models.Decision
		}{
			{name: "at auto-merge", score: 0.95, wantDecision: models.DecisionAutoMerge},
			{name: "below review", score: 0.50, wantDecision: models.DecisionNoMatch},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				fx, _ := fuzzyFixture(t, tt.score, func(o *Options) { o.UseLLM = true })
				fx.llm.available = true
				fx.llm.verdict = &llm.Verdict{Score: 0.99}

				res, err := fx.resolver.Resolve(context.Background(), "Jon Smyth", models.EntityTypePerson)

				require.NoError(t, err)
				assert.Equal(t, tt.wantDecision, res.Decision)
				assert.Empty(t, fx.llm.requests)
			})
		}
	})
}

func TestResolver_Resolve_LockFailureProceeds(t *testing.T) {
	fx := newResolverFixture(t, nil)
	fx.locker.err = locking.ErrLockNotAcquired
	ctx := context.Background()

	res, err := fx.resolver.Resolve(ctx, "Jane Smith", models.EntityTypePerson)

	require.NoError(t, err)
	assert.Equal(t, models.DecisionNoMatch, res.Decision)
	assert.Equal(t, 1, fx.locker.acquires)
	assert.Equal(t, 0, fx.locker.releases)
}

func TestResolver_Resolve_DecisionPersistFailureIsNonFatal(t *testing.T) {
	fx, _ := fuzzyFixture(t, 0.95, nil)
	fx.state.createBatchErr = errors.New("store down")
	ctx := context.Background()

	res, err := fx.resolver.Resolve(ctx, "Jon Smyth", models.EntityTypePerson)

	require.NoError(t, err)
	assert.Equal(t, models.DecisionAutoMerge, res.Decision)
	assert.Empty(t, fx.state.decisionsFor(res.CorrelationID))
}

func TestResolver_Resolve_BlockingIndexFailureIsNonFatal(t *testing.T) {
	fx := newResolverFixture(t, nil)
	fx.state.indexErr = errors.New("index write failed")
	ctx := context.Background()

	res, err := fx.resolver.Resolve(ctx, "Jane Smith", models.EntityTypePerson)

	require.NoError(t, err)
	assert.Equal(t, models.DecisionNoMatch, res.Decision)
	assert.Empty(t, fx.state.keysFor(res.Entity.ID))
}
