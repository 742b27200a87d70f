package resolution

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/llm"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// maxNameRunes bounds the raw input length.
const maxNameRunes = 1000

func validateInput(rawName, entityType string) error {
	if strings.TrimSpace(rawName) == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "name must not be blank")
	}
	if utf8.RuneCountInString(rawName) > maxNameRunes {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "name exceeds %d characters", maxNameRunes)
	}
	for _, c := range rawName {
		if c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		if c < 0x20 || (c >= 0x7f && c <= 0x9f) {
			return httperror.NewHTTPError(http.StatusBadRequest, "name contains control characters")
		}
	}
	if strings.TrimSpace(entityType) == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "entity type must not be blank")
	}
	return nil
}

// Resolve runs the pipeline for one raw name: normalize, check the cache,
// take the per-key lock, then exact match, synonym match, fuzzy scan with
// optional LLM enrichment, and finally the action the winning score calls
// for. The returned result's Ref stays valid across later merges.
func (r *Resolver) Resolve(ctx context.Context, rawName, entityType string) (*models.ResolutionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.Resolve")
	defer span.End()

	start := time.Now()

	if err := validateInput(rawName, entityType); err != nil {
		return nil, err
	}

	nName := r.normalizer.Normalize(rawName, entityType)
	if nName == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "name normalizes to an empty string")
	}

	if res, ok := r.cachedResult(ctx, entityType, nName); ok {
		metrics.RecordCacheHit(entityType)
		return res, nil
	}
	metrics.RecordCacheMiss(entityType)

	// Serialize concurrent resolutions of the same normalized name so two
	// callers cannot race a pair of duplicate entities into the graph. The
	// lock is best-effort; without it the worst case is a duplicate a later
	// merge cleans up.
	lockKey := nName + ":" + entityType
	lock, err := r.locker.TryAcquire(ctx, lockKey, r.options.LockTTL, r.options.LockWait)
	if err != nil {
		metrics.RecordLockFailure()
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"lock_key": lockKey,
		}).Warn("Failed to acquire resolution lock, proceeding without it")
	} else {
		defer func() {
			if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
				r.logger.WithContext(ctx).WithError(rerr).WithFields(map[string]any{
					"lock_key": lockKey,
				}).Warn("Failed to release resolution lock")
			}
		}()

		// Whoever held the lock before us may have resolved the same name.
		if res, ok := r.cachedResult(ctx, entityType, nName); ok {
			metrics.RecordCacheHit(entityType)
			return res, nil
		}
	}

	correlationID := uuid.New().String()
	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"input_name":     rawName,
		"entity_type":    entityType,
		"correlation_id": correlationID,
	})

	result, err := r.resolve(ctx, log, rawName, nName, entityType, correlationID)
	if err != nil {
		return nil, err
	}

	// REVIEW is not terminal; caching it would keep serving the undecided
	// answer after a human settles the match.
	if result.Decision != models.DecisionReview {
		r.cache.Set(ctx, entityType, nName, result, r.options.CacheTTL)
	}

	metrics.RecordResolution(entityType, string(result.Decision), time.Since(start).Seconds())
	log.WithFields(map[string]any{
		"decision":   string(result.Decision),
		"confidence": result.Confidence,
		"entity_id":  result.Entity.ID,
	}).Info("Resolved entity")

	return result, nil
}

// cachedResult returns a caller-owned copy of the cache entry with a fresh
// ref bound to the cached entity. Entries are shared between callers, so the
// copy keeps one caller's result from aliasing another's.
func (r *Resolver) cachedResult(ctx context.Context, entityType, nName string) (*models.ResolutionResult, bool) {
	cached, ok := r.cache.Get(ctx, entityType, nName)
	if !ok {
		return nil, false
	}
	res := *cached
	res.Ref = r.EntityRef(res.Entity.ID, res.Entity.Type)
	return &res, true
}

func (r *Resolver) resolve(ctx context.Context, log ectologger.Logger, rawName, nName, entityType, correlationID string) (*models.ResolutionResult, error) {
	matches, err := r.entities.FindByNormalizedName(ctx, nName, entityType)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		winner := matches[0]
		synonyms, err := r.synonyms.ListByEntity(ctx, winner.ID)
		if err != nil {
			return nil, err
		}
		log.WithFields(map[string]any{"entity_id": winner.ID}).Debug("Exact match on normalized name")
		return &models.ResolutionResult{
			Ref:           r.EntityRef(winner.ID, winner.Type),
			Entity:        &winner,
			Synonyms:      synonyms,
			Decision:      models.DecisionAutoMerge,
			Confidence:    1.0,
			Reasoning:     "exact normalized match",
			InputName:     rawName,
			MatchedName:   winner.CanonicalName,
			CorrelationID: correlationID,
		}, nil
	}

	syn, owner, err := r.synonyms.FindByNormalizedValue(ctx, nName, entityType)
	if err != nil {
		return nil, err
	}
	if syn != nil {
		if err := r.synonyms.Reinforce(ctx, syn.ID); err != nil {
			log.WithError(err).WithFields(map[string]any{"synonym_id": syn.ID}).Warn("Failed to reinforce synonym")
		}
		synonyms, err := r.synonyms.ListByEntity(ctx, owner.ID)
		if err != nil {
			return nil, err
		}
		log.WithFields(map[string]any{"entity_id": owner.ID, "synonym_id": syn.ID}).Debug("Synonym match")
		return &models.ResolutionResult{
			Ref:                  r.EntityRef(owner.ID, owner.Type),
			Entity:               owner,
			Synonyms:             synonyms,
			Decision:             models.DecisionAutoMerge,
			Confidence:           1.0,
			Reasoning:            "synonym match",
			WasMatchedViaSynonym: true,
			InputName:            rawName,
			MatchedName:          syn.Value,
			CorrelationID:        correlationID,
		}, nil
	}

	return r.resolveFuzzy(ctx, log, rawName, nName, entityType, correlationID)
}

func (r *Resolver) resolveFuzzy(ctx context.Context, log ectologger.Logger, rawName, nName, entityType, correlationID string) (*models.ResolutionResult, error) {
	keys := r.strategy.Keys(nName)
	candidates, err := r.entities.FindCandidatesByBlockingKeys(ctx, keys, entityType)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		candidates, err = r.entities.ListActiveByType(ctx, entityType)
		if err != nil {
			return nil, err
		}
		metrics.RecordFullScanFallback(entityType)
		log.WithFields(map[string]any{
			"candidate_count": len(candidates),
		}).Warn("Blocking keys produced no candidates, falling back to full scan")
	}
	metrics.RecordFuzzyCandidates(len(candidates))

	var (
		best      *models.Entity
		bestIdx   = -1
		bestScore float64
	)
	records := make([]models.MatchDecisionRecord, 0, len(candidates))
	for i := range candidates {
		cand := &candidates[i]
		bd := r.scorer.Score(nName, cand.NormalizedName)
		// Normalization can be lossy; the raw name sometimes scores better.
		if alt := r.scorer.Score(nName, strings.ToLower(cand.CanonicalName)); alt.Composite > bd.Composite {
			bd = alt
		}
		records = append(records, models.MatchDecisionRecord{
			InputEntityTempID: correlationID,
			InputName:         rawName,
			CandidateEntityID: cand.ID,
			CandidateName:     cand.CanonicalName,
			Type:              entityType,
			Scores: models.ScoreBreakdown{
				Exact:       bd.Exact,
				Levenshtein: bd.Levenshtein,
				JaroWinkler: bd.JaroWinkler,
				Jaccard:     bd.Jaccard,
			},
			FinalScore:         bd.Composite,
			AutoMergeThreshold: r.options.AutoMergeThreshold,
			SynonymThreshold:   r.options.SynonymThreshold,
			ReviewThreshold:    r.options.ReviewThreshold,
			Outcome:            r.outcomeFor(bd.Composite),
		})
		if best == nil || bd.Composite > bestScore {
			best = cand
			bestIdx = len(records) - 1
			bestScore = bd.Composite
		}
	}

	reasoning := fmt.Sprintf("composite similarity %.4f", bestScore)
	if best != nil && r.options.UseLLM &&
		bestScore > r.options.ReviewThreshold && bestScore < r.options.AutoMergeThreshold &&
		r.llm.Available(ctx) {
		if verdict := r.enrichWithLLM(ctx, log, rawName, best, bestScore, correlationID); verdict != nil && verdict.Score >= r.options.LLMConfidenceThreshold {
			bestScore = verdict.Score
			reasoning = verdict.Reasoning
			score := verdict.Score
			records[bestIdx].Scores.LLM = &score
			records[bestIdx].FinalScore = verdict.Score
			records[bestIdx].Outcome = r.outcomeFor(verdict.Score)
			records[bestIdx].Evaluator = "LLM"
		}
	}

	// The evaluation trail lands before any mutation so a partial failure
	// still leaves the scores on record.
	if len(records) > 0 {
		if err := r.decisions.CreateBatch(ctx, records); err != nil {
			log.WithError(err).Error("Failed to persist match decision records")
		}
	}

	if best == nil || bestScore < r.options.ReviewThreshold {
		return r.createNewEntity(ctx, log, rawName, nName, entityType, correlationID)
	}

	switch {
	case bestScore >= r.options.AutoMergeThreshold:
		if !r.options.AutoMergeEnabled {
			return r.routeToReview(ctx, log, rawName, nName, entityType, correlationID, best, bestScore, "auto-merge disabled")
		}
		return r.autoMerge(ctx, log, rawName, nName, entityType, correlationID, best, bestScore, reasoning)
	case bestScore >= r.options.SynonymThreshold:
		return r.attachSynonym(ctx, log, rawName, nName, entityType, correlationID, best, bestScore, reasoning)
	default:
		return r.routeToReview(ctx, log, rawName, nName, entityType, correlationID, best, bestScore, reasoning)
	}
}

func (r *Resolver) outcomeFor(score float64) models.MatchOutcome {
	switch {
	case score >= r.options.AutoMergeThreshold:
		return models.MatchOutcomeAutoMerge
	case score >= r.options.SynonymThreshold:
		return models.MatchOutcomeSynonym
	case score >= r.options.ReviewThreshold:
		return models.MatchOutcomeReview
	default:
		return models.MatchOutcomeNoMatch
	}
}

// enrichWithLLM asks the provider to judge the borderline match. Provider
// failure is non-fatal; the composite score stands.
func (r *Resolver) enrichWithLLM(ctx context.Context, log ectologger.Logger, rawName string, best *models.Entity, compositeScore float64, correlationID string) *llm.Verdict {
	r.recordAudit(ctx, &models.AuditEntry{
		Action:   models.AuditActionLLMEnrichmentRequested,
		EntityID: best.ID,
		Details: map[string]any{
			"inputName":      rawName,
			"candidateName":  best.CanonicalName,
			"compositeScore": compositeScore,
			"correlationId":  correlationID,
		},
	})

	verdict, err := r.llm.Enrich(ctx, llm.Request{
		InputName:         rawName,
		CandidateName:     best.CanonicalName,
		EntityType:        best.Type,
		CandidateEntityID: best.ID,
		CompositeScore:    compositeScore,
	})
	if err != nil {
		metrics.RecordLLMCall("error")
		log.WithError(err).Warn("LLM enrichment failed, continuing with composite score")
		return nil
	}
	metrics.RecordLLMCall("success")

	r.recordAudit(ctx, &models.AuditEntry{
		Action:   models.AuditActionLLMEnrichmentCompleted,
		EntityID: best.ID,
		Details: map[string]any{
			"score":         verdict.Score,
			"decision":      string(verdict.Decision),
			"reasoning":     verdict.Reasoning,
			"applied":       verdict.Score >= r.options.LLMConfidenceThreshold,
			"correlationId": correlationID,
		},
	})

	return verdict
}

// createInputEntity persists the raw input as a new ACTIVE entity. The
// correlation id becomes the entity id, which also correlates the entity
// with the call's decision records.
func (r *Resolver) createInputEntity(ctx context.Context, log ectologger.Logger, rawName, nName, entityType, correlationID string, indexKeys bool) (*models.Entity, error) {
	ent := &models.Entity{
		ID:              correlationID,
		CanonicalName:   rawName,
		NormalizedName:  nName,
		Type:            entityType,
		ConfidenceScore: 1.0,
	}
	if err := r.entities.Create(ctx, ent); err != nil {
		return nil, err
	}

	if indexKeys {
		r.indexBlockingKeys(ctx, log, ent.ID, nName)
	}

	r.recordAudit(ctx, &models.AuditEntry{
		Action:   models.AuditActionEntityCreated,
		EntityID: ent.ID,
		Details: map[string]any{
			"canonicalName":  rawName,
			"normalizedName": nName,
			"entityType":     entityType,
			"correlationId":  correlationID,
		},
	})
	if err := r.emitter.EmitEntityCreated(ctx, ent, correlationID); err != nil {
		log.WithError(err).Warn("Failed to emit entity.created event")
	}

	return ent, nil
}

// indexBlockingKeys is best-effort: an unindexed entity is still findable
// through the full-scan fallback.
func (r *Resolver) indexBlockingKeys(ctx context.Context, log ectologger.Logger, entityID, nName string) {
	if err := r.blockingKeys.IndexEntity(ctx, entityID, r.strategy.Keys(nName)); err != nil {
		log.WithError(err).WithFields(map[string]any{"entity_id": entityID}).Warn("Failed to index blocking keys")
	}
}

func (r *Resolver) createNewEntity(ctx context.Context, log ectologger.Logger, rawName, nName, entityType, correlationID string) (*models.ResolutionResult, error) {
	ent, err := r.createInputEntity(ctx, log, rawName, nName, entityType, correlationID, true)
	if err != nil {
		return nil, err
	}
	return &models.ResolutionResult{
		Ref:           r.EntityRef(ent.ID, ent.Type),
		Entity:        ent,
		Decision:      models.DecisionNoMatch,
		Confidence:    1.0,
		Reasoning:     "no candidate at or above the review threshold",
		IsNewEntity:   true,
		InputName:     rawName,
		CorrelationID: correlationID,
	}, nil
}

func (r *Resolver) autoMerge(ctx context.Context, log ectologger.Logger, rawName, nName, entityType, correlationID string, target *models.Entity, score float64, reasoning string) (*models.ResolutionResult, error) {
	source, err := r.createInputEntity(ctx, log, rawName, nName, entityType, correlationID, false)
	if err != nil {
		return nil, err
	}

	mergeRes, err := r.merger.Merge(ctx, source.ID, target.ID, models.MatchSummary{
		Confidence:    score,
		Decision:      models.DecisionAutoMerge,
		Reasoning:     reasoning,
		CorrelationID: correlationID,
	}, models.DefaultEvaluator, models.MergeStrategyKeepTarget)
	if err != nil {
		log.WithError(err).WithFields(map[string]any{
			"target_entity_id": target.ID,
		}).Warn("Auto-merge failed, downgrading to review")
		// The input entity outlives the failed merge, so index it.
		r.indexBlockingKeys(ctx, log, source.ID, nName)
		return r.reviewResult(ctx, log, source, target, score, correlationID, fmt.Sprintf("auto-merge failed: %v", err))
	}

	canonical, err := r.entities.GetByID(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	synonyms, err := r.synonyms.ListByEntity(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	return &models.ResolutionResult{
		Ref:                  r.EntityRef(canonical.ID, canonical.Type),
		Entity:               canonical,
		Synonyms:             synonyms,
		Decision:             models.DecisionAutoMerge,
		Confidence:           score,
		Reasoning:            reasoning,
		WasMerged:            true,
		WasNewSynonymCreated: mergeRes.SynonymID != "",
		InputName:            rawName,
		MatchedName:          target.CanonicalName,
		CorrelationID:        correlationID,
	}, nil
}

func (r *Resolver) attachSynonym(ctx context.Context, log ectologger.Logger, rawName, nName, entityType, correlationID string, target *models.Entity, score float64, reasoning string) (*models.ResolutionResult, error) {
	syn := &models.Synonym{
		Value:           rawName,
		NormalizedValue: nName,
		Source:          models.SynonymSourceSystem,
		Confidence:      score,
		EntityID:        target.ID,
	}
	if err := r.synonyms.Create(ctx, syn); err != nil {
		return nil, err
	}

	r.recordAudit(ctx, &models.AuditEntry{
		Action:   models.AuditActionSynonymCreated,
		EntityID: target.ID,
		Details: map[string]any{
			"synonymId":     syn.ID,
			"value":         rawName,
			"confidence":    score,
			"correlationId": correlationID,
		},
	})

	synonyms, err := r.synonyms.ListByEntity(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	return &models.ResolutionResult{
		Ref:                  r.EntityRef(target.ID, target.Type),
		Entity:               target,
		Synonyms:             synonyms,
		Decision:             models.DecisionSynonymOnly,
		Confidence:           score,
		Reasoning:            reasoning,
		WasNewSynonymCreated: true,
		InputName:            rawName,
		MatchedName:          target.CanonicalName,
		CorrelationID:        correlationID,
	}, nil
}

// routeToReview creates the input as a real entity first; an approval later
// merges it, a rejection leaves it standing on its own.
func (r *Resolver) routeToReview(ctx context.Context, log ectologger.Logger, rawName, nName, entityType, correlationID string, candidate *models.Entity, score float64, reasoning string) (*models.ResolutionResult, error) {
	source, err := r.createInputEntity(ctx, log, rawName, nName, entityType, correlationID, true)
	if err != nil {
		return nil, err
	}
	return r.reviewResult(ctx, log, source, candidate, score, correlationID, reasoning)
}

func (r *Resolver) reviewResult(ctx context.Context, log ectologger.Logger, source, candidate *models.Entity, score float64, correlationID, reasoning string) (*models.ResolutionResult, error) {
	r.submitReview(ctx, log, source, candidate, score, correlationID)

	return &models.ResolutionResult{
		Ref:           r.EntityRef(source.ID, source.Type),
		Entity:        source,
		Decision:      models.DecisionReview,
		Confidence:    score,
		Reasoning:     reasoning,
		IsNewEntity:   true,
		InputName:     source.CanonicalName,
		MatchedName:   candidate.CanonicalName,
		CorrelationID: correlationID,
	}, nil
}

// submitReview hands the uncertain match to the queue, or leaves a
// MANUAL_REVIEW_REQUESTED audit entry when no queue is configured (or the
// queue refused the item).
func (r *Resolver) submitReview(ctx context.Context, log ectologger.Logger, source, candidate *models.Entity, score float64, correlationID string) {
	if r.queue != nil {
		item := &models.ReviewItem{
			SourceEntityID:    source.ID,
			CandidateEntityID: candidate.ID,
			SourceName:        source.CanonicalName,
			CandidateName:     candidate.CanonicalName,
			EntityType:        source.Type,
			SimilarityScore:   score,
		}
		err := r.queue.Submit(ctx, item)
		if err == nil {
			return
		}
		log.WithError(err).Warn("Failed to submit review item, falling back to the audit trail")
	}

	r.recordAudit(ctx, &models.AuditEntry{
		Action:   models.AuditActionManualReviewRequested,
		EntityID: source.ID,
		Details: map[string]any{
			"candidateEntityId": candidate.ID,
			"candidateName":     candidate.CanonicalName,
			"similarityScore":   score,
			"correlationId":     correlationID,
		},
	})
}
