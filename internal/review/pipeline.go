package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RequirementSource lists extracted tender requirements, ordered by
// dimension then requirement id.
type RequirementSource interface {
	ListRequirements(ctx context.Context, projectID string) ([]Requirement, error)
}

// ResponseSource lists one bidder's extracted responses.
type ResponseSource interface {
	ListResponses(ctx context.Context, projectID, bidderName string) ([]Response, error)
}

// ItemSink persists a run's result set, replacing the prior set for
// the same (project, bidder) pair atomically.
type ItemSink interface {
	ReplaceReviewItems(ctx context.Context, projectID, bidderName string, items []ReviewItem) error
}

type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func StageNameFromError(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "pipeline"
}

// Pipeline wires the review stages in their fixed order: process
// filter, candidate mapper, hard gate, quantitative, semantic
// escalation, consistency, aggregation. Each requirement is claimed by
// at most one of the judging stages; unresolved items flow to the
// escalator. Each run is a fresh computation over a consistent
// snapshot; no state is shared across runs.
type Pipeline struct {
	requirements RequirementSource
	responses    ResponseSource
	segments     SegmentStore
	sink         ItemSink
	model        ChatModel
	retriever    Retriever
	keywords     *KeywordTable
	th           Thresholds
}

// Options carries the optional collaborators. A nil Model is valid and
// forces all semantic items to PENDING; a nil Sink skips persistence.
type Options struct {
	Model      ChatModel
	Retriever  Retriever
	Sink       ItemSink
	Keywords   *KeywordTable
	Thresholds *Thresholds
}

func NewPipeline(reqs RequirementSource, resps ResponseSource, segs SegmentStore, opts Options) *Pipeline {
	kw := opts.Keywords
	if kw == nil {
		kw = DefaultKeywords()
	}
	th := DefaultThresholds()
	if opts.Thresholds != nil {
		th = *opts.Thresholds
	}
	return &Pipeline{
		requirements: reqs,
		responses:    resps,
		segments:     segs,
		sink:         opts.Sink,
		model:        opts.Model,
		retriever:    opts.Retriever,
		keywords:     kw,
		th:           th,
	}
}

type RunInput struct {
	ProjectID   string
	BidderName  string
	UseSemantic bool
	ReviewRunID string
}

type RunResult struct {
	RunID string
	Items []ReviewItem
	Stats Stats
}

// Run executes one full review for a (project, bidder) pair.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (RunResult, error) {
	var res RunResult
	if strings.TrimSpace(in.ProjectID) == "" {
		return res, errors.New("project id is required")
	}
	if strings.TrimSpace(in.BidderName) == "" {
		return res, errors.New("bidder name is required")
	}
	runID := strings.TrimSpace(in.ReviewRunID)
	if runID == "" {
		runID = uuid.NewString()
	}
	res.RunID = runID

	reqs, err := p.requirements.ListRequirements(ctx, in.ProjectID)
	if err != nil {
		return res, &StageError{Stage: "load_requirements", Err: err}
	}
	resps, err := p.responses.ListResponses(ctx, in.ProjectID, in.BidderName)
	if err != nil {
		return res, &StageError{Stage: "load_responses", Err: err}
	}

	// Evidence prefetch is tolerant end to end: a failed batch fetch
	// degrades every entry to fallback_chunk instead of aborting.
	segs := map[string]SegmentRecord{}
	if p.segments != nil {
		if fetched, err := p.segments.PrefetchSegments(ctx, CollectSegmentIDs(reqs, resps)); err == nil {
			segs = fetched
		}
	}

	mapper := NewMapper(p.keywords)
	gate := NewHardGate(p.keywords)
	quant := NewQuantitative(p.th)

	items := make([]*ReviewItem, 0, len(reqs)+3)
	var jobs []escalationJob
	for _, req := range reqs {
		if item := FilterProcessClause(req, p.keywords); item != nil {
			item.Evidence = MergeEvidence(req, nil, segs)
			items = append(items, item)
			continue
		}

		cs := mapper.MapCandidates(req, resps)
		switch {
		case gate.Applies(req):
			item := gate.Evaluate(req, cs)
			item.Evidence = MergeEvidence(req, cs.Best, segs)
			items = append(items, &item)
			if item.Status == StatusPending {
				jobs = append(jobs, escalationJob{req: req, item: &item})
			}
		case quant.Applies(req):
			item := quant.Evaluate(req, cs)
			item.Evidence = MergeEvidence(req, cs.Best, segs)
			items = append(items, &item)
			if item.Status == StatusPending {
				jobs = append(jobs, escalationJob{req: req, item: &item})
			}
		default:
			// Unclaimed by the deterministic stages (SEMANTIC method or
			// soft presence-style clauses): owned by the escalator.
			item := &ReviewItem{
				RequirementID: req.RequirementID,
				Dimension:     req.Dimension,
				Status:        StatusPending,
				IsHard:        req.IsHard || req.MustReject,
				Evaluator:     EvaluatorSemanticPending,
				Trace:         Trace{Mapping: cs.MappingTrace()},
				Evidence:      MergeEvidence(req, cs.Best, segs),
			}
			if cs.Best != nil {
				item.MatchedResponseID = cs.Best.ID
			}
			items = append(items, item)
			jobs = append(jobs, escalationJob{req: req, item: item})
		}
	}

	model := p.model
	if !in.UseSemantic {
		model = nil
	}
	NewEscalator(model, p.retriever, p.th).Escalate(ctx, in.ProjectID, jobs)

	// Consistency needs the full response set and therefore runs after
	// all per-requirement stages.
	for _, item := range CheckConsistency(resps, p.th) {
		item := item
		items = append(items, &item)
	}

	res.Items = make([]ReviewItem, len(items))
	for i, item := range items {
		item.ReviewRunID = runID
		res.Items[i] = *item
	}
	res.Stats = computeStats(res.Items)

	if p.sink != nil {
		if err := p.sink.ReplaceReviewItems(ctx, in.ProjectID, in.BidderName, res.Items); err != nil {
			return res, &StageError{Stage: "persist", Err: err}
		}
	}
	return res, nil
}

func computeStats(items []ReviewItem) Stats {
	stats := Stats{Total: len(items), ByEvaluator: map[string]int{}}
	for _, item := range items {
		switch item.Status {
		case StatusPass:
			stats.Pass++
		case StatusFail:
			stats.Fail++
		case StatusWarn:
			stats.Warn++
		case StatusPending:
			stats.Pending++
		}
		stats.ByEvaluator[item.Evaluator]++
	}
	return stats
}
