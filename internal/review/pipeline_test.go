package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
)

type fakeData struct {
	reqs     []Requirement
	resps    []Response
	segs     map[string]SegmentRecord
	reqErr   error
	respErr  error
	segErr   error
	sinkErr  error
	sinkCall int
	saved    []ReviewItem
}

func (f *fakeData) ListRequirements(context.Context, string) ([]Requirement, error) {
	return f.reqs, f.reqErr
}

func (f *fakeData) ListResponses(context.Context, string, string) ([]Response, error) {
	return f.resps, f.respErr
}

func (f *fakeData) PrefetchSegments(_ context.Context, ids []string) (map[string]SegmentRecord, error) {
	if f.segErr != nil {
		return nil, f.segErr
	}
	out := map[string]SegmentRecord{}
	for _, id := range ids {
		if seg, ok := f.segs[id]; ok {
			out[id] = seg
		}
	}
	return out, nil
}

func (f *fakeData) ReplaceReviewItems(_ context.Context, _, _ string, items []ReviewItem) error {
	f.sinkCall++
	f.saved = items
	return f.sinkErr
}

func reviewFixture() *fakeData {
	return &fakeData{
		reqs: []Requirement{
			{RequirementID: "R1", Dimension: DimensionQualification, IsHard: true,
				EvalMethod: EvalPresence, Text: "须提供营业执照",
				EvidenceSegmentIDs: []string{"t1"}},
			{RequirementID: "R2", Dimension: DimensionTechnical, IsHard: true,
				EvalMethod:  EvalNumeric, Text: "工期不超过90天",
				ValueSchema: &ValueSchema{NormKey: "duration_days", Max: f64(90)}},
			{RequirementID: "R3", Dimension: DimensionOther,
				Text: "开标时投标人代表须现场签到"},
			{RequirementID: "R4", Dimension: DimensionBusiness,
				EvalMethod: EvalSemantic, Text: "售后服务方案须覆盖本地化响应"},
		},
		resps: []Response{
			{ID: "A1", Dimension: DimensionQualification, Text: "已提供营业执照副本",
				EvidenceSegmentIDs: []string{"b1"}},
			{ID: "A2", Dimension: DimensionTechnical, Text: "承诺工期120天",
				NormalizedFields: map[string]any{NormKeyField: "duration_days", "duration_days": 120}},
			{ID: "A3", Dimension: DimensionPrice,
				NormalizedFields: map[string]any{NormKeyField: "bid_price", "bid_price": "100万元"}},
			{ID: "A4", Dimension: DimensionBusiness, Text: "我方在本市设有服务网点"},
		},
		segs: map[string]SegmentRecord{
			"t1": {SegmentID: "t1", ContentText: "资格要求：须提供营业执照"},
			"b1": {SegmentID: "b1", ContentText: "营业执照副本见附件"},
		},
	}
}

func TestPipelineRun(t *testing.T) {
	data := reviewFixture()
	p := NewPipeline(data, data, data, Options{Sink: data})
	res, err := p.Run(context.Background(), RunInput{ProjectID: "p1", BidderName: "bidder-a"})
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID == "" {
		t.Fatal("run id must be assigned")
	}

	byID := map[string]ReviewItem{}
	for _, item := range res.Items {
		byID[item.RequirementID] = item
		if item.ReviewRunID != res.RunID {
			t.Fatalf("item %s carries run id %q", item.RequirementID, item.ReviewRunID)
		}
	}

	if got := byID["R1"]; got.Status != StatusPass || got.Evaluator != EvaluatorHardGate {
		t.Fatalf("R1 = %s/%s, want PASS/hard_gate", got.Status, got.Evaluator)
	}
	if got := byID["R2"]; got.Status != StatusFail || got.Evaluator != EvaluatorQuantitative {
		t.Fatalf("R2 = %s/%s, want FAIL/quantitative", got.Status, got.Evaluator)
	}
	if got := byID["R3"]; got.Status != StatusPending || got.Evaluator != EvaluatorOutOfScope {
		t.Fatalf("R3 = %s/%s, want PENDING/out_of_scope", got.Status, got.Evaluator)
	}
	// No model configured: the semantic requirement lands in the
	// mandatory pending state.
	if got := byID["R4"]; got.Status != StatusPending || got.Evaluator != EvaluatorSemanticPending {
		t.Fatalf("R4 = %s/%s, want PENDING/semantic_pending", got.Status, got.Evaluator)
	}
	if _, ok := byID[ConsistencyPriceID]; !ok {
		t.Fatal("consistency price item missing")
	}

	if data.sinkCall != 1 || len(data.saved) != len(res.Items) {
		t.Fatalf("sink calls = %d, saved = %d items", data.sinkCall, len(data.saved))
	}
	if res.Stats.Total != len(res.Items) || res.Stats.Fail != 1 {
		t.Fatalf("stats = %+v", res.Stats)
	}
}

func TestPipelineDeterministic(t *testing.T) {
	data := reviewFixture()
	p := NewPipeline(data, data, data, Options{Sink: data})
	in := RunInput{ProjectID: "p1", BidderName: "bidder-a"}

	fingerprint := func() []string {
		res, err := p.Run(context.Background(), in)
		if err != nil {
			t.Fatal(err)
		}
		var keys []string
		for _, item := range res.Items {
			keys = append(keys, fmt.Sprintf("%s|%s|%s", item.RequirementID, item.Status, item.Evaluator))
		}
		sort.Strings(keys)
		return keys
	}

	first, second := fingerprint(), fingerprint()
	if strings.Join(first, "\n") != strings.Join(second, "\n") {
		t.Fatalf("two runs over the same snapshot diverged:\n%v\n%v", first, second)
	}
}

func TestPipelineSemanticDisabledNullsModel(t *testing.T) {
	data := reviewFixture()
	model := &fakeModel{response: `{"verdict":"satisfied","confidence":0.9,"reason":"ok"}`}
	p := NewPipeline(data, data, data, Options{Model: model})
	if _, err := p.Run(context.Background(), RunInput{ProjectID: "p1", BidderName: "b"}); err != nil {
		t.Fatal(err)
	}
	if model.calls != 0 {
		t.Fatalf("semantic disabled but model called %d times", model.calls)
	}
}

func TestPipelineSemanticEnabled(t *testing.T) {
	data := reviewFixture()
	model := &fakeModel{response: `{"verdict":"satisfied","confidence":0.9,"reason":"服务承诺满足要求"}`}
	p := NewPipeline(data, data, data, Options{Model: model})
	res, err := p.Run(context.Background(), RunInput{ProjectID: "p1", BidderName: "b", UseSemantic: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range res.Items {
		if item.RequirementID == "R4" {
			if item.Status != StatusPass || item.Evaluator != EvaluatorSemantic {
				t.Fatalf("R4 = %s/%s, want PASS/semantic", item.Status, item.Evaluator)
			}
			return
		}
	}
	t.Fatal("R4 item missing")
}

func TestPipelinePrefetchFailureDegrades(t *testing.T) {
	data := reviewFixture()
	data.segErr = errors.New("segment store down")
	p := NewPipeline(data, data, data, Options{})
	res, err := p.Run(context.Background(), RunInput{ProjectID: "p1", BidderName: "b"})
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range res.Items {
		for _, e := range item.Evidence {
			if e.SegmentID != "" && e.Source != SourceFallbackChunk {
				t.Fatalf("prefetch failure must degrade evidence to fallback entries, got %+v", e)
			}
		}
	}
}

func TestPipelineStageErrors(t *testing.T) {
	data := reviewFixture()
	data.reqErr = errors.New("boom")
	p := NewPipeline(data, data, data, Options{})
	_, err := p.Run(context.Background(), RunInput{ProjectID: "p1", BidderName: "b"})
	if StageNameFromError(err) != "load_requirements" {
		t.Fatalf("stage = %q, err = %v", StageNameFromError(err), err)
	}

	data = reviewFixture()
	data.sinkErr = errors.New("disk full")
	p = NewPipeline(data, data, data, Options{Sink: data})
	_, err = p.Run(context.Background(), RunInput{ProjectID: "p1", BidderName: "b"})
	if StageNameFromError(err) != "persist" {
		t.Fatalf("stage = %q, err = %v", StageNameFromError(err), err)
	}
}

func TestPipelineValidatesInput(t *testing.T) {
	data := reviewFixture()
	p := NewPipeline(data, data, data, Options{})
	if _, err := p.Run(context.Background(), RunInput{BidderName: "b"}); err == nil {
		t.Fatal("missing project id must be rejected")
	}
	if _, err := p.Run(context.Background(), RunInput{ProjectID: "p1"}); err == nil {
		t.Fatal("missing bidder name must be rejected")
	}
}

func TestPipelineKeepsProvidedRunID(t *testing.T) {
	data := reviewFixture()
	p := NewPipeline(data, data, data, Options{})
	res, err := p.Run(context.Background(), RunInput{ProjectID: "p1", BidderName: "b", ReviewRunID: "run-42"})
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID != "run-42" {
		t.Fatalf("run id = %q, want run-42", res.RunID)
	}
}
