package review

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeModel struct {
	response string
	err      error
	calls    int
}

func (f *fakeModel) Chat(context.Context, string, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeRetriever struct {
	chunks []Chunk
	err    error
}

func (f *fakeRetriever) Retrieve(context.Context, string, string, []string, int) ([]Chunk, error) {
	return f.chunks, f.err
}

func escalationFixture() (Requirement, *ReviewItem) {
	req := Requirement{RequirementID: "R1", Dimension: DimensionQualification,
		EvalMethod: EvalSemantic, Text: "须具备类似项目业绩"}
	item := &ReviewItem{RequirementID: "R1", Dimension: DimensionQualification,
		Status: StatusPending, Evaluator: EvaluatorSemanticPending,
		Evidence: []EvidenceEntry{{Role: RoleBid, Quote: "近三年完成同类项目3个", Source: SourceDocSegments}}}
	return req, item
}

func TestEscalatorNoModelForcesPending(t *testing.T) {
	req, item := escalationFixture()
	item.Remark = "原有说明"
	e := NewEscalator(nil, nil, DefaultThresholds())
	e.Escalate(context.Background(), "p1", []escalationJob{{req: req, item: item}})
	if item.Status != StatusPending || item.Evaluator != EvaluatorSemanticPending {
		t.Fatalf("no model: got %s/%s, want PENDING/semantic_pending", item.Status, item.Evaluator)
	}
	if !strings.Contains(item.Remark, "原有说明") {
		t.Fatalf("earlier-stage rationale must be preserved: %s", item.Remark)
	}
}

func TestEscalatorSatisfiedHighConfidence(t *testing.T) {
	req, item := escalationFixture()
	model := &fakeModel{response: `{"verdict":"satisfied","confidence":0.9,"reason":"业绩材料齐全"}`}
	NewEscalator(model, nil, DefaultThresholds()).Escalate(context.Background(), "p1", []escalationJob{{req: req, item: item}})
	if item.Status != StatusPass || item.Evaluator != EvaluatorSemantic {
		t.Fatalf("got %s/%s, want PASS/semantic", item.Status, item.Evaluator)
	}
	if item.Trace.Semantic == nil || item.Trace.Semantic.Confidence != 0.9 {
		t.Fatalf("semantic trace missing: %+v", item.Trace.Semantic)
	}
}

func TestEscalatorLowConfidenceGated(t *testing.T) {
	req, item := escalationFixture()
	model := &fakeModel{response: `{"verdict":"not_satisfied","confidence":0.5,"reason":"材料不全"}`}
	NewEscalator(model, nil, DefaultThresholds()).Escalate(context.Background(), "p1", []escalationJob{{req: req, item: item}})
	if item.Status != StatusPending {
		t.Fatalf("confidence below floor must force PENDING, got %s", item.Status)
	}
	if !item.Trace.Semantic.Gated {
		t.Fatal("trace must record the confidence gate")
	}
}

func TestEscalatorUncertainAlwaysPending(t *testing.T) {
	req, item := escalationFixture()
	model := &fakeModel{response: `{"verdict":"uncertain","confidence":0.95,"reason":"证据不足"}`}
	NewEscalator(model, nil, DefaultThresholds()).Escalate(context.Background(), "p1", []escalationJob{{req: req, item: item}})
	if item.Status != StatusPending {
		t.Fatalf("uncertain maps to PENDING regardless of confidence, got %s", item.Status)
	}
}

func TestEscalatorModelErrorDegradesItem(t *testing.T) {
	req, item := escalationFixture()
	model := &fakeModel{err: errors.New("status code: 503")}
	NewEscalator(model, nil, DefaultThresholds()).Escalate(context.Background(), "p1", []escalationJob{{req: req, item: item}})
	if item.Status != StatusPending || item.Evaluator != EvaluatorSemanticPending {
		t.Fatalf("model failure: got %s/%s, want PENDING/semantic_pending", item.Status, item.Evaluator)
	}
	if !strings.Contains(item.Remark, "503") {
		t.Fatalf("remark must capture the error: %s", item.Remark)
	}
}

func TestEscalatorRetrieverErrorDegradesItem(t *testing.T) {
	req, item := escalationFixture()
	model := &fakeModel{response: `{"verdict":"satisfied","confidence":0.9,"reason":"ok"}`}
	retr := &fakeRetriever{err: errors.New("store unavailable")}
	NewEscalator(model, retr, DefaultThresholds()).Escalate(context.Background(), "p1", []escalationJob{{req: req, item: item}})
	if item.Status != StatusPending {
		t.Fatalf("retrieval failure must degrade the item, got %s", item.Status)
	}
	if model.calls != 0 {
		t.Fatalf("model should not be consulted after retrieval failure, calls=%d", model.calls)
	}
}

func TestEscalatorUnparseableOutput(t *testing.T) {
	req, item := escalationFixture()
	model := &fakeModel{response: "I think the bidder is fine."}
	NewEscalator(model, nil, DefaultThresholds()).Escalate(context.Background(), "p1", []escalationJob{{req: req, item: item}})
	if item.Status != StatusPending || item.Evaluator != EvaluatorSemanticPending {
		t.Fatalf("unparseable output: got %s/%s", item.Status, item.Evaluator)
	}
}

func TestEscalatorCodeFencedOutput(t *testing.T) {
	req, item := escalationFixture()
	model := &fakeModel{response: "```json\n{\"verdict\":\"satisfied\",\"confidence\":0.8,\"reason\":\"ok\"}\n```"}
	NewEscalator(model, nil, DefaultThresholds()).Escalate(context.Background(), "p1", []escalationJob{{req: req, item: item}})
	if item.Status != StatusPass {
		t.Fatalf("fenced JSON should parse, got %s (%s)", item.Status, item.Remark)
	}
}

func TestEscalatorExpiredContextFlushesPending(t *testing.T) {
	model := &fakeModel{response: `{"verdict":"satisfied","confidence":0.9,"reason":"ok"}`}
	var jobs []escalationJob
	var items []*ReviewItem
	for i := 0; i < 3; i++ {
		req, item := escalationFixture()
		jobs = append(jobs, escalationJob{req: req, item: item})
		items = append(items, item)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewEscalator(model, nil, DefaultThresholds()).Escalate(ctx, "p1", jobs)

	for i, item := range items {
		if item.Status != StatusPending || item.Evaluator != EvaluatorSemanticPending {
			t.Fatalf("item %d = %s/%s, want PENDING/semantic_pending", i, item.Status, item.Evaluator)
		}
		if !strings.Contains(item.Remark, "运行超时") {
			t.Fatalf("item %d remark = %q, want the timeout rationale", i, item.Remark)
		}
	}
	if model.calls != 0 {
		t.Fatalf("expired context must not reach the model, calls = %d", model.calls)
	}
}

func TestEscalatorBatchBound(t *testing.T) {
	th := DefaultThresholds()
	th.SemanticBatch = 2
	model := &fakeModel{response: `{"verdict":"satisfied","confidence":0.9,"reason":"ok"}`}

	var jobs []escalationJob
	var items []*ReviewItem
	for i := 0; i < 4; i++ {
		req, item := escalationFixture()
		jobs = append(jobs, escalationJob{req: req, item: item})
		items = append(items, item)
	}
	NewEscalator(model, nil, th).Escalate(context.Background(), "p1", jobs)

	judged := 0
	for _, item := range items {
		if item.Evaluator == EvaluatorSemantic {
			judged++
		} else if item.Status != StatusPending {
			t.Fatalf("overflow item must stay PENDING, got %s", item.Status)
		}
	}
	if judged != 2 {
		t.Fatalf("judged %d items, want 2", judged)
	}
}
