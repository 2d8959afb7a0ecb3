package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// ChatModel is the optional language-model capability. When absent the
// escalator forces every semantic item to PENDING; it never fabricates
// a verdict.
type ChatModel interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Retriever is the optional evidence retriever used only by semantic
// escalation.
type Retriever interface {
	Retrieve(ctx context.Context, query, projectID string, docTypes []string, topK int) ([]Chunk, error)
}

type Chunk struct {
	SegmentID string
	Text      string
}

const judgeSystemPrompt = "You are a bid compliance reviewer for Chinese tender documents. " +
	"Judge whether the bidder's response satisfies the stated requirement. Respond with strict JSON only."

const judgeSchemaPrompt = `Required JSON schema:
{
  "verdict": "satisfied | not_satisfied | uncertain",
  "confidence": "float (0.0-1.0)",
  "reason": "string"
}`

type semanticJudgment struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Escalator resolves requirements the deterministic stages could not
// decide. Individual judgments are independent I/O-bound calls and run
// under a bounded worker pool; a failure on one item degrades that
// item alone.
type Escalator struct {
	model     ChatModel
	retriever Retriever
	th        Thresholds
}

func NewEscalator(model ChatModel, retriever Retriever, th Thresholds) *Escalator {
	return &Escalator{model: model, retriever: retriever, th: th}
}

// escalationJob pairs a requirement with the item to be (re)judged.
type escalationJob struct {
	req  Requirement
	item *ReviewItem
}

// Escalate judges the given jobs in place. Without a configured model
// every item becomes PENDING with evaluator semantic_pending; this is
// a hard contract, not a fallback heuristic.
func (e *Escalator) Escalate(ctx context.Context, projectID string, jobs []escalationJob) {
	if e.model == nil {
		for _, j := range jobs {
			forceSemanticPending(j.item, "未配置大模型能力，无法进行语义评审")
		}
		return
	}
	limit := e.th.SemanticBatch
	if limit <= 0 {
		limit = DefaultThresholds().SemanticBatch
	}
	judged := jobs
	if len(judged) > limit {
		for _, j := range jobs[limit:] {
			forceSemanticPending(j.item, fmt.Sprintf("超出单次运行语义评审数量上限（%d 条）", limit))
		}
		judged = jobs[:limit]
	}

	workers := e.th.SemanticWorkers
	if workers <= 0 {
		workers = DefaultThresholds().SemanticWorkers
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range judged {
		if ctx.Err() != nil {
			// Deadline exceeded: flush the remainder as PENDING rather
			// than returning partial results.
			forceSemanticPending(judged[i].item, "运行超时，未完成语义评审")
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(j escalationJob) {
			defer wg.Done()
			defer func() { <-sem }()
			e.judge(ctx, projectID, j)
		}(judged[i])
	}
	wg.Wait()
}

func (e *Escalator) judge(ctx context.Context, projectID string, j escalationJob) {
	question := buildQuestion(j.req)
	passages := bidPassages(j.item.Evidence)
	if e.retriever != nil {
		chunks, err := e.retriever.Retrieve(ctx, question, projectID, []string{"bid"}, 5)
		if err != nil {
			forceSemanticPending(j.item, fmt.Sprintf("证据检索失败（%v），转人工复核", err))
			return
		}
		for _, c := range chunks {
			passages = append(passages, c.Text)
		}
	}

	prompt := fmt.Sprintf("%s\n\n审查问题：\n%s\n\n投标应答及证据片段：\n%s",
		judgeSchemaPrompt, question, strings.Join(passages, "\n---\n"))
	raw, err := e.model.Chat(ctx, judgeSystemPrompt, prompt)
	if err != nil {
		forceSemanticPending(j.item, fmt.Sprintf("大模型调用失败（%v），转人工复核", err))
		return
	}
	var out semanticJudgment
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &out); err != nil {
		forceSemanticPending(j.item, "大模型返回内容无法解析，转人工复核")
		return
	}

	item := j.item
	item.Evaluator = EvaluatorSemantic
	item.Trace.Semantic = &SemanticTrace{
		Question:   question,
		Verdict:    out.Verdict,
		Confidence: out.Confidence,
	}
	switch out.Verdict {
	case "satisfied", "not_satisfied":
		if out.Confidence < e.th.ConfidenceFloor {
			// A PASS/FAIL may never be asserted on low confidence.
			item.Trace.Semantic.Gated = true
			item.Status = StatusPending
			item.Remark = fmt.Sprintf("大模型判断置信度 %.2f 低于门槛 %.2f，转人工复核：%s",
				out.Confidence, e.th.ConfidenceFloor, out.Reason)
			return
		}
		if out.Verdict == "satisfied" {
			item.Status = StatusPass
		} else {
			item.Status = StatusFail
		}
		item.Remark = out.Reason
	default:
		item.Status = StatusPending
		item.Remark = "大模型无法确定是否满足要求：" + out.Reason
	}
}

// buildQuestion converts a requirement into a natural-language review
// question, templated by dimension.
func buildQuestion(req Requirement) string {
	switch {
	case req.Dimension == DimensionQualification:
		return fmt.Sprintf("投标人是否提供了满足以下资格要求的材料？%s", req.Text)
	case req.EvalMethod == EvalNumeric || req.Dimension == DimensionPrice:
		return fmt.Sprintf("针对以下要求，投标人承诺的具体数值是多少？是否满足要求？%s", req.Text)
	default:
		return req.Text
	}
}

func bidPassages(entries []EvidenceEntry) []string {
	var out []string
	for _, e := range entries {
		if e.Role == RoleBid && e.Quote != "" {
			out = append(out, e.Quote)
		}
	}
	return out
}

// forceSemanticPending degrades an item to the mandatory
// semantic_pending state, preserving any earlier-stage rationale.
func forceSemanticPending(item *ReviewItem, reason string) {
	if item.Remark != "" {
		item.Remark = item.Remark + "；" + reason
	} else {
		item.Remark = reason
	}
	item.Status = StatusPending
	item.Evaluator = EvaluatorSemanticPending
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
