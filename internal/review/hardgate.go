package review

import (
	"fmt"
	"strings"
)

// HardGate issues deterministic verdicts for disqualifying
// requirements. It only ever asserts PASS on observable evidence; a
// missing match or an ambiguous signal yields PENDING, never FAIL,
// because a mapping miss may be an extraction failure rather than a
// bid failure.
type HardGate struct {
	keywords *KeywordTable
}

func NewHardGate(keywords *KeywordTable) *HardGate {
	return &HardGate{keywords: keywords}
}

// Applies reports whether the gate claims this requirement: hard or
// must-reject clauses evaluated by PRESENCE, VALIDITY, or EXACT_MATCH
// (unset methods default to PRESENCE).
func (g *HardGate) Applies(req Requirement) bool {
	if !req.IsHard && !req.MustReject {
		return false
	}
	switch req.EvalMethod {
	case EvalPresence, EvalValidity, EvalExactMatch, "":
		return true
	case EvalNumeric, EvalTableCompare, EvalSemantic:
		return false
	default:
		return false
	}
}

// Evaluate judges one claimed requirement against its candidate set.
// Evidence and run id are attached by the pipeline.
func (g *HardGate) Evaluate(req Requirement, cs CandidateSet) ReviewItem {
	item := ReviewItem{
		RequirementID: req.RequirementID,
		Dimension:     req.Dimension,
		IsHard:        true,
		Evaluator:     EvaluatorHardGate,
		Trace:         Trace{Mapping: cs.MappingTrace()},
	}
	if cs.Best == nil {
		item.Status = StatusPending
		item.Remark = "未匹配到对应应答条目（可能为提取遗漏而非投标缺项），需人工复核"
		return item
	}
	item.MatchedResponseID = cs.Best.ID

	method := req.EvalMethod
	if method == "" {
		method = EvalPresence
	}
	switch method {
	case EvalPresence:
		g.evaluatePresence(req, cs.Best, &item)
	case EvalValidity:
		g.evaluateValidity(cs.Best, &item)
	case EvalExactMatch:
		g.evaluateExactMatch(req, cs.Best, &item)
	case EvalNumeric, EvalTableCompare, EvalSemantic:
		// Applies() excludes these; keep the switch exhaustive.
		item.Status = StatusPending
		item.Remark = "评审方法不属于硬性门槛范围"
	}
	return item
}

func (g *HardGate) evaluatePresence(req Requirement, resp *Response, item *ReviewItem) {
	required := g.keywords.DomainHits(req.Text)
	if len(required) == 0 {
		item.Status = StatusPending
		item.Remark = "无法从要求文本识别材料类型，需人工复核"
		return
	}
	var hits []string
	for _, kw := range required {
		if strings.Contains(resp.Text, kw) {
			hits = append(hits, kw)
		}
	}
	if len(hits) > 0 {
		item.Status = StatusPass
		item.Remark = fmt.Sprintf("应答中已提供“%s”相关材料", strings.Join(hits, "、"))
		item.Trace.Note = "matched keywords: " + strings.Join(hits, ",")
		return
	}
	if len(strings.TrimSpace(resp.Text)) > 10 {
		item.Status = StatusPending
		item.Remark = "应答内容存在但未匹配到所需材料关键词，需人工复核"
		return
	}
	item.Status = StatusFail
	item.Remark = fmt.Sprintf("应答内容为空或无实质内容，未提供“%s”相关材料", strings.Join(required, "、"))
}

func (g *HardGate) evaluateValidity(resp *Response, item *ReviewItem) {
	for key, v := range resp.NormalizedFields {
		if key == NormKeyField {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		if v == nil {
			continue
		}
		item.Status = StatusPass
		item.Remark = fmt.Sprintf("应答携带结构化字段（%s 等），有效性初步确认", key)
		return
	}
	// Validity needs structured signal; absence is not proof of
	// invalidity.
	item.Status = StatusPending
	item.Remark = "应答未携带结构化字段，无法自动确认有效性，需人工复核"
}

func (g *HardGate) evaluateExactMatch(req Requirement, resp *Response, item *ReviewItem) {
	if strings.Contains(resp.Text, strings.TrimSpace(req.Text)) {
		item.Status = StatusPass
		item.Remark = "应答完整包含无偏离条款原文"
		return
	}
	// Text containment is too brittle to assert a violation.
	item.Status = StatusPending
	item.Remark = "应答未逐字包含条款原文，需人工确认是否存在偏离"
}
