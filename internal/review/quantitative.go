package review

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// normKeyAliases bridges schema norm keys and the field names the
// extraction side actually emits.
var normKeyAliases = map[string][]string{
	"bid_price":       {"bid_price", "total_price", "price", "报价", "投标总价", "总价"},
	"deposit":         {"deposit", "bid_deposit", "保证金", "投标保证金"},
	"duration_days":   {"duration_days", "delivery_days", "工期", "工期天数", "交货期"},
	"warranty_months": {"warranty_months", "质保期", "保修期"},
	"service_years":   {"service_years", "服务期"},
}

// Quantitative issues deterministic verdicts for numeric and table
// requirements using normalized values and parsed thresholds.
type Quantitative struct {
	th Thresholds
}

func NewQuantitative(th Thresholds) *Quantitative {
	return &Quantitative{th: th}
}

// Applies reports whether the evaluator claims this requirement.
func (q *Quantitative) Applies(req Requirement) bool {
	switch req.EvalMethod {
	case EvalNumeric, EvalTableCompare:
		return true
	case EvalPresence, EvalValidity, EvalExactMatch, EvalSemantic, "":
		return false
	default:
		return false
	}
}

func (q *Quantitative) Evaluate(req Requirement, cs CandidateSet) ReviewItem {
	item := ReviewItem{
		RequirementID: req.RequirementID,
		Dimension:     req.Dimension,
		IsHard:        req.IsHard || req.MustReject,
		Evaluator:     EvaluatorQuantitative,
		Trace:         Trace{Mapping: cs.MappingTrace()},
	}
	if req.EvalMethod == EvalTableCompare {
		// Structural table alignment is not modeled; never
		// approximated as PASS.
		item.Status = StatusPending
		item.Remark = "表格逐项比对暂不支持自动审查，需人工复核"
		item.Trace.Note = "table alignment not implemented"
		if cs.Best != nil {
			item.MatchedResponseID = cs.Best.ID
		}
		return item
	}

	if cs.Best == nil {
		item.Status = StatusPending
		item.Remark = "未匹配到对应应答条目，无法进行数值比对"
		return item
	}
	item.MatchedResponseID = cs.Best.ID

	actual, source, ok := resolveActual(req, cs.Best)
	if !ok {
		item.Status = StatusPending
		item.Remark = "无法从应答中提取数值，需人工复核"
		return item
	}
	bound, boundSource := resolveThreshold(req)
	trace := &NumericTrace{
		Actual:          actual,
		ActualSource:    source,
		Min:             bound.Min,
		Max:             bound.Max,
		Exact:           bound.Exact,
		ThresholdSource: boundSource,
	}
	item.Trace.Numeric = trace
	if bound.Empty() {
		item.Status = StatusPending
		item.Remark = "要求文本中未解析出数值门槛，需人工复核"
		return item
	}

	if bound.Exact != nil {
		if math.Abs(actual-*bound.Exact) <= q.th.ExactTolerance {
			trace.Passed = true
			item.Status = StatusPass
			item.Remark = fmt.Sprintf("应答值 %s 与要求值 %s 一致（容差 %s）",
				formatNumber(actual), formatNumber(*bound.Exact), formatNumber(q.th.ExactTolerance))
		} else {
			item.Status = StatusFail
			reason := fmt.Sprintf("应答值 %s 与要求值 %s 不一致", formatNumber(actual), formatNumber(*bound.Exact))
			trace.Reasons = []string{reason}
			item.Remark = reason
		}
		return item
	}

	var reasons []string
	if bound.Min != nil && actual < *bound.Min {
		reasons = append(reasons, fmt.Sprintf("应答值 %s 低于下限 %s", formatNumber(actual), formatNumber(*bound.Min)))
	}
	if bound.Max != nil && actual > *bound.Max {
		reasons = append(reasons, fmt.Sprintf("应答值 %s 超过上限 %s", formatNumber(actual), formatNumber(*bound.Max)))
	}
	if len(reasons) > 0 {
		trace.Reasons = reasons
		item.Status = StatusFail
		item.Remark = strings.Join(reasons, "；")
		return item
	}
	trace.Passed = true
	item.Status = StatusPass
	item.Remark = fmt.Sprintf("应答值 %s 满足数值要求", formatNumber(actual))
	return item
}

// resolveActual finds the bid's committed value by priority: the
// schema norm key (via aliases) in normalized fields, then known keys
// in the loosely structured extracted value, then a bare number parsed
// out of the response text.
func resolveActual(req Requirement, resp *Response) (float64, string, bool) {
	if key := req.NormKey(); key != "" {
		for _, alias := range aliasesFor(key) {
			if v, ok := resp.NormalizedFields[alias]; ok {
				if f, ok := asFloat(v); ok {
					return f, "normalized_field:" + alias, true
				}
			}
		}
	}
	for _, canonical := range extractedScanOrder(req.NormKey()) {
		for _, alias := range normKeyAliases[canonical] {
			if v, ok := resp.ExtractedValue[alias]; ok {
				if f, ok := asFloat(v); ok {
					return f, "extracted_value:" + canonical, true
				}
			}
		}
	}
	if m := numberRe.FindString(resp.Text); m != "" {
		if f, ok := asFloat(m); ok {
			return f, "response_text", true
		}
	}
	return 0, "", false
}

func aliasesFor(key string) []string {
	if aliases, ok := normKeyAliases[key]; ok {
		return append([]string{key}, aliases...)
	}
	return []string{key}
}

// extractedScanOrder fixes the order in which alias families are tried
// against extracted values: the requirement's declared family first,
// the rest sorted. The scan must not depend on map iteration order,
// or a multi-key extracted value flips verdicts between runs.
func extractedScanOrder(normKey string) []string {
	var rest []string
	for canonical := range normKeyAliases {
		if canonical != normKey {
			rest = append(rest, canonical)
		}
	}
	sort.Strings(rest)
	if _, ok := normKeyAliases[normKey]; ok {
		return append([]string{normKey}, rest...)
	}
	return rest
}

// resolveThreshold prefers the structured schema and falls back to
// parsing the requirement text.
func resolveThreshold(req Requirement) (Threshold, string) {
	if s := req.ValueSchema; s != nil && (s.Min != nil || s.Max != nil || s.Const != nil) {
		return Threshold{Min: s.Min, Max: s.Max, Exact: s.Const}, "value_schema"
	}
	return ParseThreshold(req.Text), "requirement_text"
}
