package review

import (
	"fmt"
	"sort"
	"strings"
)

var companyNameKeys = []string{"company_name", "supplier_name", "bidder_name", "公司名称", "投标人名称", "供应商名称"}

// CheckConsistency runs the cross-response checks that are independent
// of any single requirement: a bidder contradicting itself on its own
// name, price, or duration. Findings are synthetic items with fixed
// ids and are never hard; monetary restatement mismatches in
// particular require human judgment, so price discrepancies WARN and
// never FAIL.
func CheckConsistency(responses []Response, th Thresholds) []ReviewItem {
	var items []ReviewItem
	if item := checkCompanyName(responses); item != nil {
		items = append(items, *item)
	}
	items = append(items, checkPrice(responses, th))
	if item := checkDuration(responses); item != nil {
		items = append(items, *item)
	}
	return items
}

func checkCompanyName(responses []Response) *ReviewItem {
	variants := map[string][]string{} // canonical -> original spellings
	for _, r := range responses {
		for _, key := range companyNameKeys {
			v, ok := r.NormalizedFields[key]
			if !ok {
				continue
			}
			name, _ := v.(string)
			if strings.TrimSpace(name) == "" {
				continue
			}
			canon := NormalizeName(name)
			variants[canon] = appendUnique(variants[canon], name)
		}
	}
	if len(variants) == 0 {
		return nil
	}
	item := &ReviewItem{
		RequirementID: ConsistencyCompanyNameID,
		Dimension:     DimensionConsistency,
		Evaluator:     EvaluatorConsistency,
	}
	var all []string
	for _, names := range variants {
		all = append(all, names...)
	}
	sort.Strings(all)
	item.Trace.Consistency = &ConsistencyTrace{Kind: "company_name", Values: all}
	if len(variants) > 1 {
		item.Status = StatusWarn
		item.Remark = fmt.Sprintf("投标文件中出现多个不一致的单位名称：%s", strings.Join(all, "、"))
		item.Evidence = derivedEvidence(all)
		return item
	}
	item.Status = StatusPass
	item.Remark = "投标文件中单位名称表述一致"
	return item
}

func checkPrice(responses []Response, th Thresholds) ReviewItem {
	item := ReviewItem{
		RequirementID: ConsistencyPriceID,
		Dimension:     DimensionConsistency,
		Evaluator:     EvaluatorConsistency,
	}
	distinct := map[int64]bool{}
	for _, r := range responses {
		if r.Dimension != DimensionPrice {
			continue
		}
		for key, v := range r.NormalizedFields {
			if key == NormKeyField || !isPriceKey(key) {
				continue
			}
			if cents, ok := NormalizeMoneyValue(v); ok {
				distinct[cents] = true
			}
		}
	}
	if len(distinct) == 0 {
		item.Status = StatusPending
		item.Remark = "未能从应答中解析出任何报价金额，需人工复核"
		return item
	}
	values := make([]int64, 0, len(distinct))
	for c := range distinct {
		values = append(values, c)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	rendered := make([]string, len(values))
	for i, c := range values {
		rendered[i] = fmt.Sprintf("%.2f元", float64(c)/100)
	}
	trace := &ConsistencyTrace{Kind: "price", Values: rendered}
	item.Trace.Consistency = trace
	if len(values) == 1 {
		item.Status = StatusPass
		item.Remark = "各处报价金额一致"
		return item
	}

	max := values[len(values)-1]
	ratio := float64(max-values[0]) / float64(max)
	trace.DiffRatio = ratio
	item.Status = StatusWarn
	item.Evidence = derivedEvidence(rendered)
	if ratio > th.PriceWarnRatio {
		item.Remark = fmt.Sprintf("报价在不同位置出现重大差异（%s，差异率 %.2f%%），需人工核实",
			strings.Join(rendered, " / "), ratio*100)
	} else {
		item.Remark = fmt.Sprintf("报价在不同位置存在舍入级差异（%s，差异率 %.2f%%），需人工核实",
			strings.Join(rendered, " / "), ratio*100)
	}
	return item
}

func checkDuration(responses []Response) *ReviewItem {
	distinct := map[int]bool{}
	for _, r := range responses {
		if r.Dimension != DimensionBusiness && r.Dimension != DimensionTechnical {
			continue
		}
		for _, alias := range normKeyAliases["duration_days"] {
			if v, ok := r.NormalizedFields[alias]; ok {
				if days, ok := NormalizeDurationValue(v); ok {
					distinct[days] = true
				}
			}
		}
	}
	if len(distinct) == 0 {
		return nil
	}
	days := make([]int, 0, len(distinct))
	for d := range distinct {
		days = append(days, d)
	}
	sort.Ints(days)
	rendered := make([]string, len(days))
	for i, d := range days {
		rendered[i] = fmt.Sprintf("%d天", d)
	}
	item := &ReviewItem{
		RequirementID: ConsistencyDurationID,
		Dimension:     DimensionConsistency,
		Evaluator:     EvaluatorConsistency,
		Trace:         Trace{Consistency: &ConsistencyTrace{Kind: "duration", Values: rendered}},
	}
	if len(days) > 1 {
		item.Status = StatusWarn
		item.Remark = fmt.Sprintf("工期/服务期在不同位置表述不一致：%s", strings.Join(rendered, "、"))
		item.Evidence = derivedEvidence(rendered)
		return item
	}
	item.Status = StatusPass
	item.Remark = "工期/服务期表述一致"
	return item
}

func isPriceKey(key string) bool {
	for _, alias := range normKeyAliases["bid_price"] {
		if key == alias {
			return true
		}
	}
	return strings.Contains(key, "price") || strings.Contains(key, "报价")
}

func derivedEvidence(values []string) []EvidenceEntry {
	var out []EvidenceEntry
	for i, v := range values {
		if i >= EvidenceEntryCap {
			break
		}
		out = append(out, EvidenceEntry{
			Role:   RoleBid,
			Quote:  v,
			Source: SourceDerivedConsistency,
		})
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
