package review

import (
	"strings"
	"testing"
)

func TestConsistencyPriceRoundingLevel(t *testing.T) {
	// 1,000,000.00 vs 1,005,000.00: a sub-percent restatement gap.
	resps := []Response{
		{ID: "P1", Dimension: DimensionPrice,
			NormalizedFields: map[string]any{NormKeyField: "bid_price", "bid_price": "100万元"}},
		{ID: "P2", Dimension: DimensionPrice,
			NormalizedFields: map[string]any{NormKeyField: "bid_price", "bid_price": "1005000元"}},
	}
	items := CheckConsistency(resps, DefaultThresholds())
	item := findItem(t, items, ConsistencyPriceID)
	if item.Status != StatusWarn {
		t.Fatalf("status = %s, want WARN (%s)", item.Status, item.Remark)
	}
	if item.IsHard {
		t.Fatal("consistency findings are never hard")
	}
	if !strings.Contains(item.Remark, "舍入级差异") {
		t.Fatalf("sub-threshold gap should read as rounding-level: %s", item.Remark)
	}
	tr := item.Trace.Consistency
	if tr == nil || tr.DiffRatio <= 0 || tr.DiffRatio > 0.01 {
		t.Fatalf("diff ratio = %+v, want (0, 0.01]", tr)
	}
}

func TestConsistencyPriceMajorGap(t *testing.T) {
	resps := []Response{
		{ID: "P1", Dimension: DimensionPrice,
			NormalizedFields: map[string]any{NormKeyField: "bid_price", "bid_price": "100万元"}},
		{ID: "P2", Dimension: DimensionPrice,
			NormalizedFields: map[string]any{NormKeyField: "bid_price", "bid_price": "120万元"}},
	}
	item := findItem(t, CheckConsistency(resps, DefaultThresholds()), ConsistencyPriceID)
	if item.Status != StatusWarn || !strings.Contains(item.Remark, "重大差异") {
		t.Fatalf("got %s %q, want WARN naming a major gap", item.Status, item.Remark)
	}
}

func TestConsistencyPriceAgreement(t *testing.T) {
	resps := []Response{
		{ID: "P1", Dimension: DimensionPrice,
			NormalizedFields: map[string]any{NormKeyField: "bid_price", "bid_price": "100万元"}},
		{ID: "P2", Dimension: DimensionPrice,
			NormalizedFields: map[string]any{NormKeyField: "bid_price", "bid_price": "1000000元"}},
	}
	item := findItem(t, CheckConsistency(resps, DefaultThresholds()), ConsistencyPriceID)
	if item.Status != StatusPass {
		t.Fatalf("identical amounts after normalization = %s, want PASS (%s)", item.Status, item.Remark)
	}
}

func TestConsistencyPriceUnparseable(t *testing.T) {
	resps := []Response{
		{ID: "P1", Dimension: DimensionPrice, Text: "报价详见报价表"},
	}
	item := findItem(t, CheckConsistency(resps, DefaultThresholds()), ConsistencyPriceID)
	if item.Status != StatusPending {
		t.Fatalf("no parseable amount = %s, want PENDING", item.Status)
	}
}

func TestConsistencyCompanyNameVariants(t *testing.T) {
	resps := []Response{
		{ID: "Q1", NormalizedFields: map[string]any{"company_name": "杭州示例建设有限公司"}},
		{ID: "Q2", NormalizedFields: map[string]any{"bidder_name": "杭州示例建设股份有限公司"}},
	}
	item := findItem(t, CheckConsistency(resps, DefaultThresholds()), ConsistencyCompanyNameID)
	if item.Status != StatusWarn {
		t.Fatalf("conflicting names = %s, want WARN", item.Status)
	}
	if !strings.Contains(item.Remark, "杭州示例建设有限公司") {
		t.Fatalf("remark should list the variants: %s", item.Remark)
	}
}

func TestConsistencyCompanyNameFolded(t *testing.T) {
	// Full-width vs half-width spelling of the same name is one variant.
	resps := []Response{
		{ID: "Q1", NormalizedFields: map[string]any{"company_name": "ＡＢＣ建设有限公司"}},
		{ID: "Q2", NormalizedFields: map[string]any{"supplier_name": "abc建设有限公司"}},
	}
	item := findItem(t, CheckConsistency(resps, DefaultThresholds()), ConsistencyCompanyNameID)
	if item.Status != StatusPass {
		t.Fatalf("width/case variants = %s, want PASS (%s)", item.Status, item.Remark)
	}
}

func TestConsistencyDurationMismatch(t *testing.T) {
	resps := []Response{
		{ID: "D1", Dimension: DimensionTechnical,
			NormalizedFields: map[string]any{"duration_days": 90}},
		{ID: "D2", Dimension: DimensionBusiness,
			NormalizedFields: map[string]any{"工期": "3个月"}},
	}
	item := findItem(t, CheckConsistency(resps, DefaultThresholds()), ConsistencyDurationID)
	if item.Status != StatusPass {
		t.Fatalf("90 days vs 3 months normalize equal = %s, want PASS (%s)", item.Status, item.Remark)
	}

	resps[1].NormalizedFields["工期"] = "4个月"
	item = findItem(t, CheckConsistency(resps, DefaultThresholds()), ConsistencyDurationID)
	if item.Status != StatusWarn {
		t.Fatalf("90 vs 120 days = %s, want WARN", item.Status)
	}
}

func findItem(t *testing.T, items []ReviewItem, id string) ReviewItem {
	t.Helper()
	for _, it := range items {
		if it.RequirementID == id {
			return it
		}
	}
	t.Fatalf("no item with id %s", id)
	return ReviewItem{}
}
