package review

import "strings"

// KeywordTable is the single shared vocabulary used by the process
// filter, the candidate mapper, and the hard gate. It is injected
// rather than referenced as package globals so the three consumers can
// never drift apart, and Version makes keyword changes auditable in
// traces.
type KeywordTable struct {
	Version string
	// Domain keywords identify material/commercial subject matter. A
	// mapper match requires a keyword to appear on both the tender and
	// the bid side.
	Domain []string
	// Process keywords identify bid-opening and submission mechanics
	// that are out of scope for automated judgment.
	Process []string
}

// DefaultKeywords returns the fixed vocabulary: deposits, pricing,
// licenses, signatures, document structure, and schedule terms on the
// domain side; opening/sealing/on-site logistics on the process side.
func DefaultKeywords() *KeywordTable {
	return &KeywordTable{
		Version: "2026-03",
		Domain: []string{
			"保证金", "投标保证金", "履约保证金",
			"报价", "价格", "总价", "金额", "单价",
			"营业执照", "资质证书", "资质", "许可证", "授权书", "授权",
			"签字", "盖章", "公章", "签章", "法定代表人",
			"目录", "页码", "格式", "装订", "份数",
			"工期", "交货期", "服务期", "质保期", "保修", "售后",
			"业绩", "合同", "发票", "社保", "纳税",
		},
		Process: []string{
			"开标", "唱标", "现场签到", "签到", "密封",
			"递交地点", "递交时间", "开标地点", "开标时间", "现场勘察",
		},
	}
}

// IsProcessClause reports whether the text describes bid-opening or
// submission mechanics rather than a judgeable requirement.
func (t *KeywordTable) IsProcessClause(text string) bool {
	for _, kw := range t.Process {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// DomainHits returns the domain keywords present in text, in table
// order.
func (t *KeywordTable) DomainHits(text string) []string {
	var hits []string
	for _, kw := range t.Domain {
		if strings.Contains(text, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

// SharedDomainScore counts domain keywords appearing in both a and b.
func (t *KeywordTable) SharedDomainScore(a, b string) int {
	n := 0
	for _, kw := range t.Domain {
		if strings.Contains(a, kw) && strings.Contains(b, kw) {
			n++
		}
	}
	return n
}
