package review

import (
	"context"
	"sort"
	"strings"
)

// SegmentStore is the external document/segment store. Prefetch is
// batch-oriented and tolerant: absent ids simply do not appear in the
// returned map.
type SegmentStore interface {
	PrefetchSegments(ctx context.Context, ids []string) (map[string]SegmentRecord, error)
}

// CollectSegmentIDs unions every evidence-segment id referenced by the
// inputs, including ids embedded in pre-existing evidence entries. The
// result is sorted for deterministic prefetching.
func CollectSegmentIDs(reqs []Requirement, resps []Response) []string {
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" {
			seen[id] = true
		}
	}
	for _, r := range reqs {
		for _, id := range r.EvidenceSegmentIDs {
			add(id)
		}
	}
	for _, r := range resps {
		for _, id := range r.EvidenceSegmentIDs {
			add(id)
		}
		for _, e := range r.EvidenceEntries {
			add(e.SegmentID)
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildEntries resolves segment ids into evidence entries. Ids missing
// from the segment map become fallback_chunk entries carrying only the
// id, so evidence is never silently dropped. At most limit entries are
// emitted.
func BuildEntries(role EvidenceRole, ids []string, segs map[string]SegmentRecord, limit int) []EvidenceEntry {
	var out []EvidenceEntry
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		if id == "" {
			continue
		}
		seg, ok := segs[id]
		if !ok {
			out = append(out, EvidenceEntry{Role: role, SegmentID: id, Source: SourceFallbackChunk})
			continue
		}
		out = append(out, EvidenceEntry{
			Role:        role,
			SegmentID:   seg.SegmentID,
			AssetID:     seg.AssetID,
			PageStart:   seg.PageStart,
			PageEnd:     seg.PageEnd,
			HeadingPath: seg.HeadingPath,
			Quote:       collapseQuote(seg.ContentText, QuoteMaxChars),
			Source:      SourceDocSegments,
		})
	}
	return out
}

// MergeEvidence produces the combined tender+bid evidence for one
// item. Tender-side entries come from the requirement's own ids.
// Bid-side entries prefer the response's pre-existing evidence,
// backfilled from the segment map; only when none exists do the
// response's raw segment ids serve as the source.
func MergeEvidence(req Requirement, resp *Response, segs map[string]SegmentRecord) []EvidenceEntry {
	entries := BuildEntries(RoleTender, req.EvidenceSegmentIDs, segs, EvidenceEntryCap)
	if resp == nil {
		return entries
	}
	if len(resp.EvidenceEntries) > 0 {
		for i, e := range resp.EvidenceEntries {
			if i >= EvidenceEntryCap {
				break
			}
			e.Role = RoleBid
			if e.Source == "" {
				e.Source = SourceDocSegments
			}
			if seg, ok := segs[e.SegmentID]; ok {
				if e.Quote == "" {
					e.Quote = collapseQuote(seg.ContentText, QuoteMaxChars)
				}
				if e.PageStart == 0 {
					e.PageStart = seg.PageStart
					e.PageEnd = seg.PageEnd
				}
				if e.HeadingPath == "" {
					e.HeadingPath = seg.HeadingPath
				}
				if e.AssetID == "" {
					e.AssetID = seg.AssetID
				}
			}
			entries = append(entries, e)
		}
		return entries
	}
	return append(entries, BuildEntries(RoleBid, resp.EvidenceSegmentIDs, segs, EvidenceEntryCap)...)
}

// collapseQuote collapses runs of whitespace and truncates to max
// characters (by rune, so CJK text is not split mid-character).
func collapseQuote(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
