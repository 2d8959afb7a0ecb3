package review

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Mapper selects at most one best-matching response per requirement.
// Exact norm-key matches always win; otherwise a keyword+Jaccard
// heuristic scores same-dimension responses, with a keyword floor
// below which no match is asserted at all.
type Mapper struct {
	keywords *KeywordTable
}

func NewMapper(keywords *KeywordTable) *Mapper {
	return &Mapper{keywords: keywords}
}

const (
	mapMethodNormKey = "norm_key"
	mapMethodKeyword = "keyword_jaccard"
)

// MapCandidates ranks candidate responses for one requirement. When
// the requirement declares a norm key and no response carries it, Best
// is nil: a same-dimension guess is never substituted.
func (m *Mapper) MapCandidates(req Requirement, responses []Response) CandidateSet {
	if key := req.NormKey(); key != "" {
		return m.mapByNormKey(req, key, responses)
	}
	return m.mapByScore(req, responses)
}

func (m *Mapper) mapByNormKey(req Requirement, key string, responses []Response) CandidateSet {
	cs := CandidateSet{RequirementID: req.RequirementID, Method: mapMethodNormKey}
	var matched []Candidate
	for i := range responses {
		resp := &responses[i]
		if resp.Dimension != req.Dimension || resp.NormKey() != key {
			continue
		}
		jac := jaccard(req.Text, resp.Text)
		matched = append(matched, Candidate{
			Response: resp,
			Score:    NormKeyBaseScore + jac,
			Method:   mapMethodNormKey,
			Jaccard:  jac,
		})
	}
	sortCandidates(matched)
	if len(matched) > CandidateTopK {
		matched = matched[:CandidateTopK]
	}
	cs.Candidates = matched
	if len(matched) > 0 {
		cs.Best = matched[0].Response
	}
	return cs
}

func (m *Mapper) mapByScore(req Requirement, responses []Response) CandidateSet {
	cs := CandidateSet{RequirementID: req.RequirementID, Method: mapMethodKeyword}
	var scored []Candidate
	for i := range responses {
		resp := &responses[i]
		if resp.Dimension != req.Dimension {
			continue
		}
		haystack := resp.Text + " " + renderFields(resp.NormalizedFields)
		kw := m.keywords.SharedDomainScore(req.Text, haystack)
		jac := jaccard(req.Text, resp.Text)
		scored = append(scored, Candidate{
			Response:     resp,
			Score:        10*float64(kw) + jac,
			Method:       mapMethodKeyword,
			KeywordScore: kw,
			Jaccard:      jac,
		})
	}
	sortCandidates(scored)
	if len(scored) > CandidateTopK {
		scored = scored[:CandidateTopK]
	}
	cs.Candidates = scored
	// Textual similarity alone is not enough to assert a match.
	if len(scored) > 0 && scored[0].KeywordScore >= KeywordFloor {
		cs.Best = scored[0].Response
	}
	return cs
}

// MappingTrace converts the set into its audit form.
func (cs CandidateSet) MappingTrace() *MappingTrace {
	mt := &MappingTrace{Method: cs.Method, KeywordFloor: KeywordFloor}
	for _, c := range cs.Candidates {
		mt.Candidates = append(mt.Candidates, CandidateTrace{
			ResponseID:   c.Response.ID,
			Score:        c.Score,
			KeywordScore: c.KeywordScore,
			Jaccard:      c.Jaccard,
		})
	}
	return mt
}

func sortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Response.ID < cands[j].Response.ID
	})
}

var punctRe = regexp.MustCompile(`[\p{P}\p{S}]+`)

// jaccard computes token-set similarity: punctuation stripped to
// spaces, lower-cased, whitespace-tokenized.
func jaccard(a, b string) float64 {
	as := tokenSet(a)
	bs := tokenSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for tok := range as {
		if bs[tok] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	s = strings.ToLower(punctRe.ReplaceAllString(s, " "))
	set := map[string]bool{}
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// renderFields flattens normalized fields so keyword scoring can see
// structured values, not just free text.
func renderFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	blob, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(blob)
}
