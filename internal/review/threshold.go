package review

import (
	"regexp"
	"strconv"

	"golang.org/x/text/width"
)

// Threshold is a parsed numeric bound. All-nil means "unparseable";
// callers must treat that as no threshold, never as zero.
type Threshold struct {
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Exact *float64 `json:"exact,omitempty"`
}

func (t Threshold) Empty() bool {
	return t.Min == nil && t.Max == nil && t.Exact == nil
}

// Ordered pattern families; the first family that matches wins.
var (
	thresholdMinRe   = regexp.MustCompile(`(?:不少于|不低于|不小于|至少|≥|>=)\s*(\d+(?:\.\d+)?)`)
	thresholdMaxRe   = regexp.MustCompile(`(?:不超过|不高于|不多于|不大于|最多|≤|<=)\s*(\d+(?:\.\d+)?)`)
	thresholdRangeRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[-~—至]\s*(\d+(?:\.\d+)?)\s*之间`)
	thresholdExactRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:个工作日|个月|日历天|天|日|年|月|万元|元|%|份|套|台|人|次)`)
)

// ParseThreshold extracts {min, max, exact} bounds from free-form
// requirement text.
func ParseThreshold(text string) Threshold {
	text = width.Narrow.String(text)
	if m := thresholdMinRe.FindStringSubmatch(text); m != nil {
		return Threshold{Min: parseBound(m[1])}
	}
	if m := thresholdMaxRe.FindStringSubmatch(text); m != nil {
		return Threshold{Max: parseBound(m[1])}
	}
	if m := thresholdRangeRe.FindStringSubmatch(text); m != nil {
		return Threshold{Min: parseBound(m[1]), Max: parseBound(m[2])}
	}
	if m := thresholdExactRe.FindStringSubmatch(text); m != nil {
		return Threshold{Exact: parseBound(m[1])}
	}
	return Threshold{}
}

func parseBound(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
