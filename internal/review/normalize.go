package review

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// NormalizeMoney converts a textual amount into integer cents. It
// tolerates currency symbols and thousand separators and applies the
// 万 (×10,000) unit before conversion. The second return is false when
// no parseable number is present.
func NormalizeMoney(s string) (int64, bool) {
	s = width.Narrow.String(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	cleaned := strings.NewReplacer(",", "", "¥", "", "$", "", "￥", "", " ", "").Replace(s)
	m := numberRe.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	if strings.Contains(s, "万") {
		f *= 10000
	}
	return int64(math.Round(f * 100)), true
}

// NormalizeMoneyValue accepts the loosely typed values found in
// normalized/extracted fields. Bare numbers are yuan, never cents:
// extraction emits amounts in the unit the document states them, and
// cents-denominated fields must not be fed through this path.
func NormalizeMoneyValue(v any) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case string:
		return NormalizeMoney(t)
	case float64:
		return int64(math.Round(t * 100)), true
	case int:
		return int64(t) * 100, true
	case int64:
		return t * 100, true
	default:
		return 0, false
	}
}

// NormalizeDuration converts a textual duration into whole days:
// 年 ×365, 月 ×30, bare counts are taken as days. False when nothing
// parseable is found.
func NormalizeDuration(s string) (int, bool) {
	s = width.Narrow.String(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	switch {
	case strings.Contains(s, "年"):
		f *= 365
	case strings.Contains(s, "月"):
		f *= 30
	}
	return int(math.Round(f)), true
}

// NormalizeDurationValue accepts loosely typed field values.
func NormalizeDurationValue(v any) (int, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case string:
		return NormalizeDuration(t)
	case float64:
		return int(math.Round(t)), true
	case int:
		return t, true
	case int64:
		return int(t), true
	default:
		return 0, false
	}
}

// NormalizeName folds a declared name into a canonical comparison
// form: full-width characters narrowed, whitespace removed, case
// folded. The result is only ever compared, never displayed.
func NormalizeName(s string) string {
	s = width.Narrow.String(s)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// asFloat interprets a loosely typed field value as a plain number.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		m := numberRe.FindString(width.Narrow.String(t))
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// formatNumber renders a float the way a reviewer wrote it: no
// trailing zeros.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
