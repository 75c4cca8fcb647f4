// Package normalize turns loosely shaped provider output into a fixed report
// shape. Nothing here returns an error: every input yields a best-effort value.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// SafeString renders any JSON-like value as display text.
func SafeString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatNumber(val)
	case float32:
		return formatNumber(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case json.Number:
		return val.String()
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, SafeString(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	case map[string]any:
		for _, key := range []string{"name", "description", "trait"} {
			if inner, ok := val[key]; ok && inner != nil {
				return SafeString(inner)
			}
		}
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

// EnsureStringItems maps SafeString over a list. Nil yields an empty slice and a
// lone non-list value becomes a single item.
func EnsureStringItems(v any) []string {
	switch val := v.(type) {
	case nil:
		return []string{}
	case []string:
		return append([]string{}, val...)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, SafeString(item))
		}
		return out
	default:
		return []string{SafeString(val)}
	}
}

// FormatTraitScore maps a score on any of the provider's scales onto 0..10.
// Values in [0,1] are fractions (so 1 maps to 10), values up to 10 are already
// on scale, and anything larger is read as a percentage.
func FormatTraitScore(score float64) int {
	if math.IsNaN(score) || score <= 0 {
		return 0
	}
	if score >= 100 {
		return 10
	}
	var scaled float64
	switch {
	case score <= 1:
		scaled = score * 10
	case score <= 10:
		scaled = score
	default:
		scaled = score / 10
	}
	rounded := int(math.Round(scaled))
	if rounded > 10 {
		return 10
	}
	return rounded
}

// ParseScore extracts a number from a provider score value. Strings such as
// "7", "85%" and "7/10" are accepted; percentages and ratios come back as
// fractions in [0,1]. The second result is false when nothing numeric was found.
func ParseScore(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, !math.IsNaN(val)
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		return parseScoreString(val)
	case map[string]any:
		for _, key := range []string{"score", "value", "rating"} {
			if inner, ok := val[key]; ok {
				return ParseScore(inner)
			}
		}
	}
	return 0, false
}

func parseScoreString(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err1 != nil || err2 != nil || d <= 0 {
			return 0, false
		}
		return clampFraction(n / d), true
	}
	if strings.HasSuffix(s, "%") {
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil {
			return 0, false
		}
		return clampFraction(n / 100), true
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func formatNumber(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
