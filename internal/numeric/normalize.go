// internal/numeric/normalize.go

// Package numeric converts the count representations seen in scraped pages
// (plain integers, floats, humanized strings like "1.5M") into one integer
// domain. All persisted counters route through NormalizeCount.
package numeric

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/valpere/TikTokIngester/internal/utils"
)

var logger = utils.NewLogger()

// SetLogger replaces the package logger. Intended for wiring the service
// logger at startup.
func SetLogger(l utils.Logger) {
	if l != nil {
		logger = l
	}
}

// Magnitude suffixes accepted in humanized counts, case-insensitive.
var suffixMultipliers = map[byte]int64{
	'K': 1_000,
	'M': 1_000_000,
	'B': 1_000_000_000,
}

// NormalizeCount converts a raw count value into a non-negative int64.
//
// Accepted inputs: integer and float types, json.Number, and strings that may
// carry thousands separators, surrounding non-numeric noise, and a K/M/B
// magnitude suffix directly after the number. Anything unparseable yields 0
// and a warning log; the caller never sees an error. Negative values clamp
// to 0 and values beyond int64 saturate at MaxInt64, so the result is
// idempotent under re-normalization.
func NormalizeCount(raw interface{}) int64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case int:
		return clamp(int64(v))
	case int32:
		return clamp(int64(v))
	case int64:
		return clamp(v)
	case float32:
		return clamp(int64(v))
	case float64:
		return clamp(int64(v))
	case json.Number:
		return normalizeString(v.String())
	case string:
		return normalizeString(v)
	default:
		logger.Warnf("normalize_count: unsupported type %T, defaulting to 0", raw)
		return 0
	}
}

func normalizeString(raw string) int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	start := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		logger.Warnf("normalize_count: unparseable value %q, defaulting to 0", raw)
		return 0
	}
	negative := start > 0 && s[start-1] == '-'

	// Collect the numeric token, dropping grouping separators. The token
	// ends at the first character that is neither digit, dot nor separator;
	// a magnitude letter there scales the value, trailing noise after it
	// ("11B Likes") is ignored.
	var b strings.Builder
	i := start
scan:
	for ; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c == '.':
			b.WriteByte(c)
		case c == ',':
		default:
			break scan
		}
	}

	multiplier := int64(1)
	if i < len(s) {
		suffix := s[i]
		if suffix >= 'a' && suffix <= 'z' {
			suffix -= 'a' - 'A'
		}
		if m, ok := suffixMultipliers[suffix]; ok {
			multiplier = m
		}
	}

	if negative {
		return 0
	}

	cleaned := b.String()
	if !strings.Contains(cleaned, ".") {
		n, err := strconv.ParseInt(cleaned, 10, 64)
		if err != nil {
			// Digits-only, so the parse can only fail on range; saturate.
			return math.MaxInt64
		}
		if multiplier > 1 && n > math.MaxInt64/multiplier {
			return math.MaxInt64
		}
		return n * multiplier
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		logger.Warnf("normalize_count: unparseable value %q, defaulting to 0", raw)
		return 0
	}
	scaled := f * float64(multiplier)
	if scaled >= float64(math.MaxInt64) {
		return math.MaxInt64
	}
	// Round rather than truncate so "1.5K" is 1500, not 1499 from float noise.
	return int64(scaled + 0.5)
}

func clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
