// Package identifier canonicalizes customer identifiers so that formatting
// variants ("1,234", "1234.0", 1234) compare equal.
package identifier

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/appenmapper/appenmapper/internal/model"
)

// ID is a normalized identifier. The zero value means "no identifier".
type ID string

// Empty is the normalized form of a missing identifier. It never matches.
const Empty ID = ""

// IsEmpty reports whether id is Empty.
func (id ID) IsEmpty() bool { return id == Empty }

// Normalize returns the canonical form of v. It never fails: values that are
// not numeric pass through as trimmed text with commas removed.
// A whitespace-only string normalizes to Empty, the same as a missing value.
func Normalize(v model.Value) ID {
	switch v.Kind() {
	case model.KindNumber:
		f, _ := v.Float()
		return fromFloat(f, v.String())
	case model.KindString:
		return fromString(v.String())
	default:
		return Empty
	}
}

// NormalizeAny normalizes a plain Go value. nil is Empty.
func NormalizeAny(v any) ID {
	switch x := v.(type) {
	case nil:
		return Empty
	case model.Value:
		return Normalize(x)
	case string:
		return fromString(x)
	case int:
		return ID(strconv.Itoa(x))
	case int64:
		return ID(strconv.FormatInt(x, 10))
	case int32:
		return ID(strconv.FormatInt(int64(x), 10))
	case uint64:
		return ID(strconv.FormatUint(x, 10))
	case float64:
		return Normalize(model.Number(x))
	case float32:
		return Normalize(model.Number(float64(x)))
	case fmt.Stringer:
		return fromString(x.String())
	default:
		return fromString(fmt.Sprint(x))
	}
}

func fromString(raw string) ID {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Empty
	}

	if numeric, ok := decimalForm(s); ok {
		if f, err := strconv.ParseFloat(numeric, 64); err == nil {
			return fromFloat(f, s)
		}
	}

	return ID(strings.ReplaceAll(s, ",", ""))
}

// fromFloat truncates f toward zero. Non-finite values fall back to text.
func fromFloat(f float64, text string) ID {
	if math.IsNaN(f) {
		return Empty
	}
	if math.IsInf(f, 0) {
		return ID(strings.ReplaceAll(strings.TrimSpace(text), ",", ""))
	}
	t := math.Trunc(f)
	if t == 0 {
		return "0"
	}
	return ID(strconv.FormatFloat(t, 'f', 0, 64))
}

// decimalForm rewrites s into a form strconv.ParseFloat accepts, or reports
// false when s cannot be a plain decimal number. A lone comma followed by
// one or two digits is a decimal comma ("1,23" is 1.23); any other comma
// groups thousands. A single underscore between digits is a digit
// separator ("1_000").
func decimalForm(s string) (string, bool) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
		case c == '+', c == '-', c == '.', c == ',', c == 'e', c == 'E':
		case c == '_':
			if i == 0 || i == len(s)-1 || !isDigit(s[i-1]) || !isDigit(s[i+1]) {
				return "", false
			}
		default:
			return "", false
		}
	}
	s = strings.ReplaceAll(s, "_", "")

	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		comma := strings.IndexByte(s, ',')
		if frac := len(s) - comma - 1; frac == 1 || frac == 2 {
			return s[:comma] + "." + s[comma+1:], true
		}
	}

	return strings.ReplaceAll(s, ",", ""), true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
