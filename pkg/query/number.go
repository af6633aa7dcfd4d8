package query

import (
	"encoding/json"
	"strconv"
	"strings"
)

// decimal is a JSON number reduced to sign, significant digits and a power of
// ten, so that 3, 3.0, 30e-1 and 0.3e1 all have the same representation.
type decimal struct {
	neg    bool
	digits string
	exp    int
}

func parseDecimal(s string) (decimal, bool) {
	var d decimal
	switch {
	case strings.HasPrefix(s, "-"):
		d.neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	mant := s
	exp := 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mant = s[:i]
		e, err := strconv.ParseInt(s[i+1:], 10, 32)
		if err != nil {
			return d, false
		}
		exp = int(e)
	}

	intPart, fracPart, _ := strings.Cut(mant, ".")
	if intPart == "" && fracPart == "" {
		return d, false
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return d, false
		}
	}

	digits := strings.TrimLeft(intPart+fracPart, "0")
	exp -= len(fracPart)
	trimmed := strings.TrimRight(digits, "0")
	exp += len(digits) - len(trimmed)
	if trimmed == "" {
		return decimal{digits: "0"}, true
	}
	d.digits = trimmed
	d.exp = exp
	return d, true
}

// sameNumber compares two number literals by exact value.
func sameNumber(a, b string) bool {
	if a == b {
		return true
	}
	da, ok := parseDecimal(a)
	if !ok {
		return false
	}
	db, ok := parseDecimal(b)
	if !ok {
		return false
	}
	return da == db
}

// numberText returns the literal of a JSON number held in a record.
func numberText(v interface{}) (string, bool) {
	switch n := v.(type) {
	case json.Number:
		return string(n), true
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(n), 'g', -1, 32), true
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	}
	return "", false
}
