package expression

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// undefined marks a path that resolved to nothing, as opposed to an explicit null.
type undefined struct{}

// Undefined is returned by Resolve for missing paths.
var Undefined any = undefined{}

type valueKind int

const (
	kindUndefined valueKind = iota
	kindNull
	kindBool
	kindNumber
	kindString
	kindObject
)

func kindOf(v any) valueKind {
	switch v.(type) {
	case undefined:
		return kindUndefined
	case nil:
		return kindNull
	case bool:
		return kindBool
	case string:
		return kindString
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return kindNumber
	default:
		return kindObject
	}
}

func asFloat(v any) float64 {
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return math.NaN()
	}
	return f
}

// parseNumber follows the numeric-string rules of loosely typed scripting:
// surrounding whitespace is ignored and the empty string is zero.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

func toNumber(v any) float64 {
	switch kindOf(v) {
	case kindUndefined:
		return math.NaN()
	case kindNull:
		return 0
	case kindBool:
		if v.(bool) {
			return 1
		}
		return 0
	case kindNumber:
		return asFloat(v)
	case kindString:
		return parseNumber(v.(string))
	default:
		return parseNumber(toPrimitive(v))
	}
}

// toPrimitive converts a container to the string form used in loose comparisons.
func toPrimitive(v any) string {
	switch val := v.(type) {
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			if k := kindOf(item); k == kindNull || k == kindUndefined {
				continue
			}
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	default:
		return cast.ToString(v)
	}
}

func strictEqual(a, b any) bool {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case kindUndefined, kindNull:
		return true
	case kindBool:
		return a.(bool) == b.(bool)
	case kindNumber:
		return asFloat(a) == asFloat(b)
	case kindString:
		return a.(string) == b.(string)
	default:
		return false
	}
}

func looseEqual(a, b any) bool {
	ka, kb := kindOf(a), kindOf(b)
	if ka == kb {
		return strictEqual(a, b)
	}

	nullish := func(k valueKind) bool { return k == kindNull || k == kindUndefined }
	switch {
	case nullish(ka) && nullish(kb):
		return true
	case nullish(ka) || nullish(kb):
		return false
	case ka == kindNumber && kb == kindString, ka == kindString && kb == kindNumber:
		return toNumber(a) == toNumber(b)
	case ka == kindBool:
		return looseEqual(toNumber(a), b)
	case kb == kindBool:
		return looseEqual(a, toNumber(b))
	case ka == kindObject:
		return looseEqual(toPrimitive(a), b)
	case kb == kindObject:
		return looseEqual(a, toPrimitive(b))
	}
	return false
}

// parseLiteral reads the right-hand side of a clause.
func parseLiteral(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	case "undefined":
		return Undefined
	}
	if strings.TrimSpace(raw) != "" {
		if n := parseNumber(raw); !math.IsNaN(n) {
			return n
		}
	}
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			return raw[1 : len(raw)-1]
		}
	}
	return raw
}

// stringify formats a value the way it is shown to end users.
func stringify(v any) string {
	switch kindOf(v) {
	case kindUndefined, kindNull:
		return ""
	case kindString:
		return v.(string)
	case kindBool:
		return strconv.FormatBool(v.(bool))
	case kindNumber:
		return formatNumber(asFloat(v))
	}
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return "[object]"
		}
		return string(b)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		b, jerr := json.Marshal(v)
		if jerr != nil {
			return "[object]"
		}
		return string(b)
	}
	return s
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.Abs(f) >= 1e21:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
