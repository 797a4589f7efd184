package condition

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// toFloat64 reports whether v is a numeric kind and its float64 value.
// encoding/json decodes numbers as float64 by default and json.Number when
// UseNumber is set; both are handled so policies survive either decode path.
func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case fmt.Stringer:
		return 0, false
	default:
		return reflectFloat(v)
	}
}

func reflectFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// valuesEqual implements equals/not_equals: deep equality with numeric
// promotion between int and float kinds; strings compared byte-exact.
func valuesEqual(a, b any) bool {
	if !isDefined(a) || !isDefined(b) {
		return false
	}
	if af, aok := toFloat64(a); aok {
		if bf, bok := toFloat64(b); bok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

// compareNumeric implements greater_than/less_than and their *_or_equal
// variants. Returns false when either side is not numeric, per spec
// ("both sides must be numeric; else false").
func compareNumeric(a, b any, cmp func(x, y float64) bool) bool {
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if !aok || !bok {
		return false
	}
	return cmp(af, bf)
}

// opContains implements contains: substring if both strings, element
// membership if left is a sequence, else false.
func opContains(left, right any) bool {
	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		return strings.Contains(ls, rs)
	}
	seq, ok := asSlice(left)
	if !ok {
		return false
	}
	for _, elem := range seq {
		if valuesEqual(elem, right) {
			return true
		}
	}
	return false
}

// opIn implements in/not_in: right must be a sequence; membership test.
func opIn(left, right any) bool {
	seq, ok := asSlice(right)
	if !ok {
		return false
	}
	for _, elem := range seq {
		if valuesEqual(left, elem) {
			return true
		}
	}
	return false
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// opMatches implements matches: both sides strings; right compiled as a
// regex, anchored to the start unless ^/$ already present. An invalid
// regex yields false rather than propagating a compile error.
func opMatches(left, right any) bool {
	ls, lok := left.(string)
	rs, rok := right.(string)
	if !lok || !rok {
		return false
	}
	pattern := rs
	if !strings.HasPrefix(pattern, "^") && !strings.HasSuffix(pattern, "$") {
		pattern = "^(?:" + pattern + ")"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(ls)
}

func opStartsWith(left, right any) bool {
	ls, lok := left.(string)
	rs, rok := right.(string)
	return lok && rok && strings.HasPrefix(ls, rs)
}

func opEndsWith(left, right any) bool {
	ls, lok := left.(string)
	rs, rok := right.(string)
	return lok && rok && strings.HasSuffix(ls, rs)
}
