package condition

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/meikuraledutech/flow"
)

// Compare applies op to lhs and rhs.
func Compare(op flow.Operator, lhs, rhs any) (bool, error) {
	switch op {
	case flow.OpEq:
		return Equal(lhs, rhs), nil
	case flow.OpNeq:
		return !Equal(lhs, rhs), nil
	case flow.OpGt, flow.OpGte, flow.OpLt, flow.OpLte:
		c, err := order(lhs, rhs)
		if err != nil {
			return false, err
		}
		switch op {
		case flow.OpGt:
			return c > 0, nil
		case flow.OpGte:
			return c >= 0, nil
		case flow.OpLt:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case flow.OpContains:
		return contains(lhs, rhs), nil
	case flow.OpNotContains:
		return !contains(lhs, rhs), nil
	case flow.OpIn:
		return contains(rhs, lhs), nil
	case flow.OpNotIn:
		return !contains(rhs, lhs), nil
	case flow.OpStartsWith:
		l, r, ok := strs(lhs, rhs)
		return ok && strings.HasPrefix(l, r), nil
	case flow.OpEndsWith:
		l, r, ok := strs(lhs, rhs)
		return ok && strings.HasSuffix(l, r), nil
	case flow.OpIsEmpty:
		return IsEmpty(lhs), nil
	case flow.OpIsNotEmpty:
		return !IsEmpty(lhs), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
}

// Equal compares loosely: numbers (and numeric strings compared with a
// number) by value, everything else structurally.
func Equal(a, b any) bool {
	an, aok := number(a)
	bn, bok := number(b)
	if aok && bok {
		_, aIsString := a.(string)
		_, bIsString := b.(string)
		if !(aIsString && bIsString) {
			return an == bn
		}
	}
	return reflect.DeepEqual(a, b)
}

func order(a, b any) (int, error) {
	an, aok := number(a)
	bn, bok := number(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1, nil
		case an > bn:
			return 1, nil
		}
		return 0, nil
	}
	as, aIsString := a.(string)
	bs, bIsString := b.(string)
	if aIsString && bIsString {
		return strings.Compare(as, bs), nil
	}
	return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
}

func contains(container, item any) bool {
	switch c := container.(type) {
	case nil:
		return false
	case string:
		s, ok := item.(string)
		if !ok {
			s = fmt.Sprint(item)
		}
		return strings.Contains(c, s)
	case map[string]any:
		key, ok := item.(string)
		if !ok {
			return false
		}
		_, found := c[key]
		return found
	}
	rv := reflect.ValueOf(container)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if Equal(rv.Index(i).Interface(), item) {
			return true
		}
	}
	return false
}

func strs(a, b any) (string, string, bool) {
	as, aok := a.(string)
	bs, bok := b.(string)
	return as, bs, aok && bok
}

// IsEmpty reports whether v is nil, an empty string, or an empty collection.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Truthy reports the truthiness of a script result.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	}
	if n, ok := number(v); ok {
		return n != 0
	}
	return true
}

// ToNumber converts numbers, json.Number and numeric strings to float64.
func ToNumber(v any) (float64, bool) {
	return number(v)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}
