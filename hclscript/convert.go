package hclscript

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ToCty converts a decoded JSON-like Go value into a cty value. Maps become
// objects and slices become tuples, so their elements may differ in type.
// Other structs go through their JSON encoding.
func ToCty(v any) (cty.Value, error) {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return val, nil
	case string:
		return cty.StringVal(val), nil
	case bool:
		return cty.BoolVal(val), nil
	case float64:
		return cty.NumberFloatVal(val), nil
	case float32:
		return cty.NumberFloatVal(float64(val)), nil
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case int64:
		return cty.NumberIntVal(val), nil
	case int32:
		return cty.NumberIntVal(int64(val)), nil
	case uint64:
		return cty.NumberUIntVal(val), nil
	case json.Number:
		n, _, err := big.ParseFloat(val.String(), 10, 512, big.ToNearestEven)
		if err != nil {
			return cty.NilVal, fmt.Errorf("hclscript: number %q: %w", val, err)
		}
		return cty.NumberVal(n), nil
	case map[string]any:
		attrs := make(map[string]cty.Value, len(val))
		for k, item := range val {
			cv, err := ToCty(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("in attribute %q: %w", k, err)
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	case []any:
		elems := make([]cty.Value, len(val))
		for i, item := range val {
			cv, err := ToCty(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("at index %d: %w", i, err)
			}
			elems[i] = cv
		}
		return cty.TupleVal(elems), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		return ToCty(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return ToCty(items)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return ToCty(m)
		}
	case reflect.Int8, reflect.Int16, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		ty, err := gocty.ImpliedType(v)
		if err != nil {
			return cty.NilVal, err
		}
		return gocty.ToCtyValue(v, ty)
	}

	// Structs and anything else: use the JSON shape the value would have on
	// the wire.
	raw, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("hclscript: unsupported value of type %T: %w", v, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return cty.NilVal, err
	}
	return ToCty(decoded)
}

// FromCty converts a cty value into its natural Go counterpart: string,
// float64, bool, []any, map[string]any or nil.
func FromCty(v cty.Value) (any, error) {
	v, _ = v.UnmarkDeep()
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number to float64: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			native, err := FromCty(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			native, err := FromCty(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
	}
}
