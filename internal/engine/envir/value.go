package envir

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"go.trai.ch/zerr"
)

// MarshalValue serializes a workspace value to JSON with embedded type
// information, so it round-trips through the cache.
func MarshalValue(v cty.Value) ([]byte, error) {
	data, err := ctyjson.Marshal(v, cty.DynamicPseudoType)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to marshal value")
	}
	return data, nil
}

// UnmarshalValue decodes a value serialized by MarshalValue.
func UnmarshalValue(data []byte) (cty.Value, error) {
	v, err := ctyjson.Unmarshal(data, cty.DynamicPseudoType)
	if err != nil {
		return cty.NilVal, zerr.Wrap(err, "failed to unmarshal value")
	}
	return v, nil
}

// FromGo converts a decoded YAML value (bools, numbers, strings, sequences
// and mappings) into a cty value for the workspace environment.
func FromGo(v any) (cty.Value, error) {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case bool:
		return cty.BoolVal(val), nil
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case int64:
		return cty.NumberIntVal(val), nil
	case uint64:
		// yaml.v3 decodes integers above MaxInt64 as uint64.
		return cty.NumberUIntVal(val), nil
	case float64:
		return cty.NumberFloatVal(val), nil
	case string:
		return cty.StringVal(val), nil
	case []any:
		if len(val) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(val))
		for i, item := range val {
			conv, err := FromGo(item)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = conv
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		if len(val) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(val))
		for k, item := range val {
			conv, err := FromGo(item)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = conv
		}
		return cty.ObjectVal(attrs), nil
	case map[any]any:
		if len(val) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(val))
		for k, item := range val {
			key, ok := k.(string)
			if !ok {
				return cty.NilVal, zerr.With(zerr.New("environment mapping keys must be strings"), "key", fmt.Sprintf("%v", k))
			}
			conv, err := FromGo(item)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[key] = conv
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, zerr.With(zerr.New("unsupported environment value type"), "type", fmt.Sprintf("%T", v))
	}
}
