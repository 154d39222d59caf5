package calc

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// canonicalAPI is the codec used for task specs and template bodies:
// sorted map keys, no insignificant whitespace, so two structurally
// equal values always encode to byte-identical strings and therefore
// hash identically.
var canonicalAPI = jsoniter.Config{
	SortMapKeys: true,
	UseNumber:   true,
}.Froze()

// ClassEncoder turns a registered value into its JSON payload.
type ClassEncoder func(obj any) (map[string]any, error)

// ClassDecoder turns a decoded JSON payload back into a Go value.
type ClassDecoder func(payload map[string]any) (any, error)

type classBinding struct {
	tag    string
	encode ClassEncoder
}

// Codec is the composite walker: it walks arbitrary nested Go values
// (scalars, []any, map[string]any, and values of registered "classes")
// into canonical JSON, collecting every encountered class instance onto
// a tape, and walks canonical JSON back into Go values, replacing
// tagged objects with whatever the matching decoder returns.
//
// Task and Indexor are registered as classes by newDefaultCodec (NewCodec
// itself registers none) so that defaultCodec (used for every Template)
// recognises them the same way
// a caller's own classes map recognises its own registered types.
type Codec struct {
	byType map[reflect.Type]classBinding
}

// NewCodec returns a codec with no classes registered.
func NewCodec() *Codec {
	return &Codec{byType: map[reflect.Type]classBinding{}}
}

// RegisterClass binds a concrete Go type to a wire tag and an encoder.
// Decoding is driven separately, per call, by the decoders map passed to
// Decode — the same type can decode differently in different contexts
// (a Template substitutes a Task/Indexor tag with a future's result; the
// generic round-trip case reconstructs the original value instead).
func (c *Codec) RegisterClass(typ reflect.Type, tag string, encode ClassEncoder) {
	c.byType[typ] = classBinding{tag: tag, encode: encode}
}

var defaultCodec = newDefaultCodec()

func newDefaultCodec() *Codec {
	c := NewCodec()
	c.RegisterClass(reflect.TypeOf((*Task)(nil)), "Task", func(obj any) (map[string]any, error) {
		return map[string]any{"hashid": string(obj.(*Task).Hashid())}, nil
	})
	c.RegisterClass(reflect.TypeOf((*Indexor)(nil)), "Indexor", func(obj any) (map[string]any, error) {
		return map[string]any{"hashid": string(obj.(*Indexor).Hashid())}, nil
	})
	return c
}

// Encode is Template.from_object's composite walk: it returns the
// canonical JSON string for obj and every registered-class instance
// (the "tape") encountered while walking it.
func (c *Codec) Encode(obj any) (string, []any, error) {
	var tape []any
	walked, err := c.walkEncode(obj, &tape)
	if err != nil {
		return "", nil, err
	}
	b, err := canonicalAPI.Marshal(walked)
	if err != nil {
		return "", nil, wrap(ErrComposite, "%v", err)
	}
	return string(b), tape, nil
}

func (c *Codec) walkEncode(obj any, tape *[]any) (any, error) {
	v := reflect.ValueOf(obj)
	if obj != nil {
		if binding, ok := c.byType[v.Type()]; ok {
			payload, err := binding.encode(obj)
			if err != nil {
				return nil, wrap(ErrComposite, "%v", err)
			}
			*tape = append(*tape, obj)
			return map[string]any{binding.tag: payload}, nil
		}
	}
	switch t := obj.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			enc, err := c.walkEncode(val, tape)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			enc, err := c.walkEncode(val, tape)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return t, nil
	default:
		if _, ok := obj.(HashedFuture); ok {
			return nil, wrap(ErrComposite, "future of type %T has no registered wire class", obj)
		}
		return nil, wrap(ErrComposite, "value of type %T is not JSON-serialisable", obj)
	}
}

// Decode parses jsonstr and replaces every object tagged with a key in
// decoders by calling the matching decoder on its payload.
func (c *Codec) Decode(jsonstr string, decoders map[string]ClassDecoder) (any, error) {
	var raw any
	if err := canonicalAPI.UnmarshalFromString(jsonstr, &raw); err != nil {
		return nil, wrap(ErrComposite, "%v", err)
	}
	return walkDecode(raw, decoders)
}

func walkDecode(v any, decoders map[string]ClassDecoder) (any, error) {
	switch t := v.(type) {
	case json.Number:
		return decodeNumber(t)
	case map[string]any:
		if len(t) == 1 {
			for tag, payload := range t {
				if dec, ok := decoders[tag]; ok {
					payloadMap, ok := payload.(map[string]any)
					if !ok {
						return nil, wrap(ErrComposite, "tagged object %q has non-object payload", tag)
					}
					decodedPayload, err := walkDecode(payloadMap, decoders)
					if err != nil {
						return nil, err
					}
					return dec(decodedPayload.(map[string]any))
				}
			}
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			dv, err := walkDecode(val, decoders)
			if err != nil {
				return nil, err
			}
			out[k] = dv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			dv, err := walkDecode(val, decoders)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	default:
		return v, nil
	}
}

// decodeNumber restores the int/float distinction a canonical JSON
// number loses by default: "5" becomes the Go int 5, "5.5" the Go
// float64 5.5. Round-tripping that distinction matters because plain
// arguments reach a rule function through Template substitution, i.e.
// through Decode, so a rule called with 5 must receive an int, not a
// float64.
func decodeNumber(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			if i >= int64(-1<<53) && i <= int64(1<<53) {
				return int(i), nil
			}
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, wrap(ErrComposite, "invalid number %q: %v", s, err)
	}
	return f, nil
}
