package cache

import (
	"net/http"
	"reflect"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// canonicalJSON sorts map keys so equal values always serialize to the same
// bytes, and keeps JSON numbers as json.Number on decode.
var canonicalJSON = sonic.Config{
	EscapeHTML:       true,
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
	UseNumber:        true,
}.Froze()

// Shape describes which kind of value a handler returns.
type Shape int

const (
	// ShapeAuto lets New derive the shape from the handler's result type.
	ShapeAuto Shape = iota

	// ShapeValue is any serializable value: strings, numbers, slices, structs.
	ShapeValue

	// ShapeMapping is a string-keyed map.
	ShapeMapping

	// ShapeResponse is a *JSONResponse wrapper.
	ShapeResponse
)

// String returns the shape name used in logs and errors.
func (s Shape) String() string {
	switch s {
	case ShapeValue:
		return "value"
	case ShapeMapping:
		return "mapping"
	case ShapeResponse:
		return "response"
	default:
		return "auto"
	}
}

// Format selects the serialization used for the external store.
type Format int

const (
	// FormatJSON stores canonical JSON text.
	FormatJSON Format = iota

	// FormatMsgPack stores MessagePack.
	FormatMsgPack
)

// ParseFormat maps "json" / "msgpack" to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "json":
		return FormatJSON, nil
	case "msgpack":
		return FormatMsgPack, nil
	default:
		return FormatJSON, errors.Newf("unknown cache format %q", s)
	}
}

// JSONResponse is a response wrapper whose body is rendered as JSON.
//
// The memory backend returns the wrapper as stored. An external store keeps
// only Body, so a hit served from it carries status 200 and no Header; set
// per-response headers such as Cache-Control outside the cached handler.
type JSONResponse struct {
	// Status is the HTTP status code (default 200)
	Status int

	// Header holds extra response headers
	Header http.Header

	// Body is the JSON-serializable payload
	Body any
}

// JSON wraps body in a 200 OK JSON response.
func JSON(body any) *JSONResponse {
	return &JSONResponse{Status: http.StatusOK, Body: body}
}

var (
	responsePtrType = reflect.TypeOf((*JSONResponse)(nil))
	responseType    = responsePtrType.Elem()
)

// ShapeOf reports the shape of a concrete value.
func ShapeOf(v any) Shape {
	switch v.(type) {
	case *JSONResponse, JSONResponse:
		return ShapeResponse
	case map[string]any, Params:
		return ShapeMapping
	case nil:
		return ShapeValue
	}
	return shapeOfType(reflect.TypeOf(v))
}

// ShapeFor reports the shape implied by the static type T, or ShapeAuto when
// T is an interface type whose shape cannot be known before a value exists.
func ShapeFor[T any]() Shape {
	return shapeOfType(reflect.TypeFor[T]())
}

func shapeOfType(t reflect.Type) Shape {
	switch {
	case t == nil:
		return ShapeValue
	case t == responsePtrType || t == responseType:
		return ShapeResponse
	case t.Kind() == reflect.Interface:
		return ShapeAuto
	case t.Kind() == reflect.Map && t.Key().Kind() == reflect.String:
		return ShapeMapping
	default:
		return ShapeValue
	}
}

// Codec converts handler results to and from their stored form.
type Codec struct {
	format Format
}

// NewCodec creates a codec for the given format.
func NewCodec(format Format) *Codec {
	return &Codec{format: format}
}

// Format returns the codec's serialization format.
func (c *Codec) Format() Format {
	return c.format
}

// Encode serializes v and reports its shape. For a response wrapper only the
// body is serialized.
func (c *Codec) Encode(v any) ([]byte, Shape, error) {
	shape := ShapeOf(v)
	payload := v
	switch resp := v.(type) {
	case *JSONResponse:
		if resp == nil {
			return nil, shape, errors.Mark(errors.New("nil response"), ErrEncode)
		}
		payload = resp.Body
	case JSONResponse:
		payload = resp.Body
	}

	data, err := c.marshal(payload)
	if err != nil {
		return nil, shape, errors.Mark(errors.Wrapf(err, "encode %s", shape), ErrEncode)
	}
	return data, shape, nil
}

// Decode reconstructs a value of the given shape. A ShapeResponse value is
// rebuilt with JSON, dropping the status and headers of the original.
func (c *Codec) Decode(data []byte, shape Shape) (any, error) {
	switch shape {
	case ShapeResponse:
		var body any
		if err := c.unmarshal(data, &body); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode response body"), ErrDecode)
		}
		return JSON(body), nil
	case ShapeMapping:
		var m map[string]any
		if err := c.unmarshal(data, &m); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode mapping"), ErrDecode)
		}
		return m, nil
	default:
		var v any
		if err := c.unmarshal(data, &v); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode value"), ErrDecode)
		}
		return v, nil
	}
}

// decodeAs decodes data into the handler's result type T.
func decodeAs[T any](c *Codec, data []byte, shape Shape) (T, error) {
	var out T
	if shape == ShapeResponse || reflect.TypeFor[T]().Kind() == reflect.Interface {
		v, err := c.Decode(data, shape)
		if err != nil {
			return out, err
		}
		if resp, ok := v.(*JSONResponse); ok {
			if typed, ok := any(*resp).(T); ok {
				return typed, nil
			}
		}
		typed, ok := v.(T)
		if !ok {
			return out, errors.Mark(errors.Newf("cannot convert %T to %T", v, out), ErrDecode)
		}
		return typed, nil
	}
	if err := c.unmarshal(data, &out); err != nil {
		return out, errors.Mark(errors.Wrapf(err, "decode into %T", out), ErrDecode)
	}
	return out, nil
}

func (c *Codec) marshal(v any) ([]byte, error) {
	if c.format == FormatMsgPack {
		return msgpack.Marshal(v)
	}
	return canonicalJSON.Marshal(v)
}

func (c *Codec) unmarshal(data []byte, v any) error {
	if c.format == FormatMsgPack {
		return msgpack.Unmarshal(data, v)
	}
	return canonicalJSON.Unmarshal(data, v)
}
