package cache

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Params holds named request parameters: query string values, decoded JSON
// body fields or path wildcards.
type Params map[string]any

// String returns the parameter rendered as a string, or "" when absent.
func (p Params) String(name string) string {
	v, ok := p[name]
	if !ok || v == nil {
		return ""
	}
	return formatValue(v)
}

// Merge returns a new Params holding base overlaid with override.
func Merge(base, override Params) Params {
	out := make(Params, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// KeyFunc derives a cache key from the merged path arguments and request
// parameters. The returned key is used verbatim.
type KeyFunc func(args Params) (string, error)

// BuildKey derives the cache key for one invocation of the named handler.
//
// With a key function the result of keyFunc(Merge(pathArgs, params)) is the
// key. Otherwise the key is "<name>:<query>" where query is produced by
// QueryString.
//
// Example:
//
//	BuildKey("example_2", Params{"name": "jimmy"}, Params{"sex": "boy"}, nil)
//	// example_2:name=jimmy&sex=boy
func BuildKey(name string, pathArgs, params Params, keyFunc KeyFunc) (string, error) {
	if keyFunc != nil {
		key, err := keyFunc(Merge(pathArgs, params))
		if err != nil {
			return "", errors.Mark(errors.Wrapf(err, "key function for %s", name), ErrKeyFunc)
		}
		if key == "" {
			return "", errors.Wrapf(ErrEmptyKey, "key function for %s", name)
		}
		return key, nil
	}
	query, err := QueryString(pathArgs, params)
	if err != nil {
		return "", errors.Wrapf(err, "default key for %s", name)
	}
	return name + ":" + query, nil
}

// structuredMarker prefixes values that are not plain scalars. Query
// escaping never emits it, so a marked value cannot equal any string.
const structuredMarker = "!"

type pair struct {
	key   string
	value string
}

// QueryString renders path arguments and request parameters as k=v pairs
// joined by "&", sorted by key. A name present in both keeps both pairs,
// path argument first.
//
// Keys and scalar values are query-escaped. A []string, as produced by a
// repeated query parameter, becomes one pair per value in order, the way
// url.Values.Encode writes it. Null, arrays, objects and any other type
// are written as "!" followed by their escaped canonical JSON.
func QueryString(pathArgs, params Params) (string, error) {
	pairs, err := appendPairs(make([]pair, 0, len(pathArgs)+len(params)), pathArgs)
	if err != nil {
		return "", err
	}
	if pairs, err = appendPairs(pairs, params); err != nil {
		return "", err
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].key < pairs[j].key
	})

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	return b.String(), nil
}

// appendPairs adds the params sorted by key so SliceStable keeps a
// deterministic order for duplicate names across the two sources.
func appendPairs(dst []pair, params Params) ([]pair, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if values, ok := params[k].([]string); ok && len(values) > 0 {
			for _, v := range values {
				dst = append(dst, pair{key: k, value: url.QueryEscape(v)})
			}
			continue
		}
		value, err := keyValue(params[k])
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %q", k)
		}
		dst = append(dst, pair{key: k, value: value})
	}
	return dst, nil
}

// keyValue renders one escaped parameter value for the default key.
func keyValue(v any) (string, error) {
	switch v.(type) {
	case string, json.Number, bool,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return url.QueryEscape(formatValue(v)), nil
	}
	data, err := canonicalJSON.Marshal(v)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "%T", v), ErrEncode)
	}
	return structuredMarker + url.QueryEscape(string(data)), nil
}

// formatValue renders scalars plainly and everything else as canonical JSON.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	}
	data, err := canonicalJSON.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
