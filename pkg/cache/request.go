package cache

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultMaxBodyBytes caps the JSON body read when deriving parameters.
const DefaultMaxBodyBytes int64 = 1 << 20

// RequestOption configures how parameters are extracted from a request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	maxBodyBytes int64
}

// WithMaxBodyBytes caps the request body size. Zero or negative keeps
// DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) RequestOption {
	return func(o *requestOptions) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

func newRequestOptions(opts []RequestOption) requestOptions {
	o := requestOptions{maxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Request is the input of a cached handler.
type Request struct {
	// HTTP is the underlying request; nil when called outside net/http
	HTTP *http.Request

	// PathArgs holds the wildcards of the matched route pattern
	PathArgs Params

	// Params holds the query string (GET) or JSON body (POST/PUT/PATCH/DELETE)
	Params Params
}

// NewRequest extracts path arguments and request parameters from r.
// The request body is restored so handlers can read it again.
func NewRequest(r *http.Request, opts ...RequestOption) (*Request, error) {
	params, err := ParseParams(r, opts...)
	if err != nil {
		return nil, err
	}
	return &Request{
		HTTP:     r,
		PathArgs: PathArgs(r),
		Params:   params,
	}, nil
}

// ParseParams returns the query string for GET and HEAD requests and the
// decoded JSON object body otherwise. An absent body yields empty Params.
// A body over the size limit fails with ErrInvalidBody wrapping an
// *http.MaxBytesError.
func ParseParams(r *http.Request, opts ...RequestOption) (Params, error) {
	switch r.Method {
	case http.MethodGet, http.MethodHead, "":
		return queryParams(r), nil
	}
	return bodyParams(r, newRequestOptions(opts).maxBodyBytes)
}

func queryParams(r *http.Request) Params {
	query := r.URL.Query()
	params := make(Params, len(query))
	for k, values := range query {
		if len(values) == 1 {
			params[k] = values[0]
			continue
		}
		params[k] = values
	}
	return params
}

func bodyParams(r *http.Request, limit int64) (Params, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return Params{}, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	r.Body.Close()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read request body"), ErrInvalidBody)
	}
	if int64(len(body)) > limit {
		return nil, errors.Mark(errors.WithStack(&http.MaxBytesError{Limit: limit}), ErrInvalidBody)
	}

	// Restore body for the handler
	r.Body = io.NopCloser(bytes.NewReader(body))

	if len(bytes.TrimSpace(body)) == 0 {
		return Params{}, nil
	}

	var decoded any
	if err := canonicalJSON.Unmarshal(body, &decoded); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode JSON body"), ErrInvalidBody)
	}
	switch v := decoded.(type) {
	case nil:
		return Params{}, nil
	case map[string]any:
		return Params(v), nil
	default:
		return nil, errors.Wrapf(ErrInvalidBody, "JSON body must be an object, got %T", decoded)
	}
}

// PathArgs returns the wildcard values of the ServeMux pattern that matched r.
func PathArgs(r *http.Request) Params {
	names := patternWildcards(r.Pattern)
	args := make(Params, len(names))
	for _, name := range names {
		args[name] = r.PathValue(name)
	}
	return args
}

// patternWildcards lists wildcard names in a pattern such as
// "GET /example_2/{name}/{age}" or "/files/{path...}".
func patternWildcards(pattern string) []string {
	var names []string
	for {
		start := strings.IndexByte(pattern, '{')
		if start < 0 {
			return names
		}
		end := strings.IndexByte(pattern[start:], '}')
		if end < 0 {
			return names
		}
		name := strings.TrimSuffix(pattern[start+1:start+end], "...")
		if name != "" && name != "$" {
			names = append(names, name)
		}
		pattern = pattern[start+end+1:]
	}
}
