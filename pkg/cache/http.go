package cache

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json"

	// HeaderCache reports HIT or MISS on responses served by a Cached handler
	HeaderCache = "X-Cache"
)

// Render writes a handler result to w. Strings are sent as HTML text, a
// *JSONResponse with its own status and headers, anything else as JSON.
// Every response carries an ETag; a GET or HEAD whose If-None-Match matches
// it gets 304 Not Modified.
func Render(w http.ResponseWriter, r *http.Request, value any) error {
	status, header, contentType, body, err := renderBody(value)
	if err != nil {
		return err
	}

	for key, values := range header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	etag := ETag(body)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", etag)

	if status == http.StatusOK && r != nil && IfNoneMatch(r, etag) {
		NotModifiedResponses.Inc()
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	w.WriteHeader(status)
	if r != nil && r.Method == http.MethodHead {
		return nil
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, "write response body")
	}
	return nil
}

func renderBody(value any) (int, http.Header, string, []byte, error) {
	switch v := value.(type) {
	case string:
		return http.StatusOK, nil, contentTypeHTML, []byte(v), nil
	case JSONResponse:
		return renderBody(&v)
	case *JSONResponse:
		if v == nil {
			return 0, nil, "", nil, errors.Mark(errors.New("nil response"), ErrEncode)
		}
		body, err := canonicalJSON.Marshal(v.Body)
		if err != nil {
			return 0, nil, "", nil, errors.Mark(errors.Wrap(err, "render JSON response"), ErrEncode)
		}
		status := v.Status
		if status == 0 {
			status = http.StatusOK
		}
		return status, v.Header, contentTypeJSON, body, nil
	}

	body, err := canonicalJSON.Marshal(value)
	if err != nil {
		return 0, nil, "", nil, errors.Mark(errors.Wrap(err, "render JSON value"), ErrEncode)
	}
	return http.StatusOK, nil, contentTypeJSON, body, nil
}

// ETag returns a strong entity tag for a rendered body.
func ETag(body []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
}

// IfNoneMatch reports whether the request's If-None-Match header matches etag.
// Weak comparison is used, as for GET and HEAD.
func IfNoneMatch(r *http.Request, etag string) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	header := r.Header.Get("If-None-Match")
	if header == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}
