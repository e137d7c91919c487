package cache

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestBuildKey_Default(t *testing.T) {
	tests := []struct {
		name     string
		handler  string
		pathArgs Params
		params   Params
		want     string
	}{
		{
			name:    "no params",
			handler: "index",
			want:    "index:",
		},
		{
			name:     "empty maps",
			handler:  "index",
			pathArgs: Params{},
			params:   Params{},
			want:     "index:",
		},
		{
			name:    "query params sorted",
			handler: "index",
			params:  Params{"name": "Jimmy", "age": "18"},
			want:    "index:age=18&name=Jimmy",
		},
		{
			name:     "path args join the query",
			handler:  "example_1",
			pathArgs: Params{"name": "jimmy"},
			want:     "example_1:name=jimmy",
		},
		{
			name:     "path args and query interleave by key",
			handler:  "example_2",
			pathArgs: Params{"name": "jimmy", "age": "18"},
			params:   Params{"sex": "boy"},
			want:     "example_2:age=18&name=jimmy&sex=boy",
		},
		{
			name:    "json numbers keep their text",
			handler: "example_6",
			params:  Params{"items": "coffee", "price": json.Number("18")},
			want:    "example_6:items=coffee&price=18",
		},
		{
			name:    "scalars",
			handler: "h",
			params:  Params{"b": true, "f": 1.5, "i": 42},
			want:    "h:b=true&f=1.5&i=42",
		},
		{
			name:    "separators are escaped",
			handler: "h",
			params:  Params{"q": "a&b=c"},
			want:    "h:q=a%26b%3Dc",
		},
		{
			name:    "nested values as marked canonical JSON",
			handler: "h",
			params:  Params{"filter": map[string]any{"z": 1, "a": 2}},
			want:    "h:filter=!%7B%22a%22%3A2%2C%22z%22%3A1%7D",
		},
		{
			name:    "arrays are marked",
			handler: "h",
			params:  Params{"a": []any{json.Number("1")}},
			want:    "h:a=!%5B1%5D",
		},
		{
			name:    "string holding JSON stays a string",
			handler: "h",
			params:  Params{"a": "[1]"},
			want:    "h:a=%5B1%5D",
		},
		{
			name:    "null is marked",
			handler: "h",
			params:  Params{"a": nil},
			want:    "h:a=!null",
		},
		{
			name:    "empty string",
			handler: "h",
			params:  Params{"a": ""},
			want:    "h:a=",
		},
		{
			name:    "marker inside a string is escaped",
			handler: "h",
			params:  Params{"a": "!null"},
			want:    "h:a=%21null",
		},
		{
			name:    "multi-valued query repeats the name",
			handler: "h",
			params:  Params{"tag": []string{"x", "y"}},
			want:    "h:tag=x&tag=y",
		},
		{
			name:    "multi-valued query keeps value order",
			handler: "h",
			params:  Params{"tag": []string{"y", "x"}, "a": "1"},
			want:    "h:a=1&tag=y&tag=x",
		},
		{
			name:     "same name in path and query keeps both, path first",
			handler:  "h",
			pathArgs: Params{"name": "tom"},
			params:   Params{"name": "jimmy"},
			want:     "h:name=tom&name=jimmy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildKey(tt.handler, tt.pathArgs, tt.params, nil)
			if err != nil {
				t.Fatalf("BuildKey() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildKey_KeyFunc(t *testing.T) {
	custom := func(args Params) (string, error) {
		return fmt.Sprintf("%s:%s:%s", args.String("name"), args.String("age"), args.String("sex")), nil
	}

	key, err := BuildKey("example_2", Params{"name": "jimmy", "age": "18"}, Params{"sex": "boy"}, custom)
	if err != nil {
		t.Fatalf("BuildKey() error = %v", err)
	}
	if key != "jimmy:18:boy" {
		t.Errorf("BuildKey() = %v, want jimmy:18:boy", key)
	}

	// Request parameters override path arguments of the same name
	key, err = BuildKey("example_2", Params{"name": "jimmy"}, Params{"name": "tom"}, func(args Params) (string, error) {
		return args.String("name"), nil
	})
	if err != nil {
		t.Fatalf("BuildKey() error = %v", err)
	}
	if key != "tom" {
		t.Errorf("BuildKey() = %v, want tom", key)
	}
}

func TestBuildKey_KeyFuncErrors(t *testing.T) {
	boom := errors.New("boom")

	_, err := BuildKey("h", nil, nil, func(Params) (string, error) { return "", boom })
	if !errors.Is(err, ErrKeyFunc) {
		t.Errorf("expected ErrKeyFunc, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}

	_, err = BuildKey("h", nil, nil, func(Params) (string, error) { return "", nil })
	if !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
}

// TestBuildKey_OrderIndependence ensures permutations of the same pairs
// always produce the same key.
func TestBuildKey_OrderIndependence(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	rng := rand.New(rand.NewSource(1))

	want, err := BuildKey("h", nil, paramsInOrder(names), nil)
	if err != nil {
		t.Fatalf("BuildKey() error = %v", err)
	}

	for i := 0; i < 50; i++ {
		shuffled := append([]string(nil), names...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := BuildKey("h", nil, paramsInOrder(shuffled), nil)
		if err != nil {
			t.Fatalf("BuildKey() error = %v", err)
		}
		if got != want {
			t.Errorf("permutation %v: key = %v, want %v", shuffled, got, want)
		}
	}
}

func paramsInOrder(names []string) Params {
	p := make(Params, len(names))
	for _, n := range names {
		p[n] = "v-" + n
	}
	return p
}

func TestBuildKey_UnencodableValue(t *testing.T) {
	_, err := BuildKey("h", nil, Params{"ch": make(chan int)}, nil)
	if !errors.Is(err, ErrEncode) {
		t.Errorf("expected ErrEncode, got %v", err)
	}
}

// TestBuildKey_DistinctRequests parses pairs of requests whose parameters
// differ only in type and checks they never share a key.
func TestBuildKey_DistinctRequests(t *testing.T) {
	tests := []struct {
		name string
		a, b *http.Request
	}{
		{
			name: "repeated query vs JSON-looking string",
			a:    httptest.NewRequest(http.MethodGet, "/h?a=x&a=y", nil),
			b:    httptest.NewRequest(http.MethodGet, "/h?a=%5B%22x%22%2C%22y%22%5D", nil),
		},
		{
			name: "null vs empty string",
			a:    httptest.NewRequest(http.MethodPost, "/h", strings.NewReader(`{"a":null}`)),
			b:    httptest.NewRequest(http.MethodPost, "/h", strings.NewReader(`{"a":""}`)),
		},
		{
			name: "array vs string",
			a:    httptest.NewRequest(http.MethodPost, "/h", strings.NewReader(`{"a":[1]}`)),
			b:    httptest.NewRequest(http.MethodPost, "/h", strings.NewReader(`{"a":"[1]"}`)),
		},
		{
			name: "object vs string",
			a:    httptest.NewRequest(http.MethodPost, "/h", strings.NewReader(`{"a":{"b":1}}`)),
			b:    httptest.NewRequest(http.MethodPost, "/h", strings.NewReader(`{"a":"{\"b\":1}"}`)),
		},
		{
			name: "body array vs repeated query",
			a:    httptest.NewRequest(http.MethodPost, "/h", strings.NewReader(`{"a":["x","y"]}`)),
			b:    httptest.NewRequest(http.MethodGet, "/h?a=x&a=y", nil),
		},
		{
			name: "null vs marker text",
			a:    httptest.NewRequest(http.MethodPost, "/h", strings.NewReader(`{"a":null}`)),
			b:    httptest.NewRequest(http.MethodPost, "/h", strings.NewReader(`{"a":"!null"}`)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyA := requestKey(t, tt.a)
			keyB := requestKey(t, tt.b)
			if keyA == keyB {
				t.Errorf("both requests map to %q", keyA)
			}
		})
	}
}

func requestKey(t *testing.T, r *http.Request) string {
	t.Helper()
	params, err := ParseParams(r)
	if err != nil {
		t.Fatalf("ParseParams() error = %v", err)
	}
	key, err := BuildKey("h", nil, params, nil)
	if err != nil {
		t.Fatalf("BuildKey() error = %v", err)
	}
	return key
}

// TestBuildKey_NoCollisions checks a random sample of distinct mappings.
// Values mix strings built from separator and marker characters, nulls,
// arrays, objects and repeated query values.
func TestBuildKey_NoCollisions(t *testing.T) {
	alphabet := []string{"a", "b", "&", "=", "%", " ", "1", "!", "[", "]", "\"", ",", "null"}
	rng := rand.New(rand.NewSource(42))
	seen := make(map[string]string)

	randomString := func() string {
		n := rng.Intn(3)
		s := ""
		for i := 0; i < n; i++ {
			s += alphabet[rng.Intn(len(alphabet))]
		}
		return s
	}

	var randomValue func(depth int) any
	randomValue = func(depth int) any {
		kind := rng.Intn(5)
		if depth > 1 && kind > 1 {
			kind = 0
		}
		switch kind {
		case 0:
			return randomString()
		case 1:
			return nil
		case 2:
			if depth > 0 {
				// Repeated values only come from the query string.
				return randomString()
			}
			values := make([]string, rng.Intn(3)+2)
			for i := range values {
				values[i] = randomString()
			}
			return values
		case 3:
			items := make([]any, rng.Intn(3))
			for i := range items {
				items[i] = randomValue(depth + 1)
			}
			return items
		default:
			object := make(map[string]any)
			for j := rng.Intn(3); j > 0; j-- {
				object[randomString()] = randomValue(depth + 1)
			}
			return object
		}
	}

	for i := 0; i < 5000; i++ {
		params := Params{}
		for j := rng.Intn(3) + 1; j > 0; j-- {
			params[randomString()] = randomValue(0)
		}

		identity := typedIdentity(t, params)
		key, err := BuildKey("h", nil, params, nil)
		if err != nil {
			t.Fatalf("BuildKey() error = %v", err)
		}
		if prev, ok := seen[key]; ok && prev != identity {
			t.Fatalf("collision on %q: %s vs %s", key, prev, identity)
		}
		seen[key] = identity
	}
}

// typedIdentity renders params with the Go type of each top-level value, so
// a []string and a []any holding the same strings stay apart.
func typedIdentity(t *testing.T, params Params) string {
	t.Helper()
	typed := make(map[string]any, len(params))
	for k, v := range params {
		typed[k] = []any{fmt.Sprintf("%T", v), v}
	}
	data, err := canonicalJSON.Marshal(typed)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return string(data)
}

func TestBuildKey_HandlerIdentity(t *testing.T) {
	a, _ := BuildKey("one", nil, Params{"x": "1"}, nil)
	b, _ := BuildKey("two", nil, Params{"x": "1"}, nil)
	if a == b {
		t.Errorf("different handlers share key %q", a)
	}
}

func TestParams_String(t *testing.T) {
	p := Params{"name": "jimmy", "age": json.Number("18"), "none": nil}

	if got := p.String("name"); got != "jimmy" {
		t.Errorf("String(name) = %q", got)
	}
	if got := p.String("age"); got != "18" {
		t.Errorf("String(age) = %q", got)
	}
	if got := p.String("none"); got != "" {
		t.Errorf("String(none) = %q", got)
	}
	if got := p.String("missing"); got != "" {
		t.Errorf("String(missing) = %q", got)
	}
}

func TestMerge(t *testing.T) {
	base := Params{"a": "1", "b": "2"}
	merged := Merge(base, Params{"b": "3", "c": "4"})

	if merged.String("a") != "1" || merged.String("b") != "3" || merged.String("c") != "4" {
		t.Errorf("Merge() = %v", merged)
	}
	if base.String("b") != "2" {
		t.Error("Merge() must not modify its inputs")
	}
}
