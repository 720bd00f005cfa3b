package bind

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/testkit"
)

type payload struct {
	Name  string `json:"name" validate:"required,min=2"`
	Age   int    `json:"age" validate:"min=1"`
	Table string `json:"table,omitempty" validate:"omitempty,oneof=houses frames"`
}

func defaults() JSONOptions { return pick(nil) }

func TestParseJSON(t *testing.T) {
	lenient := defaults()
	lenient.DisallowUnknown = false
	empty := defaults()
	empty.AllowEmptyBody = true
	tiny := defaults()
	tiny.MaxBytes = 8

	cases := []struct {
		name   string
		method string
		body   string
		opts   JSONOptions
		code   perr.ErrorCode
		want   string
	}{
		{"ok", http.MethodPost, `{"name":"Cleo","age":4}`, defaults(), 0, "Cleo"},
		{"empty post", http.MethodPost, ``, defaults(), perr.ErrorCodeJSON, ""},
		{"empty get tolerated", http.MethodGet, ``, defaults(), 0, ""},
		{"empty allowed", http.MethodPost, ``, empty, 0, ""},
		{"invalid json", http.MethodPost, `{`, defaults(), perr.ErrorCodeJSON, ""},
		{"unknown field", http.MethodPost, `{"name":"Cleo","age":4,"x":1}`, defaults(), perr.ErrorCodeJSON, ""},
		{"unknown field lenient", http.MethodPost, `{"name":"Cleo","age":4,"x":1}`, lenient, 0, "Cleo"},
		{"trailing data", http.MethodPost, `{"name":"Cleo","age":4}{}`, defaults(), perr.ErrorCodeJSON, ""},
		{"too large", http.MethodPost, `{"name":"Cleo","age":4}`, tiny, perr.ErrorCodeJSON, ""},
		{"validation", http.MethodPost, `{"name":"C","age":4}`, defaults(), perr.ErrorCodeValidation, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(tc.method, "/", strings.NewReader(tc.body))
			got, err := ParseJSON[payload](r, tc.opts)
			if tc.code != 0 {
				if perr.CodeOf(err) != tc.code {
					t.Fatalf("code = %v (%v), want %v", perr.CodeOf(err), err, tc.code)
				}
				return
			}
			if err != nil || got.Name != tc.want {
				t.Fatalf("got %+v, %v", got, err)
			}
		})
	}
}

func TestParseJSON_TrailingSeam(t *testing.T) {
	testkit.Swap(t, &jsonMore, func(*json.Decoder) bool { return true })
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Cleo","age":4}`))
	if _, err := ParseJSON[payload](r); perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("err = %v", err)
	}
}

func TestValidationMessages(t *testing.T) {
	cases := []struct {
		body  string
		field string
		msg   string
	}{
		{`{"name":"C","age":4}`, "name", "name must be at least 2"},
		{`{"name":"Cleo","age":0}`, "age", "age must be at least 1"},
		{`{"name":"Cleo","age":4,"table":"lanes"}`, "table", "table must be one of [houses frames]"},
	}
	for _, tc := range cases {
		_, err := ParseBytes[payload]([]byte(tc.body))
		e, ok := perr.As(err)
		if !ok || e.Code() != perr.ErrorCodeValidation {
			t.Fatalf("%s: err = %v", tc.body, err)
		}
		if e.Field() != tc.field {
			t.Fatalf("%s: field = %q, want %q", tc.body, e.Field(), tc.field)
		}
		testkit.MustContain(t, e.Error(), tc.msg)
	}
}

func TestJSONName(t *testing.T) {
	type s struct {
		A string `json:"alpha,omitempty"`
		B string `json:"-"`
		C string
	}
	typ := func(name string) string {
		sf, _ := reflect.TypeOf(s{}).FieldByName(name)
		return jsonName(sf)
	}
	for field, want := range map[string]string{"A": "alpha", "B": "B", "C": "C"} {
		if got := typ(field); got != want {
			t.Fatalf("%s -> %q, want %q", field, got, want)
		}
	}
}

func TestParseBytes(t *testing.T) {
	got, err := ParseBytes[payload]([]byte(`{"name":"Cleo","age":4}`))
	if err != nil || got.Name != "Cleo" {
		t.Fatalf("got %+v %v", got, err)
	}
	if _, err := ParseBytes[payload]([]byte("  ")); perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("empty: %v", err)
	}
	o := defaults()
	o.MaxBytes = 8
	if _, err := ParseBytes[payload]([]byte(`{"name":"Cleo","age":4}`), o); perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("oversized: %v", err)
	}
}

func TestParseBytes_UseNumber(t *testing.T) {
	type rows struct {
		Rows []map[string]any `json:"rows"`
	}
	o := defaults()
	o.UseNumber = true
	got, err := ParseBytes[rows]([]byte(`{"rows":[{"id":9007199254740993}]}`), o)
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := got.Rows[0]["id"].(json.Number); !ok || n.String() != "9007199254740993" {
		t.Fatalf("id = %#v", got.Rows[0]["id"])
	}
}
