package normalize

import (
	"errors"
	"strings"
	"testing"
)

func TestExtract_FencedJSON(t *testing.T) {
	text := "```json\n{\"summary\": \"short\", \"bullets\": [\"a\", \"b\"]}\n```"
	obj, err := ExtractObject(text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if obj["summary"] != "short" {
		t.Fatalf("expected summary %q, got %#v", "short", obj["summary"])
	}
	bullets, ok := obj["bullets"].([]any)
	if !ok || len(bullets) != 2 {
		t.Fatalf("expected 2 bullets, got %#v", obj["bullets"])
	}
}

func TestExtract_ProseWrappedObject(t *testing.T) {
	text := "Sure, here is the result you asked for:\n{\"id\": \"A\"}\nLet me know if you need anything else."
	obj, err := ExtractObject(text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if obj["id"] != "A" {
		t.Fatalf("expected id A, got %#v", obj["id"])
	}
}

func TestExtract_PythonLiteralConventions(t *testing.T) {
	text := "{'summary': 'it works', 'published': True, 'missing': None, 'bullets': ['x', 'y',]}"
	obj, err := ExtractObject(text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if obj["summary"] != "it works" {
		t.Fatalf("expected summary, got %#v", obj["summary"])
	}
	if obj["published"] != true {
		t.Fatalf("expected published true, got %#v", obj["published"])
	}
	if v, present := obj["missing"]; !present || v != nil {
		t.Fatalf("expected missing to be nil, got %#v", v)
	}
	bullets, ok := obj["bullets"].([]any)
	if !ok || len(bullets) != 2 {
		t.Fatalf("expected 2 bullets despite trailing comma, got %#v", obj["bullets"])
	}
}

func TestExtract_Array(t *testing.T) {
	v, err := Extract("[{'id': 'A'}, {'id': 'B'}]")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if v.Kind != KindArray || len(v.Array) != 2 {
		t.Fatalf("expected array of 2, got kind=%d len=%d", v.Kind, len(v.Array))
	}
}

func TestExtract_GarbageFails(t *testing.T) {
	for _, text := range []string{"", "   ", "no structure here at all"} {
		_, err := Extract(text)
		if err == nil {
			t.Fatalf("expected error for %q", text)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ParseError, got %T", err)
		}
	}
}

func TestExtract_ParseErrorPreviewBounded(t *testing.T) {
	_, err := Extract("junk " + strings.Repeat("x", 5000))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if len(pe.Preview) > 210 {
		t.Fatalf("preview too long: %d", len(pe.Preview))
	}
}

func TestCoerceToString(t *testing.T) {
	if got := CoerceToString("plain"); got != "plain" {
		t.Fatalf("string passthrough: got %q", got)
	}
	got := CoerceToString([]any{"a", map[string]any{"k": "v"}, 3})
	if !strings.Contains(got, "a") || !strings.Contains(got, `"k":"v"`) || !strings.Contains(got, "3") {
		t.Fatalf("mixed list coercion: got %q", got)
	}
	if got := CoerceToString(map[string]any{"k": "v"}); got != `{"k":"v"}` {
		t.Fatalf("object coercion: got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("no-op truncate changed string: %q", got)
	}
	got := Truncate(strings.Repeat("é", 20), 5)
	if got != strings.Repeat("é", 5)+"..." {
		t.Fatalf("rune-safe truncate: got %q", got)
	}
}
