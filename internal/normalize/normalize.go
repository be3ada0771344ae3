// Package normalize recovers structured records from the loosely formatted
// text the generation backend returns. It is the pipeline's sole defense
// against that unreliability: every function is total, returning either a
// value or a typed ParseError, never hanging and never returning nil silently.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// previewLimit bounds the amount of offending text carried in a ParseError so
// log size stays bounded.
const previewLimit = 200

// ParseError reports that no structured record could be recovered. Preview
// holds a truncated sample of the offending text, never the full payload.
type ParseError struct {
	Reason  string
	Preview string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("normalize: %s (preview: %q)", e.Reason, e.Preview)
}

func newParseError(reason, text string) *ParseError {
	return &ParseError{Reason: reason, Preview: Truncate(text, previewLimit)}
}

// Kind tags the recovered value.
type Kind int

const (
	KindString Kind = iota
	KindObject
	KindArray
)

// Value is the tagged union produced by Extract: a raw string, an object or
// an array.
type Value struct {
	Kind   Kind
	Str    string
	Object map[string]any
	Array  []any
}

// AsObject returns the object payload, or an error for other kinds.
func (v Value) AsObject() (map[string]any, error) {
	if v.Kind != KindObject {
		return nil, newParseError("value is not an object", v.Str)
	}
	return v.Object, nil
}

var (
	openingFence = regexp.MustCompile("(?m)\\A```[a-zA-Z]*\\n")
	jsonSpan     = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)
)

// CoerceToString flattens the shapes a generation call may produce (string,
// mixed list, object) into a single string.
func CoerceToString(resp any) string {
	switch v := resp.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, el := range v {
			switch e := el.(type) {
			case string:
				parts = append(parts, e)
			case map[string]any:
				if b, err := json.Marshal(e); err == nil {
					parts = append(parts, string(b))
				} else {
					parts = append(parts, fmt.Sprintf("%v", e))
				}
			default:
				parts = append(parts, fmt.Sprintf("%v", e))
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Extract attempts to recover a structured object or array from text. The
// heuristics run in order, first success wins: strip code fences, locate the
// first {...} or [...] span, strict JSON parse, permissive literal parse
// (single quotes, python-style constants), then a single-to-double quote
// substitution with a strict retry.
func Extract(text string) (Value, error) {
	if strings.TrimSpace(text) == "" {
		return Value{}, newParseError("empty text", text)
	}

	cleaned := openingFence.ReplaceAllString(text, "")
	cleaned = strings.TrimRight(cleaned, "`\n")

	candidate := strings.TrimSpace(cleaned)
	if m := jsonSpan.FindString(cleaned); m != "" {
		candidate = m
	}

	if v, ok := strictParse(candidate); ok {
		return v, nil
	}
	if v, ok := literalParse(candidate); ok {
		return v, nil
	}
	if v, ok := strictParse(strings.ReplaceAll(candidate, "'", `"`)); ok {
		return v, nil
	}

	return Value{}, newParseError("no structured record recovered", candidate)
}

// ExtractObject is Extract restricted to object results.
func ExtractObject(text string) (map[string]any, error) {
	v, err := Extract(text)
	if err != nil {
		return nil, err
	}
	return v.AsObject()
}

// Truncate shortens s to at most limit runes, appending an ellipsis marker
// when anything was cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

func strictParse(candidate string) (Value, bool) {
	dec := json.NewDecoder(strings.NewReader(candidate))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, false
	}
	return fromAny(raw)
}

func fromAny(raw any) (Value, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return Value{Kind: KindObject, Object: v}, true
	case []any:
		return Value{Kind: KindArray, Array: v}, true
	case string:
		return Value{Kind: KindString, Str: v}, true
	default:
		return Value{}, false
	}
}

// literalParse is a permissive reader for model output that follows Python
// literal conventions: single-quoted strings and keys, True/False/None, and
// trailing commas. It only ever produces objects, arrays, strings, numbers
// and booleans.
func literalParse(candidate string) (Value, bool) {
	p := &literalReader{src: candidate}
	p.skipSpace()
	raw, ok := p.value()
	if !ok {
		return Value{}, false
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Value{}, false
	}
	return fromAny(raw)
}

type literalReader struct {
	src string
	pos int
}

func (p *literalReader) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalReader) value() (any, bool) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, false
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '\'' || c == '"':
		return p.quoted(c)
	default:
		return p.bare()
	}
}

func (p *literalReader) object() (any, bool) {
	p.pos++ // {
	obj := map[string]any{}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '}' {
		p.pos++
		return obj, true
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, false
		}
		quote := p.src[p.pos]
		if quote != '\'' && quote != '"' {
			return nil, false
		}
		key, ok := p.quoted(quote)
		if !ok {
			return nil, false
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return nil, false
		}
		p.pos++
		val, ok := p.value()
		if !ok {
			return nil, false
		}
		obj[key] = val
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, false
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == '}' {
				p.pos++
				return obj, true
			}
		case '}':
			p.pos++
			return obj, true
		default:
			return nil, false
		}
	}
}

func (p *literalReader) array() (any, bool) {
	p.pos++ // [
	arr := []any{}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ']' {
		p.pos++
		return arr, true
	}
	for {
		val, ok := p.value()
		if !ok {
			return nil, false
		}
		arr = append(arr, val)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, false
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == ']' {
				p.pos++
				return arr, true
			}
		case ']':
			p.pos++
			return arr, true
		default:
			return nil, false
		}
	}
}

func (p *literalReader) quoted(quote byte) (string, bool) {
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '\\':
			if p.pos+1 >= len(p.src) {
				return "", false
			}
			next := p.src[p.pos+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(next)
			}
			p.pos += 2
		case quote:
			p.pos++
			return b.String(), true
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", false
}

func (p *literalReader) bare() (any, bool) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ',' || c == '}' || c == ']' || c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			break
		}
		p.pos++
	}
	token := p.src[start:p.pos]
	switch token {
	case "true", "True":
		return true, true
	case "false", "False":
		return false, true
	case "null", "None":
		return nil, true
	}
	if n, err := strconv.ParseFloat(token, 64); err == nil {
		return n, true
	}
	return nil, false
}
