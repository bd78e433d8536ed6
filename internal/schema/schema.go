// Package schema validates JSON-shaped payloads against declarative field
// rules and reports every violation as a human-readable message.
package schema

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Kind is the JSON type a field must hold.
type Kind int

const (
	String Kind = iota
	Number
	Integer
	Object
)

// Field is one key of an object schema. Rules are checked in declaration order:
// type, emptiness, OneOf, MaxLen, Pattern, Base64.
type Field struct {
	Name       string
	Kind       Kind
	Required   bool
	AllowEmpty bool
	OneOf      []string
	MaxLen     int
	Pattern    *regexp.Regexp
	Base64     bool
	Keys       *Schema // for Kind == Object
}

// Schema is an ordered set of fields. Keys not listed are rejected.
type Schema struct {
	Fields []Field
}

// ValidateValue encodes v to JSON and validates the resulting document.
func (s *Schema) ValidateValue(v any) ([]string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return []string{`"value" must be of type object`}, nil
	}
	return s.Validate(obj), nil
}

// Validate checks doc and returns the violations in field order. Numbers in
// doc may be float64 or json.Number.
func (s *Schema) Validate(doc map[string]any) []string {
	return s.validate("", doc)
}

func (s *Schema) validate(prefix string, doc map[string]any) []string {
	var msgs []string
	known := make(map[string]bool, len(s.Fields))

	for _, f := range s.Fields {
		known[f.Name] = true
		label := prefix + f.Name
		v, present := doc[f.Name]
		if !present {
			if f.Required {
				msgs = append(msgs, fmt.Sprintf("%q is required", label))
			}
			continue
		}
		msgs = append(msgs, f.check(label, v)...)
	}

	var unknown []string
	for k := range doc {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		msgs = append(msgs, fmt.Sprintf("%q is not allowed", prefix+k))
	}
	return msgs
}

func (f Field) check(label string, v any) []string {
	switch f.Kind {
	case Number, Integer:
		n, ok := toFloat(v)
		if !ok {
			return []string{fmt.Sprintf("%q must be a number", label)}
		}
		if f.Kind == Integer && n != math.Trunc(n) {
			return []string{fmt.Sprintf("%q must be an integer", label)}
		}
		return nil

	case Object:
		obj, ok := v.(map[string]any)
		if !ok {
			return []string{fmt.Sprintf("%q must be of type object", label)}
		}
		if f.Keys == nil {
			return nil
		}
		return f.Keys.validate(label+".", obj)
	}

	s, ok := v.(string)
	if !ok {
		return []string{fmt.Sprintf("%q must be a string", label)}
	}
	if s == "" {
		if f.AllowEmpty {
			return nil
		}
		return []string{fmt.Sprintf("%q is not allowed to be empty", label)}
	}

	var msgs []string
	if len(f.OneOf) > 0 && !contains(f.OneOf, s) {
		msgs = append(msgs, fmt.Sprintf("%q must be one of [%s]", label, strings.Join(f.OneOf, ", ")))
	}
	if f.MaxLen > 0 && len([]rune(s)) > f.MaxLen {
		msgs = append(msgs, fmt.Sprintf("%q length must be less than or equal to %d characters long", label, f.MaxLen))
	}
	if f.Pattern != nil && !f.Pattern.MatchString(s) {
		msgs = append(msgs, fmt.Sprintf("%q with value %q fails to match the required pattern: /%s/", label, s, f.Pattern.String()))
	}
	if f.Base64 {
		if _, err := base64.StdEncoding.DecodeString(s); err != nil {
			msgs = append(msgs, fmt.Sprintf("%q must be a valid base64 string", label))
		}
	}
	return msgs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
	case float64:
		return n, !math.IsInf(n, 0) && !math.IsNaN(n)
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
