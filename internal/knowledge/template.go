package knowledge

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

type segment struct {
	literal string
	param   string
}

// Template is a destination with {name} placeholders, parsed once at load.
type Template struct {
	raw      string
	segments []segment
	params   []string
}

// ParseTemplate splits s into literal and placeholder segments. Unbalanced braces
// and empty or invalid placeholder names are rejected.
func ParseTemplate(s string) (Template, error) {
	if strings.TrimSpace(s) == "" {
		return Template{}, fmt.Errorf("empty template")
	}

	t := Template{raw: s}
	seen := make(map[string]struct{})
	rest := s
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		closing := strings.IndexByte(rest, '}')
		if open < 0 {
			if closing >= 0 {
				return Template{}, fmt.Errorf("unbalanced '}' in template %q", s)
			}
			t.segments = append(t.segments, segment{literal: rest})
			break
		}
		if closing >= 0 && closing < open {
			return Template{}, fmt.Errorf("unbalanced '}' in template %q", s)
		}
		if open > 0 {
			t.segments = append(t.segments, segment{literal: rest[:open]})
		}

		end := strings.IndexByte(rest[open+1:], '}')
		if end < 0 {
			return Template{}, fmt.Errorf("unclosed '{' in template %q", s)
		}
		name := rest[open+1 : open+1+end]
		if strings.ContainsRune(name, '{') {
			return Template{}, fmt.Errorf("nested '{' in template %q", s)
		}
		if !placeholderName.MatchString(name) {
			return Template{}, fmt.Errorf("invalid placeholder {%s} in template %q", name, s)
		}
		t.segments = append(t.segments, segment{param: name})
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			t.params = append(t.params, name)
		}
		rest = rest[open+1+end+1:]
	}
	return t, nil
}

// MustTemplate is ParseTemplate for literals.
func MustTemplate(s string) Template {
	t, err := ParseTemplate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Params lists placeholder names in first-appearance order, without duplicates.
func (t Template) Params() []string {
	out := make([]string, len(t.params))
	copy(out, t.params)
	return out
}

func (t Template) String() string { return t.raw }

func (t Template) MarshalText() ([]byte, error) { return []byte(t.raw), nil }

// Fill substitutes every placeholder from values. When any placeholder has no
// value it returns "" and the missing names; a partial result is never built.
func (t Template) Fill(values map[string]string) (string, []string) {
	var missing []string
	for _, p := range t.params {
		if _, ok := values[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return "", missing
	}

	var b strings.Builder
	b.Grow(len(t.raw))
	for _, seg := range t.segments {
		if seg.param != "" {
			b.WriteString(values[seg.param])
			continue
		}
		b.WriteString(seg.literal)
	}
	return b.String(), nil
}
