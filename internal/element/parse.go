package element

import (
	"regexp"
	"strconv"
	"strings"
)

// Serialized snapshots list one element per line as `[index]<tag attrs>text/>`,
// the format browser-use style extractors hand to the planner.
var (
	lineWithAttrs = regexp.MustCompile(`^\[(\d+)\]<(\w+)\s*([^>]*)>(.*?)/?>$`)
	lineOpenTag   = regexp.MustCompile(`^\[(\d+)\]<(\w+)\s*([^>]*)>$`)
	lineTextOnly  = regexp.MustCompile(`^\[(\d+)\]<(\w+)\s+(.*?)/?>$`)
	// Values may be double-quoted, single-quoted or bare.
	attrPair      = regexp.MustCompile(`([\w:-]+)=(?:"([^"]*)"|'([^']*)'|([^\s"'<>;]+))`)
)

// ParseLine parses one serialized element line. Lines that are not element lines
// return false.
func ParseLine(line string) (PageElement, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return PageElement{}, false
	}

	var idx, tag, attrs, text string
	if m := lineWithAttrs.FindStringSubmatch(line); m != nil {
		idx, tag, attrs, text = m[1], m[2], strings.TrimSpace(m[3]), m[4]
	} else if m := lineOpenTag.FindStringSubmatch(line); m != nil && !strings.HasSuffix(line, "/>") {
		// A bare opening tag such as [5]<input type=date> has attributes only.
		idx, tag, attrs = m[1], m[2], strings.TrimSpace(m[3])
	} else if m := lineTextOnly.FindStringSubmatch(line); m != nil {
		idx, tag, text = m[1], m[2], m[3]
	} else {
		return PageElement{}, false
	}

	index, err := strconv.Atoi(idx)
	if err != nil {
		return PageElement{}, false
	}
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "/"))
	return NewPageElement(index, tag, text, parseAttrs(attrs)), true
}

func parseAttrs(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	attrs := make(map[string]string)
	for _, m := range attrPair.FindAllStringSubmatch(raw, -1) {
		attrs[strings.ToLower(m[1])] = m[2] + m[3] + m[4]
	}
	if len(attrs) == 0 {
		// Bare tokens (often `;`-separated) are class hints.
		attrs["class"] = strings.Join(strings.FieldsFunc(raw, func(r rune) bool {
			return r == ';' || r == ' ' || r == '\t'
		}), " ")
	}
	return attrs
}

// ParseSnapshot parses every element line in a serialized snapshot, skipping
// anything else.
func ParseSnapshot(serialized string) []PageElement {
	lines := strings.Split(serialized, "\n")
	out := make([]PageElement, 0, len(lines))
	for _, line := range lines {
		if e, ok := ParseLine(line); ok {
			out = append(out, e)
		}
	}
	return out
}
