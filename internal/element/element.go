// Package element classifies interactive page elements into a small, closed set of
// semantic categories so the planner can reason about heterogeneous markup.
package element

import (
	"encoding/json"
	"strings"
)

// PageElement is one interactive element observed in a page snapshot.
// It is immutable once built; use NewPageElement.
type PageElement struct {
	Index   int    `json:"index"`
	TagName string `json:"tag_name"`
	Text    string `json:"text"`

	attributes map[string]string
}

// NewPageElement copies attrs so later mutation by the caller cannot leak in.
// Tag names and attribute keys are lower-cased.
func NewPageElement(index int, tagName, text string, attrs map[string]string) PageElement {
	var copied map[string]string
	if len(attrs) > 0 {
		copied = make(map[string]string, len(attrs))
		for k, v := range attrs {
			key := strings.ToLower(strings.TrimSpace(k))
			if key == "" {
				continue
			}
			copied[key] = v
		}
	}
	return PageElement{
		Index:      index,
		TagName:    strings.ToLower(strings.TrimSpace(tagName)),
		Text:       text,
		attributes: copied,
	}
}

// Attr returns the attribute value, or "" when absent.
func (e PageElement) Attr(name string) string {
	return e.attributes[strings.ToLower(name)]
}

// Attributes returns a copy of the attribute map.
func (e PageElement) Attributes() map[string]string {
	out := make(map[string]string, len(e.attributes))
	for k, v := range e.attributes {
		out[k] = v
	}
	return out
}

type pageElementJSON struct {
	Index      int               `json:"index"`
	TagName    string            `json:"tag_name"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (e PageElement) MarshalJSON() ([]byte, error) {
	return json.Marshal(pageElementJSON{
		Index:      e.Index,
		TagName:    e.TagName,
		Text:       e.Text,
		Attributes: e.attributes,
	})
}

func (e *PageElement) UnmarshalJSON(data []byte) error {
	var raw pageElementJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = NewPageElement(raw.Index, raw.TagName, raw.Text, raw.Attributes)
	return nil
}

// Result is the classification of a single PageElement.
type Result struct {
	ElementIndex int      `json:"element_index"`
	Category     Category `json:"category"`
	Confidence   int      `json:"confidence"`
	// Rule names the rule that fired; empty when nothing matched.
	Rule string `json:"rule,omitempty"`
	// Detail is an optional sub-category, e.g. "date:1月30日".
	Detail string `json:"detail,omitempty"`
}

func unknownResult(index int) Result {
	return Result{ElementIndex: index, Category: Unknown, Confidence: 0}
}
