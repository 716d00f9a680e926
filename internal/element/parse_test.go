package element

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line  string
		index int
		tag   string
		text  string
		attrs map[string]string
	}{
		{line: "[33]<button>提交表单/>", index: 33, tag: "button", text: "提交表单"},
		{line: "\t[4]<input type=\"date\" id=\"depart\">/>", index: 4, tag: "input", attrs: map[string]string{"type": "date", "id": "depart"}},
		{line: "[7]<div btn;btn-primary>Search/>", index: 7, tag: "div", text: "Search", attrs: map[string]string{"class": "btn btn-primary"}},
		{line: "[5]<td 1月30日/>", index: 5, tag: "td", text: "1月30日"},
		{line: "[12]<A>Flights/>", index: 12, tag: "a", text: "Flights"},
		{line: "[5]<input type=date>", index: 5, tag: "input", attrs: map[string]string{"type": "date"}},
		{line: "[6]<input type='text' name=from placeholder=\"出发城市\">/>", index: 6, tag: "input", attrs: map[string]string{"type": "text", "name": "from", "placeholder": "出发城市"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			el, ok := ParseLine(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.index, el.Index)
			assert.Equal(t, tt.tag, el.TagName)
			assert.Equal(t, tt.text, el.Text)
			for k, v := range tt.attrs {
				assert.Equal(t, v, el.Attr(k), "attribute %s", k)
			}
		})
	}
}

func TestParseUnquotedDateInput(t *testing.T) {
	el, ok := ParseLine("[5]<input type=date>")
	require.True(t, ok)
	assert.Empty(t, el.Text)
	assert.Empty(t, el.Attr("class"))

	got := NewClassifier().Classify(el)
	assert.Equal(t, Date, got.Category)
	assert.Equal(t, "date-input", got.Rule)
}

func TestParseLineRejects(t *testing.T) {
	for _, line := range []string{"", "plain text", "[x]<div>oops/>", "<div>no index/>", "[3] missing tag"} {
		_, ok := ParseLine(line)
		assert.False(t, ok, "line %q", line)
	}
}

func TestParseSnapshotSkipsNoise(t *testing.T) {
	snapshot := `Interactive elements:
[0]<input type="date">/>
... 3 pixels above ...
[1]<button>Search/>

[2]<td>15/>`

	elements := ParseSnapshot(snapshot)
	require.Len(t, elements, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{elements[0].Index, elements[1].Index, elements[2].Index})

	results := NewClassifier().ClassifyAll(elements)
	assert.Equal(t, Date, results[0].Category)
	assert.Equal(t, Button, results[1].Category)
	assert.Equal(t, Calendar, results[2].Category)
}

func TestPageElementImmutable(t *testing.T) {
	attrs := map[string]string{"Type": "date"}
	el := NewPageElement(1, "INPUT", "", attrs)
	attrs["type"] = "text"

	assert.Equal(t, "input", el.TagName)
	assert.Equal(t, "date", el.Attr("type"))

	copied := el.Attributes()
	copied["type"] = "text"
	assert.Equal(t, "date", el.Attr("TYPE"))
}

func TestPageElementJSON(t *testing.T) {
	var el PageElement
	require.NoError(t, json.Unmarshal([]byte(`{"index":3,"tag_name":"Input","text":"","attributes":{"Type":"date"}}`), &el))
	assert.Equal(t, 3, el.Index)
	assert.Equal(t, "input", el.TagName)
	assert.Equal(t, "date", el.Attr("type"))

	out, err := json.Marshal(el)
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":3,"tag_name":"input","text":"","attributes":{"type":"date"}}`, string(out))
}
