package element

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() ([]PageElement, []Result) {
	elements := []PageElement{
		NewPageElement(0, "input", "", map[string]string{"type": "date"}),
		NewPageElement(1, "button", "Search", nil),
		NewPageElement(2, "td", "30", nil),
		NewPageElement(3, "button", "1月30日", nil),
		NewPageElement(4, "span", "Lowest fare guaranteed", nil),
		NewPageElement(5, "", "", nil),
	}
	return elements, NewClassifier().ClassifyAll(elements)
}

func TestDigestRender(t *testing.T) {
	elements, results := sampleSnapshot()
	out := Group(results, elements).Render()

	want := strings.Join([]string{
		"=== DATE (2) ===",
		"[0]<input>/> (confidence:95)",
		"[3]<button>1月30日/> (confidence:90) [date:1月30日]",
		"",
		"=== CALENDAR (1) ===",
		"[2]<td>30/> (confidence:95) [date:30]",
		"",
		"=== BUTTON (1) ===",
		"[1]<button>Search/> (confidence:85)",
		"",
		"=== TEXT (1) ===",
		"[4]<span>Lowest fare guaranteed/> (confidence:40)",
		"",
		"=== UNKNOWN (1) ===",
		"[5]<>/> (confidence:0)",
		"",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestDigestCounts(t *testing.T) {
	elements, results := sampleSnapshot()
	d := Group(results, elements)

	assert.Equal(t, map[Category]int{Date: 2, Calendar: 1, Button: 1, Text: 1, Unknown: 1}, d.Counts())
	assert.Empty(t, d.Entries(Modal))
	require.Len(t, d.Entries(Date), 2)
	assert.Equal(t, 0, d.Entries(Date)[0].Result.ElementIndex)
}

func TestGroupToleratesLengthMismatch(t *testing.T) {
	elements, results := sampleSnapshot()
	d := Group(results[:2], elements)
	total := 0
	for _, n := range d.Counts() {
		total += n
	}
	assert.Equal(t, 2, total)
}

func TestPrimaryCandidates(t *testing.T) {
	_, results := sampleSnapshot()

	got := PrimaryCandidates(results, DefaultPrimaryThreshold)
	idx := make([]int, 0, len(got))
	for _, r := range got {
		idx = append(idx, r.ElementIndex)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, idx)

	assert.Empty(t, PrimaryCandidates(results, 101))
	// UNKNOWN never qualifies, even at threshold 0.
	assert.Len(t, PrimaryCandidates(results, 0), 5)
}

func TestFindDates(t *testing.T) {
	elements, results := sampleSnapshot()

	all := FindDates(results, elements, "")
	require.Len(t, all, 3)

	hits := FindDates(results, elements, "1月30日")
	require.Len(t, hits, 1)
	assert.Equal(t, 3, hits[0].Element.Index)

	assert.Empty(t, FindDates(results, elements, "2月1日"))
}

func TestCategoryText(t *testing.T) {
	for _, c := range Categories() {
		parsed, err := ParseCategory(strings.ToLower(c.String()))
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := ParseCategory("OTHER")
	assert.Error(t, err)

	_, err = Category(200).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "Category(200)", Category(200).String())

	out, err := json.Marshal(Result{ElementIndex: 1, Category: Calendar, Confidence: 90})
	require.NoError(t, err)
	assert.JSONEq(t, `{"element_index":1,"category":"CALENDAR","confidence":90}`, string(out))

	var r Result
	require.NoError(t, json.Unmarshal([]byte(`{"element_index":2,"category":"tab","confidence":75}`), &r))
	assert.Equal(t, Tab, r.Category)
}

func TestCategoriesCoverTaxonomy(t *testing.T) {
	cats := Categories()
	assert.Len(t, cats, int(categoryCount))
	seen := map[Category]bool{}
	for _, c := range cats {
		assert.True(t, c.Valid())
		seen[c] = true
	}
	assert.Len(t, seen, int(categoryCount))
}
