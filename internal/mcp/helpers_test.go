package mcp

import (
	"testing"

	"waypoint-mcp-server/internal/element"
	"waypoint-mcp-server/internal/mangle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStringArg(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		key      string
		expected string
	}{
		{name: "string value", args: map[string]interface{}{"key": "value"}, key: "key", expected: "value"},
		{name: "missing key", args: map[string]interface{}{"other": "value"}, key: "key", expected: ""},
		{name: "int value converted to string", args: map[string]interface{}{"key": 123}, key: "key", expected: "123"},
		{name: "nil map", args: nil, key: "key", expected: ""},
		{name: "nil value", args: map[string]interface{}{"key": nil}, key: "key", expected: ""},
		{name: "bool value converted to string", args: map[string]interface{}{"key": true}, key: "key", expected: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getStringArg(tt.args, tt.key)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestGetIntArg(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		fallback int
		expected int
	}{
		{name: "int value", args: map[string]interface{}{"key": 42}, expected: 42},
		{name: "int64 value", args: map[string]interface{}{"key": int64(100)}, expected: 100},
		{name: "float64 value", args: map[string]interface{}{"key": float64(3.14)}, expected: 3},
		{name: "missing key uses fallback", args: map[string]interface{}{"other": 123}, fallback: 99, expected: 99},
		{name: "string value uses fallback", args: map[string]interface{}{"key": "not a number"}, fallback: 50, expected: 50},
		{name: "nil map uses fallback", args: nil, fallback: 25, expected: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getIntArg(tt.args, "key", tt.fallback)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestGetBoolArg(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		fallback bool
		expected bool
	}{
		{name: "true value", args: map[string]interface{}{"key": true}, expected: true},
		{name: "false value", args: map[string]interface{}{"key": false}, fallback: true, expected: false},
		{name: "missing key uses fallback", args: map[string]interface{}{"other": false}, fallback: true, expected: true},
		{name: "non-bool value uses fallback", args: map[string]interface{}{"key": "true"}, expected: false},
		{name: "nil map uses fallback", args: nil, fallback: true, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getBoolArg(tt.args, "key", tt.fallback)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestGetIntentArg(t *testing.T) {
	intent, err := getIntentArg(map[string]interface{}{
		"intent": map[string]interface{}{"action": "flight_search", "adult": float64(2), "round": true},
	}, "intent")
	require.NoError(t, err)
	assert.Equal(t, "flight_search", intent.Action())
	assert.Equal(t, "2", intent["adult"])
	assert.Equal(t, "true", intent["round"])

	for name, args := range map[string]map[string]interface{}{
		"missing":    {},
		"null":       {"intent": nil},
		"not object": {"intent": "flight_search"},
		"nested":     {"intent": map[string]interface{}{"action": "x", "where": map[string]interface{}{}}},
		"no action":  {"intent": map[string]interface{}{"date": "2026-02-01"}},
	} {
		_, err := getIntentArg(args, "intent")
		assert.Error(t, err, name)
	}
}

func TestGetElementsArg(t *testing.T) {
	elements, ok, err := getElementsArg(map[string]interface{}{
		"elements": []interface{}{
			map[string]interface{}{"index": float64(3), "tag_name": "INPUT", "attributes": map[string]interface{}{"type": "date"}},
		},
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, elements, 1)
	assert.Equal(t, 3, elements[0].Index)
	assert.Equal(t, "date", elements[0].Attr("type"))

	elements, ok, err = getElementsArg(map[string]interface{}{"elements_text": "[0]<button>Go/>\nnoise\n[1]<td>15/>"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []element.PageElement{
		element.NewPageElement(0, "button", "Go", nil),
		element.NewPageElement(1, "td", "15", nil),
	}, elements)

	_, ok, err = getElementsArg(map[string]interface{}{"elements": "nope"})
	assert.True(t, ok)
	assert.Error(t, err)

	_, ok, err = getElementsArg(map[string]interface{}{"elements_text": "   "})
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestSelectSnapshotFacts(t *testing.T) {
	facts := []mangle.Fact{
		{Predicate: mangle.PredClassified, Args: []interface{}{"a", int64(0), "DATE", int64(95)}},
		{Predicate: mangle.PredClassified, Args: []interface{}{"b", int64(0), "LINK", int64(75)}},
		{Predicate: mangle.PredClassified, Args: []interface{}{"a", int64(1), "TEXT", int64(40)}},
		{Predicate: mangle.PredClassified, Args: []interface{}{"a", int64(2), "ICON", int64(60)}},
	}

	got := selectSnapshotFacts(facts, "a", 2)
	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].Args[1])
	assert.Equal(t, int64(1), got[1].Args[1])
	assert.Empty(t, selectSnapshotFacts(facts, "missing", 10))
}

func TestAsIntResourceArgument(t *testing.T) {
	assert.Equal(t, 7, asInt([]string{"7"}))
	assert.Equal(t, 7, asInt("7"))
	assert.Equal(t, 7, asInt(float64(7)))
	assert.Equal(t, 0, asInt(nil))
	assert.Equal(t, "x", argString([]string{"x", "y"}))
	assert.Equal(t, "", argString(nil))
}
