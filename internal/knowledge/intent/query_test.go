package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-mcp-server/internal/knowledge"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		query string
		want  knowledge.TaskIntent
	}{
		{
			query: "1月30日从上海到北京的机票",
			want: knowledge.TaskIntent{
				"action": "oneway_flight_search", "departure": "上海", "arrival": "北京",
				"departure_code": "sha", "arrival_code": "pek",
				"date": "2026-01-30", "date_YYYY-MM-DD": "2026-01-30", "trip": "oneway",
			},
		},
		{
			query: "用携程查询 1月30日 从上海到北京的机票",
			want: knowledge.TaskIntent{
				"action": "oneway_flight_search", "departure": "上海", "arrival": "北京",
				"departure_code": "sha", "arrival_code": "pek",
				"date": "2026-01-30", "date_YYYY-MM-DD": "2026-01-30", "trip": "oneway",
			},
		},
		{
			query: "明天从北京到上海的机票",
			want: knowledge.TaskIntent{
				"action": "oneway_flight_search", "departure": "北京", "arrival": "上海",
				"departure_code": "pek", "arrival_code": "sha",
				"date": "2026-01-21", "date_YYYY-MM-DD": "2026-01-21", "trip": "oneway",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := ParseQuery(tt.query, now)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQueryWithoutFrom(t *testing.T) {
	got, ok := ParseQuery("后天 广州到成都", now)
	require.True(t, ok)
	assert.Equal(t, "can", got["departure_code"])
	assert.Equal(t, "ctu", got["arrival_code"])
	assert.Equal(t, "2026-01-22", got["date"])
}

func TestParseQueryRejectsIncomplete(t *testing.T) {
	for _, q := range []string{
		"",
		"从上海到北京的机票",
		"明天的机票",
		"明天从上海到火星的机票",
		"1月30日从亚特兰蒂斯到北京的机票",
	} {
		_, ok := ParseQuery(q, now)
		assert.False(t, ok, "query %q", q)
	}
}

func TestParseQueryFeedsEnrich(t *testing.T) {
	parsed, ok := ParseQuery("1月30日从上海到北京的机票", now)
	require.True(t, ok)
	// Enrich keeps the parsed keys and has nothing to add.
	assert.Equal(t, parsed, Enrich(parsed, now))
}
