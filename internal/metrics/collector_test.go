package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"waypoint-mcp-server/internal/element"
	"waypoint-mcp-server/internal/navigation"
)

func TestCollectorRecordsToolCalls(t *testing.T) {
	c := NewCollector("test", zap.NewNop())

	c.RecordToolCall("classify-elements", 10*time.Millisecond, nil)
	c.RecordToolCall("classify-elements", 5*time.Millisecond, nil)
	c.RecordToolCall("navigate-url", time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("classify-elements", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("navigate-url", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.toolDuration))
}

func TestCollectorRecordsDomainEvents(t *testing.T) {
	c := NewCollector("test", zap.NewNop())

	c.RecordClassification([]element.Result{
		{ElementIndex: 0, Category: element.Date, Confidence: 95},
		{ElementIndex: 1, Category: element.Date, Confidence: 90},
		{ElementIndex: 2, Category: element.Unknown},
	})
	assert.Equal(t, 2.0, testutil.ToFloat64(c.elementsClassified.WithLabelValues("DATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.elementsClassified.WithLabelValues("UNKNOWN")))

	c.RecordShortcut(navigation.Decision{Kind: navigation.Navigate, Destination: "https://x"})
	c.RecordShortcut(navigation.Decision{Kind: navigation.Fallback, Reason: navigation.ReasonMissingParameter})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.shortcutDecisions.WithLabelValues("navigate", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.shortcutDecisions.WithLabelValues("fallback", "missing_parameter")))

	c.RecordNavigation(1500*time.Millisecond, nil)
	assert.Equal(t, 1, testutil.CollectAndCount(c.navigationDuration))

	c.SetKnowledgeEntries(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.knowledgeEntries))
}

func TestCollectorSeedsEveryCategory(t *testing.T) {
	c := NewCollector("test", zap.NewNop())
	assert.Equal(t, len(element.Categories()), testutil.CollectAndCount(c.elementsClassified))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.elementsClassified.WithLabelValues("CALENDAR")))
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector("waypoint", zap.NewNop())
	c.RecordToolCall("list-sessions", time.Millisecond, nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `waypoint_tool_calls_total{status="ok",tool="list-sessions"} 1`), body)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordToolCall("x", time.Millisecond, nil)
	c.RecordClassification([]element.Result{{Category: element.Button}})
	c.RecordShortcut(navigation.Decision{})
	c.RecordNavigation(time.Second, nil)
	c.SetKnowledgeEntries(1)
	assert.Nil(t, c.Registry())

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
