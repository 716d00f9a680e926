package intent

import (
	"regexp"
	"strings"
	"time"

	"waypoint-mcp-server/internal/knowledge"
)

// QueryAction is the action of every intent built by ParseQuery.
const QueryAction = "oneway_flight_search"

var (
	routeFrom = regexp.MustCompile(`从([^\s到]+)到([^\s的]+)`)
	routeBare = regexp.MustCompile(`([^\s从到]+)到([^\s的]+)`)
)

// ParseQuery reads a one-way flight request written as a sentence, such as
// "1月30日从上海到北京的机票". It needs a date and two known cities; anything
// less reports false. The intent carries the raw city names alongside their
// codes and the normalized date, so templates render with or without Enrich.
func ParseQuery(text string, now time.Time) (knowledge.TaskIntent, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	date, ok := NormalizeDate(text, now)
	if !ok {
		return nil, false
	}

	m := routeFrom.FindStringSubmatch(text)
	if m == nil {
		if m = routeBare.FindStringSubmatch(text); m == nil {
			return nil, false
		}
	}
	from, to := m[1], m[2]
	fromCode, ok := CityCode(from)
	if !ok {
		return nil, false
	}
	toCode, ok := CityCode(to)
	if !ok {
		return nil, false
	}

	return knowledge.TaskIntent{
		"action":          QueryAction,
		"departure":       from,
		"arrival":         to,
		"departure_code":  fromCode,
		"arrival_code":    toCode,
		"date":            date,
		"date_YYYY-MM-DD": date,
		"trip":            "oneway",
	}, true
}
