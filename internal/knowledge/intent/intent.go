// Package intent derives template-ready keys from a planner's raw task intent:
// airport city codes and normalized dates.
package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"waypoint-mcp-server/internal/knowledge"
)

// DateLayout is the layout of every normalized date.
const DateLayout = "2006-01-02"

type city struct {
	name string
	code string
}

// cities is searched in order, so longer names that contain shorter ones come first.
var cities = []city{
	{"上海", "sha"}, {"北京", "pek"}, {"广州", "can"}, {"深圳", "szx"},
	{"成都", "ctu"}, {"杭州", "hgh"}, {"南京", "nkg"}, {"武汉", "wuh"},
	{"西安", "sia"}, {"重庆", "ckg"}, {"青岛", "tao"}, {"大连", "dlc"},
	{"厦门", "xmn"}, {"昆明", "kmg"}, {"长沙", "csx"}, {"郑州", "cgo"},
	{"天津", "tsn"}, {"沈阳", "she"}, {"哈尔滨", "hrb"}, {"三亚", "syx"},
	{"海口", "hak"}, {"福州", "foc"}, {"济南", "tna"}, {"太原", "tyn"},
	{"贵阳", "kwe"}, {"南宁", "nng"}, {"合肥", "hfe"}, {"无锡", "wux"},
	{"宁波", "ngb"}, {"温州", "wnz"},
	{"香港", "hkg"}, {"澳门", "mfm"}, {"台北", "tpe"}, {"东京", "tyo"},
	{"大阪", "osa"}, {"首尔", "sel"}, {"新加坡", "sin"}, {"曼谷", "bkk"},
	{"吉隆坡", "kul"}, {"伦敦", "lon"}, {"巴黎", "par"}, {"纽约", "nyc"},
	{"洛杉矶", "lax"}, {"悉尼", "syd"}, {"墨尔本", "mel"},
}

var threeLetters = regexp.MustCompile(`^[A-Za-z]{3}$`)

// CityCode returns the lower-case city code for a city name. Exact names win,
// then names contained in (or containing) the input; a bare three-letter code is
// passed through lower-cased.
func CityCode(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, c := range cities {
		if c.name == name {
			return c.code, true
		}
	}
	for _, c := range cities {
		if strings.Contains(name, c.name) || strings.Contains(c.name, name) {
			return c.code, true
		}
	}
	if threeLetters.MatchString(name) {
		return strings.ToLower(name), true
	}
	return "", false
}

var (
	// longest first: 大后天 contains 后天.
	relativeDays = []struct {
		word string
		days int
	}{
		{"大后天", 3}, {"后天", 2}, {"明天", 1}, {"今天", 0},
		{"day after tomorrow", 2}, {"tomorrow", 1}, {"today", 0},
	}

	monthDay  = regexp.MustCompile(`(\d{1,2})月(\d{1,2})[日号]?`)
	fullDate  = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	shortDate = regexp.MustCompile(`(\d{1,2})[-/](\d{1,2})`)
)

// NormalizeDate resolves free-form date text to YYYY-MM-DD relative to now.
// Month/day forms without a year roll over to next year once the day has passed.
func NormalizeDate(text string, now time.Time) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	lower := strings.ToLower(text)
	for _, r := range relativeDays {
		if strings.Contains(lower, r.word) {
			return today.AddDate(0, 0, r.days).Format(DateLayout), true
		}
	}

	if m := monthDay.FindStringSubmatch(text); m != nil {
		return upcoming(today, atoi(m[1]), atoi(m[2]))
	}
	if m := fullDate.FindStringSubmatch(text); m != nil {
		d, ok := validDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), now.Location())
		if !ok {
			return "", false
		}
		return d.Format(DateLayout), true
	}
	if m := shortDate.FindStringSubmatch(text); m != nil {
		return upcoming(today, atoi(m[1]), atoi(m[2]))
	}
	return "", false
}

func upcoming(today time.Time, month, day int) (string, bool) {
	d, ok := validDate(today.Year(), month, day, today.Location())
	if !ok {
		return "", false
	}
	if d.Before(today) {
		// 2月29日 may not exist next year.
		if d, ok = validDate(today.Year()+1, month, day, today.Location()); !ok {
			return "", false
		}
	}
	return d.Format(DateLayout), true
}

func validDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Source keys read by Enrich, in precedence order.
var (
	departureKeys = []string{"departure_city", "departure", "from"}
	arrivalKeys   = []string{"arrival_city", "arrival", "to"}
)

// Enrich returns a copy of in with derived keys added. Existing keys are never
// overwritten:
//
//	departure_code, arrival_code   city codes
//	date_YYYY-MM-DD                normalized from date
//	return_date_YYYY-MM-DD         normalized from return_date
//	trip                           "round" when a return date is present, else "oneway"
func Enrich(in knowledge.TaskIntent, now time.Time) knowledge.TaskIntent {
	out := in.Clone()

	if code, ok := CityCode(first(in, departureKeys)); ok {
		setDefault(out, "departure_code", code)
	}
	if code, ok := CityCode(first(in, arrivalKeys)); ok {
		setDefault(out, "arrival_code", code)
	}
	if d, ok := NormalizeDate(in["date"], now); ok {
		setDefault(out, "date_YYYY-MM-DD", d)
	}
	ret, hasReturn := NormalizeDate(in["return_date"], now)
	if hasReturn {
		setDefault(out, "return_date_YYYY-MM-DD", ret)
		setDefault(out, "trip", "round")
	} else {
		setDefault(out, "trip", "oneway")
	}
	return out
}

func first(in knowledge.TaskIntent, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(in[k]); v != "" {
			return v
		}
	}
	return ""
}

func setDefault(m knowledge.TaskIntent, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
