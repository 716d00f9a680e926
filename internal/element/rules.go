package element

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Features is the normalized view of a PageElement that rule predicates consult.
type Features struct {
	Tag   string
	Text  string // trimmed
	Lower string // trimmed, lower-cased
	Type  string
	Role  string
	Class string
	ID    string

	hints string
	words map[string]struct{}
	attrs map[string]string
}

// FeaturesOf normalizes an element once so rules do not repeat the work.
func FeaturesOf(e PageElement) Features {
	text := strings.TrimSpace(e.Text)
	f := Features{
		Tag:   e.TagName,
		Text:  text,
		Lower: strings.ToLower(text),
		Type:  strings.ToLower(strings.TrimSpace(e.Attr("type"))),
		Role:  strings.ToLower(strings.TrimSpace(e.Attr("role"))),
		Class: strings.ToLower(e.Attr("class")),
		ID:    strings.ToLower(e.Attr("id")),
		attrs: e.attributes,
	}
	f.hints = strings.Join([]string{f.Class, f.ID, f.Role, f.Type}, " ")
	f.words = make(map[string]struct{})
	for _, w := range strings.FieldsFunc(f.hints, notWordRune) {
		f.words[w] = struct{}{}
	}
	return f
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Attr returns a raw attribute value.
func (f Features) Attr(name string) string { return f.attrs[strings.ToLower(name)] }

// HasHint reports whether any of subs occurs in the class/id/role/type blob.
func (f Features) HasHint(subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(f.hints, s) {
			return true
		}
	}
	return false
}

// HasHintWord reports whether any of words is a whole token of the
// class/id/role/type blob, split on anything but letters and digits, so "cal"
// matches "cal-day" but not "local-nav".
func (f Features) HasHintWord(words ...string) bool {
	for _, w := range words {
		if _, ok := f.words[w]; ok {
			return true
		}
	}
	return false
}

// Empty reports an element with nothing to classify on.
func (f Features) Empty() bool {
	return f.Tag == "" && f.Text == "" && len(f.attrs) == 0
}

func (f Features) tagIn(tags ...string) bool {
	for _, t := range tags {
		if f.Tag == t {
			return true
		}
	}
	return false
}

// Rule is one detector: a pure predicate with a fixed category and score.
type Rule struct {
	Name       string
	Category   Category
	Confidence int
	Match      func(Features) bool
	// Detail optionally derives a sub-category once Match holds.
	Detail func(Features) string
}

// RuleSet is an ordered, immutable rule list evaluated first-match-wins.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet validates rules and freezes their order.
func NewRuleSet(rules ...Rule) (*RuleSet, error) {
	if len(rules) == 0 {
		return nil, errors.New("rule set is empty")
	}
	seen := make(map[string]struct{}, len(rules))
	frozen := make([]Rule, 0, len(rules))
	for i, r := range rules {
		switch {
		case r.Name == "":
			return nil, fmt.Errorf("rule %d has no name", i)
		case r.Match == nil:
			return nil, fmt.Errorf("rule %q has no predicate", r.Name)
		case r.Category == Unknown || !r.Category.Valid():
			return nil, fmt.Errorf("rule %q has invalid category %s", r.Name, r.Category)
		case r.Confidence < 1 || r.Confidence > 100:
			return nil, fmt.Errorf("rule %q confidence %d outside [1,100]", r.Name, r.Confidence)
		}
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("duplicate rule name %q", r.Name)
		}
		seen[r.Name] = struct{}{}
		frozen = append(frozen, r)
	}
	return &RuleSet{rules: frozen}, nil
}

// MustRuleSet is NewRuleSet for static rule tables.
func MustRuleSet(rules ...Rule) *RuleSet {
	rs, err := NewRuleSet(rules...)
	if err != nil {
		panic(err)
	}
	return rs
}

// Names returns rule names in evaluation order.
func (rs *RuleSet) Names() []string {
	names := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		names[i] = r.Name
	}
	return names
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// first returns the first matching rule.
func (rs *RuleSet) first(f Features) (Rule, bool) {
	for _, r := range rs.rules {
		if r.Match(f) {
			return r, true
		}
	}
	return Rule{}, false
}

var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2}月\d{1,2}[日号]?`),
		regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`),
		regexp.MustCompile(`\d{4}/\d{1,2}/\d{1,2}`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}\b`),
		regexp.MustCompile(`周[一二三四五六日天]`),
		regexp.MustCompile(`星期[一二三四五六日天]`),
		regexp.MustCompile(`今天|明天|后天|昨天`),
	}
	weekdayPattern = regexp.MustCompile(`\b(mon|tue|wed|thu|fri|sat|sun)\b|周[一二三四五六日]|星期[一二三四五六日]|日\s*一\s*二\s*三`)

	buttonWords = keywords(
		"搜索", "查询", "提交", "确定", "取消", "登录", "注册", "购买",
		"预订", "下单", "支付", "确认", "同意", "开始", "继续",
		"search", "submit", "confirm", "cancel", "login", "log in", "sign in",
		"register", "buy", "book", "pay", "ok", "yes", "no", "start", "continue", "next", "apply",
	)
	dateWords = keywords(
		"日期", "出发", "返程", "入住", "离店", "选择日期", "出发日期", "返回日期", "出行日期",
		"date", "departure", "arrival", "checkin", "check-in", "checkout", "check-out",
	)
	inputWords = keywords(
		"请输入", "输入", "填写", "用户名", "密码", "手机号", "邮箱", "姓名", "地址",
		"出发地", "目的地", "到达",
		"enter", "input", "type", "username", "password", "email", "phone", "name", "address", "from", "to",
	)
	navWords = keywords(
		"首页", "机票", "酒店", "火车票", "汽车票", "旅游", "攻略", "我的", "订单", "会员", "客服", "帮助", "设置",
		"home", "flight", "flights", "hotel", "hotels", "train", "travel", "order", "orders", "member",
	)
	tabWords = keywords(
		"单程", "往返", "多程", "国内", "国际", "经济舱", "商务舱", "头等舱", "直飞", "中转",
		"one way", "one-way", "round trip", "round-trip", "multi-city",
	)
)

// keywords compiles a keyword list into one matcher. ASCII words are matched on word
// boundaries so "no" does not fire on "november"; CJK terms match as substrings.
func keywords(words ...string) *regexp.Regexp {
	alts := make([]string, 0, len(words))
	for _, w := range words {
		q := regexp.QuoteMeta(w)
		if utf8.RuneCountInString(w) == len(w) {
			q = `\b` + q + `\b`
		}
		alts = append(alts, q)
	}
	return regexp.MustCompile(strings.Join(alts, "|"))
}

func matchDateText(text string) string {
	for _, p := range datePatterns {
		if m := p.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

func dayNumber(text string) bool {
	if text == "" || len(text) > 2 {
		return false
	}
	n, err := strconv.Atoi(text)
	return err == nil && n >= 1 && n <= 31
}

// DefaultRules returns the built-in detector list. Order is part of the contract:
// specific detectors precede general ones so specificity beats recall.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "date-input", Category: Date, Confidence: 95,
			Match: func(f Features) bool {
				return f.Tag == "input" && (f.Type == "date" || f.Type == "datetime-local" || f.Type == "month" || f.Type == "week")
			},
		},
		{
			Name: "calendar-day-cell", Category: Calendar, Confidence: 95,
			Match: func(f Features) bool {
				if !dayNumber(f.Text) {
					return false
				}
				return f.HasHint("day", "date", "cal", "cell") ||
					f.tagIn("td", "div", "span", "li", "a", "button")
			},
			Detail: func(f Features) string { return "date:" + f.Text },
		},
		{
			Name: "calendar-grid", Category: Calendar, Confidence: 90,
			Match: func(f Features) bool {
				if f.Role != "grid" {
					return false
				}
				return weekdayPattern.MatchString(f.Lower) || matchDateText(f.Text) != "" ||
					f.HasHint("calendar", "datepicker", "date-picker")
			},
		},
		{
			Name: "checkable-input", Category: Checkbox, Confidence: 90,
			Match: func(f Features) bool {
				if f.Tag == "input" && (f.Type == "checkbox" || f.Type == "radio") {
					return true
				}
				return f.Role == "checkbox" || f.Role == "radio" || f.Role == "switch"
			},
		},
		{
			Name: "native-select", Category: Dropdown, Confidence: 90,
			Match: func(f Features) bool { return f.Tag == "select" },
		},
		{
			Name: "date-text", Category: Date, Confidence: 90,
			Match: func(f Features) bool { return matchDateText(f.Text) != "" || dayNumber(f.Text) },
			Detail: func(f Features) string {
				if m := matchDateText(f.Text); m != "" {
					return "date:" + m
				}
				return "date:" + f.Text
			},
		},
		{
			Name: "button-input", Category: Button, Confidence: 85,
			Match: func(f Features) bool {
				return f.Tag == "input" && (f.Type == "submit" || f.Type == "button" || f.Type == "reset" || f.Type == "image")
			},
		},
		{
			Name: "button-tag", Category: Button, Confidence: 85,
			Match: func(f Features) bool { return f.Tag == "button" || f.Role == "button" },
		},
		{
			Name: "multiline-input", Category: Input, Confidence: 85,
			Match: func(f Features) bool {
				return f.Tag == "textarea" || strings.EqualFold(f.Attr("contenteditable"), "true")
			},
		},
		{
			Name: "calendar-attr", Category: Calendar, Confidence: 85,
			Match: func(f Features) bool {
				return f.HasHint("calendar", "datepicker") ||
					f.HasHintWord("cal", "picker", "date", "day", "month", "year", "dt")
			},
		},
		{
			Name: "aria-dropdown", Category: Dropdown, Confidence: 80,
			Match: func(f Features) bool {
				switch f.Role {
				case "combobox", "listbox", "menu":
					return true
				}
				return strings.EqualFold(f.Attr("aria-haspopup"), "listbox") || f.HasHint("dropdown", "combobox")
			},
		},
		{
			Name: "text-input", Category: Input, Confidence: 80,
			Match: func(f Features) bool { return f.Tag == "input" },
		},
		{
			Name: "image", Category: Image, Confidence: 80,
			Match: func(f Features) bool { return f.Tag == "img" },
		},
		{
			Name: "button-keyword", Category: Button, Confidence: 80,
			Match: func(f Features) bool { return buttonWords.MatchString(f.Lower) },
		},
		{
			Name: "link", Category: Link, Confidence: 75,
			Match: func(f Features) bool { return f.Tag == "a" || f.Role == "link" },
		},
		{
			Name: "date-keyword", Category: Date, Confidence: 75,
			Match: func(f Features) bool { return dateWords.MatchString(f.Lower) },
		},
		{
			Name: "tab", Category: Tab, Confidence: 75,
			Match: func(f Features) bool { return f.Role == "tab" || tabWords.MatchString(f.Lower) },
		},
		{
			Name: "nav-keyword", Category: Navigation, Confidence: 75,
			Match: func(f Features) bool { return navWords.MatchString(f.Lower) },
		},
		{
			Name: "button-attr", Category: Button, Confidence: 75,
			Match: func(f Features) bool { return f.HasHint("btn", "button", "submit", "action") },
		},
		{
			Name: "modal-attr", Category: Modal, Confidence: 70,
			Match: func(f Features) bool {
				return f.Role == "dialog" || f.Role == "alertdialog" || f.HasHint("modal", "popup", "dialog", "overlay")
			},
		},
		{
			Name: "nav-attr", Category: Navigation, Confidence: 70,
			Match: func(f Features) bool {
				return f.Tag == "nav" || f.HasHint("nav", "menu", "header", "footer", "sidebar", "breadcrumb")
			},
		},
		{
			Name: "input-keyword", Category: Input, Confidence: 70,
			Match: func(f Features) bool { return inputWords.MatchString(f.Lower) },
		},
		{
			Name: "input-attr", Category: Input, Confidence: 70,
			Match: func(f Features) bool { return f.HasHint("input", "field", "form", "search", "textbox") },
		},
		{
			Name: "icon", Category: Icon, Confidence: 60,
			Match: func(f Features) bool {
				return f.tagIn("i", "svg") || f.HasHint("icon", "iconfont", "glyph", "fa-")
			},
		},
		{
			Name: "plain-text", Category: Text, Confidence: 40,
			Match: func(f Features) bool {
				return f.Text != "" && f.tagIn("span", "p", "label", "div", "li", "td", "th", "h1", "h2", "h3", "h4", "strong", "em")
			},
		},
	}
}

var defaultRuleSet = MustRuleSet(DefaultRules()...)

// DefaultRuleSet returns the shared built-in rule set.
func DefaultRuleSet() *RuleSet { return defaultRuleSet }
