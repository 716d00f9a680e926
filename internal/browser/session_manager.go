package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"waypoint-mcp-server/internal/config"
	"waypoint-mcp-server/internal/element"
	"waypoint-mcp-server/internal/mangle"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by operations that need a live browser.
var ErrNotConnected = errors.New("browser not connected")

// ErrUnknownSession is returned when a session ID is not tracked.
var ErrUnknownSession = errors.New("unknown session")

// Session describes the public metadata for a tracked browser context.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type sessionRecord struct {
	meta Session
	page *rod.Page
}

// EngineSink defines the minimal interface we need from the logic layer.
type EngineSink interface {
	AddFacts(ctx context.Context, facts []mangle.Fact) error
}

// SessionManager owns the detached Chrome instance and tracks active sessions.
type SessionManager struct {
	cfg        config.BrowserConfig
	engine     EngineSink
	logger     *zap.Logger
	mu         sync.RWMutex
	browser    *rod.Browser
	sessions   map[string]*sessionRecord
	controlURL string
}

// NewSessionManager builds a manager; sink and logger may be nil.
func NewSessionManager(cfg config.BrowserConfig, sink EngineSink, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		cfg:      cfg,
		engine:   sink,
		logger:   logger.Named("browser"),
		sessions: make(map[string]*sessionRecord),
	}
}

// Start connects to an existing Chrome or launches a new one using Rod's launcher.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		m.logger.Warn("stale browser connection, reconnecting", zap.String("control_url", m.controlURL))
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
		m.sessions = make(map[string]*sessionRecord)
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" && len(m.cfg.Launch) > 0 {
		bin := m.cfg.Launch[0]
		if bin == "auto" {
			// Let Rod find or download Chrome.
			bin = ""
		}
		launch := launcher.New().Bin(bin).Headless(m.cfg.IsHeadless())
		for _, f := range launchFlags(m.cfg.Launch[1:]) {
			launch = launch.Set(flags.Flag(f.name), f.values...)
		}
		url, err := launch.Launch()
		if err != nil {
			fallback := launcher.New().Bin(bin).Headless(m.cfg.IsHeadless())
			alt, altErr := fallback.Launch()
			if altErr != nil {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
			controlURL = alt
		} else {
			controlURL = url
		}
	}

	if controlURL == "" {
		return errors.New("no debugger_url or launch command provided")
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	m.logger.Info("browser connected", zap.String("control_url", controlURL))
	return nil
}

type launchFlag struct {
	name   string
	values []string
}

// launchFlags turns "--name=value" strings into launcher flags. Bare dashes
// and empty names are dropped.
func launchFlags(raw []string) []launchFlag {
	out := make([]launchFlag, 0, len(raw))
	for _, r := range raw {
		name, val, hasVal := strings.Cut(strings.TrimLeft(strings.TrimSpace(r), "-"), "=")
		if name == "" {
			continue
		}
		f := launchFlag{name: name}
		if hasVal {
			f.values = []string{val}
		}
		out = append(out, f)
	}
	return out
}

// ControlURL returns the WebSocket debugger URL for the connected browser.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is currently connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown closes tracked pages and the underlying browser.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, record := range m.sessions {
		if record.page != nil {
			_ = record.page.Close()
		}
		delete(m.sessions, id)
	}

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
		m.logger.Info("browser shutdown complete")
	}
	m.controlURL = ""
	return err
}

// List returns metadata for all known sessions, oldest first.
func (m *SessionManager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Session, 0, len(m.sessions))
	for _, record := range m.sessions {
		results = append(results, record.meta)
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.Before(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})
	return results
}

// CreateSession opens a new page in an incognito context and tracks it.
func (m *SessionManager) CreateSession(ctx context.Context, url string) (*Session, error) {
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, ErrNotConnected
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		m.logger.Warn("set viewport failed", zap.Error(err))
	}

	now := time.Now()
	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		URL:        "about:blank",
		Status:     "active",
		CreatedAt:  now,
		LastActive: now,
	}

	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, page: page}
	m.mu.Unlock()

	if url != "" && url != "about:blank" {
		// Best-effort load; a slow first page still leaves a usable session.
		if err := m.Navigate(ctx, meta.ID, url); err != nil {
			m.logger.Warn("initial navigation failed", zap.String("session", meta.ID), zap.String("url", url), zap.Error(err))
		}
	}

	m.logger.Info("session created", zap.String("session", meta.ID), zap.String("url", url))
	out, _ := m.GetSession(meta.ID)
	return &out, nil
}

// CloseSession closes the page and forgets the session.
func (m *SessionManager) CloseSession(sessionID string) error {
	m.mu.Lock()
	rec, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if rec.page != nil {
		return rec.page.Close()
	}
	return nil
}

// Page returns the underlying Rod page for a session when present.
func (m *SessionManager) Page(sessionID string) (*rod.Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok || rec.page == nil {
		return nil, false
	}
	return rec.page, true
}

// UpdateMetadata allows callers to refresh metadata after a page change.
func (m *SessionManager) UpdateMetadata(sessionID string, updater func(Session) Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	rec.meta = updater(rec.meta)
}

// GetSession returns the current session metadata when available.
func (m *SessionManager) GetSession(sessionID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return rec.meta, true
}

// Navigate loads url in the session's page, waits for the load event and
// records a navigation_event fact with the elapsed time.
func (m *SessionManager) Navigate(ctx context.Context, sessionID, url string) error {
	page, ok := m.Page(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	started := time.Now()
	p := page.Context(ctx).Timeout(m.cfg.NavigationTimeout())
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	elapsed := time.Since(started)

	title := ""
	if info, err := page.Info(); err == nil && info != nil {
		title = info.Title
	}
	m.UpdateMetadata(sessionID, func(s Session) Session {
		s.URL = url
		s.Title = title
		s.LastActive = time.Now()
		return s
	})
	m.logger.Debug("navigated", zap.String("session", sessionID), zap.String("url", url), zap.Duration("elapsed", elapsed))

	if m.engine != nil {
		if err := m.engine.AddFacts(ctx, []mangle.Fact{mangle.NavigationFact(sessionID, url, elapsed, time.Now())}); err != nil {
			m.logger.Warn("record navigation fact failed", zap.Error(err))
		}
	}
	return nil
}

// maxSnapshotElements bounds a single snapshot.
const maxSnapshotElements = 500

// snapshotScript collects visible interactive elements plus short text cells
// (calendar days, tabs) in document order.
var snapshotScript = fmt.Sprintf(`() => {
	const selector = [
		'a', 'button', 'input', 'select', 'textarea', 'option', 'label', 'td', 'li',
		'[role]', '[onclick]', '[contenteditable]', '[aria-haspopup]', '[tabindex]',
		'[class*="date"]', '[class*="calendar"]', '[class*="picker"]', '[class*="day"]', '[class*="modal"]', '[class*="icon"]'
	].join(',');
	const keep = ['type', 'role', 'class', 'id', 'name', 'placeholder', 'value', 'href',
		'aria-label', 'aria-haspopup', 'aria-selected', 'contenteditable', 'data-date', 'title'];
	const out = [];
	for (const el of document.querySelectorAll(selector)) {
		if (out.length >= %d) break;
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || rect.width === 0 || rect.height === 0) continue;
		const attrs = {};
		for (const name of keep) {
			const v = el.getAttribute(name);
			if (v !== null && v !== '') attrs[name] = v.slice(0, 200);
		}
		const text = (el.innerText || el.value || '').replace(/\s+/g, ' ').trim().slice(0, 120);
		out.push({ index: out.length, tag_name: el.tagName, text, attributes: attrs });
	}
	return out;
}`, maxSnapshotElements)

// Snapshot extracts the session's current interactive elements.
func (m *SessionManager) Snapshot(ctx context.Context, sessionID string) ([]element.PageElement, string, error) {
	page, ok := m.Page(sessionID)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           snapshotScript,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("snapshot: %w", err)
	}
	if res == nil {
		return nil, "", errors.New("snapshot: empty evaluation result")
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, "", fmt.Errorf("snapshot: %w", err)
	}
	elements, err := decodeSnapshot(raw)
	if err != nil {
		return nil, "", err
	}

	url := ""
	if info, err := page.Info(); err == nil && info != nil {
		url = info.URL
	}
	m.UpdateMetadata(sessionID, func(s Session) Session {
		if url != "" {
			s.URL = url
		}
		s.LastActive = time.Now()
		return s
	})
	return elements, url, nil
}

// decodeSnapshot parses the snapshot script's JSON output.
func decodeSnapshot(raw []byte) ([]element.PageElement, error) {
	var elements []element.PageElement
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if elements == nil {
		elements = []element.PageElement{}
	}
	return elements, nil
}
