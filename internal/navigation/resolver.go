package navigation

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"waypoint-mcp-server/internal/knowledge"
	"waypoint-mcp-server/internal/knowledge/intent"
)

// Kind is what the planner should do next.
type Kind uint8

const (
	// Fallback means interact with classified elements.
	Fallback Kind = iota
	// Navigate means go straight to Decision.Destination.
	Navigate
)

func (k Kind) String() string {
	if k == Navigate {
		return "navigate"
	}
	return "fallback"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Reason explains a Fallback.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonNoKnowledgeMatch
	ReasonMissingParameter
)

func (r Reason) String() string {
	switch r {
	case ReasonNoKnowledgeMatch:
		return "no_knowledge_match"
	case ReasonMissingParameter:
		return "missing_parameter"
	default:
		return ""
	}
}

func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Decision is the outcome of resolving a site and intent.
type Decision struct {
	Kind        Kind     `json:"kind"`
	Destination string   `json:"destination,omitempty"`
	Entry       string   `json:"entry,omitempty"`
	Reason      Reason   `json:"reason,omitempty"`
	Missing     []string `json:"missing,omitempty"`
}

// Resolver combines the knowledge matcher with Render. It is safe for concurrent use.
type Resolver struct {
	matcher *knowledge.Matcher
	enrich  bool
	now     func() time.Time
	logger  *zap.Logger
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithEnrichment derives city codes and normalized dates before rendering.
func WithEnrichment(clock func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.enrich = true
		if clock != nil {
			r.now = clock
		}
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewResolver(matcher *knowledge.Matcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		matcher: matcher,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds the shortcut for site and intent and renders it. Entry defaults
// fill keys the intent lacks; the intent always wins.
func (r *Resolver) Resolve(site string, in knowledge.TaskIntent) Decision {
	entry, err := r.matcher.Match(site, in)
	if err != nil {
		r.logger.Debug("no shortcut", zap.String("site", site), zap.String("action", in.Action()))
		return Decision{Kind: Fallback, Reason: ReasonNoKnowledgeMatch}
	}

	params := in.Clone()
	if r.enrich {
		params = intent.Enrich(params, r.now())
	}
	for k, v := range entry.Defaults {
		if _, ok := params[k]; !ok {
			params[k] = v
		}
	}

	dest, err := Render(entry, params)
	if err != nil {
		var (
			mp      *MissingParameterError
			missing []string
		)
		if errors.As(err, &mp) {
			missing = mp.Missing
		}
		r.logger.Info("shortcut missing parameters",
			zap.String("site", site),
			zap.String("entry", entry.Name),
			zap.Strings("missing", missing),
		)
		return Decision{Kind: Fallback, Entry: entry.Name, Reason: ReasonMissingParameter, Missing: missing}
	}

	r.logger.Info("shortcut resolved",
		zap.String("site", site),
		zap.String("entry", entry.Name),
		zap.String("destination", dest),
	)
	return Decision{Kind: Navigate, Destination: dest, Entry: entry.Name}
}
