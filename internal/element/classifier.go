package element

import (
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPrimaryThreshold is the confidence at which a result is treated as a
	// primary candidate by the planner.
	DefaultPrimaryThreshold = 80
	// DefaultParallelThreshold is the batch size at which ClassifyAll fans out.
	DefaultParallelThreshold = 256
)

// Classifier maps page elements onto categories using an ordered RuleSet.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules             *RuleSet
	workers           int
	parallelThreshold int
	logger            *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRuleSet replaces the built-in rules.
func WithRuleSet(rs *RuleSet) Option {
	return func(c *Classifier) {
		if rs != nil {
			c.rules = rs
		}
	}
}

// WithWorkers bounds the fan-out used by ClassifyAll.
func WithWorkers(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithParallelThreshold sets the minimum batch size classified concurrently.
// Zero or negative keeps the default.
func WithParallelThreshold(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.parallelThreshold = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClassifier builds a classifier over DefaultRuleSet unless overridden.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		rules:             DefaultRuleSet(),
		workers:           runtime.GOMAXPROCS(0),
		parallelThreshold: DefaultParallelThreshold,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rules exposes the rule set in use.
func (c *Classifier) Rules() *RuleSet { return c.rules }

// Classify returns the result of the first matching rule, or Unknown with
// confidence 0 when no rule matches.
func (c *Classifier) Classify(e PageElement) Result {
	f := FeaturesOf(e)
	if f.Empty() {
		return unknownResult(e.Index)
	}
	rule, ok := c.rules.first(f)
	if !ok {
		return unknownResult(e.Index)
	}
	res := Result{
		ElementIndex: e.Index,
		Category:     rule.Category,
		Confidence:   rule.Confidence,
		Rule:         rule.Name,
	}
	if rule.Detail != nil {
		res.Detail = rule.Detail(f)
	}
	return res
}

// ClassifyAll classifies a snapshot. out[i] always corresponds to elements[i].
func (c *Classifier) ClassifyAll(elements []PageElement) []Result {
	out := make([]Result, len(elements))
	if len(elements) < c.parallelThreshold || c.workers <= 1 {
		for i, e := range elements {
			out[i] = c.Classify(e)
		}
		return out
	}

	chunk := (len(elements) + c.workers - 1) / c.workers
	var g errgroup.Group
	g.SetLimit(c.workers)
	for start := 0; start < len(elements); start += chunk {
		lo, hi := start, min(start+chunk, len(elements))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				out[i] = c.Classify(elements[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	c.logger.Debug("classified snapshot in parallel",
		zap.Int("elements", len(elements)),
		zap.Int("workers", c.workers),
		zap.Int("chunk", chunk))
	return out
}
