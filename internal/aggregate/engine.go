// Package aggregate drives fetch, classification and decoding across a batch
// of subscription sources and collects the per-source outcomes.
package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/submerge/internal/classify"
	"github.com/John-Robertt/submerge/internal/fetch"
	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sources"
)

// Failure reasons that do not come from the fetcher.
const (
	ReasonNoNodes  = "no valid nodes"
	ReasonTimedOut = "timed out"
	ReasonCanceled = "canceled"
)

const (
	DefaultConcurrency         = 10
	DefaultConcurrentThreshold = 3
	DefaultSequentialDelay     = time.Second
	DefaultTaskTimeout         = 90 * time.Second
)

// Fetcher is the fetch collaborator. *fetch.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetch.Result, error)
}

type Options struct {
	Concurrency         int           // worker pool cap; default 10
	ConcurrentThreshold int           // batches larger than this run concurrently; default 3
	SequentialDelay     time.Duration // gap between sequential fetches; default 1s, negative disables
	TaskTimeout         time.Duration // per source; default 90s
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.ConcurrentThreshold <= 0 {
		o.ConcurrentThreshold = DefaultConcurrentThreshold
	}
	if o.SequentialDelay == 0 {
		o.SequentialDelay = DefaultSequentialDelay
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = DefaultTaskTimeout
	}
	return o
}

// Result is everything collected from one batch. Nodes is in source order and
// not yet deduplicated. Maps are keyed by label; unlabelled sources use "".
type Result struct {
	Nodes         []model.Node
	Labels        []string // distinct non-empty labels in source order
	ByLabel       map[string][]model.Node
	LabelSuccess  map[string]int
	LabelFailures map[string][]string
	Outcomes      []model.FetchOutcome
}

type Engine struct {
	fetcher Fetcher
	opt     Options
	log     logrus.FieldLogger
}

func New(f Fetcher, opt Options, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{fetcher: f, opt: opt.withDefaults(), log: log}
}

type taskResult struct {
	outcome model.FetchOutcome
	nodes   []model.Node
}

// Run processes entries and merges their results in input order. Source
// level problems never produce an error; the error is non-nil only when ctx
// ends before every source was processed, and the partial result is still
// returned.
func (e *Engine) Run(ctx context.Context, entries []model.SourceEntry) (Result, error) {
	results := make([]taskResult, len(entries))
	var err error
	if len(entries) > e.opt.ConcurrentThreshold {
		err = e.runConcurrent(ctx, entries, results)
	} else {
		err = e.runSequential(ctx, entries, results)
	}
	return e.merge(entries, results), err
}

func (e *Engine) runConcurrent(ctx context.Context, entries []model.SourceEntry, results []taskResult) error {
	var g errgroup.Group
	g.SetLimit(min(e.opt.Concurrency, len(entries)))
	for i, entry := range entries {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = skipped(entry)
				return nil
			}
			results[i] = e.process(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func (e *Engine) runSequential(ctx context.Context, entries []model.SourceEntry, results []taskResult) error {
	for i, entry := range entries {
		err := ctx.Err()
		if i > 0 {
			err = e.pause(ctx)
		}
		if err != nil {
			for j := i; j < len(entries); j++ {
				results[j] = skipped(entries[j])
			}
			return err
		}
		results[i] = e.process(ctx, entry)
	}
	return nil
}

// pause waits one full SequentialDelay counted from now, so the gap sits
// between the end of one source and the start of the next.
func (e *Engine) pause(ctx context.Context) error {
	if e.opt.SequentialDelay <= 0 {
		return ctx.Err()
	}
	gap := rate.NewLimiter(rate.Every(e.opt.SequentialDelay), 1)
	gap.Allow()
	if err := gap.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// the gap would outlast the batch deadline
		return context.DeadlineExceeded
	}
	return nil
}

func skipped(entry model.SourceEntry) taskResult {
	return taskResult{outcome: model.FetchOutcome{URL: entry.URL, Label: entry.Label, Error: ReasonCanceled}}
}

// process handles one source: fetch with retry, classify, decode.
func (e *Engine) process(ctx context.Context, entry model.SourceEntry) taskResult {
	tctx, cancel := context.WithTimeout(ctx, e.opt.TaskTimeout)
	defer cancel()

	out := model.FetchOutcome{URL: entry.URL, Label: entry.Label}
	log := e.log.WithFields(logrus.Fields{"source": fetch.Redact(entry.URL), "label": entry.Label})

	res, err := e.fetch(tctx, entry.URL)
	if err != nil {
		out.Error = failureReason(ctx, tctx, err)
		var fe *fetch.FetchError
		if errors.As(err, &fe) {
			out.Attempts = fe.Attempts
		}
		log.WithField("reason", out.Error).Info("source failed")
		return taskResult{outcome: out}
	}
	out.Attempts = res.Attempts

	parsed := classify.Parse(res.Text, entry.Label)
	out.Format = parsed.Kind.String()
	out.Skipped = len(parsed.Failures) + parsed.Dropped
	for _, f := range parsed.Failures {
		log.WithFields(logrus.Fields{"line": f.Line, "scheme": f.Scheme, "reason": reasonOf(f.Err)}).Debug("skipped entry")
	}

	if len(parsed.Nodes) == 0 {
		out.Error = ReasonNoNodes
		log.WithFields(logrus.Fields{"format": out.Format, "reason": out.Error}).Info("source failed")
		return taskResult{outcome: out}
	}
	out.Success = true
	out.NodeCount = len(parsed.Nodes)
	log.WithFields(logrus.Fields{
		"format":   out.Format,
		"nodes":    out.NodeCount,
		"skipped":  out.Skipped,
		"attempts": out.Attempts,
	}).Info("source done")
	return taskResult{outcome: out, nodes: parsed.Nodes}
}

type fetchReply struct {
	res fetch.Result
	err error
}

// fetch bounds the fetcher call by ctx even if the fetcher ignores it.
func (e *Engine) fetch(ctx context.Context, rawURL string) (fetch.Result, error) {
	ch := make(chan fetchReply, 1)
	go func() {
		res, err := e.fetcher.Fetch(ctx, rawURL)
		ch <- fetchReply{res, err}
	}()
	select {
	case r := <-ch:
		return r.res, r.err
	case <-ctx.Done():
		return fetch.Result{}, ctx.Err()
	}
}

// failureReason maps a fetch error to the outcome reason. A task that ran
// into its own deadline is reported as timed out.
func failureReason(parent, task context.Context, err error) string {
	if parent.Err() == nil && errors.Is(task.Err(), context.DeadlineExceeded) {
		return ReasonTimedOut
	}
	if parent.Err() != nil {
		return ReasonCanceled
	}
	return reasonOf(err)
}

type reasoner interface{ Reason() string }

func reasonOf(err error) string {
	var r reasoner
	if errors.As(err, &r) {
		return r.Reason()
	}
	return err.Error()
}

// merge is the single point where per-source results are combined.
func (e *Engine) merge(entries []model.SourceEntry, results []taskResult) Result {
	res := Result{
		Labels:        sources.Labels(entries),
		ByLabel:       make(map[string][]model.Node),
		LabelSuccess:  make(map[string]int),
		LabelFailures: make(map[string][]string),
		Outcomes:      make([]model.FetchOutcome, 0, len(results)),
	}
	for _, tr := range results {
		o := tr.outcome
		res.Outcomes = append(res.Outcomes, o)
		if !o.Success {
			res.LabelFailures[o.Label] = append(res.LabelFailures[o.Label], o.Error)
			continue
		}
		res.Nodes = append(res.Nodes, tr.nodes...)
		res.ByLabel[o.Label] = append(res.ByLabel[o.Label], tr.nodes...)
		res.LabelSuccess[o.Label]++
	}
	return res
}
