// Package pipeline runs one batch end to end: aggregate the sources, assemble
// the document, summarise the run and render YAML.
package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/submerge/internal/aggregate"
	"github.com/John-Robertt/submerge/internal/assemble"
	"github.com/John-Robertt/submerge/internal/compiler"
	"github.com/John-Robertt/submerge/internal/config"
	"github.com/John-Robertt/submerge/internal/fetch"
	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/render"
	"github.com/John-Robertt/submerge/internal/report"
	"github.com/John-Robertt/submerge/internal/template"
)

type Runner struct {
	tpl     *template.Template
	engine  *aggregate.Engine
	compile compiler.Options
	log     logrus.FieldLogger
	now     func() time.Time

	fetcher aggregate.Fetcher
}

type Option func(*Runner)

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Runner) { r.log = l }
}

// WithFetcher replaces the HTTP fetch client.
func WithFetcher(f aggregate.Fetcher) Option {
	return func(r *Runner) { r.fetcher = f }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New loads the configured template and wires the fetch client and engine.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	r := &Runner{
		compile: cfg.CompilerOptions(),
		log:     logrus.StandardLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	tpl, err := template.Load(cfg.Output.Template)
	if err != nil {
		return nil, err
	}
	r.tpl = tpl

	if r.fetcher == nil {
		r.fetcher = fetch.New(cfg.FetchOptions(), r.log)
	}
	r.engine = aggregate.New(r.fetcher, cfg.EngineOptions(), r.log)
	return r, nil
}

type Output struct {
	Document model.Document
	YAML     []byte
	Summary  report.Summary
}

// Run processes entries. Source failures only show up in the summary. The
// error is non-nil when rendering fails, or when ctx ended early; in the
// latter case the output built from the finished sources is still returned.
func (r *Runner) Run(ctx context.Context, entries []model.SourceEntry) (*Output, error) {
	start := r.now()
	agg, runErr := r.engine.Run(ctx, entries)

	asm := assemble.Assemble(r.tpl, compiler.Input{
		Nodes:   agg.Nodes,
		Labels:  agg.Labels,
		ByLabel: agg.ByLabel,
	}, r.compile)

	sum := report.Summary{
		GeneratedAt:   start,
		Template:      r.tpl.Source,
		Outcomes:      agg.Outcomes,
		Labels:        agg.Labels,
		LabelSuccess:  agg.LabelSuccess,
		LabelFailures: agg.LabelFailures,
		LabelNodes:    make(map[string]int, len(agg.Labels)),
		Collected:     len(agg.Nodes),
		Duplicates:    asm.Duplicates,
		Truncated:     asm.Truncated,
		Renamed:       asm.Renamed,
		Emitted:       len(asm.Nodes),
		Groups:        len(asm.Groups),
		Placeholder:   asm.Placeholder,
	}
	for _, l := range agg.Labels {
		sum.LabelNodes[l] = len(agg.ByLabel[l])
	}

	out, err := render.YAML(asm.Document, report.Preamble(sum))
	if err != nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"sources":   len(entries),
		"succeeded": sum.Succeeded(),
		"collected": sum.Collected,
		"emitted":   sum.Emitted,
		"groups":    sum.Groups,
		"duration":  r.now().Sub(start).Round(time.Millisecond),
	}).Info("aggregation done")
	r.log.WithField("groups", compiler.GroupSummary(asm.Groups)).Debug("groups built")

	return &Output{Document: asm.Document, YAML: out, Summary: sum}, runErr
}
