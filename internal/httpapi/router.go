package httpapi

import (
	"net/http"

	"github.com/John-Robertt/submerge/internal/pipeline"
)

// NewMux wires the routes. It fails only when the configured template cannot
// be loaded.
func NewMux(opt Options) (*http.ServeMux, error) {
	opt = opt.withDefaults()

	popts := []pipeline.Option{pipeline.WithLogger(opt.Logger)}
	if opt.Fetcher != nil {
		popts = append(popts, pipeline.WithFetcher(opt.Fetcher))
	}
	runner, err := pipeline.New(opt.Config, popts...)
	if err != nil {
		return nil, err
	}
	h := aggregateHandler{opt: opt, runner: runner}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /metrics", handleMetrics)
	mux.HandleFunc("GET /sub", h.handleSub)
	mux.HandleFunc("POST /api/aggregate", h.handleAggregate)
	return mux, nil
}
