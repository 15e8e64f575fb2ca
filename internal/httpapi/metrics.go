package httpapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// metricsStore holds a few process-wide counters rendered in the Prometheus
// text format.
type metricsStore struct {
	mu sync.Mutex

	httpRequestsTotal uint64
	httpByPattern     map[reqKey]uint64

	appErrors map[errKey]uint64

	sourcesOK     uint64
	sourcesFailed uint64
	nodesTotal    uint64
}

type reqKey struct {
	Pattern string
	Status  int
}

type errKey struct {
	Stage string
	Code  string
}

func newMetricsStore() *metricsStore {
	return &metricsStore{
		httpByPattern: make(map[reqKey]uint64),
		appErrors:     make(map[errKey]uint64),
	}
}

var metrics = newMetricsStore()

func metricsIncRequest(pattern string, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	if pattern == "" {
		pattern = "(unknown)"
	}

	metrics.mu.Lock()
	metrics.httpRequestsTotal++
	metrics.httpByPattern[reqKey{Pattern: pattern, Status: status}]++
	metrics.mu.Unlock()
}

func metricsIncAppError(stage, code string) {
	stage = strings.TrimSpace(stage)
	code = strings.TrimSpace(code)
	if stage == "" {
		stage = "(unknown)"
	}
	if code == "" {
		code = "(unknown)"
	}

	metrics.mu.Lock()
	metrics.appErrors[errKey{Stage: stage, Code: code}]++
	metrics.mu.Unlock()
}

// metricsObserveRun adds one finished batch.
func metricsObserveRun(ok, failed, nodes int) {
	metrics.mu.Lock()
	metrics.sourcesOK += uint64(ok)
	metrics.sourcesFailed += uint64(failed)
	metrics.nodesTotal += uint64(nodes)
	metrics.mu.Unlock()
}

type runMetrics struct {
	SourcesOK     uint64
	SourcesFailed uint64
	Nodes         uint64
}

type reqMetric struct {
	reqKey
	N uint64
}

type errMetric struct {
	errKey
	N uint64
}

func metricsSnapshot() (httpTotal uint64, reqs []reqMetric, errs []errMetric, run runMetrics) {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	httpTotal = metrics.httpRequestsTotal
	run = runMetrics{SourcesOK: metrics.sourcesOK, SourcesFailed: metrics.sourcesFailed, Nodes: metrics.nodesTotal}

	reqs = make([]reqMetric, 0, len(metrics.httpByPattern))
	for k, n := range metrics.httpByPattern {
		reqs = append(reqs, reqMetric{reqKey: k, N: n})
	}
	errs = make([]errMetric, 0, len(metrics.appErrors))
	for k, n := range metrics.appErrors {
		errs = append(errs, errMetric{errKey: k, N: n})
	}

	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].Pattern != reqs[j].Pattern {
			return reqs[i].Pattern < reqs[j].Pattern
		}
		return reqs[i].Status < reqs[j].Status
	})
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Stage != errs[j].Stage {
			return errs[i].Stage < errs[j].Stage
		}
		return errs[i].Code < errs[j].Code
	})
	return httpTotal, reqs, errs, run
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	total, reqs, errs, run := metricsSnapshot()

	var b strings.Builder
	counter(&b, "submerge_http_requests_total", "Total HTTP requests.")
	sample(&b, "submerge_http_requests_total", total)

	counter(&b, "submerge_http_requests_by_pattern_total", "HTTP requests by ServeMux pattern and status.")
	for _, m := range reqs {
		sample(&b, "submerge_http_requests_by_pattern_total", m.N, "pattern", m.Pattern, "status", strconv.Itoa(m.Status))
	}

	counter(&b, "submerge_app_errors_total", "Application errors returned to clients.")
	for _, m := range errs {
		sample(&b, "submerge_app_errors_total", m.N, "stage", m.Stage, "code", m.Code)
	}

	counter(&b, "submerge_sources_total", "Subscription sources processed, by result.")
	sample(&b, "submerge_sources_total", run.SourcesOK, "result", "ok")
	sample(&b, "submerge_sources_total", run.SourcesFailed, "result", "failed")

	counter(&b, "submerge_nodes_total", "Nodes emitted in served documents.")
	sample(&b, "submerge_nodes_total", run.Nodes)

	_, _ = fmt.Fprint(w, b.String())
}

func counter(b *strings.Builder, name, help string) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s counter\n", name, help, name)
}

// sample writes one line; labels are key/value pairs.
func sample(b *strings.Builder, name string, v uint64, labels ...string) {
	b.WriteString(name)
	if len(labels) > 0 {
		b.WriteByte('{')
		for i := 0; i+1 < len(labels); i += 2 {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(labels[i])
			b.WriteString("=\"")
			b.WriteString(promLabelEscape(labels[i+1]))
			b.WriteByte('"')
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(v, 10))
	b.WriteByte('\n')
}

func promLabelEscape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
