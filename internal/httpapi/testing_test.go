package httpapi

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/submerge/internal/config"
	"github.com/John-Robertt/submerge/internal/fetch"
	"github.com/John-Robertt/submerge/internal/model"
)

type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(_ context.Context, rawURL string) (fetch.Result, error) {
	body, ok := f[rawURL]
	if !ok {
		return fetch.Result{}, &fetch.FetchError{
			Status:   http.StatusBadGateway,
			Attempts: 1,
			AppError: model.AppError{Code: "FETCH_FAILED", Message: "上游返回非 2xx 状态码：502"},
		}
	}
	return fetch.Result{Text: body, Attempts: 1}, nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testOptions(f fakeFetcher) Options {
	cfg := config.Default()
	cfg.Engine.SequentialDelay = 0
	return Options{Config: cfg, Fetcher: f, Logger: quietLogger()}
}

func newTestMux(t *testing.T, f fakeFetcher) http.Handler {
	t.Helper()
	mux, err := NewMux(testOptions(f))
	if err != nil {
		t.Fatalf("NewMux: %v", err)
	}
	return mux
}
