package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/submerge/internal/model"
)

const (
	hkSub = "https://up.example/hk?token=SECRET"
	jpSub = "https://up.example/jp"
)

var upstream = fakeFetcher{
	hkSub: "ss://YWVzLTI1Ni1nY206cGFzcw==@1.1.1.1:8388#n1\nss://YWVzLTI1Ni1nY206cGFzcw==@1.1.1.2:8388#n2\n",
	jpSub: "trojan://pw@2.2.2.2:443?sni=jp.example#n3\n",
}

type servedDoc struct {
	Proxies     []map[string]any `yaml:"proxies"`
	ProxyGroups []struct {
		Name    string   `yaml:"name"`
		Type    string   `yaml:"type"`
		Proxies []string `yaml:"proxies"`
	} `yaml:"proxy-groups"`
}

func decodeDoc(t *testing.T, body []byte) servedDoc {
	t.Helper()
	var doc servedDoc
	if err := yaml.Unmarshal(body, &doc); err != nil {
		t.Fatalf("response is not YAML: %v\n%s", err, body)
	}
	return doc
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) model.AppError {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nbody=%q", err, rr.Body.String())
	}
	return resp.Error
}

func TestHealthz(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestMux(t, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestSub_LabelsPairWithPrecedingSrc(t *testing.T) {
	q := "src=" + url.QueryEscape(hkSub) + "&label=HK&src=" + url.QueryEscape(jpSub) + "&label=" + url.QueryEscape("JP 东京")
	rr := httptest.NewRecorder()
	newTestMux(t, upstream).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sub?"+q, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "text/yaml; charset=utf-8" {
		t.Fatalf("Content-Type=%q", got)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, `filename="submerge.yaml"`) {
		t.Fatalf("Content-Disposition=%q", got)
	}
	if strings.Contains(rr.Body.String(), "SECRET") {
		t.Fatalf("token leaked:\n%s", rr.Body.String())
	}

	doc := decodeDoc(t, rr.Body.Bytes())
	if len(doc.Proxies) != 3 {
		t.Fatalf("proxies=%d", len(doc.Proxies))
	}
	groups := map[string][]string{}
	for _, g := range doc.ProxyGroups {
		groups[g.Name] = g.Proxies
	}
	if got := strings.Join(groups["HK"], ","); got != "HK-n1,HK-n2" {
		t.Fatalf("HK group=%q", got)
	}
	if got := strings.Join(groups["JP"], ","); got != "JP-n3" {
		t.Fatalf("JP group=%q", got)
	}
}

func TestSub_AllSourcesFailServesPlaceholder(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestMux(t, fakeFetcher{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sub?src="+url.QueryEscape(jpSub), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	doc := decodeDoc(t, rr.Body.Bytes())
	if len(doc.Proxies) != 1 || doc.Proxies[0]["name"] != "placeholder" {
		t.Fatalf("proxies=%v", doc.Proxies)
	}
	if !strings.Contains(rr.Body.String(), "[FAIL]") {
		t.Fatalf("preamble does not report the failure:\n%s", rr.Body.String())
	}
}

func TestSub_RequestErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"no src", ""},
		{"empty src", "src="},
		{"label first", "label=HK&src=https://a/"},
		{"two labels", "src=https://a/&label=A&label=B"},
		{"unknown param", "src=https://a/&mode=config"},
		{"bad filename", "src=https://a/&filename=..%2Fx"},
		{"bad escape", "src=%zz"},
	}
	mux := newTestMux(t, upstream)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sub?"+tt.query, nil))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			if e := decodeError(t, rr); e.Code != "INVALID_ARGUMENT" || e.Stage != model.StageValidate {
				t.Fatalf("error=%+v", e)
			}
		})
	}
}

func TestAggregate_POST(t *testing.T) {
	mux := newTestMux(t, upstream)

	post := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/aggregate", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		mux.ServeHTTP(rr, req)
		return rr
	}

	fromSources := post(`{"sources":[{"url":"` + hkSub + `","label":"HK"},{"url":"` + jpSub + `"}],"fileName":"mine"}`)
	if fromSources.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", fromSources.Code, fromSources.Body.String())
	}
	if got := fromSources.Header().Get("Content-Disposition"); !strings.Contains(got, `filename="mine.yaml"`) {
		t.Fatalf("Content-Disposition=%q", got)
	}

	list, _ := json.Marshal(map[string]string{"list": "# HK\n" + hkSub + "\n\n" + jpSub + "\n"})
	fromList := post(string(list))
	if fromList.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", fromList.Code, fromList.Body.String())
	}

	a, b := decodeDoc(t, fromSources.Body.Bytes()), decodeDoc(t, fromList.Body.Bytes())
	if len(a.Proxies) != 3 || len(b.Proxies) != 3 || len(a.ProxyGroups) != len(b.ProxyGroups) {
		t.Fatalf("sources and list forms differ: %d/%d proxies, %d/%d groups", len(a.Proxies), len(b.Proxies), len(a.ProxyGroups), len(b.ProxyGroups))
	}
}

func TestAggregate_POSTErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"unknown field", `{"subs":["https://a/"]}`},
		{"two documents", `{"list":"https://a/"}{"list":"https://b/"}`},
		{"both forms", `{"list":"https://a/","sources":[{"url":"https://b/"}]}`},
		{"neither form", `{}`},
		{"list without urls", `{"list":"# only a label\n"}`},
		{"empty url", `{"sources":[{"url":" "}]}`},
	}
	mux := newTestMux(t, upstream)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/aggregate", strings.NewReader(tt.body)))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			if e := decodeError(t, rr); e.Code != "INVALID_ARGUMENT" {
				t.Fatalf("error=%+v", e)
			}
		})
	}
}

func TestAggregate_TooManySources(t *testing.T) {
	var b strings.Builder
	for i := 0; i <= maxSources; i++ {
		b.WriteString("https://a.example/\\n")
	}
	rr := httptest.NewRecorder()
	newTestMux(t, upstream).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/aggregate", strings.NewReader(`{"list":"`+b.String()+`"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestNewMux_BadTemplate(t *testing.T) {
	opt := testOptions(upstream)
	opt.Config.Output.Template = t.TempDir() + "/missing.yaml"
	if _, err := NewMux(opt); err == nil {
		t.Fatal("expected template error")
	}
}
