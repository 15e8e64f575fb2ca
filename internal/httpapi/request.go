package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sources"
)

const (
	maxSources   = 100
	maxBodyBytes = 1 << 20
)

type aggregateRequest struct {
	Sources  []model.SourceEntry
	FileName string
}

type sourceJSON struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

type aggregateRequestJSON struct {
	Sources  []sourceJSON `json:"sources"`
	List     string       `json:"list"`
	FileName string       `json:"fileName"`
}

// parseSubGET reads src/label pairs in query order: a label applies to the
// src right before it. url.Values loses that order, so RawQuery is walked by
// hand.
func parseSubGET(r *http.Request) (aggregateRequest, error) {
	var (
		req      aggregateRequest
		labelSet bool
		fileSet  bool
	)
	for _, part := range strings.Split(r.URL.RawQuery, "&") {
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return aggregateRequest{}, requestError("INVALID_ARGUMENT", "query 参数编码不合法", "")
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return aggregateRequest{}, requestError("INVALID_ARGUMENT", fmt.Sprintf("%s 参数编码不合法", key), "")
		}

		switch key {
		case "src":
			value = strings.TrimSpace(value)
			if value == "" {
				return aggregateRequest{}, requestError("INVALID_ARGUMENT", "src 不能为空", "")
			}
			req.Sources = append(req.Sources, model.SourceEntry{URL: value})
			labelSet = false
		case "label":
			if len(req.Sources) == 0 {
				return aggregateRequest{}, requestError("INVALID_ARGUMENT", "label 必须跟在 src 之后", "expected: src=<url>&label=<label>")
			}
			if labelSet {
				return aggregateRequest{}, requestError("INVALID_ARGUMENT", "同一个 src 只能有一个 label", "")
			}
			req.Sources[len(req.Sources)-1].Label = sources.Label(value)
			labelSet = true
		case "filename":
			if fileSet {
				return aggregateRequest{}, requestError("INVALID_ARGUMENT", "filename 参数只能出现一次", "")
			}
			req.FileName = value
			fileSet = true
		default:
			return aggregateRequest{}, requestError("INVALID_ARGUMENT", fmt.Sprintf("不支持的 query 参数：%s", key), "")
		}
	}
	if len(req.Sources) == 0 {
		return aggregateRequest{}, requestError("INVALID_ARGUMENT", "缺少 src 参数", "expected: src=<url>")
	}
	return finishRequest(req)
}

// parseAggregatePOST accepts exactly one of "sources" and "list".
func parseAggregatePOST(w http.ResponseWriter, r *http.Request) (aggregateRequest, error) {
	var body aggregateRequestJSON
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return aggregateRequest{}, requestError("INVALID_ARGUMENT", "JSON body 解析失败", err.Error())
	}
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return aggregateRequest{}, requestError("INVALID_ARGUMENT", "JSON body 不允许多段", "")
	} else if !errors.Is(err, io.EOF) {
		return aggregateRequest{}, requestError("INVALID_ARGUMENT", "JSON body 解析失败", err.Error())
	}

	hasList := strings.TrimSpace(body.List) != ""
	switch {
	case hasList && len(body.Sources) > 0:
		return aggregateRequest{}, requestError("INVALID_ARGUMENT", "sources 与 list 只能二选一", "")
	case !hasList && len(body.Sources) == 0:
		return aggregateRequest{}, requestError("INVALID_ARGUMENT", "sources 与 list 不能同时为空", "")
	}

	req := aggregateRequest{FileName: body.FileName}
	if hasList {
		req.Sources = sources.Parse(body.List)
		if len(req.Sources) == 0 {
			return aggregateRequest{}, requestError("INVALID_ARGUMENT", "list 中没有任何订阅地址", "")
		}
		return finishRequest(req)
	}
	for _, s := range body.Sources {
		u := strings.TrimSpace(s.URL)
		if u == "" {
			return aggregateRequest{}, requestError("INVALID_ARGUMENT", "sources[].url 不能为空", "")
		}
		req.Sources = append(req.Sources, model.SourceEntry{URL: u, Label: sources.Label(s.Label)})
	}
	return finishRequest(req)
}

func finishRequest(req aggregateRequest) (aggregateRequest, error) {
	if len(req.Sources) > maxSources {
		return aggregateRequest{}, requestError("INVALID_ARGUMENT", "订阅源数量过多", fmt.Sprintf("max=%d", maxSources))
	}
	name, err := outputFileName(req.FileName)
	if err != nil {
		return aggregateRequest{}, err
	}
	req.FileName = name
	return req, nil
}
