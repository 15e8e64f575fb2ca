// Package vmess decodes v2rayN style vmess:// links, whose payload is one
// base64 encoded JSON object.
package vmess

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/John-Robertt/submerge/internal/b64"
	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sub/uri"
)

const Scheme = "vmess"

type payload struct {
	PS            field `json:"ps"`
	Add           field `json:"add"`
	Port          field `json:"port"`
	ID            field `json:"id"`
	Aid           field `json:"aid"`
	Scy           field `json:"scy"`
	Net           field `json:"net"`
	Host          field `json:"host"`
	Path          field `json:"path"`
	TLS           field `json:"tls"`
	SNI           field `json:"sni"`
	ALPN          field `json:"alpn"`
	FP            field `json:"fp"`
	AllowInsecure field `json:"allowInsecure"`
	SkipVerify    field `json:"skip-cert-verify"`
}

// field accepts both JSON strings and JSON numbers/bools; producers disagree
// on the type of port and aid.
type field string

func (f *field) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = field(strings.TrimSpace(v))
		return nil
	}
	*f = field(s)
	return nil
}

func (f field) String() string { return string(f) }

// Decode turns one vmess:// line into a node.
func Decode(line, label string) (model.Node, error) {
	_, rest, ok := uri.Scheme(line)
	if !ok || rest == "" {
		return nil, uri.NewError(Scheme, line, "vmess:// 后缺少内容", nil)
	}
	body, _ := uri.CutFragment(rest)
	text, ok := b64.Decode(body)
	if !ok {
		return nil, uri.NewError(Scheme, line, "vmess base64 解码失败", nil)
	}
	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, uri.NewError(Scheme, line, "vmess JSON 解析失败", err)
	}
	server := p.Add.String()
	if server == "" {
		return nil, uri.NewError(Scheme, line, "vmess 缺少 add 字段", nil)
	}
	if p.ID == "" {
		return nil, uri.NewError(Scheme, line, "vmess 缺少 id 字段", nil)
	}

	ps := p.PS.String()
	if ps == "" {
		ps = "VMess-" + server
	}
	cipher := p.Scy.String()
	if cipher == "" {
		cipher = "auto"
	}

	n := model.Node{
		model.KeyName:   uri.WithLabel(label, ps),
		model.KeyType:   model.TypeVMess,
		model.KeyServer: server,
		model.KeyPort:   portValue(p.Port.String()),
		"uuid":          normalizeUUID(p.ID.String()),
		"alterId":       atoiOr(p.Aid.String(), 0),
		"cipher":        cipher,
		model.KeyUDP:    true,
	}

	if strings.EqualFold(p.TLS.String(), "tls") {
		n["tls"] = true
		n["skip-cert-verify"] = uri.Truthy(p.AllowInsecure.String()) || uri.Truthy(p.SkipVerify.String())
		sni := p.SNI.String()
		if sni == "" {
			sni = p.Host.String()
		}
		n["servername"] = sni
		if alpn := uri.SplitList(p.ALPN.String()); len(alpn) > 0 {
			n["alpn"] = alpn
		}
		n["client-fingerprint"] = p.FP.String()
	}

	switch network := strings.ToLower(p.Net.String()); network {
	case "", "tcp":
	case "ws":
		n["network"] = network
		opts := map[string]any{"path": p.Path.String()}
		if h := p.Host.String(); h != "" {
			opts["headers"] = map[string]any{"Host": h}
		}
		n["ws-opts"] = opts
	case "grpc":
		n["network"] = network
		n["grpc-opts"] = map[string]any{"grpc-service-name": p.Path.String()}
	default:
		n["network"] = network
	}
	return n, nil
}

// portValue keeps an unparsable port as text so that the completer can
// substitute the default.
func portValue(s string) any {
	if p, err := strconv.Atoi(s); err == nil {
		return p
	}
	return s
}

func atoiOr(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func normalizeUUID(s string) string {
	if id, err := uuid.Parse(s); err == nil {
		return id.String()
	}
	return s
}
