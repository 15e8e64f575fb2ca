// Package vless decodes vless://uuid@host:port?query#name links.
package vless

import (
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sub/uri"
)

const Scheme = "vless"

func Decode(line, label string) (model.Node, error) {
	_, rest, ok := uri.Scheme(line)
	if !ok || rest == "" {
		return nil, uri.NewError(Scheme, line, "vless:// 后缺少内容", nil)
	}
	body, frag := uri.CutFragment(rest)
	body, query := uri.CutQuery(body)

	user, hostport, found := uri.SplitUserinfo(body)
	if !found || strings.TrimSpace(user) == "" {
		return nil, uri.NewError(Scheme, line, "vless 缺少 uuid", nil)
	}
	id, err := url.PathUnescape(user)
	if err != nil {
		id = user
	}
	if u, err := uuid.Parse(id); err == nil {
		id = u.String()
	}
	server, port, err := uri.HostPort(hostport)
	if err != nil {
		return nil, uri.NewError(Scheme, line, "服务器地址或端口不合法", err)
	}
	q := uri.ParseQuery(query)

	servername := q["sni"]
	if servername == "" {
		servername = server
	}

	n := model.Node{
		model.KeyName:   uri.DisplayName(label, frag, "VLESS", server, port),
		model.KeyType:   model.TypeVLESS,
		model.KeyServer: server,
		model.KeyPort:   port,
		"uuid":          id,
		model.KeyUDP:    true,
		"servername":    servername,
		"flow":          q["flow"],
	}

	switch security := strings.ToLower(q["security"]); security {
	case "tls", "xtls", "reality":
		n["tls"] = true
		n["skip-cert-verify"] = uri.Truthy(q["allowinsecure"]) || uri.Truthy(q["insecure"])
		n["client-fingerprint"] = q["fp"]
		if alpn := uri.SplitList(q["alpn"]); len(alpn) > 0 {
			n["alpn"] = alpn
		}
		if security == "reality" {
			n["reality-opts"] = map[string]any{"public-key": q["pbk"], "short-id": q["sid"]}
		}
	}
	uri.Transport(n, q)
	return n, nil
}
