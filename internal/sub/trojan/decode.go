// Package trojan decodes trojan://password@host:port?query#name links.
package trojan

import (
	"net/url"

	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sub/uri"
)

const Scheme = "trojan"

func Decode(line, label string) (model.Node, error) {
	_, rest, ok := uri.Scheme(line)
	if !ok || rest == "" {
		return nil, uri.NewError(Scheme, line, "trojan:// 后缺少内容", nil)
	}
	body, frag := uri.CutFragment(rest)
	body, query := uri.CutQuery(body)

	user, hostport, found := uri.SplitUserinfo(body)
	if !found || user == "" {
		return nil, uri.NewError(Scheme, line, "trojan 缺少密码", nil)
	}
	password, err := url.PathUnescape(user)
	if err != nil {
		password = user
	}
	server, port, err := uri.HostPort(hostport)
	if err != nil {
		return nil, uri.NewError(Scheme, line, "服务器地址或端口不合法", err)
	}
	q := uri.ParseQuery(query)

	sni := q["sni"]
	if sni == "" {
		sni = q["peer"]
	}
	if sni == "" {
		sni = server
	}

	n := model.Node{
		model.KeyName:      uri.DisplayName(label, frag, "Trojan", server, port),
		model.KeyType:      model.TypeTrojan,
		model.KeyServer:    server,
		model.KeyPort:      port,
		"password":         password,
		model.KeyUDP:       true,
		"sni":              sni,
		"skip-cert-verify": uri.Truthy(q["allowinsecure"]) || uri.Truthy(q["insecure"]),
	}
	if alpn := uri.SplitList(q["alpn"]); len(alpn) > 0 {
		n["alpn"] = alpn
	}
	n["client-fingerprint"] = q["fp"]
	uri.Transport(n, q)
	return n, nil
}
