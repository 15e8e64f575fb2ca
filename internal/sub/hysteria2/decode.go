// Package hysteria2 decodes hysteria2:// (and hy2://) links.
package hysteria2

import (
	"net/url"

	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sub/uri"
)

const (
	Scheme = "hysteria2"
	Alias  = "hy2"
)

func Decode(line, label string) (model.Node, error) {
	_, rest, ok := uri.Scheme(line)
	if !ok || rest == "" {
		return nil, uri.NewError(Scheme, line, "hysteria2:// 后缺少内容", nil)
	}
	body, frag := uri.CutFragment(rest)
	body, query := uri.CutQuery(body)

	user, hostport, found := uri.SplitUserinfo(body)
	if !found || user == "" {
		return nil, uri.NewError(Scheme, line, "hysteria2 缺少密码", nil)
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

	n := model.Node{
		model.KeyName:      uri.DisplayName(label, frag, "Hysteria2", server, port),
		model.KeyType:      model.TypeHysteria2,
		model.KeyServer:    server,
		model.KeyPort:      port,
		"password":         password,
		model.KeyUDP:       true,
		"sni":              q["sni"],
		"skip-cert-verify": uri.Truthy(q["insecure"]) || uri.Truthy(q["allowinsecure"]),
		"obfs":             q["obfs"],
		"obfs-password":    q["obfs-password"],
	}
	if alpn := uri.SplitList(q["alpn"]); len(alpn) > 0 {
		n["alpn"] = alpn
	}
	return n, nil
}
