// Package ss decodes shadowsocks URIs, both the SIP002 form
// (ss://b64(method:password)@host:port) and the legacy form
// (ss://b64(method:password@host:port)).
package ss

import (
	"errors"
	"net/url"
	"strings"

	"github.com/John-Robertt/submerge/internal/b64"
	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sub/uri"
)

const Scheme = "ss"

// Decode turns one ss:// line into a node. label, when set, prefixes the
// display name.
func Decode(line, label string) (model.Node, error) {
	_, rest, ok := uri.Scheme(line)
	if !ok || rest == "" {
		return nil, uri.NewError(Scheme, line, "ss:// 后缺少内容", nil)
	}
	body, frag := uri.CutFragment(rest)
	body, query := uri.CutQuery(body)

	var method, password, hostport string
	if user, hp, found := uri.SplitUserinfo(body); found {
		m, p, err := userinfo(user)
		if err != nil {
			return nil, uri.NewError(Scheme, line, "ss userinfo 解码失败", err)
		}
		method, password, hostport = m, p, hp
	} else {
		decoded, ok := b64.Decode(body)
		if !ok {
			return nil, uri.NewError(Scheme, line, "ss base64 解码失败", nil)
		}
		creds, hp, found := uri.SplitUserinfo(decoded)
		if !found {
			return nil, uri.NewError(Scheme, line, "ss base64 解码结果缺少 @ 分隔符", nil)
		}
		m, p, err := splitCredentials(creds)
		if err != nil {
			return nil, uri.NewError(Scheme, line, "ss base64 解码结果缺少 cipher:password", err)
		}
		method, password, hostport = m, p, hp
	}

	server, port, err := uri.HostPort(hostport)
	if err != nil {
		return nil, uri.NewError(Scheme, line, "服务器地址或端口不合法", err)
	}

	n := model.Node{
		model.KeyName:   uri.DisplayName(label, frag, "SS", server, port),
		model.KeyType:   model.TypeSS,
		model.KeyServer: server,
		model.KeyPort:   port,
		"cipher":        method,
		"password":      password,
		model.KeyUDP:    true,
	}
	if query != "" {
		applyPlugin(n, uri.ParseQuery(query)["plugin"])
	}
	return n, nil
}

// userinfo decodes the part before '@': base64 of method:password first,
// then the percent-encoded plain form.
func userinfo(user string) (string, string, error) {
	if decoded, ok := b64.Decode(user); ok && strings.Contains(decoded, ":") {
		return splitCredentials(decoded)
	}
	plain, err := url.PathUnescape(user)
	if err != nil {
		return "", "", err
	}
	return splitCredentials(plain)
}

var errCredentials = errors.New("want method:password")

func splitCredentials(s string) (string, string, error) {
	method, password, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(method) == "" || password == "" {
		return "", "", errCredentials
	}
	return method, password, nil
}

// applyPlugin maps a SIP003 plugin value ("name;k=v;k2=v2") onto the
// plugin/plugin-opts keys.
func applyPlugin(n model.Node, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	segs := strings.Split(value, ";")
	name := strings.TrimSpace(segs[0])
	opts := make(map[string]string, len(segs)-1)
	var flags []string
	for _, seg := range segs[1:] {
		k, v, ok := strings.Cut(seg, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if !ok {
			flags = append(flags, k)
			continue
		}
		opts[k] = v
	}

	switch name {
	case "obfs-local", "simple-obfs", "obfs":
		n["plugin"] = "obfs"
		n["plugin-opts"] = map[string]any{"mode": opts["obfs"], "host": opts["obfs-host"]}
	case "v2ray-plugin":
		mode := opts["mode"]
		if mode == "" {
			mode = "websocket"
		}
		po := map[string]any{"mode": mode, "host": opts["host"], "path": opts["path"]}
		for _, f := range flags {
			if f == "tls" {
				po["tls"] = true
			}
		}
		n["plugin"] = name
		n["plugin-opts"] = po
	default:
		po := make(map[string]any, len(opts))
		for k, v := range opts {
			po[k] = v
		}
		n["plugin"] = name
		n["plugin-opts"] = po
	}
}
