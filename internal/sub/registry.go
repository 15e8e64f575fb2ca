// Package sub dispatches proxy URI lines to the decoder registered for their
// scheme.
package sub

import (
	"fmt"
	"sort"

	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sub/hysteria2"
	"github.com/John-Robertt/submerge/internal/sub/ss"
	"github.com/John-Robertt/submerge/internal/sub/trojan"
	"github.com/John-Robertt/submerge/internal/sub/uri"
	"github.com/John-Robertt/submerge/internal/sub/vless"
	"github.com/John-Robertt/submerge/internal/sub/vmess"
)

// Decoder turns one URI line into a candidate node. label may be empty.
type Decoder func(line, label string) (model.Node, error)

var decoders = map[string]Decoder{
	ss.Scheme:        ss.Decode,
	vmess.Scheme:     vmess.Decode,
	trojan.Scheme:    trojan.Decode,
	vless.Scheme:     vless.Decode,
	hysteria2.Scheme: hysteria2.Decode,
	hysteria2.Alias:  hysteria2.Decode,
}

// Schemes returns the registered scheme tokens in sorted order.
func Schemes() []string {
	out := make([]string, 0, len(decoders))
	for s := range decoders {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the decoder for scheme.
func Lookup(scheme string) (Decoder, bool) {
	d, ok := decoders[scheme]
	return d, ok
}

// DecodeLine decodes line with the decoder of its scheme. It returns the
// scheme token it dispatched on (empty when the line has none) and never
// panics: a fault inside a decoder comes back as a *uri.DecodeError.
func DecodeLine(line, label string) (n model.Node, scheme string, err error) {
	scheme, _, ok := uri.Scheme(line)
	if !ok {
		return nil, "", uri.NewError("", line, "无法识别的节点格式", nil)
	}
	dec, ok := Lookup(scheme)
	if !ok {
		return nil, scheme, uri.NewError(scheme, line, "不支持的协议", nil)
	}
	defer func() {
		if r := recover(); r != nil {
			n = nil
			err = uri.NewError(scheme, line, "节点解析异常", fmt.Errorf("panic: %v", r))
		}
	}()
	n, err = dec(line, label)
	return n, scheme, err
}
