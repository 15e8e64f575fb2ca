package model

import (
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Mandatory node keys.
const (
	KeyName   = "name"
	KeyType   = "type"
	KeyServer = "server"
	KeyPort   = "port"
	KeyUDP    = "udp"
)

// Node types.
const (
	TypeSS        = "ss"
	TypeVMess     = "vmess"
	TypeTrojan    = "trojan"
	TypeVLESS     = "vless"
	TypeHysteria2 = "hysteria2"
	TypeHTTP      = "http" // fallback when nothing else can be inferred
)

// Node is the canonical proxy record. Keys follow the Clash proxy schema; the
// set of optional keys depends on the node type.
type Node map[string]any

// keyOrder is the emission order of well-known keys. Unknown keys follow in
// lexical order.
var keyOrder = []string{
	KeyName, KeyType, KeyServer, KeyPort,
	"cipher", "password", "uuid", "alterId", KeyUDP,
	"tls", "skip-cert-verify", "servername", "sni", "alpn", "flow",
	"client-fingerprint", "network", "ws-opts", "grpc-opts", "reality-opts",
	"plugin", "plugin-opts", "obfs", "obfs-password",
}

var keyRank = func() map[string]int {
	m := make(map[string]int, len(keyOrder))
	for i, k := range keyOrder {
		m[k] = i
	}
	return m
}()

func (n Node) Has(key string) bool {
	v, ok := n[key]
	return ok && !IsEmpty(v)
}

// String returns the value under key rendered as a string, or "" if absent.
func (n Node) String(key string) string {
	switch v := n[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

func (n Node) Name() string   { return n.String(KeyName) }
func (n Node) Type() string   { return n.String(KeyType) }
func (n Node) Server() string { return n.String(KeyServer) }

// Port returns the port when it is stored as an integer.
func (n Node) Port() int {
	p, _ := n[KeyPort].(int)
	return p
}

// Keys returns the node keys in emission order.
func (n Node) Keys() []string {
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := keyRank[keys[i]]
		rj, jok := keyRank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// MarshalYAML emits the node as a mapping with a stable key order, so that
// name/type/server/port always lead.
func (n Node) MarshalYAML() (any, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range n.Keys() {
		var v yaml.Node
		if err := v.Encode(n[k]); err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		out.Content = append(out.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, &v)
	}
	return out, nil
}

// IsEmpty reports whether v is nil, an empty string or an empty collection.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case map[string]string:
		return len(t) == 0
	case Node:
		return len(t) == 0
	default:
		return false
	}
}
