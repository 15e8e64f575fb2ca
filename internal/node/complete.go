// Package node repairs and cleans candidate proxy records so that every
// emitted node carries the mandatory key set.
package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/John-Robertt/submerge/internal/model"
)

const (
	UnknownServer = "unknown-server"
	DefaultPort   = 443
)

var ErrMissingField = errors.New("node is missing a mandatory field")

// typeRules infer a node type from the keys it carries. Evaluated in order;
// the first match wins and TypeHTTP is the fallback.
var typeRules = []struct {
	typ   string
	match func(model.Node) bool
}{
	{model.TypeSS, func(n model.Node) bool { return n.Has("cipher") && n.Has("password") }},
	{model.TypeVMess, func(n model.Node) bool { return n.Has("uuid") && n.Has("alterId") }},
	{model.TypeVLESS, func(n model.Node) bool { return n.Has("uuid") && !n.Has("alterId") }},
	{model.TypeTrojan, func(n model.Node) bool { return n.Has("password") && n.Has("sni") }},
	{model.TypeHysteria2, func(n model.Node) bool { return n.Has("password") && n.Has("alpn") }},
}

// InferType applies the type decision table to n.
func InferType(n model.Node) string {
	for _, r := range typeRules {
		if r.match(n) {
			return r.typ
		}
	}
	return model.TypeHTTP
}

// Complete fills the mandatory keys of n in place and returns it.
func Complete(n model.Node) model.Node {
	if n == nil {
		return nil
	}
	if strings.TrimSpace(n.Type()) == "" {
		n[model.KeyType] = InferType(n)
	}
	if strings.TrimSpace(n.Server()) == "" {
		n[model.KeyServer] = UnknownServer
	}
	if p, ok := toInt(n[model.KeyPort]); ok {
		n[model.KeyPort] = p
	} else {
		n[model.KeyPort] = DefaultPort
	}
	if b, ok := toBool(n[model.KeyUDP]); ok {
		n[model.KeyUDP] = b
	} else {
		n[model.KeyUDP] = true
	}
	if strings.TrimSpace(n.Name()) == "" {
		n[model.KeyName] = PlaceholderName(n)
	}
	return n
}

// PlaceholderName derives a name from the node content, so that the same
// record always receives the same name.
func PlaceholderName(n model.Node) string {
	content := make(map[string]any, len(n))
	for k, v := range n {
		if k != model.KeyName {
			content[k] = v
		}
	}
	data, err := json.Marshal(content)
	if err != nil {
		data = []byte(fmt.Sprint(content))
	}
	id := uuid.NewSHA1(uuid.NameSpaceOID, data).String()
	return fmt.Sprintf("%s-%s", n.Type(), id[:8])
}

// Validate reports whether n holds every mandatory key with a usable value.
func Validate(n model.Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrMissingField)
	}
	for _, k := range []string{model.KeyName, model.KeyType, model.KeyServer} {
		if s, ok := n[k].(string); !ok || strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, k)
		}
	}
	if _, ok := n[model.KeyPort].(int); !ok {
		return fmt.Errorf("%w: %s", ErrMissingField, model.KeyPort)
	}
	if _, ok := n[model.KeyUDP].(bool); !ok {
		return fmt.Errorf("%w: %s", ErrMissingField, model.KeyUDP)
	}
	return nil
}

// Normalize runs Complete, Sanitize and Validate.
func Normalize(n model.Node) (model.Node, error) {
	if n == nil {
		return nil, Validate(nil)
	}
	n = Sanitize(Complete(n))
	if err := Validate(n); err != nil {
		return nil, err
	}
	return n, nil
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case uint64:
		return int(t), true
	case float64:
		if t == math.Trunc(t) {
			return int(t), true
		}
	case string:
		if p, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return p, true
		}
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return false, false
}
