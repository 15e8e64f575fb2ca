// Package compiler turns the aggregated node list into the emitted node list
// and proxy groups: dedup, cap, reserved-name repair and group construction.
package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/John-Robertt/submerge/internal/model"
)

const (
	DefaultMaxNodes       = 200
	DefaultLabelGroupCap  = 50
	DefaultHealthCheckURL = "http://www.gstatic.com/generate_204"
	DefaultInterval       = 300
	DefaultTolerance      = 50
)

type Options struct {
	MaxNodes       int // default 200
	LabelGroupCap  int // default 50
	HealthCheckURL string
	Interval       int // seconds
	Tolerance      int // milliseconds
}

func (o Options) withDefaults() Options {
	if o.MaxNodes <= 0 {
		o.MaxNodes = DefaultMaxNodes
	}
	if o.LabelGroupCap <= 0 {
		o.LabelGroupCap = DefaultLabelGroupCap
	}
	if strings.TrimSpace(o.HealthCheckURL) == "" {
		o.HealthCheckURL = DefaultHealthCheckURL
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	return o
}

// Input is the aggregated data of one batch.
type Input struct {
	Nodes   []model.Node            // source order, not deduplicated
	Labels  []string                // distinct labels in source order
	ByLabel map[string][]model.Node // nodes per label
}

type Result struct {
	Nodes  []model.Node
	Groups []model.Group

	Duplicates int // dropped by Dedup
	Truncated  int // dropped by the node cap
	Renamed    int // nodes renamed for a reserved or repeated name
}

// Compile deduplicates and caps the nodes, then builds the base groups and one
// url-test group per label. Group membership is by exact current node name.
func Compile(in Input, opt Options) Result {
	opt = opt.withDefaults()

	deduped := Dedup(in.Nodes)
	kept := Truncate(deduped, opt.MaxNodes)
	nodes, renamed := uniqueNames(kept)

	res := Result{
		Nodes:      nodes,
		Duplicates: len(in.Nodes) - len(deduped),
		Truncated:  len(deduped) - len(kept),
		Renamed:    renamed,
	}
	names := nodeNames(nodes)
	res.Groups = FilterGroups(BuildGroups(names, in.Labels, in.ByLabel, opt), names)
	return res
}

// Dedup drops every node whose identity key was already seen. The first
// occurrence wins and order is preserved. Nil nodes are skipped.
func Dedup(nodes []model.Node) []model.Node {
	seen := make(map[string]struct{}, len(nodes))
	out := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		key := dedupKey(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

func dedupKey(n model.Node) string {
	var b strings.Builder
	b.WriteString(n.Server())
	b.WriteByte(0)
	b.WriteString(n.String(model.KeyPort))
	b.WriteByte(0)
	b.WriteString(n.Type())
	b.WriteByte(0)
	b.WriteString(n.Name())
	return b.String()
}

// Truncate keeps the first max nodes.
func Truncate(nodes []model.Node, max int) []model.Node {
	if max <= 0 || len(nodes) <= max {
		return nodes
	}
	return nodes[:max]
}

// uniqueNames gives every node that is named like a base group or built-in
// target, or that repeats the name of an earlier node, the first free
// "<name>-N" name, N starting from 2. Renamed nodes are copies.
func uniqueNames(nodes []model.Node) ([]model.Node, int) {
	used := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		used[n.Name()] = struct{}{}
	}

	claimed := make(map[string]struct{}, len(nodes))
	renamed := 0
	out := make([]model.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n
		base := n.Name()
		if _, dup := claimed[base]; !dup && !model.IsReserved(base) {
			claimed[base] = struct{}{}
			continue
		}
		for k := 2; ; k++ {
			try := base + "-" + strconv.Itoa(k)
			if _, ok := used[try]; ok {
				continue
			}
			used[try] = struct{}{}
			claimed[try] = struct{}{}
			c := make(model.Node, len(n))
			for key, v := range n {
				c[key] = v
			}
			c[model.KeyName] = try
			out[i] = c
			break
		}
		renamed++
	}
	return out, renamed
}

func nodeNames(nodes []model.Node) []string {
	return lo.Map(nodes, func(n model.Node, _ int) string { return n.Name() })
}

// BuildGroups builds the selector, load-balance and url-test base groups over
// names, followed by one url-test group per label whose nodes are still
// present. Label groups whose name collides with a node or a reserved name
// are skipped.
func BuildGroups(names, labels []string, byLabel map[string][]model.Node, opt Options) []model.Group {
	opt = opt.withDefaults()
	all := lo.Uniq(names)

	selector := make([]string, 0, len(all)+3)
	selector = append(selector, model.GroupBalance, model.GroupAuto)
	selector = append(selector, all...)
	selector = append(selector, model.DirectTarget)

	groups := []model.Group{
		{Name: model.GroupSelector, Type: model.GroupSelect, Proxies: selector},
		{
			Name:     model.GroupBalance,
			Type:     model.GroupLoadBalance,
			URL:      opt.HealthCheckURL,
			Interval: opt.Interval,
			Strategy: model.StrategyConsistent,
			Proxies:  all,
		},
		{
			Name:      model.GroupAuto,
			Type:      model.GroupURLTest,
			URL:       opt.HealthCheckURL,
			Interval:  opt.Interval,
			Tolerance: opt.Tolerance,
			Proxies:   all,
		},
	}

	present := lo.SliceToMap(all, func(n string) (string, struct{}) { return n, struct{}{} })
	for _, label := range labels {
		if label == "" || model.IsReserved(label) {
			continue
		}
		if _, clash := present[label]; clash {
			continue
		}
		members := lo.Filter(lo.Uniq(nodeNames(byLabel[label])), func(n string, _ int) bool {
			_, ok := present[n]
			return ok && !model.IsReserved(n)
		})
		if len(members) == 0 {
			continue
		}
		if len(members) > opt.LabelGroupCap {
			members = members[:opt.LabelGroupCap]
		}
		groups = append(groups, model.Group{
			Name:      label,
			Type:      model.GroupURLTest,
			URL:       opt.HealthCheckURL,
			Interval:  opt.Interval,
			Tolerance: opt.Tolerance,
			Proxies:   members,
		})
	}
	return groups
}

// virtualTargets may be referenced by groups without being a node.
var virtualTargets = []string{model.GroupBalance, model.GroupAuto, model.DirectTarget}

// FilterGroups keeps in every group only names that are present nodes or
// virtual targets. A group left empty gets [DIRECT].
func FilterGroups(groups []model.Group, names []string) []model.Group {
	present := lo.SliceToMap(names, func(n string) (string, struct{}) { return n, struct{}{} })
	out := make([]model.Group, 0, len(groups))
	for _, g := range groups {
		g.Proxies = lo.Filter(g.Proxies, func(p string, _ int) bool {
			if _, ok := present[p]; ok {
				return true
			}
			return lo.Contains(virtualTargets, p) && p != g.Name
		})
		if len(g.Proxies) == 0 {
			g.Proxies = []string{model.DirectTarget}
		}
		out = append(out, g)
	}
	return out
}

// Placeholder is the node emitted when no source produced anything, so the
// document stays loadable.
func Placeholder() model.Node {
	return model.Node{
		model.KeyName:   PlaceholderName,
		model.KeyType:   model.TypeSS,
		model.KeyServer: "127.0.0.1",
		model.KeyPort:   8388,
		"cipher":        "aes-256-gcm",
		"password":      "placeholder",
		model.KeyUDP:    true,
	}
}

const PlaceholderName = "placeholder"

// GroupSummary renders "name(type):n" for logs.
func GroupSummary(groups []model.Group) string {
	parts := lo.Map(groups, func(g model.Group, _ int) string {
		return fmt.Sprintf("%s(%s):%d", g.Name, g.Type, len(g.Proxies))
	})
	return strings.Join(parts, " ")
}
