package classify

import (
	"strings"

	"github.com/John-Robertt/submerge/internal/extract"
	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/node"
	"github.com/John-Robertt/submerge/internal/sub"
)

// Failure records one line or document that produced no node.
type Failure struct {
	Line   int // 1-based within the payload; 0 for whole-document failures
	Scheme string
	Err    error
}

// Result holds the normalized nodes of one payload, in payload order.
type Result struct {
	Detection
	Nodes    []model.Node
	Failures []Failure
	// Dropped counts records discarded for missing mandatory keys.
	Dropped int
}

// Parse classifies text and decodes it into completed, sanitized nodes.
// It never returns an error: problems are reported in Failures and Dropped.
func Parse(text, label string) Result {
	res := Result{Detection: Detect(text)}

	var candidates []model.Node
	switch res.Kind {
	case KindDocument:
		ex, err := extract.Document(res.Payload, label)
		if err != nil {
			res.Failures = append(res.Failures, Failure{Err: err})
		}
		candidates, res.Dropped = ex.Nodes, ex.Dropped
	case KindBareList:
		ex := extract.BareList(res.Payload, label)
		candidates, res.Dropped = ex.Nodes, ex.Dropped
	default:
		for i, line := range strings.Split(res.Payload, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			n, scheme, err := sub.DecodeLine(line, label)
			if err != nil {
				res.Failures = append(res.Failures, Failure{Line: i + 1, Scheme: scheme, Err: err})
				continue
			}
			candidates = append(candidates, n)
		}
	}

	for _, c := range candidates {
		n, err := node.Normalize(c)
		if err != nil {
			res.Dropped++
			continue
		}
		res.Nodes = append(res.Nodes, n)
	}
	return res
}
