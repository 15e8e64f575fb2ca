// Package assemble merges nodes, groups and the fixed template parts into the
// output document.
package assemble

import (
	"github.com/John-Robertt/submerge/internal/compiler"
	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/template"
)

type Result struct {
	Document model.Document
	compiler.Result

	// Placeholder is set when no node survived and the placeholder node was
	// emitted instead.
	Placeholder bool
}

// Assemble compiles in and places the outcome into a copy of tpl's document.
// A nil tpl means the embedded template.
func Assemble(tpl *template.Template, in compiler.Input, opt compiler.Options) Result {
	if tpl == nil {
		tpl = template.Default()
	}

	var res Result
	if len(compiler.Dedup(in.Nodes)) == 0 {
		in = compiler.Input{Nodes: []model.Node{compiler.Placeholder()}}
		res.Placeholder = true
	}
	res.Result = compiler.Compile(in, opt)

	res.Document = tpl.Document()
	res.Document.Proxies = res.Nodes
	res.Document.ProxyGroups = res.Groups
	return res
}
