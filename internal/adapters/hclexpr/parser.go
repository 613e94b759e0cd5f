// Package hclexpr implements the command language of the plan: single HCL
// expressions, statically analyzed for dependencies and evaluated against
// the workspace environment.
package hclexpr

import (
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"go.trai.ch/zerr"

	"github.com/loomworks/loom/internal/core/domain"
	"github.com/loomworks/loom/internal/core/ports"
)

// FileFunc marks string literals as file input dependencies.
const FileFunc = "file"

// DefaultFileOutFuncs is the default set of functions whose string-literal
// arguments name file outputs.
var DefaultFileOutFuncs = []string{"file_out"}

var _ ports.Parser = (*Parser)(nil)

// Parser extracts dependency names from command expressions without
// evaluating them.
type Parser struct {
	fileOut map[string]struct{}
}

// NewParser creates a Parser. fileOutFuncs may be nil, in which case
// DefaultFileOutFuncs applies.
func NewParser(fileOutFuncs []string) *Parser {
	if len(fileOutFuncs) == 0 {
		fileOutFuncs = DefaultFileOutFuncs
	}
	out := make(map[string]struct{}, len(fileOutFuncs))
	for _, name := range fileOutFuncs {
		out[name] = struct{}{}
	}
	return &Parser{fileOut: out}
}

// Extract statically analyzes the expression source and returns the free
// symbols, file inputs and declared file outputs it references. Names in
// bound are locally bound and excluded from the symbol set.
func (p *Parser) Extract(src string, bound ...string) (domain.DepSet, error) {
	expr, err := parseExpression(src)
	if err != nil {
		return domain.DepSet{}, err
	}

	symbols := make(map[string]struct{})
	files := make(map[string]struct{})
	fileOuts := make(map[string]struct{})

	for _, traversal := range expr.Variables() {
		name := traversal.RootName()
		if slices.Contains(bound, name) {
			continue
		}
		symbols[name] = struct{}{}
	}

	diags := hclsyntax.VisitAll(expr, func(node hclsyntax.Node) hcl.Diagnostics {
		call, ok := node.(*hclsyntax.FunctionCallExpr)
		if !ok {
			return nil
		}

		switch {
		case call.Name == FileFunc:
			collectLiteralArgs(call, files)
		case p.isFileOut(call.Name):
			collectLiteralArgs(call, fileOuts)
		default:
			// Calls are references too: a command that calls a function
			// depends on it. Unresolvable names are dropped downstream.
			symbols[call.Name] = struct{}{}
		}
		return nil
	})
	if diags.HasErrors() {
		return domain.DepSet{}, zerr.Wrap(diags, "failed to analyze expression")
	}

	return domain.DepSet{
		Symbols:  sortedKeys(symbols),
		Files:    sortedKeys(files),
		FileOuts: sortedKeys(fileOuts),
	}, nil
}

func (p *Parser) isFileOut(name string) bool {
	_, ok := p.fileOut[name]
	return ok
}

func collectLiteralArgs(call *hclsyntax.FunctionCallExpr, into map[string]struct{}) {
	for _, arg := range call.Args {
		if lit, ok := literalString(arg); ok {
			into[lit] = struct{}{}
		}
	}
}

// literalString returns the string value of a literal expression. Template
// expressions count only when they consist of a single literal part, so
// interpolated paths are not mistaken for static file references.
func literalString(expr hclsyntax.Expression) (string, bool) {
	switch e := expr.(type) {
	case *hclsyntax.LiteralValueExpr:
		if e.Val.Type() == cty.String {
			return e.Val.AsString(), true
		}
	case *hclsyntax.TemplateExpr:
		if len(e.Parts) != 1 {
			return "", false
		}
		return literalString(e.Parts[0])
	}
	return "", false
}

func parseExpression(src string) (hclsyntax.Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "command", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, zerr.With(zerr.Wrap(diags, "failed to parse expression"), "command", src)
	}
	return expr, nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
