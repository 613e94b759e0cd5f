package hclexpr

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"go.trai.ch/zerr"

	"github.com/loomworks/loom/internal/core/domain"
	"github.com/loomworks/loom/internal/core/ports"
)

var _ ports.Evaluator = (*Evaluator)(nil)

// Evaluator evaluates command expressions. Free variables resolve through
// the value lookup it was constructed with; calls resolve through the
// builtin table, the file marker functions and the plan's user-defined
// functions.
type Evaluator struct {
	funcs  map[string]function.Function
	lookup ports.ValueLookup
}

// NewEvaluator creates an Evaluator over the given user-defined functions,
// file-output function names and workspace value lookup.
func NewEvaluator(userFuncs map[string]domain.FuncDef, fileOutFuncs []string, lookup ports.ValueLookup) *Evaluator {
	e := &Evaluator{
		funcs:  builtinFuncs(),
		lookup: lookup,
	}

	if len(fileOutFuncs) == 0 {
		fileOutFuncs = DefaultFileOutFuncs
	}
	for _, name := range fileOutFuncs {
		if _, defined := e.funcs[name]; !defined {
			e.funcs[name] = pathIdentityFunc()
		}
	}

	for name, def := range userFuncs {
		e.funcs[name] = e.userFunc(def)
	}

	return e
}

// Evaluate parses and evaluates the expression source.
func (e *Evaluator) Evaluate(src string) (cty.Value, error) {
	return e.evaluate(src, nil)
}

func (e *Evaluator) evaluate(src string, locals map[string]cty.Value) (cty.Value, error) {
	expr, err := parseExpression(src)
	if err != nil {
		return cty.NilVal, err
	}

	vars := make(map[string]cty.Value)
	for _, traversal := range expr.Variables() {
		name := traversal.RootName()
		if v, ok := locals[name]; ok {
			vars[name] = v
			continue
		}
		if v, ok := e.lookup(name); ok {
			vars[name] = v
		}
	}

	evalCtx := &hcl.EvalContext{
		Variables: vars,
		Functions: e.funcs,
	}

	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return cty.NilVal, zerr.With(zerr.Wrap(diags, "expression evaluation failed"), "command", src)
	}
	return val, nil
}

// userFunc wraps a FuncDef as a cty function. Arguments bind to the
// parameter names; every other free symbol of the body resolves through the
// evaluator at call time, so function bodies may reference targets and
// other imports.
func (e *Evaluator) userFunc(def domain.FuncDef) function.Function {
	params := make([]function.Parameter, len(def.Params))
	for i, p := range def.Params {
		params[i] = function.Parameter{
			Name:             p,
			Type:             cty.DynamicPseudoType,
			AllowDynamicType: true,
			AllowNull:        true,
		}
	}

	return function.New(&function.Spec{
		Params: params,
		Type: func(args []cty.Value) (cty.Type, error) {
			return cty.DynamicPseudoType, nil
		},
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			locals := make(map[string]cty.Value, len(def.Params))
			for i, p := range def.Params {
				locals[p] = args[i]
			}
			return e.evaluate(def.Body, locals)
		},
	})
}
