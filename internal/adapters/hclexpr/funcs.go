package hclexpr

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// builtinFuncs returns the base function table available to every command:
// the file markers plus a small expression library.
func builtinFuncs() map[string]function.Function {
	return map[string]function.Function{
		// file and file_out mark dependencies during extraction; at
		// evaluation time both pass the path through unchanged.
		FileFunc:   pathIdentityFunc(),
		"file_out": pathIdentityFunc(),

		"upper":  stdlib.UpperFunc,
		"lower":  stdlib.LowerFunc,
		"strlen": stdlib.StrlenFunc,
		"format": stdlib.FormatFunc,
		"length": stdlib.LengthFunc,
		"concat": stdlib.ConcatFunc,
		"join":   stdlib.JoinFunc,
		"split":  stdlib.SplitFunc,
		"trim":   stdlib.TrimSpaceFunc,
		"sum":    sumFunc(),
	}
}

// pathIdentityFunc returns a single-argument string identity function, so
// marked paths can be passed onward inside the expression.
func pathIdentityFunc() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "path", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			return args[0], nil
		},
	})
}

func sumFunc() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "values", Type: cty.List(cty.Number), AllowDynamicType: true},
		},
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			total := cty.Zero
			for it := args[0].ElementIterator(); it.Next(); {
				_, v := it.Element()
				total = total.Add(v)
			}
			return total, nil
		},
	})
}
