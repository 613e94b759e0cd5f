package hclexpr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/loomworks/loom/internal/adapters/hclexpr"
	"github.com/loomworks/loom/internal/core/domain"
)

func lookupFrom(values map[string]cty.Value) func(string) (cty.Value, bool) {
	return func(name string) (cty.Value, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestEvaluator_Arithmetic(t *testing.T) {
	e := hclexpr.NewEvaluator(nil, nil, lookupFrom(map[string]cty.Value{
		"x": cty.NumberIntVal(40),
	}))

	v, err := e.Evaluate(`x + 2`)
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberIntVal(42)))
}

func TestEvaluator_Builtins(t *testing.T) {
	e := hclexpr.NewEvaluator(nil, nil, lookupFrom(map[string]cty.Value{
		"name": cty.StringVal("  loom  "),
	}))

	v, err := e.Evaluate(`upper(trim(name))`)
	require.NoError(t, err)
	assert.Equal(t, "LOOM", v.AsString())

	v, err = e.Evaluate(`sum([1, 2, 3])`)
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberIntVal(6)))
}

func TestEvaluator_FileMarkersPassThrough(t *testing.T) {
	e := hclexpr.NewEvaluator(nil, []string{"file_out"}, lookupFrom(nil))

	v, err := e.Evaluate(`file_out("report.html")`)
	require.NoError(t, err)
	assert.Equal(t, "report.html", v.AsString())

	v, err = e.Evaluate(`file("data.csv")`)
	require.NoError(t, err)
	assert.Equal(t, "data.csv", v.AsString())
}

func TestEvaluator_UserFunction(t *testing.T) {
	funcs := map[string]domain.FuncDef{
		"scale": {Name: "scale", Params: []string{"v"}, Body: `v * factor`},
	}
	e := hclexpr.NewEvaluator(funcs, nil, lookupFrom(map[string]cty.Value{
		"factor": cty.NumberIntVal(10),
		"data":   cty.NumberIntVal(4),
	}))

	v, err := e.Evaluate(`scale(data)`)
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberIntVal(40)))
}

func TestEvaluator_UserFunctionCallsUserFunction(t *testing.T) {
	funcs := map[string]domain.FuncDef{
		"double":    {Name: "double", Params: []string{"v"}, Body: `v * 2`},
		"quadruple": {Name: "quadruple", Params: []string{"v"}, Body: `double(double(v))`},
	}
	e := hclexpr.NewEvaluator(funcs, nil, lookupFrom(nil))

	v, err := e.Evaluate(`quadruple(3)`)
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberIntVal(12)))
}

func TestEvaluator_UnknownVariableFails(t *testing.T) {
	e := hclexpr.NewEvaluator(nil, nil, lookupFrom(nil))

	_, err := e.Evaluate(`missing + 1`)
	require.Error(t, err)
}
