package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqb/expr"
	"github.com/roach88/eqb/internal/testutil"
	"github.com/roach88/eqb/qerr"
)

func TestValidate_Valid(t *testing.T) {
	p := expr.ParamOf[testutil.Person]("p")

	valid := []expr.Expr{
		p.Field("Name"),
		expr.And(expr.Gt(p.Field("Age"), expr.Val(1)), expr.Not(expr.Eq(p.Field("Name"), expr.Lit("x")))),
		expr.Init[testutil.Person](expr.Set("Name", expr.Val("Bob"))),
		p.Field("Friends").Select(func(x *expr.Param) expr.Expr { return x.Field("Name") }),
		expr.Array(expr.Lit(1), expr.Lit(2)),
	}
	for _, e := range valid {
		assert.NoError(t, expr.Validate(e))
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	p := expr.ParamOf[testutil.Person]("p")

	e := expr.And(
		expr.Eq(p.Field("Nope"), expr.Lit(1)),
		expr.Eq(p.Field("AlsoNope"), nil),
	)

	err := expr.Validate(e)
	require.Error(t, err)
	assert.ErrorIs(t, err, qerr.ErrUnknownField)
	assert.ErrorIs(t, err, qerr.ErrUnhandledExpression)
	assert.Contains(t, err.Error(), "Nope")
	assert.Contains(t, err.Error(), "AlsoNope")
}

func TestValidate_LambdaOutsideCall(t *testing.T) {
	p := expr.ParamOf[testutil.Person]("p")
	err := expr.Validate(expr.Eq(&expr.Lambda{Param: p, Body: p.Field("Name")}, expr.Lit(1)))
	assert.ErrorIs(t, err, qerr.ErrUnhandledExpression)
}

func TestValidate_EmptyBindingField(t *testing.T) {
	err := expr.Validate(expr.Init[testutil.Person](expr.Set("", expr.Lit(1))))
	assert.ErrorIs(t, err, qerr.ErrUnhandledExpression)
}
