package graphreadout

import (
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/ctxtest"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/ml/layers/activations"
)

func TestMLP(t *testing.T) {
	// All weights and biases initialized to 1: the hidden layer maps every
	// unit to relu(sum(x)+1), the output layer to 3*hidden+1.
	ctxtest.RunTestGraphFn(t, "MLP with one hidden layer",
		func(ctx *context.Context, g *Graph) (inputs, outputs []*Node) {
			ctx = ctx.WithInitializer(initializers.One)
			x := Const(g, [][]float32{{1, 2}, {-1, -4}})
			inputs = []*Node{x}
			outputs = []*Node{MLP(ctx, x, []int{3}, 2, activations.TypeRelu)}
			return
		}, []any{
			// Row 1: hidden = relu(3+1) = 4, output = 3*4+1 = 13.
			// Row 2: hidden = relu(-5+1) = 0, output = 1 (bias only).
			[][]float32{{13, 13}, {1, 1}},
		}, 1e-5)

	// No hidden layers: a single affine layer, no trailing activation, so
	// negative outputs pass through.
	ctxtest.RunTestGraphFn(t, "MLP with no hidden layers",
		func(ctx *context.Context, g *Graph) (inputs, outputs []*Node) {
			ctx = ctx.WithInitializer(initializers.One)
			x := Const(g, [][]float32{{-3, 1}})
			inputs = []*Node{x}
			outputs = []*Node{MLP(ctx, x, nil, 2, activations.TypeRelu)}
			return
		}, []any{
			[][]float32{{-1, -1}}, // -3+1+1, not relu'ed.
		}, 1e-5)
}
