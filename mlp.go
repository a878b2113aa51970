package graphreadout

import (
	"fmt"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
)

// MLP applies a feed-forward stack to x: one Dense layer (with bias) followed
// by the activation for each entry of hiddenDims, and a final Dense layer
// (with bias) to outDim with no trailing activation. With empty hiddenDims it
// reduces to a single affine layer.
//
// Variables are created under ctx, scoped "hidden_0", "hidden_1", ...,
// "output".
func MLP(ctx *context.Context, x *Node, hiddenDims []int, outDim int, activation activations.Type) *Node {
	for ii, dim := range hiddenDims {
		x = layers.DenseWithBias(ctx.In(fmt.Sprintf("hidden_%d", ii)), x, dim)
		x = activations.Apply(activation, x)
	}
	return layers.DenseWithBias(ctx.In("output"), x, outDim)
}
