package graphreadout

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
)

// applyCombined runs a weighted_mean, a weighted_sum and a max pooler side by
// side, concatenates their outputs into `[numGraphs, 3*outDim]`, applies a
// relu and projects back to outDim. The three sub-poolers and the combination
// projection are all independently trainable.
func (r *Readout) applyCombined(nodeEmbeddings, nodeToGraphID *Node, numGraphs int) *Node {
	concatenated := r.combinedParts(nodeEmbeddings, nodeToGraphID, numGraphs)
	concatenated = activations.Relu(concatenated)
	return layers.Dense(r.ctx.In("combination"), concatenated, false, r.outDim)
}

// combinedParts returns the concatenation of the three sub-pooler outputs,
// shaped `[numGraphs, 3*outDim]`, before the combination non-linearity and
// projection.
func (r *Readout) combinedParts(nodeEmbeddings, nodeToGraphID *Node, numGraphs int) *Node {
	subPooler := func(scope, readoutType string) *Node {
		sub := &Readout{
			ctx:          r.ctx.In(scope),
			readoutType:  readoutType,
			outDim:       r.outDim,
			numHeads:     r.numHeads,
			headDim:      r.headDim,
			numMLPLayers: r.numMLPLayers,
			activation:   r.activation,
		}
		return sub.Apply(nodeEmbeddings, nodeToGraphID, numGraphs)
	}
	parts := []*Node{
		subPooler("weighted_mean", TypeWeightedMean),
		subPooler("weighted_sum", TypeWeightedSum),
		subPooler("max", TypeMax),
	}
	return Concatenate(parts, -1)
}
