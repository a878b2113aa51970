package graphreadout

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/layers"

	"github.com/gomlx/graphreadout/segment"
)

// applyMultiHead implements the weighted_sum and weighted_mean readouts:
// per-node per-head weights from a scoring MLP, applied to per-node values
// from a transformation MLP, summed per graph and projected to outDim.
func (r *Readout) applyMultiHead(nodeEmbeddings, nodeToGraphID *Node, numGraphs int) *Node {
	numNodes := nodeEmbeddings.Shape().Dimensions[0]

	weights := r.headWeights(nodeEmbeddings, nodeToGraphID, numGraphs) // [numNodes, numHeads]

	values := MLP(r.ctx.In("transformation"), nodeEmbeddings, r.mlpHiddenDims(), r.numHeads*r.headDim, r.activation)
	values = Reshape(values, numNodes, r.numHeads, r.headDim)

	// Weights broadcast over the headDim axis.
	weighted := Mul(InsertAxes(weights, -1), values)
	weighted = Reshape(weighted, numNodes, r.numHeads*r.headDim)
	pooled := segment.Sum(weighted, nodeToGraphID, numGraphs) // [numGraphs, numHeads*headDim]

	return layers.Dense(r.ctx.In("projection"), pooled, false, r.outDim)
}

// headWeights returns the per-node per-head pooling weights, shaped
// `[numNodes, numHeads]`: sigmoid of the scores for weighted_sum, per-graph
// softmax of the scores for weighted_mean.
func (r *Readout) headWeights(nodeEmbeddings, nodeToGraphID *Node, numGraphs int) *Node {
	scores := MLP(r.ctx.In("scoring"), nodeEmbeddings, r.mlpHiddenDims(), r.numHeads, r.activation)
	switch r.readoutType {
	case TypeWeightedSum:
		return Sigmoid(scores)
	case TypeWeightedMean:
		return segment.Softmax(scores, nodeToGraphID, numGraphs)
	}
	Panicf("invalid weighting type %q: valid values are %q and %q", r.readoutType, TypeWeightedSum, TypeWeightedMean)
	return nil
}

// mlpHiddenDims returns the hidden layer dimensions of the scoring and
// transformation MLPs: numMLPLayers layers of numHeads*headDim units each.
func (r *Readout) mlpHiddenDims() []int {
	dims := make([]int, r.numMLPLayers)
	for ii := range dims {
		dims[ii] = r.numHeads * r.headDim
	}
	return dims
}
