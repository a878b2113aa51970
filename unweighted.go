package graphreadout

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/layers"

	"github.com/gomlx/graphreadout/segment"
)

// applyUnweighted pools the node embeddings per graph with the configured
// reduction and projects the result to outDim.
func (r *Readout) applyUnweighted(nodeEmbeddings, nodeToGraphID *Node, numGraphs int) *Node {
	var pooled *Node
	switch r.readoutType {
	case TypeMin:
		pooled = segment.Min(nodeEmbeddings, nodeToGraphID, numGraphs)
	case TypeMax:
		pooled = segment.Max(nodeEmbeddings, nodeToGraphID, numGraphs)
	case TypeSum:
		pooled = segment.Sum(nodeEmbeddings, nodeToGraphID, numGraphs)
	case TypeMean:
		pooled = segment.Mean(nodeEmbeddings, nodeToGraphID, numGraphs)
	default:
		Panicf("invalid unweighted pooling type %q", r.readoutType)
	}
	return layers.Dense(r.ctx.In("projection"), pooled, false, r.outDim)
}
