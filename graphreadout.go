// Package graphreadout implements graph readout ("pooling") layers for GoMLX.
//
// A readout collapses the per-node embeddings of a batch of graphs into one
// fixed-size vector per graph. The batch is given in flattened form: the nodes
// of all graphs are concatenated into `nodeEmbeddings`, shaped
// `[numNodes, nodeDim]`, and an integer vector `nodeToGraphID`, shaped
// `[numNodes]`, assigns each node to its graph, with ids in
// `[0, numGraphs)`. Nodes of the same graph need not be contiguous. The
// result is shaped `[numGraphs, outDim]`.
//
// Supported readout types:
//
//   - "min", "max", "sum", "mean": unweighted pooling of the node embeddings
//     followed by a learned linear projection (no bias) to outDim.
//   - "weighted_sum", "weighted_mean": multi-head weighted pooling. A scoring
//     MLP produces one score per node and head; scores become weights either
//     through a sigmoid (weighted_sum, each weight independently in (0, 1)) or
//     through a per-graph softmax (weighted_mean, the weights of each graph's
//     nodes sum to 1 per head). A second MLP transforms each node into
//     numHeads*headDim values, which are weighted, summed per graph and
//     projected (no bias) to outDim.
//   - "combined": a weighted_mean pooler, a weighted_sum pooler and a max
//     pooler run side by side; their outputs are concatenated, passed through
//     a relu and projected (no bias) back to outDim.
//
// Example:
//
//	func ModelGraph(ctx *context.Context, nodeEmbeddings, nodeToGraphID *Node) *Node {
//		r := graphreadout.New(ctx.In("readout"), graphreadout.TypeCombined, 64).
//			WithHeads(8, 16).
//			Done()
//		return r.Apply(nodeEmbeddings, nodeToGraphID, numGraphs)
//	}
//
// All weights are regular GoMLX context variables, created under the context
// given to New and trained by whatever optimizer the caller uses; Apply is a
// pure graph building function and mutates nothing.
//
// A graph id in `[0, numGraphs)` with no assigned nodes yields an all-zero
// output row, for every readout type: the summing variants pool nothing, the
// min/max variants follow the segment package's empty-segment convention, and
// all projections are bias-free.
package graphreadout

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/activations"
)

// Readout types accepted by New and by the ParamType context hyperparameter.
const (
	TypeMin          = "min"
	TypeMax          = "max"
	TypeSum          = "sum"
	TypeMean         = "mean"
	TypeWeightedSum  = "weighted_sum"
	TypeWeightedMean = "weighted_mean"
	TypeCombined     = "combined"
)

// Types lists the valid readout types.
var Types = []string{TypeMin, TypeMax, TypeSum, TypeMean, TypeWeightedSum, TypeWeightedMean, TypeCombined}

var (
	// ParamType context hyperparameter selects the readout type for
	// FromContext. See Types for valid values. The default is "mean".
	ParamType = "graph_readout_type"

	// ParamOutDim context hyperparameter defines the dimension of the per-graph
	// output vectors for FromContext. The default is 128.
	ParamOutDim = "graph_readout_out_dim"

	// ParamNumHeads context hyperparameter defines the number of independent
	// heads of the weighted readout types, for FromContext. The default is 8.
	ParamNumHeads = "graph_readout_num_heads"

	// ParamHeadDim context hyperparameter defines the dimension of each head of
	// the weighted readout types, for FromContext. The default is 16.
	ParamHeadDim = "graph_readout_head_dim"

	// ParamNumMLPLayers context hyperparameter defines the number of hidden
	// layers of the scoring and transformation MLPs of the weighted readout
	// types, for FromContext. The default is 1.
	ParamNumMLPLayers = "graph_readout_num_mlp_layers"
)

// Config is created with New and configured with its methods. Call Done to
// validate it and get the Readout layer.
type Config struct {
	ctx          *context.Context
	readoutType  string
	outDim       int
	numHeads     int
	headDim      int
	numMLPLayers int
	activation   string
}

// New creates the configuration of a readout layer of the given type,
// producing one vector of dimension outDim per graph.
//
// The variables of the layer are created under ctx (scoped further per
// sub-layer), so the same ctx yields the same weights across calls.
//
// readoutType must be one of Types. The weighted and combined types also
// require WithHeads. Invalid configurations panic at Done, never during
// Apply.
func New(ctx *context.Context, readoutType string, outDim int) *Config {
	return &Config{
		ctx:          ctx,
		readoutType:  readoutType,
		outDim:       outDim,
		numMLPLayers: 1,
		activation:   "relu",
	}
}

// WithHeads sets the number of independent heads and the dimension of each
// head for the weighted readout types. There is no default: the weighted and
// combined types fail at Done if WithHeads was not called.
func (c *Config) WithHeads(numHeads, headDim int) *Config {
	c.numHeads = numHeads
	c.headDim = headDim
	return c
}

// WithMLPLayers sets the number of hidden layers of the scoring and
// transformation MLPs of the weighted readout types. Each hidden layer has
// numHeads*headDim units. The default is 1; 0 makes both MLPs plain linear
// layers.
func (c *Config) WithMLPLayers(numLayers int) *Config {
	c.numMLPLayers = numLayers
	return c
}

// WithActivation sets the activation used between the hidden layers of the
// scoring and transformation MLPs. See activations.TypeValues for valid
// names. The default is "relu".
func (c *Config) WithActivation(name string) *Config {
	c.activation = name
	return c
}

// Done validates the configuration and returns the Readout layer. It panics
// with an error message on invalid configurations -- unknown readout type or
// activation, non-positive dimensions, or missing heads for the weighted
// types.
func (c *Config) Done() *Readout {
	valid := false
	for _, t := range Types {
		if c.readoutType == t {
			valid = true
			break
		}
	}
	if !valid {
		Panicf("invalid graph readout type %q: valid values are %v", c.readoutType, Types)
	}
	if c.outDim <= 0 {
		Panicf("graph readout outDim must be positive, got %d", c.outDim)
	}
	if c.numMLPLayers < 0 {
		Panicf("graph readout number of MLP layers must be >= 0, got %d", c.numMLPLayers)
	}
	switch c.readoutType {
	case TypeWeightedSum, TypeWeightedMean, TypeCombined:
		if c.numHeads <= 0 || c.headDim <= 0 {
			Panicf("graph readout type %q requires WithHeads with positive numHeads and headDim, got numHeads=%d, headDim=%d",
				c.readoutType, c.numHeads, c.headDim)
		}
	}
	return &Readout{
		ctx:          c.ctx,
		readoutType:  c.readoutType,
		outDim:       c.outDim,
		numHeads:     c.numHeads,
		headDim:      c.headDim,
		numMLPLayers: c.numMLPLayers,
		activation:   activations.FromName(c.activation),
	}
}

// Readout is a validated readout layer. Create it with New(...)...Done() or
// FromContext. Its only entry point is Apply.
type Readout struct {
	ctx          *context.Context
	readoutType  string
	outDim       int
	numHeads     int
	headDim      int
	numMLPLayers int
	activation   activations.Type
}

// Type returns the readout type, one of Types.
func (r *Readout) Type() string { return r.readoutType }

// OutDim returns the dimension of the per-graph output vectors.
func (r *Readout) OutDim() int { return r.outDim }

// Apply builds the readout computation: it pools nodeEmbeddings, shaped
// `[numNodes, nodeDim]`, per graph according to nodeToGraphID, shaped
// `[numNodes]` with integer ids in `[0, numGraphs)`, and returns one vector
// per graph, shaped `[numGraphs, outDim]`.
//
// It panics at graph building time if nodeEmbeddings is not rank-2, if
// nodeToGraphID is not an integer vector of matching length, or if numGraphs
// is not positive. Ids outside `[0, numGraphs)` are left to the backend's
// scatter bounds handling.
func (r *Readout) Apply(nodeEmbeddings, nodeToGraphID *Node, numGraphs int) *Node {
	validateGraphBatch(nodeEmbeddings, nodeToGraphID, numGraphs)
	switch r.readoutType {
	case TypeMin, TypeMax, TypeSum, TypeMean:
		return r.applyUnweighted(nodeEmbeddings, nodeToGraphID, numGraphs)
	case TypeWeightedSum, TypeWeightedMean:
		return r.applyMultiHead(nodeEmbeddings, nodeToGraphID, numGraphs)
	case TypeCombined:
		return r.applyCombined(nodeEmbeddings, nodeToGraphID, numGraphs)
	}
	Panicf("invalid graph readout type %q: valid values are %v", r.readoutType, Types)
	return nil
}

func validateGraphBatch(nodeEmbeddings, nodeToGraphID *Node, numGraphs int) {
	if nodeEmbeddings.Rank() != 2 {
		Panicf("graph readout: nodeEmbeddings must be rank-2, shaped [numNodes, nodeDim], got %s",
			nodeEmbeddings.Shape())
	}
	if nodeToGraphID.Rank() != 1 {
		Panicf("graph readout: nodeToGraphID must be rank-1, shaped [numNodes], got %s",
			nodeToGraphID.Shape())
	}
	if !nodeToGraphID.DType().IsInt() {
		Panicf("graph readout: nodeToGraphID must have an integer dtype, got %s", nodeToGraphID.Shape())
	}
	if nodeEmbeddings.Shape().Dimensions[0] != nodeToGraphID.Shape().Dimensions[0] {
		Panicf("graph readout: nodeEmbeddings and nodeToGraphID disagree on the number of nodes: "+
			"nodeEmbeddings=%s, nodeToGraphID=%s", nodeEmbeddings.Shape(), nodeToGraphID.Shape())
	}
	if numGraphs <= 0 {
		Panicf("graph readout: numGraphs must be positive, got %d", numGraphs)
	}
}

// FromContext builds a Readout from the context hyperparameters ParamType,
// ParamOutDim, ParamNumHeads, ParamHeadDim and ParamNumMLPLayers, with their
// documented defaults. Like Done, it panics on invalid values.
func FromContext(ctx *context.Context) *Readout {
	readoutType := context.GetParamOr(ctx, ParamType, TypeMean)
	return New(ctx, readoutType, context.GetParamOr(ctx, ParamOutDim, 128)).
		WithHeads(context.GetParamOr(ctx, ParamNumHeads, 8), context.GetParamOr(ctx, ParamHeadDim, 16)).
		WithMLPLayers(context.GetParamOr(ctx, ParamNumMLPLayers, 1)).
		Done()
}
