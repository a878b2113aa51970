// Package segment implements reductions grouped by a segment id vector: sum,
// mean, max, min, count and softmax, each computed independently per segment.
//
// It follows the "flattened batch" convention common in GNN models: a batch of
// graphs is stored as the disjoint union of their nodes, with values shaped
// `[numRows, dim]` and an integer vector `[numRows]` assigning each row to its
// segment (its graph). Rows of the same segment need not be contiguous.
//
// All functions are pure graph building operations, they create no variables.
// Empty segments -- segment ids in `[0, numSegments)` to which no row is
// assigned -- reduce to zero for every reduction, including Max and Min.
//
// Segment ids out of the range `[0, numSegments)` are handled by the backend's
// scatter/gather ops and are not checked here; shapes and dtypes are validated
// at graph building time.
//
// The graph package is imported qualified, not dot-imported as usual: this
// package's Max, Min and Softmax would collide with graph's.
package segment

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

// Node is an alias of graph.Node, the graph values all reductions operate on.
type Node = graph.Node

// validate panics if values/segmentIDs/numSegments don't form a valid
// segmented batch: values must be rank-2, segmentIDs a rank-1 integer vector
// of the same leading dimension, and numSegments positive.
func validate(values, segmentIDs *Node, numSegments int) {
	if values.Rank() != 2 {
		exceptions.Panicf("segment: values must be rank-2, shaped [numRows, dim], got %s", values.Shape())
	}
	if segmentIDs.Rank() != 1 {
		exceptions.Panicf("segment: segmentIDs must be rank-1, shaped [numRows], got %s", segmentIDs.Shape())
	}
	if !segmentIDs.DType().IsInt() {
		exceptions.Panicf("segment: segmentIDs must have an integer dtype, got %s", segmentIDs.Shape())
	}
	if values.Shape().Dimensions[0] != segmentIDs.Shape().Dimensions[0] {
		exceptions.Panicf("segment: values and segmentIDs disagree on the number of rows: values=%s, segmentIDs=%s",
			values.Shape(), segmentIDs.Shape())
	}
	if numSegments <= 0 {
		exceptions.Panicf("segment: numSegments must be positive, got %d", numSegments)
	}
}

// Sum returns the per-segment sum of values, shaped `[numSegments, dim]`.
// Empty segments sum to 0.
func Sum(values, segmentIDs *Node, numSegments int) *Node {
	validate(values, segmentIDs, numSegments)
	dim := values.Shape().Dimensions[1]
	indices := graph.InsertAxes(segmentIDs, -1)
	return graph.Scatter(indices, values, shapes.Make(values.DType(), numSegments, dim), false, false)
}

// Count returns how many rows are assigned to each segment, as a tensor
// shaped `[numSegments, 1]` of the given dtype.
func Count(segmentIDs *Node, numSegments int, dtype dtypes.DType) *Node {
	if segmentIDs.Rank() != 1 {
		exceptions.Panicf("segment: segmentIDs must be rank-1, shaped [numRows], got %s", segmentIDs.Shape())
	}
	if !segmentIDs.DType().IsInt() {
		exceptions.Panicf("segment: segmentIDs must have an integer dtype, got %s", segmentIDs.Shape())
	}
	if numSegments <= 0 {
		exceptions.Panicf("segment: numSegments must be positive, got %d", numSegments)
	}
	g := segmentIDs.Graph()
	numRows := segmentIDs.Shape().Dimensions[0]
	ones := graph.Ones(g, shapes.Make(dtype, numRows, 1))
	indices := graph.InsertAxes(segmentIDs, -1)
	return graph.Scatter(indices, ones, shapes.Make(dtype, numSegments, 1), false, false)
}

// Mean returns the per-segment mean of values, shaped `[numSegments, dim]`.
// Empty segments yield 0.
func Mean(values, segmentIDs *Node, numSegments int) *Node {
	validate(values, segmentIDs, numSegments)
	sum := Sum(values, segmentIDs, numSegments)
	count := Count(segmentIDs, numSegments, values.DType())
	count = graph.MaxScalar(count, 1) // To avoid division by 0 on empty segments.
	return graph.Div(sum, count)
}

// Max returns the per-segment maximum of values, shaped `[numSegments, dim]`.
// Empty segments yield 0, not -infinity.
func Max(values, segmentIDs *Node, numSegments int) *Node {
	validate(values, segmentIDs, numSegments)
	g := values.Graph()
	dtype := values.DType()
	dim := values.Shape().Dimensions[1]
	indices := graph.InsertAxes(segmentIDs, -1)
	lowest := graph.BroadcastToDims(graph.Infinity(g, dtype, -1), numSegments, dim)
	pooled := graph.ScatterMax(lowest, indices, values, false, false)
	return zeroEmptySegments(pooled, segmentIDs, numSegments)
}

// Min returns the per-segment minimum of values, shaped `[numSegments, dim]`.
// Empty segments yield 0, not +infinity.
func Min(values, segmentIDs *Node, numSegments int) *Node {
	validate(values, segmentIDs, numSegments)
	g := values.Graph()
	dtype := values.DType()
	dim := values.Shape().Dimensions[1]
	indices := graph.InsertAxes(segmentIDs, -1)
	highest := graph.BroadcastToDims(graph.Infinity(g, dtype, 1), numSegments, dim)
	pooled := graph.ScatterMin(highest, indices, values, false, false)
	return zeroEmptySegments(pooled, segmentIDs, numSegments)
}

// zeroEmptySegments replaces the rows of pooled corresponding to segments with
// no assigned rows by zeros.
func zeroEmptySegments(pooled, segmentIDs *Node, numSegments int) *Node {
	dim := pooled.Shape().Dimensions[1]
	count := Count(segmentIDs, numSegments, pooled.DType())
	hasRows := graph.GreaterThan(count, graph.ZerosLike(count))
	hasRows = graph.BroadcastToDims(hasRows, numSegments, dim)
	return graph.Where(hasRows, pooled, graph.ZerosLike(pooled))
}

// Softmax normalizes logits with a softmax taken independently per segment and
// per column: for every segment and every column, the entries of that
// segment's rows are positive and sum to 1.
//
// It is computed in a numerically stable way, by subtracting the per-segment
// maximum (with stopped gradient) before exponentiating.
//
// logits must be shaped `[numRows, dim]` with a float dtype; the result has
// the same shape.
func Softmax(logits, segmentIDs *Node, numSegments int) *Node {
	validate(logits, segmentIDs, numSegments)
	if !logits.DType().IsFloat() {
		exceptions.Panicf("segment: Softmax requires a float dtype for logits, got %s", logits.Shape())
	}
	g := logits.Graph()
	dtype := logits.DType()
	dim := logits.Shape().Dimensions[1]
	indices := graph.InsertAxes(segmentIDs, -1)

	lowest := graph.BroadcastToDims(graph.Infinity(g, dtype, -1), numSegments, dim)
	normalizingMax := graph.StopGradient(graph.ScatterMax(lowest, indices, logits, false, false))
	numerator := graph.Exp(graph.Sub(logits, graph.Gather(normalizingMax, indices)))
	denominator := graph.Scatter(indices, numerator, shapes.Make(dtype, numSegments, dim), false, false)
	return graph.Div(numerator, graph.Gather(denominator, indices))
}
