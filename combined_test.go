package graphreadout

import (
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/ctxtest"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
)

func TestCombinedConcatWidth(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	const outDim = 5
	ctx := context.New()
	g := NewGraph(backend, "combined-concat")
	nodeEmbeddings := IotaFull(g, shapes.Make(dtypes.Float32, 5, 4))
	nodeToGraphID := Const(g, testNodeToGraphID)
	r := New(ctx, TypeCombined, outDim).WithHeads(2, 3).Done()
	concatenated := r.combinedParts(nodeEmbeddings, nodeToGraphID, testNumGraphs)
	assert.EqualValues(t, []int{testNumGraphs, 3 * outDim}, concatenated.Shape().Dimensions,
		"the combined readout concatenates its three sub-poolers before projecting")
}

// goldenMax returns the expected per-column output of the max sub-pooler on
// the golden batch under ones-initialized weights: per-feature maxima, summed
// by the bias-free ones projection.
func goldenMax(nodes []int) float64 {
	nodeDim := len(goldenNodeEmbeddings[0])
	total := 0.0
	for feature := 0; feature < nodeDim; feature++ {
		best := float64(goldenNodeEmbeddings[nodes[0]][feature])
		for _, i := range nodes[1:] {
			if v := float64(goldenNodeEmbeddings[i][feature]); v > best {
				best = v
			}
		}
		total += best
	}
	return total
}

func TestCombinedGolden(t *testing.T) {
	// Each sub-pooler contributes outDim=2 identical columns to the
	// concatenation; after the relu (a no-op here, all parts are positive)
	// the ones projection sums all 6 columns into each output column.
	expected := make([][]float32, len(goldenGraphs))
	concatenated := make([][]float32, len(goldenGraphs))
	for g, nodes := range goldenGraphs {
		mean := float32(goldenWeightedMean(nodes))
		sum := float32(goldenWeightedSum(nodes))
		max := float32(goldenMax(nodes))
		concatenated[g] = []float32{mean, mean, sum, sum, max, max}
		combined := 2 * (mean + sum + max)
		expected[g] = []float32{combined, combined}
	}

	ctxtest.RunTestGraphFn(t, "golden combined",
		func(ctx *context.Context, g *Graph) (inputs, outputs []*Node) {
			ctx = ctx.WithInitializer(initializers.One)
			nodeEmbeddings := Const(g, goldenNodeEmbeddings)
			nodeToGraphID := Const(g, goldenNodeToGraphID)
			r := New(ctx, TypeCombined, 2).WithHeads(2, 3).Done()
			output := r.Apply(nodeEmbeddings, nodeToGraphID, 2)
			// Rebuild the concatenation reusing the variables created above.
			rReuse := New(ctx.Reuse(), TypeCombined, 2).WithHeads(2, 3).Done()
			inputs = []*Node{nodeEmbeddings, nodeToGraphID}
			outputs = []*Node{rReuse.combinedParts(nodeEmbeddings, nodeToGraphID, 2), output}
			return
		}, []any{concatenated, expected}, 1e-2)
}
