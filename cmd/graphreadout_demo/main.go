// graphreadout_demo runs one forward pass of a configured graph readout layer
// over a randomly generated batch of graphs and prints the per-graph vectors.
//
// The readout and batch geometry are configured from layered YAML files plus
// command-line overrides, later sources winning:
//
//	graphreadout_demo -config base.yaml -config experiment.yaml \
//	    -set "graph_readout_type=combined;graph_readout_out_dim=8"
//
// An example config file:
//
//	readout:
//	  type: weighted_mean
//	  out_dim: 16
//	  num_heads: 4
//	  head_dim: 8
//	batch:
//	  num_graphs: 3
//	  num_nodes: 20
//	  node_dim: 32
package main

import (
	"flag"
	"fmt"
	"math/rand"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/graphreadout"
	"github.com/gomlx/graphreadout/configs"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

// DemoConfig is the YAML schema of the demo's config files.
type DemoConfig struct {
	Readout ReadoutConfig `yaml:"readout"`
	Batch   BatchConfig   `yaml:"batch"`
	Seed    int64         `yaml:"seed"`
}

// ReadoutConfig selects and parametrizes the readout layer.
type ReadoutConfig struct {
	Type         string `yaml:"type"`
	OutDim       int    `yaml:"out_dim"`
	NumHeads     int    `yaml:"num_heads"`
	HeadDim      int    `yaml:"head_dim"`
	NumMLPLayers int    `yaml:"num_mlp_layers"`
}

// BatchConfig defines the randomly generated graph batch.
type BatchConfig struct {
	NumGraphs int `yaml:"num_graphs"`
	NumNodes  int `yaml:"num_nodes"`
	NodeDim   int `yaml:"node_dim"`
}

func defaultConfig() DemoConfig {
	return DemoConfig{
		Readout: ReadoutConfig{
			Type:         graphreadout.TypeCombined,
			OutDim:       8,
			NumHeads:     4,
			HeadDim:      8,
			NumMLPLayers: 1,
		},
		Batch: BatchConfig{NumGraphs: 3, NumNodes: 20, NodeDim: 16},
		Seed:  42,
	}
}

var flagConfigs configs.Files

func main() {
	cfg := defaultConfig()
	ctx := context.New()
	setContextParams(ctx, cfg)

	flag.Var(&flagConfigs, "config",
		"Path to a YAML config file. May be repeated; later files override earlier ones.")
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()

	// Config files first, then command-line settings, so the command line has
	// the last word.
	must.M(configs.Load(&cfg, flagConfigs, nil))
	setContextParams(ctx, cfg)
	paramsSet := must.M1(commandline.ParseContextSettings(ctx, *settings))
	if len(paramsSet) > 0 {
		klog.Infof("Parameters overridden from the command line: %v", paramsSet)
	}

	err := exceptions.TryCatch[error](func() { run(ctx, cfg) })
	if err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
}

// setContextParams mirrors the readout section of cfg into the context
// hyperparameters read by graphreadout.FromContext.
func setContextParams(ctx *context.Context, cfg DemoConfig) {
	ctx.SetParams(map[string]any{
		graphreadout.ParamType:         cfg.Readout.Type,
		graphreadout.ParamOutDim:       cfg.Readout.OutDim,
		graphreadout.ParamNumHeads:     cfg.Readout.NumHeads,
		graphreadout.ParamHeadDim:      cfg.Readout.HeadDim,
		graphreadout.ParamNumMLPLayers: cfg.Readout.NumMLPLayers,
	})
}

func run(ctx *context.Context, cfg DemoConfig) {
	backend := backends.MustNew()
	klog.V(1).Infof("Backend: %s", backend.Description())

	rng := rand.New(rand.NewSource(cfg.Seed))
	nodeEmbeddings := make([][]float32, cfg.Batch.NumNodes)
	nodeToGraphID := make([]int32, cfg.Batch.NumNodes)
	for node := range nodeEmbeddings {
		row := make([]float32, cfg.Batch.NodeDim)
		for ii := range row {
			row[ii] = float32(rng.NormFloat64())
		}
		nodeEmbeddings[node] = row
		nodeToGraphID[node] = int32(rng.Intn(cfg.Batch.NumGraphs))
	}

	exec := context.NewExec(backend, ctx, func(ctx *context.Context, nodeEmbeddings, nodeToGraphID *Node) *Node {
		r := graphreadout.FromContext(ctx.In("readout"))
		return r.Apply(nodeEmbeddings, nodeToGraphID, cfg.Batch.NumGraphs)
	})
	output := exec.Call(nodeEmbeddings, nodeToGraphID)[0]

	fmt.Printf("Readout %q over %d nodes in %d graphs:\n",
		context.GetParamOr(ctx, graphreadout.ParamType, graphreadout.TypeMean),
		cfg.Batch.NumNodes, cfg.Batch.NumGraphs)
	values := output.Value().([][]float32)
	for g, vector := range values {
		fmt.Printf("\tgraph %d: %v\n", g, vector)
	}
}
