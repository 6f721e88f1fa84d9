package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/neuroevo-sim/infercore/graph"
	"github.com/neuroevo-sim/infercore/pool"
)

var runCmd = &cobra.Command{
	Use:   "run <spec-file> <weights-file> <inputs-file>",
	Short: "Build a single-worker pool, run one batch, and print the output buffer",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := loadSpec(args[0])
		if err != nil {
			return err
		}
		compiled, err := graph.Compile(spec)
		if err != nil {
			logrus.WithError(err).Error("compile failed")
			return err
		}

		weights, err := loadFloat32Vector(args[1])
		if err != nil {
			return err
		}
		inputs, err := loadFloat32Vector(args[2])
		if err != nil {
			return err
		}
		inputNode, ok := findInputNode(compiled)
		if !ok {
			return fmt.Errorf("run: compiled graph has no Input node")
		}
		inputStride := inputNode
		outputStride := compiled.OutputSize
		count := len(inputs) / inputStride
		indices := make([]int32, count)

		p := pool.New()
		if err := p.Init(pool.Options{
			Spec: spec, Key: compiled.Key,
			PopulationCount: 1, ParamCount: compiled.TotalParams,
			InputStride: inputStride, OutputStride: outputStride,
			MaxBatch: count, Weights: weights, WorkerCount: 1,
		}); err != nil {
			logrus.WithError(err).Error("pool init failed")
			return err
		}
		defer p.Shutdown()

		outputs := make([]float32, count*outputStride)
		if err := p.RunBatch(inputs, outputs, indices, count, inputStride, outputStride); err != nil {
			logrus.WithError(err).Error("runBatch failed")
			return err
		}

		fmt.Printf("outputs: %v\n", outputs)
		return nil
	},
}

// findInputNode returns the declared width of the compiled graph's sole
// Input node.
func findInputNode(compiled *graph.Compiled) (int, bool) {
	for _, n := range compiled.Nodes {
		if n.Type == graph.NodeInput {
			return n.OutputSize, true
		}
	}
	return 0, false
}
