package cmd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/neuroevo-sim/infercore/graph"
	"github.com/neuroevo-sim/infercore/pool"
)

var (
	benchIterations int
	benchPopulation int
)

var benchCmd = &cobra.Command{
	Use:   "bench <spec-file>",
	Short: "Run repeated batches against a zero-filled weight slab and print throughput",
	Args:  cobra.ExactArgs(1),
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

		inputStride, ok := findInputNode(compiled)
		if !ok {
			return fmt.Errorf("bench: compiled graph has no Input node")
		}
		outputStride := compiled.OutputSize

		weights := make([]float32, benchPopulation*compiled.TotalParams)
		indices := make([]int32, benchPopulation)
		for i := range indices {
			indices[i] = int32(i)
		}
		inputs := make([]float32, benchPopulation*inputStride)
		outputs := make([]float32, benchPopulation*outputStride)

		p := pool.New()
		if err := p.Init(pool.Options{
			Spec: spec, Key: compiled.Key,
			PopulationCount: benchPopulation, ParamCount: compiled.TotalParams,
			InputStride: inputStride, OutputStride: outputStride,
			MaxBatch: benchPopulation, Weights: weights,
		}); err != nil {
			logrus.WithError(err).Error("pool init failed")
			return err
		}
		defer p.Shutdown()

		start := time.Now()
		for i := 0; i < benchIterations; i++ {
			if err := p.RunBatch(inputs, outputs, indices, benchPopulation, inputStride, outputStride); err != nil {
				logrus.WithError(err).Error("runBatch failed")
				return err
			}
		}
		elapsed := time.Since(start)

		total := benchIterations * benchPopulation
		fmt.Printf("batches:       %d\n", benchIterations)
		fmt.Printf("population:    %d\n", benchPopulation)
		fmt.Printf("elapsed:       %s\n", elapsed)
		fmt.Printf("brains/sec:    %.1f\n", float64(total)/elapsed.Seconds())
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 100, "Number of batches to run")
	benchCmd.Flags().IntVar(&benchPopulation, "population", 64, "Population size (brains per batch)")
}
