package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/neuroevo-sim/infercore/graph"
)

var compileCmd = &cobra.Command{
	Use:   "compile <spec-file>",
	Short: "Compile a graph spec and print its key, parameter count, and topological order",
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
		fmt.Printf("graphKey:    %s\n", compiled.Key)
		fmt.Printf("totalParams: %d\n", compiled.TotalParams)
		fmt.Printf("outputSize:  %d\n", compiled.OutputSize)
		fmt.Println("topological order:")
		for _, n := range compiled.Nodes {
			fmt.Printf("  %-16s %-8s paramOffset=%-6d paramLength=%d\n", n.ID, n.Type, n.ParamOffset, n.ParamLength)
		}
		return nil
	},
}
