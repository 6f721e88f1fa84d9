package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/neuroevo-sim/infercore/graph"
)

// loadSpec reads a graph.Spec from path, using YAML for .yaml/.yml
// extensions and JSON (the wire-format default) for everything else.
func loadSpec(path string) (graph.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return graph.Spec{}, fmt.Errorf("read spec file: %w", err)
	}

	var spec graph.Spec
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return graph.Spec{}, fmt.Errorf("parse yaml spec: %w", err)
		}
		return spec, nil
	}
	if err := json.Unmarshal(data, &spec); err != nil {
		return graph.Spec{}, fmt.Errorf("parse json spec: %w", err)
	}
	return spec, nil
}

// loadFloat32Vector reads a JSON array of numbers from path into a
// []float32 (weights or input vectors).
func loadFloat32Vector(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vector file: %w", err)
	}
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse vector file: %w", err)
	}
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}
