package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Network is a frozen feed-forward network exported to JSON at training
// time. Inference runs in-process; the artifact is read-only.
type Network struct {
	Layers []Layer `json:"layers"`
}

// Layer is one dense layer. Weights is indexed [input][output].
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Biases     []float64   `json:"biases"`
	Activation string      `json:"activation"`
}

// LoadNetwork reads and validates a model artifact.
func LoadNetwork(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	var n Network
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if len(n.Layers) == 0 {
		return nil, fmt.Errorf("model %s: no layers", path)
	}

	for i, l := range n.Layers {
		if len(l.Weights) == 0 {
			return nil, fmt.Errorf("model %s: layer %d has no weights", path, i)
		}
		width := len(l.Weights[0])
		for _, row := range l.Weights {
			if len(row) != width {
				return nil, fmt.Errorf("model %s: layer %d has ragged weights", path, i)
			}
		}
		if len(l.Biases) != width {
			return nil, fmt.Errorf("model %s: layer %d has %d outputs but %d biases",
				path, i, width, len(l.Biases))
		}
		switch l.Activation {
		case "relu", "sigmoid", "linear":
		default:
			return nil, fmt.Errorf("model %s: layer %d has unknown activation %q", path, i, l.Activation)
		}
	}

	return &n, nil
}

// InputSize returns the expected input vector length.
func (n *Network) InputSize() int { return len(n.Layers[0].Weights) }

// Predict runs a forward pass and returns the failure probability, clamped
// to [0,1].
func (n *Network) Predict(vec []float64) (float64, error) {
	if len(vec) != n.InputSize() {
		return 0, fmt.Errorf("model expects %d inputs, got %d", n.InputSize(), len(vec))
	}

	cur := vec
	for _, l := range n.Layers {
		if len(cur) != len(l.Weights) {
			return 0, fmt.Errorf("layer expects %d inputs, got %d", len(l.Weights), len(cur))
		}
		next := make([]float64, len(l.Biases))
		copy(next, l.Biases)
		for i, v := range cur {
			for j, w := range l.Weights[i] {
				next[j] += v * w
			}
		}
		for j := range next {
			next[j] = activate(l.Activation, next[j])
		}
		cur = next
	}

	if len(cur) != 1 {
		return 0, fmt.Errorf("model produced %d outputs, want 1", len(cur))
	}
	return math.Min(1, math.Max(0, cur[0])), nil
}

func activate(name string, x float64) float64 {
	switch name {
	case "relu":
		return math.Max(0, x)
	case "sigmoid":
		return 1 / (1 + math.Exp(-x))
	default:
		return x
	}
}
