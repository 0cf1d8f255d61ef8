package predictor

import (
	"encoding/json"
	"fmt"
	"os"
)

// ScalerParams holds the frozen min-max scaling parameters exported at
// training time alongside the model. The field names mirror the training
// pipeline's artifact layout.
type ScalerParams struct {
	Min          []float64 `json:"min_"`
	Scale        []float64 `json:"scale_"`
	DataMin      []float64 `json:"data_min_"`
	DataMax      []float64 `json:"data_max_"`
	DataRange    []float64 `json:"data_range_"`
	FeatureNames []string  `json:"feature_names"`
}

// LoadScaler reads and validates scaler parameters. A malformed artifact is
// a configuration error caught once at startup, never per call.
func LoadScaler(path string) (*ScalerParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}

	var p ScalerParams
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse scaler: %w", err)
	}

	n := len(p.FeatureNames)
	if n == 0 {
		return nil, fmt.Errorf("scaler %s: no feature names", path)
	}
	if len(p.Min) != n || len(p.Scale) != n {
		return nil, fmt.Errorf("scaler %s: %d features but %d min / %d scale values",
			path, n, len(p.Min), len(p.Scale))
	}

	return &p, nil
}

// FeatureCount returns the trained feature vector length.
func (p *ScalerParams) FeatureCount() int { return len(p.FeatureNames) }

// Normalize applies the frozen transform x' = x*scale + min per element.
// The input length is validated against the artifact at startup, so vec is
// assumed to match FeatureCount.
func (p *ScalerParams) Normalize(vec []float64) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v*p.Scale[i] + p.Min[i]
	}
	return out
}
