package predictor

import (
	"fmt"

	"github.com/craneiq/cranesight/internal/models"
)

// Warning thresholds, evaluated high to low. Boundary values fall into the
// lower bracket.
const (
	criticalThreshold = 0.7
	warningThreshold  = 0.5
	cautionThreshold  = 0.3
)

// Predictor wraps the frozen model and scaler. When either artifact failed
// to load at startup the predictor stays usable and reports "unknown"
// instead of attempting inference.
type Predictor struct {
	scaler *ScalerParams
	net    *Network
}

// Load reads the model and scaler artifacts and cross-checks their shapes.
func Load(modelPath, scalerPath string) (*Predictor, error) {
	scaler, err := LoadScaler(scalerPath)
	if err != nil {
		return nil, err
	}

	net, err := LoadNetwork(modelPath)
	if err != nil {
		return nil, err
	}

	if net.InputSize() != scaler.FeatureCount() {
		return nil, fmt.Errorf("model expects %d inputs but scaler has %d features",
			net.InputSize(), scaler.FeatureCount())
	}

	for _, name := range scaler.FeatureNames {
		if _, known := models.FieldNumbers[name]; !known && name != "operational_hours" {
			return nil, fmt.Errorf("scaler references unknown feature %q", name)
		}
	}

	return &Predictor{scaler: scaler, net: net}, nil
}

// Unloaded returns a predictor in the degraded not-loaded state. Every
// assessment reports warning level "unknown".
func Unloaded() *Predictor { return &Predictor{} }

// Loaded reports whether both artifacts are available for inference.
func (p *Predictor) Loaded() bool { return p.net != nil && p.scaler != nil }

// Features builds the named feature set for a reading. Tilt angle is
// measured but was not part of the training features; operational hours is
// a configured constant until real usage tracking exists.
func Features(r models.SensorReading, operationalHours float64) map[string]float64 {
	return map[string]float64{
		"force":             r.Force,
		"torque":            r.Torque,
		"altitude":          r.Altitude,
		"wind_speed":        r.WindSpeed,
		"humidity":          r.Humidity,
		"temperature":       r.Temperature,
		"vibrations":        r.Vibrations,
		"operational_hours": operationalHours,
	}
}

// Assess normalizes the features, runs inference and classifies the result.
// It never returns an error: model problems degrade to warning level
// "unknown" (artifacts not loaded) or "error" (runtime inference failure).
func (p *Predictor) Assess(features map[string]float64) models.Prediction {
	if !p.Loaded() {
		return models.Prediction{
			Probability:  0.0,
			WarningLevel: models.WarningUnknown,
			Message:      "Model not loaded",
		}
	}

	// Order the vector the way the model was trained, not wire order.
	vec := make([]float64, 0, p.scaler.FeatureCount())
	for _, name := range p.scaler.FeatureNames {
		vec = append(vec, features[name])
	}

	prob, err := p.net.Predict(p.scaler.Normalize(vec))
	if err != nil {
		return models.Prediction{
			Probability:  0.0,
			WarningLevel: models.WarningError,
			Message:      fmt.Sprintf("Error making prediction: %v", err),
		}
	}

	level, message := Classify(prob)
	return models.Prediction{
		Probability:  prob,
		WarningLevel: level,
		Message:      message,
	}
}

// Classify maps a failure probability onto a warning level and its fixed
// operator-facing message. Total and deterministic for any probability.
func Classify(prob float64) (models.WarningLevel, string) {
	switch {
	case prob > criticalThreshold:
		return models.WarningCritical, "Critical failure risk detected! Immediate inspection required."
	case prob > warningThreshold:
		return models.WarningWarning, "Elevated failure risk. Schedule maintenance soon."
	case prob > cautionThreshold:
		return models.WarningCaution, "Slight increase in failure probability. Monitor closely."
	default:
		return models.WarningNormal, "All systems normal"
	}
}
