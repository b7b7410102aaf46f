package ensemble

import "fmt"

// Weights is the contribution of each engine to the base score.
type Weights struct {
	Spatial  float64 `json:"spatial"`
	Temporal float64 `json:"temporal"`
	Forensic float64 `json:"forensic"`
	Metadata float64 `json:"metadata"`
}

// Named weight sets. They are alternatives; a deployment picks exactly one.
const (
	TemporalFirst = "temporal-first"
	SpatialFirst  = "spatial-first"
)

var weightSets = map[string]Weights{
	TemporalFirst: {Spatial: 0.30, Temporal: 0.35, Forensic: 0.25, Metadata: 0.10},
	SpatialFirst:  {Spatial: 0.35, Temporal: 0.30, Forensic: 0.25, Metadata: 0.10},
}

// WeightSet looks up a named weight set.
func WeightSet(name string) (Weights, error) {
	w, ok := weightSets[name]
	if !ok {
		return Weights{}, fmt.Errorf("unknown weight set %q", name)
	}
	return w, nil
}

// EvidenceConfig holds the rule thresholds of the evidence ranker.
type EvidenceConfig struct {
	SpatialAbove   float64
	SpatialHigh    float64
	TemporalAbove  float64
	TemporalHigh   float64
	ForensicAbove  float64
	ForensicHigh   float64
	MetadataAbove  float64
	ConsensusAbove [4]float64 // spatial, temporal, forensic, metadata
	ConsensusMin   int
	ConsensusFloor float64
	AuthenticBelow float64
	MaxItems       int
	Precision      int
}

// Config is the calibration table for aggregation and evidence ranking.
type Config struct {
	WeightSet string
	Weights   Weights

	// Classification is AI-Generated strictly above Threshold.
	Threshold float64

	SpatialRedFlag  float64
	ForensicRedFlag float64
	RedFlagBoost    float64

	SpatialFrames  int
	ForensicFrames int

	Evidence EvidenceConfig
}

// DefaultConfig returns the canonical temporal-first configuration.
func DefaultConfig() Config {
	return Config{
		WeightSet:       TemporalFirst,
		Weights:         weightSets[TemporalFirst],
		Threshold:       0.5,
		SpatialRedFlag:  0.8,
		ForensicRedFlag: 0.75,
		RedFlagBoost:    0.2,
		SpatialFrames:   10,
		ForensicFrames:  5,
		Evidence: EvidenceConfig{
			SpatialAbove:   0.75,
			SpatialHigh:    0.9,
			TemporalAbove:  0.78,
			TemporalHigh:   0.9,
			ForensicAbove:  0.70,
			ForensicHigh:   0.85,
			MetadataAbove:  0.8,
			ConsensusAbove: [4]float64{0.75, 0.8, 0.8, 0.8},
			ConsensusMin:   2,
			ConsensusFloor: 0.7,
			AuthenticBelow: 0.65,
			MaxItems:       5,
			Precision:      3,
		},
	}
}

// WithWeightSet returns a copy of cfg using the named weight set.
func (c Config) WithWeightSet(name string) (Config, error) {
	w, err := WeightSet(name)
	if err != nil {
		return c, err
	}
	c.WeightSet = name
	c.Weights = w
	return c, nil
}
