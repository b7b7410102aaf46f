package forensic

// Weights sets the contribution of each artifact analyzer to the combined
// forensic score.
type Weights struct {
	Frequency   float64
	GAN         float64
	Diffusion   float64
	Compression float64
}

// For returns the weight of an artifact.
func (w Weights) For(a Artifact) float64 {
	switch a {
	case Frequency:
		return w.Frequency
	case GAN:
		return w.GAN
	case Diffusion:
		return w.Diffusion
	case Compression:
		return w.Compression
	}
	return 0
}

// Config is the calibration table for the forensic engine.
type Config struct {
	// Frequency analyzer.
	LowFreqRadius    int
	ThresholdBase    float64
	ThresholdStdGain float64
	FrequencyGain    float64

	// Block (GAN) analyzer.
	BlockSizes    []int
	BlockRegion   int
	BlockEpsilon  float64
	BlockScale    float64
	BandingGain   float64
	FlatVariance  float64
	BlockWeight   float64
	BandingWeight float64
	GANFlagAbove  float64

	// Diffusion analyzer.
	LowFreqWeight      float64
	MisalignmentWeight float64
	DiffusionFlagAbove float64

	// Compression analyzer.
	ChromaVarianceScale  float64
	ChromaLevels         int
	CompressionFlagAbove float64

	// Combine.
	Weights         Weights
	PenaltyMaxBelow float64
	PenaltyStdAbove float64
	PenaltyFactor   float64
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		LowFreqRadius:    30,
		ThresholdBase:    0.72,
		ThresholdStdGain: 0.08,
		FrequencyGain:    2.5,

		BlockSizes:    []int{8, 16, 32},
		BlockRegion:   200,
		BlockEpsilon:  1e-5,
		BlockScale:    100,
		BandingGain:   10,
		FlatVariance:  0.005,
		BlockWeight:   0.6,
		BandingWeight: 0.4,
		GANFlagAbove:  0.5,

		LowFreqWeight:      0.6,
		MisalignmentWeight: 0.4,
		DiffusionFlagAbove: 0.6,

		ChromaVarianceScale:  100,
		ChromaLevels:         256,
		CompressionFlagAbove: 0.6,

		Weights: Weights{
			Frequency:   0.35,
			GAN:         0.35,
			Diffusion:   0.20,
			Compression: 0.10,
		},
		PenaltyMaxBelow: 0.6,
		PenaltyStdAbove: 0.15,
		PenaltyFactor:   0.5,
	}
}
