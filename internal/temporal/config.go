package temporal

// Config is the calibration table for the temporal engine.
type Config struct {
	Motion  MotionConfig
	LipSync LipSyncConfig
	Blink   BlinkConfig
	Flow    FlowOptions
}

type MotionConfig struct {
	MinFrames     int
	ActivityFloor float64
	StaticScale   float64
	VarianceScale float64
	FlagAbove     float64
}

type LipSyncConfig struct {
	MaxFrames     int
	MouthSize     int
	MinDetections int
	DeviationK    float64
	FlagAbove     float64
}

type BlinkConfig struct {
	MaxFrames      int
	MinFrames      int
	EyesRequired   int
	BaselineFrames float64
	BaselineBlinks float64
	LowRatio       float64
	LowCap         float64
	HighRatio      float64
	HighSpan       float64
	HighCap        float64
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		Motion: MotionConfig{
			MinFrames:     2,
			ActivityFloor: 0.8,
			StaticScale:   0.05,
			VarianceScale: 25,
			FlagAbove:     0.75,
		},
		LipSync: LipSyncConfig{
			MaxFrames:     30,
			MouthSize:     64,
			MinDetections: 5,
			DeviationK:    2,
			FlagAbove:     0.3,
		},
		Blink: BlinkConfig{
			MaxFrames:      60,
			MinFrames:      10,
			EyesRequired:   2,
			BaselineFrames: 30,
			BaselineBlinks: 2,
			LowRatio:       0.2,
			LowCap:         0.8,
			HighRatio:      4,
			HighSpan:       5,
			HighCap:        0.7,
		},
		Flow: DefaultFlowOptions(),
	}
}
