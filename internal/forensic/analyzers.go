package forensic

import (
	"fmt"
	"math"

	"github.com/kdimtricp/verifai/internal/frame"
	"github.com/kdimtricp/verifai/internal/score"
)

// Artifact names a forensic sub-signal.
type Artifact string

const (
	Frequency   Artifact = "frequency"
	GAN         Artifact = "gan"
	Diffusion   Artifact = "diffusion"
	Compression Artifact = "compression"
)

// Analyzer scores a single frame for one artifact family. Implementations
// never fail: unusable input yields a zero-confidence result.
type Analyzer interface {
	Artifact() Artifact
	Analyze(f *frame.Frame) score.Result
}

// FrequencyAnalyzer compares high-frequency spectral energy against a
// threshold that rises with image contrast.
type FrequencyAnalyzer struct {
	cfg Config
}

func NewFrequencyAnalyzer(cfg Config) *FrequencyAnalyzer {
	return &FrequencyAnalyzer{cfg: cfg}
}

func (a *FrequencyAnalyzer) Artifact() Artifact { return Frequency }

func (a *FrequencyAnalyzer) Analyze(f *frame.Frame) score.Result {
	gray, err := f.Luma()
	if err != nil {
		return score.Insufficient("Grayscale conversion failed")
	}

	mag := frame.FFTShift(frame.FFTMagnitude(gray))
	h, w := mag.Height, mag.Width
	crow, ccol := h/2, w/2
	r := a.cfg.LowFreqRadius
	y0, y1 := max(crow-r, 0), min(crow+r, h)
	x0, x1 := max(ccol-r, 0), min(ccol+r, w)

	var total, high float64
	for y := 0; y < h; y++ {
		inRows := y >= y0 && y < y1
		for x := 0; x < w; x++ {
			v := mag.Data[y*w+x]
			total += v
			if !inRows || x < x0 || x >= x1 {
				high += v
			}
		}
	}
	if total <= 0 {
		return score.New(0, false, "Flat spectrum")
	}

	ratio := high / total
	threshold := a.cfg.ThresholdBase + a.cfg.ThresholdStdGain*frame.StdDev(gray.Data)
	conf := frame.Clamp01((ratio - threshold) * a.cfg.FrequencyGain)
	return score.New(conf, false, fmt.Sprintf("High-freq ratio: %.2f, Threshold: %.2f", ratio, threshold))
}

// BlockAnalyzer looks for GAN block structure in the DCT plane and for
// uniform color banding across channels.
type BlockAnalyzer struct {
	cfg Config
}

func NewBlockAnalyzer(cfg Config) *BlockAnalyzer {
	return &BlockAnalyzer{cfg: cfg}
}

func (a *BlockAnalyzer) Artifact() Artifact { return GAN }

func (a *BlockAnalyzer) Analyze(f *frame.Frame) score.Result {
	gray, err := f.Luma()
	if err != nil {
		return score.Insufficient("Grayscale conversion failed")
	}

	largest := 0
	for _, bs := range a.cfg.BlockSizes {
		largest = max(largest, bs)
	}
	span := a.cfg.BlockRegion + largest
	dct := frame.DCT(gray, span, span)

	var strengths []float64
	for _, bs := range a.cfg.BlockSizes {
		if bs < 2 {
			continue
		}
		for y := 0; y < min(gray.Height-bs, a.cfg.BlockRegion); y += bs {
			for x := 0; x < min(gray.Width-bs, a.cfg.BlockRegion); x += bs {
				strengths = append(strengths, a.blockStrength(dct, x, y, bs))
			}
		}
	}
	if len(strengths) == 0 {
		return score.Insufficient("No blocks analyzed")
	}
	blockScore := math.Min(frame.Mean(strengths)/a.cfg.BlockScale, 1)

	variances := make([]float64, 0, 3)
	for c := frame.Red; c <= frame.Blue; c++ {
		ch, err := f.Channel(c)
		if err != nil {
			return score.Insufficient("Channel conversion failed")
		}
		variances = append(variances, frame.Variance(ch.Data))
	}
	banding := 1 - math.Min(frame.StdDev(variances)*a.cfg.BandingGain, 1)
	globalVar := frame.Mean(variances)
	if globalVar < a.cfg.FlatVariance {
		banding *= 0.5
	}

	gan := frame.Clamp01(a.cfg.BlockWeight*blockScore + a.cfg.BandingWeight*banding)
	res := score.New(gan, gan > a.cfg.GANFlagAbove,
		fmt.Sprintf("Block: %.2f, Banding: %.2f, Var: %.4f", blockScore, banding, globalVar))
	res.Breakdown = map[string]float64{"block": frame.Clamp01(blockScore), "banding": frame.Clamp01(banding)}
	return res
}

// blockStrength is AC power over DC power of one block of |DCT|.
func (a *BlockAnalyzer) blockStrength(dct frame.Plane, x0, y0, bs int) float64 {
	dc := math.Abs(dct.At(x0, y0))
	var ac float64
	for y := y0 + 1; y < y0+bs && y < dct.Height; y++ {
		for x := x0 + 1; x < x0+bs && x < dct.Width; x++ {
			v := dct.At(x, y)
			ac += v * v
		}
	}
	return ac / (dc*dc + a.cfg.BlockEpsilon)
}

// DiffusionAnalyzer measures low-frequency dominance per channel and
// spectral misalignment between channels.
type DiffusionAnalyzer struct {
	cfg Config
}

func NewDiffusionAnalyzer(cfg Config) *DiffusionAnalyzer {
	return &DiffusionAnalyzer{cfg: cfg}
}

func (a *DiffusionAnalyzer) Artifact() Artifact { return Diffusion }

// diffusionChannels lists channels in decode (BGR) order; the first one is
// the correlation reference.
var diffusionChannels = [3]int{frame.Blue, frame.Green, frame.Red}

func (a *DiffusionAnalyzer) Analyze(f *frame.Frame) score.Result {
	if !f.Valid() {
		return score.Insufficient("Channel conversion failed")
	}

	var mags [3]frame.Plane
	var dominance []float64
	for i, c := range diffusionChannels {
		ch, err := f.Channel(c)
		if err != nil {
			return score.Insufficient("Channel conversion failed")
		}
		mag := frame.FFTMagnitude(ch)
		mags[i] = mag

		qh, qw := mag.Height/4, mag.Width/4
		total := frame.Mean(mag.Data)
		if qh == 0 || qw == 0 || total <= 0 {
			continue
		}
		var low float64
		for y := 0; y < qh; y++ {
			for x := 0; x < qw; x++ {
				low += mag.Data[y*mag.Width+x]
			}
		}
		dominance = append(dominance, (low/float64(qh*qw))/total)
	}
	lowFreq := frame.Mean(dominance)

	corr := func(b frame.Plane) float64 {
		r, ok := frame.Pearson(mags[0].Data, b.Data)
		if !ok {
			return 1
		}
		return math.Abs(r)
	}
	avgCorr := (corr(mags[1]) + corr(mags[2])) / 2
	misalignment := 1 - math.Min(avgCorr, 1)

	conf := frame.Clamp01(a.cfg.LowFreqWeight*lowFreq + a.cfg.MisalignmentWeight*misalignment)
	res := score.New(conf, conf > a.cfg.DiffusionFlagAbove,
		fmt.Sprintf("Low-freq dominance: %.2f, Channel misalignment: %.2f", lowFreq, misalignment))
	res.Breakdown = map[string]float64{"low_freq_dominance": frame.Sanitize(lowFreq), "misalignment": misalignment}
	return res
}

// CompressionAnalyzer flags flattened chroma: low chroma variance and few
// distinct chroma levels.
type CompressionAnalyzer struct {
	cfg Config
}

func NewCompressionAnalyzer(cfg Config) *CompressionAnalyzer {
	return &CompressionAnalyzer{cfg: cfg}
}

func (a *CompressionAnalyzer) Artifact() Artifact { return Compression }

func (a *CompressionAnalyzer) Analyze(f *frame.Frame) score.Result {
	_, cr, cb, err := f.YCrCb()
	if err != nil {
		return score.Insufficient("Color space conversion failed")
	}

	colorVariance := (frame.ByteVariance(cb) + frame.ByteVariance(cr)) / 2
	levels := float64(max(a.cfg.ChromaLevels, 1))
	posterization := 1 - float64(frame.Distinct(cb)+frame.Distinct(cr))/(2*levels)
	varianceScore := 1 - math.Min(colorVariance/a.cfg.ChromaVarianceScale, 1)

	conf := frame.Clamp01(0.5*varianceScore + 0.5*posterization)
	return score.New(conf, conf > a.cfg.CompressionFlagAbove,
		fmt.Sprintf("Color variance: %.2f, Posterization: %.2f", colorVariance, posterization))
}
