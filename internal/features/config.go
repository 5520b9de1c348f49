package features

import "github.com/nfnt/resize"

// BrownThresholds selects pixels in the brown range typical of necrotic
// leaf tissue: high red, mid green, low blue. Values are 0-255 channel
// intensities.
type BrownThresholds struct {
	RedMin   float64
	GreenMin float64
	GreenMax float64
	BlueMax  float64
}

// YellowThresholds selects pixels in the chlorotic yellow range: high red,
// high green, low blue.
type YellowThresholds struct {
	RedMin   float64
	GreenMin float64
	BlueMax  float64
}

// Config holds the tunable parameters of the extraction pipeline. Changing
// any of them changes every downstream statistic, so a model must always be
// paired with the Config it was trained under.
type Config struct {
	// ImageSize is the square resolution every image is resized to before
	// any statistic is computed.
	ImageSize int

	// Interp is the resampling filter used for the resize.
	Interp resize.InterpolationFunction

	// Epsilon guards the green-ratio division against all-black images.
	Epsilon float64

	Brown  BrownThresholds
	Yellow YellowThresholds
}

// DefaultConfig returns the parameters the shipped models were trained with.
func DefaultConfig() Config {
	return Config{
		ImageSize: 128,
		Interp:    resize.Bicubic,
		Epsilon:   1e-6,
		Brown: BrownThresholds{
			RedMin:   100,
			GreenMin: 50,
			GreenMax: 150,
			BlueMax:  100,
		},
		Yellow: YellowThresholds{
			RedMin:   150,
			GreenMin: 150,
			BlueMax:  100,
		},
	}
}
