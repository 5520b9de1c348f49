// Package features turns a leaf image into a fixed-length numeric vector of
// hand-engineered visual descriptors: per-channel color histograms, RGB and
// HSV statistics, a Laplacian texture estimate, plant-pathology color ratios
// and a quadrant-variance locality proxy. Extraction is fully deterministic;
// the same image and Config always produce the same vector, which is what
// keeps training-time and prediction-time features interchangeable.
package features

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sort"

	"github.com/nfnt/resize"
	"gonum.org/v1/gonum/stat"
)

// Vector is one extracted feature vector of length Len.
type Vector []float64

// HistBins is the number of bins in each per-channel color histogram.
const HistBins = 64

// Segment offsets into a Vector. The layout is frozen: histograms for the
// three RGB channels, then five RGB statistics (mean, std, median, min, max,
// each as an R/G/B triple), then HSV mean and std triples, then the two edge
// scalars, the three color ratios and the quadrant spatial variance.
const (
	SegHistogram = 0
	SegRGBStats  = SegHistogram + 3*HistBins
	SegHSVStats  = SegRGBStats + 15
	SegEdge      = SegHSVStats + 6
	SegRatios    = SegEdge + 2
	SegSpatial   = SegRatios + 3
	Len          = SegSpatial + 1
)

// Extractor computes feature vectors under a fixed Config.
type Extractor struct {
	cfg Config
}

// New returns an Extractor for cfg.
func New(cfg Config) *Extractor {
	return &Extractor{cfg: cfg}
}

// Config returns the configuration the extractor was built with.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Extract decodes the image at path and returns its feature vector. An open
// or decode error is returned as-is; it marks the sample as unusable, not
// the batch as failed.
func (e *Extractor) Extract(path string) (Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %q: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %q: %w", path, err)
	}

	return e.ExtractImage(img), nil
}

// ExtractImage computes the feature vector for an already decoded image.
func (e *Extractor) ExtractImage(img image.Image) Vector {
	size := e.cfg.ImageSize
	resized := resize.Resize(uint(size), uint(size), img, e.cfg.Interp)

	n := size * size
	r := make([]float64, n)
	g := make([]float64, n)
	b := make([]float64, n)

	bounds := resized.Bounds()
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pr, pg, pb, _ := resized.At(x, y).RGBA()
			r[i] = float64(pr >> 8)
			g[i] = float64(pg >> 8)
			b[i] = float64(pb >> 8)
			i++
		}
	}

	vec := make(Vector, 0, Len)

	// 1. Normalized per-channel histograms. Dividing by the pixel count
	// keeps vectors comparable across image resolutions.
	vec = append(vec, histogram(r)...)
	vec = append(vec, histogram(g)...)
	vec = append(vec, histogram(b)...)

	// 2. Per-channel scalar statistics on the raw 0-255 values.
	rs, gs, bs := summarize(r), summarize(g), summarize(b)
	vec = append(vec, rs.mean, gs.mean, bs.mean)
	vec = append(vec, rs.std, gs.std, bs.std)
	vec = append(vec, rs.median, gs.median, bs.median)
	vec = append(vec, rs.min, gs.min, bs.min)
	vec = append(vec, rs.max, gs.max, bs.max)

	// 3. HSV mean and std. Disease discoloration is often a hue shift that
	// a raw intensity histogram misses.
	h, s, v := toHSV(r, g, b)
	vec = append(vec, stat.Mean(h, nil), stat.Mean(s, nil), stat.Mean(v, nil))
	vec = append(vec, stat.PopStdDev(h, nil), stat.PopStdDev(s, nil), stat.PopStdDev(v, nil))

	// 4. Laplacian texture estimate on the channel-mean grayscale.
	gray := make([]float64, n)
	for i := range gray {
		gray[i] = (r[i] + g[i] + b[i]) / 3
	}
	edges := laplacian(gray, size, size)
	absEdges := make([]float64, n)
	for i, v := range edges {
		absEdges[i] = math.Abs(v)
	}
	vec = append(vec, stat.Mean(absEdges, nil), stat.PopStdDev(edges, nil))

	// 5. Pathology color ratios.
	meanAll := (rs.mean + gs.mean + bs.mean) / 3
	greenRatio := gs.mean / (meanAll + e.cfg.Epsilon)

	brown, yellow := 0, 0
	for i := 0; i < n; i++ {
		if r[i] > e.cfg.Brown.RedMin && g[i] > e.cfg.Brown.GreenMin &&
			g[i] < e.cfg.Brown.GreenMax && b[i] < e.cfg.Brown.BlueMax {
			brown++
		}
		if r[i] > e.cfg.Yellow.RedMin && g[i] > e.cfg.Yellow.GreenMin && b[i] < e.cfg.Yellow.BlueMax {
			yellow++
		}
	}
	vec = append(vec, greenRatio, float64(brown)/float64(n), float64(yellow)/float64(n))

	// 6. Spread of the four quadrant mean intensities. Low values mean the
	// discoloration (if any) is uniform; high values mean it is localized.
	vec = append(vec, quadrantSpread(gray, size, size))

	return vec
}

type channelStats struct {
	mean, std, median, min, max float64
}

func summarize(vals []float64) channelStats {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	n := len(sorted)
	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return channelStats{
		mean:   stat.Mean(vals, nil),
		std:    stat.PopStdDev(vals, nil),
		median: median,
		min:    sorted[0],
		max:    sorted[n-1],
	}
}

// histogram bins 0-255 values into HistBins equal-width buckets and
// normalizes by the sample count, so the bins of one channel sum to 1.
func histogram(vals []float64) []float64 {
	hist := make([]float64, HistBins)
	for _, v := range vals {
		bin := int(v) * HistBins / 256
		if bin >= HistBins {
			bin = HistBins - 1
		}
		hist[bin]++
	}
	total := float64(len(vals))
	for i := range hist {
		hist[i] /= total
	}
	return hist
}

// toHSV converts parallel 0-255 RGB channels to HSV with every component
// scaled to 0-255, hue covering the full circle.
func toHSV(r, g, b []float64) (h, s, v []float64) {
	n := len(r)
	h = make([]float64, n)
	s = make([]float64, n)
	v = make([]float64, n)

	for i := 0; i < n; i++ {
		maxC := math.Max(r[i], math.Max(g[i], b[i]))
		minC := math.Min(r[i], math.Min(g[i], b[i]))
		delta := maxC - minC

		v[i] = maxC
		if maxC > 0 {
			s[i] = delta / maxC * 255
		}
		if delta == 0 {
			continue
		}

		var hue float64
		switch maxC {
		case r[i]:
			hue = math.Mod((g[i]-b[i])/delta, 6)
		case g[i]:
			hue = (b[i]-r[i])/delta + 2
		default:
			hue = (r[i]-g[i])/delta + 4
		}
		hue *= 60
		if hue < 0 {
			hue += 360
		}
		h[i] = hue / 360 * 255
	}
	return h, s, v
}

// laplacian applies the 4-neighbor kernel (center -4, orthogonal neighbors
// +1) with edge-replicated boundaries. The boundary policy is part of the
// feature contract; a uniform image must come out all zeros.
func laplacian(gray []float64, w, h int) []float64 {
	out := make([]float64, len(gray))
	at := func(x, y int) float64 {
		if x < 0 {
			x = 0
		} else if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		} else if y >= h {
			y = h - 1
		}
		return gray[y*w+x]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = at(x, y-1) + at(x, y+1) + at(x-1, y) + at(x+1, y) - 4*at(x, y)
		}
	}
	return out
}

// quadrantSpread splits the grayscale image into four equal quadrants and
// returns the population standard deviation of their mean intensities.
func quadrantSpread(gray []float64, w, h int) float64 {
	halfW, halfH := w/2, h/2
	quads := [4][4]int{
		{0, halfW, 0, halfH},
		{halfW, w, 0, halfH},
		{0, halfW, halfH, h},
		{halfW, w, halfH, h},
	}

	means := make([]float64, 4)
	for q, bounds := range quads {
		sum, count := 0.0, 0
		for y := bounds[2]; y < bounds[3]; y++ {
			for x := bounds[0]; x < bounds[1]; x++ {
				sum += gray[y*w+x]
				count++
			}
		}
		means[q] = sum / float64(count)
	}
	return stat.PopStdDev(means, nil)
}
