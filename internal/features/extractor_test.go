package features

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformImage(c color.RGBA, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func gradientImage(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 2), uint8(y * 2), uint8(x + y), 255})
		}
	}
	return img
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestVectorLength(t *testing.T) {
	e := New(DefaultConfig())
	vec := e.ExtractImage(gradientImage(128))
	require.Len(t, vec, Len)
}

func TestSegmentOffsets(t *testing.T) {
	// The layout constants are the schema; they must tile the vector
	// exactly.
	assert.Equal(t, 192, SegRGBStats)
	assert.Equal(t, 207, SegHSVStats)
	assert.Equal(t, 213, SegEdge)
	assert.Equal(t, 215, SegRatios)
	assert.Equal(t, 218, SegSpatial)
	assert.Equal(t, 219, Len)
}

func TestExtractDeterministic(t *testing.T) {
	path := writePNG(t, gradientImage(200))
	e := New(DefaultConfig())

	first, err := e.Extract(path)
	require.NoError(t, err)
	second, err := e.Extract(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtractMatchesExtractImage(t *testing.T) {
	// Training extracts from paths, prediction may hold a decoded image;
	// both routes must agree.
	img := gradientImage(200)
	path := writePNG(t, img)
	e := New(DefaultConfig())

	fromPath, err := e.Extract(path)
	require.NoError(t, err)
	fromImage := e.ExtractImage(img)

	assert.Equal(t, fromPath, fromImage)
}

func TestHistogramsNormalized(t *testing.T) {
	e := New(DefaultConfig())
	vec := e.ExtractImage(gradientImage(128))

	for ch := 0; ch < 3; ch++ {
		sum := 0.0
		for _, v := range vec[SegHistogram+ch*HistBins : SegHistogram+(ch+1)*HistBins] {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "channel %d histogram must sum to 1", ch)
	}
}

func TestAllGreenImage(t *testing.T) {
	e := New(DefaultConfig())
	vec := e.ExtractImage(uniformImage(color.RGBA{0, 255, 0, 255}, 128))

	greenRatio := vec[SegRatios]
	brownRatio := vec[SegRatios+1]
	yellowRatio := vec[SegRatios+2]

	assert.Greater(t, greenRatio, 1.0)
	assert.InDelta(t, 0.0, brownRatio, 1e-9)
	assert.InDelta(t, 0.0, yellowRatio, 1e-9)
}

func TestUniformImageHasNoTextureOrSpread(t *testing.T) {
	e := New(DefaultConfig())
	vec := e.ExtractImage(uniformImage(color.RGBA{90, 120, 40, 255}, 128))

	assert.InDelta(t, 0.0, vec[SegEdge], 1e-9, "edge mean")
	assert.InDelta(t, 0.0, vec[SegEdge+1], 1e-9, "edge std")
	assert.InDelta(t, 0.0, vec[SegSpatial], 1e-9, "spatial variance")
}

func TestUniformImageStatistics(t *testing.T) {
	e := New(DefaultConfig())
	vec := e.ExtractImage(uniformImage(color.RGBA{100, 100, 100, 255}, 128))

	stats := vec[SegRGBStats : SegRGBStats+15]
	// mean, median, min, max are all the constant value; std is zero.
	for _, i := range []int{0, 1, 2, 6, 7, 8, 9, 10, 11, 12, 13, 14} {
		assert.InDelta(t, 100.0, stats[i], 1e-9, "stat %d", i)
	}
	for _, i := range []int{3, 4, 5} {
		assert.InDelta(t, 0.0, stats[i], 1e-9, "std %d", i)
	}
}

func TestColorRatioBounds(t *testing.T) {
	e := New(DefaultConfig())
	for _, img := range []image.Image{
		gradientImage(128),
		uniformImage(color.RGBA{139, 69, 19, 255}, 128),  // saddle brown
		uniformImage(color.RGBA{230, 200, 20, 255}, 128), // yellow
	} {
		vec := e.ExtractImage(img)
		brown, yellow := vec[SegRatios+1], vec[SegRatios+2]
		assert.GreaterOrEqual(t, brown, 0.0)
		assert.LessOrEqual(t, brown, 1.0)
		assert.GreaterOrEqual(t, yellow, 0.0)
		assert.LessOrEqual(t, yellow, 1.0)
	}
}

func TestDiseaseColorDetection(t *testing.T) {
	e := New(DefaultConfig())

	brownVec := e.ExtractImage(uniformImage(color.RGBA{139, 69, 19, 255}, 128))
	assert.InDelta(t, 1.0, brownVec[SegRatios+1], 1e-9, "brown pixels should all match")

	yellowVec := e.ExtractImage(uniformImage(color.RGBA{230, 200, 20, 255}, 128))
	assert.InDelta(t, 1.0, yellowVec[SegRatios+2], 1e-9, "yellow pixels should all match")
}

func TestExtractCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

	_, err := New(DefaultConfig()).Extract(path)
	require.Error(t, err)
}

func TestExtractMissingFile(t *testing.T) {
	_, err := New(DefaultConfig()).Extract(filepath.Join(t.TempDir(), "nope.png"))
	require.Error(t, err)
}

func TestResizeInvariance(t *testing.T) {
	// A uniform image must produce the same vector at any input size.
	e := New(DefaultConfig())
	small := e.ExtractImage(uniformImage(color.RGBA{50, 180, 70, 255}, 64))
	large := e.ExtractImage(uniformImage(color.RGBA{50, 180, 70, 255}, 400))

	for i := range small {
		assert.InDelta(t, small[i], large[i], 1e-6, "feature %d", i)
	}
}
