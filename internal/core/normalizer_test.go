package core

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mediaBoxRe = regexp.MustCompile(`/MediaBox \[0 0 288(\.0+)? 432(\.0+)?\]`)
	pageObjRe  = regexp.MustCompile(`/Type /Page[^s]`)
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 80, A: 200})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestComputeLayout(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want Layout
	}{
		{
			name: "wide image is width limited",
			w:    2000, h: 1000,
			want: Layout{Scale: 0.144, ScaledWidth: 288, ScaledHeight: 144, OffsetX: 0, OffsetY: 144},
		},
		{
			name: "tall image is height limited",
			w:    100, h: 600,
			want: Layout{Scale: 0.72, ScaledWidth: 72, ScaledHeight: 432, OffsetX: 108, OffsetY: 0},
		},
		{
			name: "exact 4x6 fills the page",
			w:    1200, h: 1800,
			want: Layout{Scale: 0.24, ScaledWidth: 288, ScaledHeight: 432},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PageLayout(tt.w, tt.h)
			assert.InDelta(t, tt.want.Scale, got.Scale, 1e-9)
			assert.Equal(t, tt.want.ScaledWidth, got.ScaledWidth)
			assert.Equal(t, tt.want.ScaledHeight, got.ScaledHeight)
			assert.Equal(t, tt.want.OffsetX, got.OffsetX)
			assert.Equal(t, tt.want.OffsetY, got.OffsetY)
		})
	}
}

func TestComputeLayout_TwoByThreeHasNoPadding(t *testing.T) {
	for _, k := range []int{1, 3, 7, 100, 401, 1234} {
		l := PageLayout(2*k, 3*k)
		assert.Zero(t, l.OffsetX, "k=%d", k)
		assert.Zero(t, l.OffsetY, "k=%d", k)
		assert.Equal(t, PageWidthPt, l.ScaledWidth)
		assert.Equal(t, PageHeightPt, l.ScaledHeight)
	}
}

func TestComputeLayout_Degenerate(t *testing.T) {
	assert.Equal(t, Layout{}, PageLayout(0, 10))
	l := PageLayout(10000, 1)
	assert.Equal(t, 1, l.ScaledHeight)
}

func TestNormalizeFormatTag(t *testing.T) {
	cases := map[string]string{
		"image/png":         "png",
		"IMAGE/JPEG":        "jpeg",
		"application/pdf":   "pdf",
		"application/x-zpl": "zpl",
		"ZPL":               "zpl",
		" epl ":             "epl",
		".jpg":              "jpg",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeFormatTag(in), in)
	}
}

func TestNormalize_PassThroughFormats(t *testing.T) {
	n := NewNormalizer(nil)
	for _, tag := range []string{FormatPDF, FormatZPL, FormatEPL, "gif"} {
		in := LabelArtifact{SourceFormat: tag, Data: []byte("^XA^FO50,50^FDhello^FS^XZ"), TrackingCode: "EZ1"}
		out, err := n.Normalize(in)
		require.NoError(t, err, tag)
		assert.Equal(t, in, out, tag)
	}
}

func TestNormalize_PNGProducesSinglePage4x6(t *testing.T) {
	n := NewNormalizer(nil)
	in := LabelArtifact{SourceFormat: "png", Data: encodePNG(t, 400, 300), TrackingCode: "EZ1", ShipmentID: "shp_1"}

	out, err := n.Normalize(in)
	require.NoError(t, err)

	assert.Equal(t, FormatPDF, out.SourceFormat)
	assert.Equal(t, FormatPNG, out.ConvertedFrom)
	assert.Equal(t, "EZ1", out.TrackingCode)
	assert.Equal(t, "shp_1", out.ShipmentID)
	assert.True(t, bytes.HasPrefix(out.Data, []byte("%PDF-")))
	assert.Regexp(t, mediaBoxRe, string(out.Data))
	assert.Len(t, pageObjRe.FindAll(out.Data, -1), 1)
}

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pixelAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func assertNear(t *testing.T, want, got uint8) {
	t.Helper()
	diff := int(want) - int(got)
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, 2, "want %d got %d", want, got)
}

func TestRenderPage_WideImageCenteredWithWhiteBands(t *testing.T) {
	red := color.NRGBA{R: 200, G: 30, B: 30, A: 255}

	page, err := renderPage(solidPNG(t, 2000, 1000, red))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, canvasWidth, canvasHeight), page.Bounds())

	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	for _, y := range []int{0, 300, 599, 1200, 1500, 1799} {
		for _, x := range []int{0, 600, 1199} {
			assert.Equal(t, white, pixelAt(page, x, y), "pixel (%d,%d)", x, y)
		}
	}

	for _, x := range []int{10, 600, 1189} {
		got := pixelAt(page, x, 900)
		assertNear(t, red.R, got.R)
		assertNear(t, red.G, got.G)
		assertNear(t, red.B, got.B)
		assert.EqualValues(t, 255, got.A)
	}
}

func TestRenderPage_TransparencyFlattenedOntoWhite(t *testing.T) {
	halfBlack := color.NRGBA{R: 0, G: 0, B: 0, A: 128}

	page, err := renderPage(solidPNG(t, 10, 10, halfBlack))
	require.NoError(t, err)

	// 10x10 fills the width: 1200x1200 starting at row 300
	got := pixelAt(page, 600, 900)
	assertNear(t, 127, got.R)
	assertNear(t, 127, got.G)
	assertNear(t, 127, got.B)
	assert.EqualValues(t, 255, got.A)

	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, pixelAt(page, 600, 100))
}

func TestNormalize_JPEG(t *testing.T) {
	n := NewNormalizer(nil)
	out, err := n.Normalize(LabelArtifact{SourceFormat: "image/jpeg", Data: encodeJPEG(t, 600, 900)})
	require.NoError(t, err)

	assert.Equal(t, FormatPDF, out.SourceFormat)
	assert.Equal(t, FormatJPEG, out.ConvertedFrom)
	assert.Regexp(t, mediaBoxRe, string(out.Data))
}

func TestNormalize_SecondPassIsNoOp(t *testing.T) {
	n := NewNormalizer(nil)
	first, err := n.Normalize(LabelArtifact{SourceFormat: "png", Data: encodePNG(t, 50, 75)})
	require.NoError(t, err)

	second, err := n.Normalize(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalize_CorruptImageReturnsOriginal(t *testing.T) {
	n := NewNormalizer(nil)
	in := LabelArtifact{SourceFormat: "png", Data: []byte("not a png"), TrackingCode: "EZ9"}

	out, err := n.Normalize(in)
	require.Error(t, err)

	var cerr *ConversionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "png", cerr.Format)
	assert.Equal(t, KindConversion, KindOf(err))
	assert.Equal(t, in, out)
}

func TestNormalize_EmptyImage(t *testing.T) {
	n := NewNormalizer(nil)
	in := LabelArtifact{SourceFormat: "jpg"}
	out, err := n.Normalize(in)
	require.Error(t, err)
	assert.Equal(t, in, out)
}
