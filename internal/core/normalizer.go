package core

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
)

// Page geometry for a 4x6 inch label.
const (
	PageWidthPt  = 288
	PageHeightPt = 432
	RenderDPI    = 300

	pointsPerInch = 72
	canvasWidth   = PageWidthPt * RenderDPI / pointsPerInch
	canvasHeight  = PageHeightPt * RenderDPI / pointsPerInch
)

// Layout is where a raster image lands on a page after aspect-preserving
// scaling. OffsetX and OffsetY center the image; they are zero on the axis
// that limits the scale.
type Layout struct {
	Scale        float64
	ScaledWidth  int
	ScaledHeight int
	OffsetX      int
	OffsetY      int
}

// ComputeLayout fits a w x h image into a pageW x pageH box.
func ComputeLayout(w, h, pageW, pageH int) Layout {
	if w <= 0 || h <= 0 {
		return Layout{}
	}

	var l Layout
	// Integer cross-multiplication keeps exact 2:3 inputs from drifting by a
	// pixel through float rounding.
	if int64(pageW)*int64(h) <= int64(pageH)*int64(w) {
		l.Scale = float64(pageW) / float64(w)
		l.ScaledWidth = pageW
		l.ScaledHeight = roundDim(float64(h)*l.Scale, pageH)
	} else {
		l.Scale = float64(pageH) / float64(h)
		l.ScaledHeight = pageH
		l.ScaledWidth = roundDim(float64(w)*l.Scale, pageW)
	}
	l.OffsetX = (pageW - l.ScaledWidth) / 2
	l.OffsetY = (pageH - l.ScaledHeight) / 2
	return l
}

func roundDim(v float64, limit int) int {
	n := int(v + 0.5)
	if n < 1 {
		n = 1
	}
	if n > limit {
		n = limit
	}
	return n
}

// PageLayout is ComputeLayout against the 288x432 pt page.
func PageLayout(w, h int) Layout {
	return ComputeLayout(w, h, PageWidthPt, PageHeightPt)
}

// NormalizeFormatTag reduces provider file types such as "image/png" or
// "application/x-zpl" to a bare lowercase tag.
func NormalizeFormatTag(fileType string) string {
	tag := strings.ToLower(strings.TrimSpace(fileType))
	if i := strings.LastIndex(tag, "/"); i >= 0 {
		tag = tag[i+1:]
	}
	tag = strings.TrimPrefix(tag, ".")
	tag = strings.TrimPrefix(tag, "x-")
	return tag
}

func isRaster(tag string) bool {
	switch tag {
	case FormatPNG, FormatJPG, FormatJPEG:
		return true
	}
	return false
}

type Normalizer struct {
	logger *zap.Logger
}

func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize converts raster artifacts to a one-page 4x6 PDF. Every other
// format is returned unchanged. On conversion failure the original artifact
// is returned together with a *ConversionError.
func (n *Normalizer) Normalize(a LabelArtifact) (LabelArtifact, error) {
	tag := NormalizeFormatTag(a.SourceFormat)
	if !isRaster(tag) {
		return a, nil
	}

	data, err := rasterToPDF(a.Data)
	if err != nil {
		cerr := &ConversionError{Format: tag, Err: err}
		n.logger.Warn("label conversion failed, forwarding original",
			zap.String("format", tag),
			zap.String("tracking_code", a.TrackingCode),
			zap.Error(err),
		)
		return a, cerr
	}

	n.logger.Debug("converted label",
		zap.String("from", tag),
		zap.Int("input_bytes", len(a.Data)),
		zap.Int("output_bytes", len(data)),
	)

	out := a
	out.SourceFormat = FormatPDF
	out.Data = data
	out.ConvertedFrom = tag
	return out, nil
}

func rasterToPDF(data []byte) ([]byte, error) {
	canvas, err := renderPage(data)
	if err != nil {
		return nil, err
	}

	var page bytes.Buffer
	if err := imaging.Encode(&page, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode page: %w", err)
	}

	return writePDF(page.Bytes())
}

// renderPage draws the decoded image onto a white 4x6 canvas at RenderDPI,
// scaled to fit and centered.
func renderPage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("image has no pixels")
	}

	// Composite onto white so transparent and paletted inputs print as RGB.
	rgb := imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.White), img, image.Pt(0, 0), 1.0)

	l := ComputeLayout(b.Dx(), b.Dy(), canvasWidth, canvasHeight)
	scaled := imaging.Resize(rgb, l.ScaledWidth, l.ScaledHeight, imaging.Lanczos)
	return imaging.Paste(imaging.New(canvasWidth, canvasHeight, color.White), scaled, image.Pt(l.OffsetX, l.OffsetY)), nil
}

func writePDF(pagePNG []byte) ([]byte, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: PageWidthPt, Ht: PageHeightPt},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("labelrelay", true)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("label", opts, bytes.NewReader(pagePNG))
	pdf.ImageOptions("label", 0, 0, PageWidthPt, PageHeightPt, false, opts, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return out.Bytes(), nil
}
