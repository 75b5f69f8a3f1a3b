// Package submission converts raw student input (typed text or a canvas
// drawing) into one canonical payload for the marking pipeline.
package submission

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/panphy/labassistant/internal/model"
)

var (
	// ErrEmptySubmission signals that there is nothing to mark: no text after
	// trimming, or a canvas indistinguishable from its background. Reported to
	// the student before any external call is made.
	ErrEmptySubmission = errors.New("submission is empty")

	// ErrBadImage signals an undecodable drawing payload.
	ErrBadImage = errors.New("drawing payload is not a decodable image")
)

const (
	// DefaultBackground matches the stylus canvas default background.
	DefaultBackground = "#F0F2F6"
	// DefaultMaxWidth bounds the image sent to the marking model.
	DefaultMaxWidth = 1024

	// defaultInkTolerance is the per-channel deviation from the background
	// color below which a pixel still counts as background (anti-aliasing,
	// JPEG-ish smudge from the canvas).
	defaultInkTolerance = 16
	// defaultMinInkPixels is the minimum number of deviating pixels for a
	// drawing to count as non-empty.
	defaultMinInkPixels = 25
)

const dataURLPrefix = "data:image/png;base64,"

// Normalizer produces canonical submissions.
type Normalizer struct {
	background   color.NRGBA
	maxWidth     int
	inkTolerance uint8
	minInkPixels int
}

// New creates a Normalizer. Empty bgHex or non-positive maxWidth fall back
// to the defaults.
func New(bgHex string, maxWidth int) (*Normalizer, error) {
	if bgHex == "" {
		bgHex = DefaultBackground
	}
	bg, err := ParseHexColor(bgHex)
	if err != nil {
		return nil, fmt.Errorf("canvas background: %w", err)
	}
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Normalizer{
		background:   bg,
		maxWidth:     maxWidth,
		inkTolerance: defaultInkTolerance,
		minInkPixels: defaultMinInkPixels,
	}, nil
}

// Text normalizes a typed answer.
func (n *Normalizer) Text(answer string) (model.Submission, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return model.Submission{}, ErrEmptySubmission
	}
	return model.Submission{Kind: model.SubmissionText, Text: answer}, nil
}

// Drawing normalizes a canvas drawing supplied as a PNG data URL (or bare
// base64 PNG). The drawing is composited onto the opaque canvas background,
// rejected if blank, downscaled if oversized, and re-encoded as a PNG data
// URL for the vision request.
func (n *Normalizer) Drawing(dataURL string) (model.Submission, error) {
	img, err := decodeDataURL(dataURL)
	if err != nil {
		return model.Submission{}, err
	}

	flat := n.flatten(img)
	if !n.hasInk(flat) {
		return model.Submission{}, ErrEmptySubmission
	}

	if flat.Bounds().Dx() > n.maxWidth {
		flat = downscale(flat, n.maxWidth)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, flat); err != nil {
		return model.Submission{}, fmt.Errorf("encode drawing: %w", err)
	}
	return model.Submission{
		Kind:         model.SubmissionDrawing,
		ImageDataURL: dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// flatten composites the possibly transparent drawing onto an opaque
// background of the configured canvas color.
func (n *Normalizer) flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(n.background), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Over)
	return flat
}

// hasInk reports whether enough pixels deviate from the background color for
// the drawing to count as containing user input.
func (n *Normalizer) hasInk(img *image.RGBA) bool {
	b := img.Bounds()
	tol := int(n.inkTolerance)
	count := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if absDiff(c.R, n.background.R) > tol ||
				absDiff(c.G, n.background.G) > tol ||
				absDiff(c.B, n.background.B) > tol {
				count++
				if count >= n.minInkPixels {
					return true
				}
			}
		}
	}
	return false
}

func downscale(src *image.RGBA, maxWidth int) *image.RGBA {
	b := src.Bounds()
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

func decodeDataURL(dataURL string) (image.Image, error) {
	payload := strings.TrimSpace(dataURL)
	if idx := strings.Index(payload, ";base64,"); idx >= 0 {
		payload = payload[idx+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadImage, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadImage, err)
	}
	return img, nil
}

// ParseHexColor parses "#RRGGBB" (or "RRGGBB") into an opaque color.
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 0xFF}, nil
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
