// Package imaging validates uploaded images and normalizes them before they
// are handed to an image host.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"math"
	"mime"
	"net/http"
	"strings"

	"inspiro/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	DefaultMaxUploadSizeMB = 10
	JPEGQuality            = 82
	WebPQuality            = 70

	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

// Ratio is an allowed output aspect ratio (width / height).
type Ratio struct {
	Name  string
	Value float64
}

// Profile describes how one kind of upload is shaped.
type Profile struct {
	Ratios  []Ratio
	MaxSide int
}

var (
	// PostImage is used for post thumbnails.
	PostImage = Profile{
		Ratios: []Ratio{
			{Name: "landscape", Value: 1.91},
			{Name: "square", Value: 1.0},
			{Name: "portrait", Value: 0.8},
		},
		MaxSide: 2048,
	}
	// Avatar is used for profile pictures.
	Avatar = Profile{Ratios: []Ratio{{Name: "square", Value: 1.0}}, MaxSide: 512}
	// Banner is used for profile banners.
	Banner = Profile{Ratios: []Ratio{{Name: "banner", Value: 3.0}}, MaxSide: 1800}
)

// Result is a normalized, re-encoded image.
type Result struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
	CropMode    string
}

// Normalizer checks size and format, crops to the nearest allowed ratio,
// bounds the longest side and re-encodes.
type Normalizer struct {
	maxBytes int64
	format   string
}

// NewNormalizer returns a Normalizer. format is "jpeg" or "webp".
func NewNormalizer(maxUploadSizeMB int, format string) *Normalizer {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = DefaultMaxUploadSizeMB
	}
	if format != FormatWebP {
		format = FormatJPEG
	}
	return &Normalizer{maxBytes: int64(maxUploadSizeMB) * 1024 * 1024, format: format}
}

// MaxBytes is the accepted upload size.
func (n *Normalizer) MaxBytes() int64 {
	return n.maxBytes
}

// Normalize validates content and returns the re-encoded image.
func (n *Normalizer) Normalize(content []byte, providedType string, p Profile) (*Result, error) {
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > n.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", n.maxBytes/(1024*1024)))
	}

	detected := http.DetectContentType(content)
	if !isAllowedImageMIME(detected) {
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if provided := normalizeContentType(providedType); strings.HasPrefix(provided, "image/") &&
		!isMatchingContentType(provided, decodedFormatToMime(format)) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	b := decoded.Bounds()
	mode, rect := selectCrop(b.Dx(), b.Dy(), p.Ratios)
	rect = rect.Add(b.Min)
	out := resizeToFit(cropToRect(decoded, rect), p.MaxSide)

	res := &Result{
		Width:    out.Bounds().Dx(),
		Height:   out.Bounds().Dy(),
		CropMode: mode,
	}
	switch n.format {
	case FormatWebP:
		res.Data, err = encodeWebP(out, WebPQuality)
		res.ContentType, res.Ext = "image/webp", "webp"
	default:
		res.Data, err = encodeJPEG(out, JPEGQuality)
		res.ContentType, res.Ext = "image/jpeg", "jpg"
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return res, nil
}

// DecodeDataURL splits a base64 "data:" URL into its media type and bytes.
func DecodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, models.NewValidationError("Image must be a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, models.NewValidationError("Image data URL must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, models.NewValidationError("Image data URL is not valid base64")
	}
	return strings.TrimSuffix(meta, ";base64"), data, nil
}

// selectCrop picks the allowed ratio closest to w/h and returns the centered
// rectangle with that ratio.
func selectCrop(w, h int, ratios []Ratio) (string, image.Rectangle) {
	if w <= 0 || h <= 0 || len(ratios) == 0 {
		return "free", image.Rect(0, 0, w, h)
	}
	ratio := float64(w) / float64(h)
	best := ratios[0]
	for _, r := range ratios[1:] {
		if math.Abs(ratio-r.Value) < math.Abs(ratio-best.Value) {
			best = r
		}
	}

	var cropX, cropY, cropW, cropH int
	if ratio > best.Value {
		cropH = h
		cropW = int(float64(h) * best.Value)
		cropX = (w - cropW) / 2
	} else {
		cropW = w
		cropH = int(float64(w) / best.Value)
		cropY = (h - cropH) / 2
	}
	cropW = max(cropW, 1)
	cropH = max(cropH, 1)
	return best.Name, image.Rect(cropX, cropY, cropX+cropW, cropY+cropH)
}

func cropToRect(src image.Image, r image.Rectangle) image.Image {
	if r.Empty() {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return dst
}

func resizeToFit(src image.Image, maxSide int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxSide && h <= maxSide) {
		return src
	}

	scale := math.Min(float64(maxSide)/float64(w), float64(maxSide)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "image/jpg" {
		return "image/jpeg"
	}
	return mediaType
}

func isMatchingContentType(provided, detected string) bool {
	return normalizeContentType(provided) == normalizeContentType(detected)
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
