package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	imagepkg "github.com/youruser/bannerprint/internal/image"
	"github.com/youruser/bannerprint/internal/pdf"
)

// RenderRequest is the JSON body of a render call.
type RenderRequest struct {
	OrderID        string  `json:"orderId" validate:"required"`
	BannerWidthIn  float64 `json:"bannerWidthIn" validate:"gt=0,lte=1200"`
	BannerHeightIn float64 `json:"bannerHeightIn" validate:"gt=0,lte=1200"`
	// BleedIn defaults to the configured bleed when absent.
	BleedIn *float64 `json:"bleedIn,omitempty"`
	// IncludeBleed=false renders at trim size without crop marks.
	IncludeBleed *bool `json:"includeBleed,omitempty"`
	TargetDPI    int   `json:"targetDpi,omitempty" validate:"omitempty,min=1,max=1200"`

	FileKey               string `json:"fileKey,omitempty"`
	ImageURL              string `json:"imageUrl,omitempty" validate:"omitempty,url"`
	CanvasBackgroundColor string `json:"canvasBackgroundColor,omitempty"`

	Transform       *Transform     `json:"transform,omitempty"`
	PreviewCanvasPx *PreviewCanvas `json:"previewCanvasPx,omitempty"`

	TextElements  []TextElement  `json:"textElements,omitempty" validate:"dive"`
	OverlayImage  *OverlayImage  `json:"overlayImage,omitempty"`
	OverlayImages []OverlayImage `json:"overlayImages,omitempty" validate:"dive"`
}

type Transform struct {
	Scale        float64 `json:"scale" validate:"gte=0"`
	TranslateXpx float64 `json:"translateXpx"`
	TranslateYpx float64 `json:"translateYpx"`
	RotationDeg  float64 `json:"rotationDeg,omitempty"`
}

type PreviewCanvas struct {
	Width  int `json:"width" validate:"gte=0"`
	Height int `json:"height" validate:"gte=0"`
}

type TextElement struct {
	Content string `json:"content"`
	// XPercent and YPercent are the top-left of the run within the banner
	// area. A missing coordinate makes the element unplaceable.
	XPercent   *float64   `json:"xPercent"`
	YPercent   *float64   `json:"yPercent"`
	FontSize   float64    `json:"fontSize" validate:"gte=0"`
	FontFamily string     `json:"fontFamily,omitempty"`
	FontWeight FontWeight `json:"fontWeight,omitempty"`
	Color      string     `json:"color,omitempty"`
	TextAlign  string     `json:"textAlign,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type OverlayImage struct {
	URL         string    `json:"url,omitempty"`
	FileKey     string    `json:"fileKey,omitempty"`
	Position    *Position `json:"position,omitempty"`
	Scale       float64   `json:"scale" validate:"gte=0"`
	AspectRatio float64   `json:"aspectRatio,omitempty" validate:"gte=0"`
}

// FontWeight accepts both CSS keywords ("bold") and numbers (700).
type FontWeight string

func (w *FontWeight) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*w = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*w = FontWeight(str)
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("fontWeight: %w", err)
	}
	*w = FontWeight(strconv.Itoa(int(n)))
	return nil
}

// HasImage reports whether the design has a base image source.
func (r *RenderRequest) HasImage() bool {
	return strings.TrimSpace(r.FileKey) != "" || strings.TrimSpace(r.ImageURL) != ""
}

// HasOverlays reports whether any overlay was supplied.
func (r *RenderRequest) HasOverlays() bool {
	return r.OverlayImage != nil || len(r.OverlayImages) > 0
}

// Bleed is the bleed to render with.
func (r *RenderRequest) Bleed(def float64) float64 {
	if r.IncludeBleed != nil && !*r.IncludeBleed {
		return 0
	}
	if r.BleedIn != nil {
		return *r.BleedIn
	}
	return def
}

// DPI is the caller's resolution or def.
func (r *RenderRequest) DPI(def int) int {
	if r.TargetDPI > 0 {
		return r.TargetDPI
	}
	return def
}

func (r *RenderRequest) source() imagepkg.Source {
	src := imagepkg.Source{
		Ref:           imagepkg.Ref{FileKey: strings.TrimSpace(r.FileKey), URL: strings.TrimSpace(r.ImageURL)},
		BackgroundHex: r.CanvasBackgroundColor,
	}
	if r.Transform != nil {
		src.RotationDeg = r.Transform.RotationDeg
	}
	return src
}

func (r *RenderRequest) transform() *imagepkg.Transform {
	if r.Transform == nil {
		return nil
	}
	return &imagepkg.Transform{
		Scale:        r.Transform.Scale,
		TranslateXpx: r.Transform.TranslateXpx,
		TranslateYpx: r.Transform.TranslateYpx,
	}
}

func (r *RenderRequest) preview() imagepkg.Preview {
	if r.PreviewCanvasPx == nil {
		return imagepkg.Preview{}
	}
	return imagepkg.Preview{Width: r.PreviewCanvasPx.Width, Height: r.PreviewCanvasPx.Height}
}

// overlayImages lists overlayImage first, then overlayImages, in order.
func (r *RenderRequest) overlayImages() []OverlayImage {
	var all []OverlayImage
	if r.OverlayImage != nil {
		all = append(all, *r.OverlayImage)
	}
	return append(all, r.OverlayImages...)
}

// overlays maps overlayImages onto compositor layers. Only the single
// overlayImage is compared with the main image.
func (r *RenderRequest) overlays() []imagepkg.Overlay {
	all := r.overlayImages()
	out := make([]imagepkg.Overlay, 0, len(all))
	for i, o := range all {
		pos := Position{X: 50, Y: 50}
		if o.Position != nil {
			pos = *o.Position
		}
		out = append(out, imagepkg.Overlay{
			Name:        fmt.Sprintf("overlay[%d]", i),
			Ref:         imagepkg.Ref{FileKey: strings.TrimSpace(o.FileKey), URL: strings.TrimSpace(o.URL)},
			X:           pos.X,
			Y:           pos.Y,
			Scale:       o.Scale,
			AspectRatio: o.AspectRatio,
			SkipIfMain:  i == 0 && r.OverlayImage != nil,
		})
	}
	return out
}

func (r *RenderRequest) texts() []pdf.Text {
	out := make([]pdf.Text, 0, len(r.TextElements))
	for _, t := range r.TextElements {
		out = append(out, pdf.Text{
			Content:    t.Content,
			XPercent:   percentOrNaN(t.XPercent),
			YPercent:   percentOrNaN(t.YPercent),
			FontSize:   t.FontSize,
			FontFamily: t.FontFamily,
			FontWeight: string(t.FontWeight),
			Color:      t.Color,
			TextAlign:  t.TextAlign,
		})
	}
	return out
}

func percentOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
