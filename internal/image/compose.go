package imagepkg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/youruser/bannerprint/internal/apperr"
	"github.com/youruser/bannerprint/internal/assets"
	"github.com/youruser/bannerprint/internal/geometry"
	"github.com/youruser/bannerprint/internal/logging"
)

const (
	// OverlayReferenceWidthIn is the printed width of an overlay at scale 1.
	OverlayReferenceWidthIn = 4.0
	// OverlayMaxFactor caps an overlay relative to the banner's own pixel size.
	OverlayMaxFactor = 1.5

	DefaultJPEGQuality    = 85
	MinJPEGQuality        = 40
	DefaultMaxOutputBytes = 6 << 20
	DefaultConcurrency    = 4

	// MaxBaseOverscan is how many canvases the scaled base may cover before
	// it is cropped in source space instead of scaled whole.
	MaxBaseOverscan = 2
)

// Transform is how the base image sat in the browser preview.
type Transform struct {
	Scale        float64
	TranslateXpx float64
	TranslateYpx float64
}

// Preview is the browser preview canvas size in pixels.
type Preview struct {
	Width  int
	Height int
}

// Overlay is a logo or graphic layer. X and Y are the layer's center as a
// percentage of the banner area.
type Overlay struct {
	Name        string
	Ref         Ref
	X, Y        float64
	Scale       float64
	AspectRatio float64
	// SkipIfMain drops the overlay when it is the same asset as MainImageURL.
	SkipIfMain bool
}

// Layer is a raster placed on the print canvas.
type Layer struct {
	Name  string
	Image image.Image
	Left  int
	Top   int
}

// Rect is the canvas area covered by the layer.
func (l Layer) Rect() image.Rectangle {
	b := l.Image.Bounds()
	return image.Rect(l.Left, l.Top, l.Left+b.Dx(), l.Top+b.Dy())
}

// Placement is the base image's print-space size and offset before clipping.
type Placement struct {
	Width, Height int
	X, Y          int
}

// Input is everything the compositor needs for one banner.
type Input struct {
	OrderID    string
	Geometry   geometry.Geometry
	Background image.Image // canvas fill; white when nil
	Base       image.Image // nil for text-only designs
	Transform  *Transform
	Preview    Preview
	Overlays   []Overlay
	// MainImageURL is the direct base image URL, empty for stored assets.
	MainImageURL string
}

// Composite is the flattened print raster and the layers it was built from.
type Composite struct {
	Width, Height int
	Layers        []Layer
	Flattened     *image.NRGBA
	JPEG          []byte
	Quality       int
	// Skipped holds the indexes of overlays that were not placed.
	Skipped []int
}

// OverlayCount is the number of overlay layers placed.
func (c *Composite) OverlayCount() int {
	n := 0
	for _, l := range c.Layers {
		if l.Name != "base" {
			n++
		}
	}
	return n
}

// Compositor places the base image and overlays on the print canvas.
type Compositor struct {
	Fetcher        *Fetcher
	Concurrency    int
	MaxOutputBytes int
	Quality        int
}

func NewCompositor(f *Fetcher, concurrency, maxOutputBytes, quality int) *Compositor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = DefaultMaxOutputBytes
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Compositor{Fetcher: f, Concurrency: concurrency, MaxOutputBytes: maxOutputBytes, Quality: quality}
}

// Compose builds the flattened raster. A failing overlay is logged and
// left out; every other failure aborts.
func (c *Compositor) Compose(ctx context.Context, in Input) (*Composite, error) {
	g := in.Geometry
	out := &Composite{Width: g.TargetPxW, Height: g.TargetPxH}

	if in.Base != nil {
		layer, ok := c.placeBase(in)
		if ok {
			out.Layers = append(out.Layers, layer)
		} else {
			logging.Warn("base image falls outside the canvas", "order_id", in.OrderID)
		}
	}

	overlays, skipped := c.placeOverlays(ctx, in)
	if err := ctx.Err(); err != nil {
		return nil, apperr.Aborted(err).WithStage(apperr.StageOverlay)
	}
	out.Layers = append(out.Layers, overlays...)
	out.Skipped = skipped

	out.Flattened = Flatten(in.Background, g.TargetPxW, g.TargetPxH, out.Layers)
	data, q, err := EncodeJPEG(out.Flattened, c.Quality, c.MaxOutputBytes)
	if err != nil {
		return nil, apperr.Internal("failed to encode print raster", err).WithStage(apperr.StageComposite)
	}
	out.JPEG = data
	out.Quality = q

	logging.Info("composite ready", "order_id", in.OrderID, "width", out.Width, "height", out.Height,
		"layers", len(out.Layers), "skipped_overlays", len(skipped), "bytes", len(data), "quality", q)
	return out, nil
}

func (c *Compositor) placeBase(in Input) (Layer, bool) {
	g := in.Geometry
	b := in.Base.Bounds()
	p := PlaceBase(b.Dx(), b.Dy(), in.Transform, in.Preview, g)
	logging.Debug("base placement", "order_id", in.OrderID, "width", p.Width, "height", p.Height, "x", p.X, "y", p.Y)

	if int64(p.Width)*int64(p.Height) > MaxBaseOverscan*g.Pixels() {
		layer, ok := CropBase(in.Base, p, g.TargetPxW, g.TargetPxH)
		layer.Name = "base"
		return layer, ok
	}

	img, _ := EnsureResolution(in.Base, p.Width, p.Height)
	img = imaging.Resize(img, p.Width, p.Height, imaging.Lanczos)

	layer, ok := ClipToCanvas(img, p.X, p.Y, g.TargetPxW, g.TargetPxH)
	layer.Name = "base"
	return layer, ok
}

// CropBase cuts the visible part of src out before scaling it, so the
// resize never allocates more than the canvas. Edges are rounded out to
// whole source pixels.
func CropBase(src image.Image, p Placement, canvasW, canvasH int) (Layer, bool) {
	vis := image.Rect(p.X, p.Y, p.X+p.Width, p.Y+p.Height).Intersect(image.Rect(0, 0, canvasW, canvasH))
	if vis.Empty() {
		return Layer{}, false
	}
	r := SourceRect(p, vis, src.Bounds())
	if r.Empty() {
		return Layer{}, false
	}
	img, _ := EnsureResolution(imaging.Crop(src, r), vis.Dx(), vis.Dy())
	return Layer{
		Image: imaging.Resize(img, vis.Dx(), vis.Dy(), imaging.Lanczos),
		Left:  vis.Min.X,
		Top:   vis.Min.Y,
	}, true
}

// SourceRect maps the canvas region vis, covered by placement p, back onto
// the source bounds b.
func SourceRect(p Placement, vis, b image.Rectangle) image.Rectangle {
	sx := float64(b.Dx()) / float64(p.Width)
	sy := float64(b.Dy()) / float64(p.Height)
	r := image.Rect(
		int(math.Floor(float64(vis.Min.X-p.X)*sx)),
		int(math.Floor(float64(vis.Min.Y-p.Y)*sy)),
		int(math.Ceil(float64(vis.Max.X-p.X)*sx)),
		int(math.Ceil(float64(vis.Max.Y-p.Y)*sy)),
	)
	return r.Add(b.Min).Intersect(b)
}

func (c *Compositor) placeOverlays(ctx context.Context, in Input) ([]Layer, []int) {
	if len(in.Overlays) == 0 {
		return nil, nil
	}
	slots := make([]*Layer, len(in.Overlays))

	var eg errgroup.Group
	eg.SetLimit(c.Concurrency)
	for i, ov := range in.Overlays {
		i, ov := i, ov
		eg.Go(func() error {
			layer, err := c.prepareOverlay(ctx, in, ov)
			if err != nil {
				logging.Warn("skipping overlay", "order_id", in.OrderID, "index", i, "error", err)
				return nil
			}
			slots[i] = layer
			return nil
		})
	}
	_ = eg.Wait()

	var layers []Layer
	var skipped []int
	for i, l := range slots {
		if l == nil {
			skipped = append(skipped, i)
			continue
		}
		layers = append(layers, *l)
	}
	return layers, skipped
}

func (c *Compositor) prepareOverlay(ctx context.Context, in Input, ov Overlay) (*Layer, error) {
	if ov.Ref.IsZero() {
		return nil, apperr.Validation("overlay has no image source").WithStage(apperr.StageOverlay)
	}
	if c.Fetcher == nil {
		return nil, apperr.Unavailable("image fetcher is not configured").WithStage(apperr.StageOverlay)
	}
	u, err := c.Fetcher.URLFor(ctx, ov.Ref)
	if err != nil {
		return nil, apperr.StageOf(err, apperr.StageOverlay)
	}
	if ov.SkipIfMain && assets.SameAsset(u, in.MainImageURL) {
		return nil, fmt.Errorf("overlay duplicates the main image: %s", u)
	}
	img, err := c.Fetcher.FetchURL(ctx, u, true)
	if err != nil {
		return nil, apperr.StageOf(err, apperr.StageOverlay)
	}

	g := in.Geometry
	b := img.Bounds()
	aspect := ov.AspectRatio
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = float64(b.Dx()) / float64(b.Dy())
	}
	w, h := OverlaySize(g, ov.Scale, aspect)
	left, top := OverlayPosition(g, ov.X, ov.Y, w, h)

	layer, ok := ClipToCanvas(ContainResize(img, w, h), left, top, g.TargetPxW, g.TargetPxH)
	if !ok {
		return nil, fmt.Errorf("overlay at (%d,%d) size %dx%d is outside the canvas", left, top, w, h)
	}
	layer.Name = ov.Name
	if layer.Name == "" {
		layer.Name = "overlay"
	}
	logging.Debug("overlay placed", "order_id", in.OrderID, "name", layer.Name, "width", w, "height", h, "left", left, "top", top)
	return &layer, nil
}

// CoverTransform fills the preview with the source, centered, cropping overflow.
func CoverTransform(srcW, srcH int, p Preview) Transform {
	pw, ph := float64(p.Width), float64(p.Height)
	scale := math.Max(pw/float64(srcW), ph/float64(srcH))
	return Transform{
		Scale:        scale,
		TranslateXpx: (pw - float64(srcW)*scale) / 2,
		TranslateYpx: (ph - float64(srcH)*scale) / 2,
	}
}

// PlaceBase maps a preview transform onto the print canvas. A nil transform
// or one without a positive scale gives the cover transform.
func PlaceBase(srcW, srcH int, t *Transform, p Preview, g geometry.Geometry) Placement {
	if p.Width <= 0 {
		p.Width = g.TargetPxW
	}
	if p.Height <= 0 {
		p.Height = g.TargetPxH
	}
	tr := CoverTransform(srcW, srcH, p)
	if t != nil && t.Scale > 0 {
		tr = *t
	}
	pxScale := float64(g.TargetPxW) / float64(p.Width)
	return Placement{
		Width:  max(1, int(math.Round(float64(srcW)*tr.Scale*pxScale))),
		Height: max(1, int(math.Round(float64(srcH)*tr.Scale*pxScale))),
		X:      int(math.Round(tr.TranslateXpx * pxScale)),
		Y:      int(math.Round(tr.TranslateYpx * pxScale)),
	}
}

// ClipToCanvas crops the part of img placed at (left, top) that overflows a
// canvasW×canvasH canvas. ok is false when nothing remains visible.
func ClipToCanvas(img image.Image, left, top, canvasW, canvasH int) (Layer, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cropLeft := max(0, -left)
	cropTop := max(0, -top)
	cropW := min(w-cropLeft, canvasW-max(0, left))
	cropH := min(h-cropTop, canvasH-max(0, top))
	if cropW <= 0 || cropH <= 0 {
		return Layer{}, false
	}

	out := img
	if cropLeft != 0 || cropTop != 0 || cropW != w || cropH != h {
		r := image.Rect(cropLeft, cropTop, cropLeft+cropW, cropTop+cropH).Add(b.Min)
		out = imaging.Crop(img, r)
	}
	return Layer{Image: out, Left: max(0, left), Top: max(0, top)}, true
}

// OverlaySize is the overlay's pixel size at the geometry's DPI, capped to
// OverlayMaxFactor times the banner's pixel size with the aspect kept.
func OverlaySize(g geometry.Geometry, scale, aspectRatio float64) (int, int) {
	if scale <= 0 {
		scale = 1
	}
	if aspectRatio <= 0 {
		aspectRatio = 1
	}
	widthIn := OverlayReferenceWidthIn * scale
	heightIn := widthIn / aspectRatio
	w := widthIn * float64(g.DPI)
	h := heightIn * float64(g.DPI)

	maxW := OverlayMaxFactor * g.BannerPxW()
	maxH := OverlayMaxFactor * g.BannerPxH()
	if w > maxW || h > maxH {
		r := math.Min(maxW/w, maxH/h)
		w *= r
		h *= r
	}
	return max(1, int(math.Round(w))), max(1, int(math.Round(h)))
}

// OverlayPosition converts a center given in banner-area percent to the
// layer's top-left corner on the canvas.
func OverlayPosition(g geometry.Geometry, xPercent, yPercent float64, w, h int) (int, int) {
	bleed := g.BleedPx()
	left := bleed + xPercent/100*g.BannerPxW() - float64(w)/2
	top := bleed + yPercent/100*g.BannerPxH() - float64(h)/2
	return int(math.Round(left)), int(math.Round(top))
}

// ContainResize fits img inside w×h keeping its aspect ratio and pads the
// rest with transparency.
func ContainResize(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	ratio := math.Min(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	nw := min(w, max(1, int(math.Round(float64(b.Dx())*ratio))))
	nh := min(h, max(1, int(math.Round(float64(b.Dy())*ratio))))
	resized := imaging.Resize(img, nw, nh, imaging.Lanczos)
	if nw == w && nh == h {
		return resized
	}
	return imaging.PasteCenter(imaging.New(w, h, color.Transparent), resized)
}

// Flatten draws layers in order over the background.
func Flatten(background image.Image, w, h int, layers []Layer) *image.NRGBA {
	var dst *image.NRGBA
	if background != nil && background.Bounds().Dx() == w && background.Bounds().Dy() == h {
		dst = imaging.Clone(background)
	} else {
		dst = imaging.New(w, h, White)
		if background != nil {
			dst = imaging.Overlay(dst, background, image.Pt(0, 0), 1.0)
		}
	}
	for _, l := range layers {
		dst = imaging.Overlay(dst, l.Image, image.Pt(l.Left, l.Top), 1.0)
	}
	return dst
}

// EncodeJPEG encodes img starting at quality and steps down by 10 until the
// output fits maxBytes or MinJPEGQuality is reached.
func EncodeJPEG(img image.Image, quality, maxBytes int) ([]byte, int, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	for {
		buf.Reset()
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, 0, err
		}
		if maxBytes <= 0 || buf.Len() <= maxBytes || quality <= MinJPEGQuality {
			break
		}
		logging.Debug("print raster over size ceiling", "bytes", buf.Len(), "quality", quality)
		quality = max(MinJPEGQuality, quality-10)
	}
	return buf.Bytes(), quality, nil
}
