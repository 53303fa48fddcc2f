// Package render runs a banner design through geometry resolution, source
// acquisition, compositing and page rendering.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/youruser/bannerprint/internal/apperr"
	"github.com/youruser/bannerprint/internal/geometry"
	imagepkg "github.com/youruser/bannerprint/internal/image"
	"github.com/youruser/bannerprint/internal/logging"
	"github.com/youruser/bannerprint/internal/pdf"
)

// Settings are the service-wide render defaults.
type Settings struct {
	DPI     int
	BleedIn float64
}

// Pipeline renders one request end to end. It holds no per-request state
// and is safe for concurrent use.
type Pipeline struct {
	fetcher    *imagepkg.Fetcher
	compositor *imagepkg.Compositor
	validator  *Validator
	settings   Settings
}

func NewPipeline(f *imagepkg.Fetcher, c *imagepkg.Compositor, s Settings) *Pipeline {
	if s.DPI <= 0 {
		s.DPI = geometry.DefaultDPI
	}
	if s.BleedIn < 0 {
		s.BleedIn = geometry.DefaultBleedIn
	}
	return &Pipeline{fetcher: f, compositor: c, validator: NewValidator(), settings: s}
}

// Result is a finished render.
type Result struct {
	OrderID   string
	PDF       []byte
	Geometry  geometry.Geometry
	Composite *imagepkg.Composite
	Document  *pdf.Document
	Elapsed   time.Duration
}

// FileName is the download name of the print file.
func FileName(orderID string) string {
	return fmt.Sprintf("order-%s-print-ready.pdf", orderID)
}

func (r *Result) FileName() string {
	return FileName(r.OrderID)
}

// Meta summarizes how the file was produced.
type Meta struct {
	DPI             int     `json:"dpi"`
	BleedIn         float64 `json:"bleedIn"`
	BannerWidthIn   float64 `json:"bannerWidthIn"`
	BannerHeightIn  float64 `json:"bannerHeightIn"`
	PageWidthPt     float64 `json:"pageWidthPt"`
	PageHeightPt    float64 `json:"pageHeightPt"`
	RasterWidthPx   int     `json:"rasterWidthPx"`
	RasterHeightPx  int     `json:"rasterHeightPx"`
	Overlays        int     `json:"overlays"`
	SkippedOverlays []int   `json:"skippedOverlays,omitempty"`
	SkippedTexts    []int   `json:"skippedTexts,omitempty"`
	JPEGQuality     int     `json:"jpegQuality"`
	Bytes           int     `json:"bytes"`
	ElapsedMs       int64   `json:"elapsedMs"`
}

func (r *Result) Meta() Meta {
	g := r.Geometry
	m := Meta{
		DPI:            g.DPI,
		BleedIn:        g.BleedIn,
		BannerWidthIn:  g.BannerWidthIn,
		BannerHeightIn: g.BannerHeightIn,
		RasterWidthPx:  g.TargetPxW,
		RasterHeightPx: g.TargetPxH,
		Bytes:          len(r.PDF),
		ElapsedMs:      r.Elapsed.Milliseconds(),
	}
	if r.Document != nil {
		m.PageWidthPt = r.Document.PageWidthPt
		m.PageHeightPt = r.Document.PageHeightPt
		m.SkippedTexts = r.Document.Skipped
	}
	if r.Composite != nil {
		m.Overlays = r.Composite.OverlayCount()
		m.SkippedOverlays = r.Composite.Skipped
		m.JPEGQuality = r.Composite.Quality
	}
	return m
}

// Run validates req and produces the print PDF. Any stage failure aborts
// the request; failing overlays are left out instead.
func (p *Pipeline) Run(ctx context.Context, req *RenderRequest) (*Result, error) {
	start := time.Now()
	if err := p.validator.Validate(req); err != nil {
		return nil, err
	}

	g := geometry.Resolve(req.BannerWidthIn, req.BannerHeightIn, req.Bleed(p.settings.BleedIn), req.DPI(p.settings.DPI))
	if err := p.validator.ValidateCanvas(g); err != nil {
		logging.Warn("render rejected", "order_id", req.OrderID, "px_w", g.TargetPxW, "px_h", g.TargetPxH)
		return nil, err
	}
	logging.Info("render started", "order_id", req.OrderID, "dpi", g.DPI, "bleed_in", g.BleedIn,
		"final_width_in", g.FinalWidthIn, "final_height_in", g.FinalHeightIn, "px_w", g.TargetPxW, "px_h", g.TargetPxH)

	src := req.source()
	img, srcURL, err := p.fetcher.Acquire(ctx, src, g)
	if err != nil {
		logging.Error("source acquisition failed", "order_id", req.OrderID, "stage", apperr.StageAcquire, "error", err)
		return nil, err
	}

	in := imagepkg.Input{
		OrderID:   req.OrderID,
		Geometry:  g,
		Transform: req.transform(),
		Preview:   req.preview(),
		Overlays:  req.overlays(),
	}
	if src.IsZero() {
		in.Background = img
	} else {
		in.Background = imagepkg.Background(g.TargetPxW, g.TargetPxH, src.BackgroundHex)
		in.Base = img
		if src.FileKey == "" {
			in.MainImageURL = srcURL
		}
	}

	comp, err := p.compositor.Compose(ctx, in)
	if err != nil {
		logging.Error("compositing failed", "order_id", req.OrderID, "stage", apperr.StageComposite, "error", err)
		return nil, apperr.StageOf(err, apperr.StageComposite)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Aborted(err).WithStage(apperr.StageComposite)
	}

	preview := req.preview()
	doc, err := pdf.Render(pdf.Page{
		OrderID:        req.OrderID,
		Raster:         comp.JPEG,
		Geometry:       g,
		Texts:          req.texts(),
		PreviewWidthPx: preview.Width,
	})
	if err != nil {
		logging.Error("pdf rendering failed", "order_id", req.OrderID, "stage", apperr.StageRender, "error", err)
		return nil, apperr.StageOf(err, apperr.StageRender)
	}

	res := &Result{
		OrderID:   req.OrderID,
		PDF:       doc.Bytes,
		Geometry:  g,
		Composite: comp,
		Document:  doc,
		Elapsed:   time.Since(start),
	}
	logging.Info("render finished", "order_id", req.OrderID, "bytes", len(res.PDF), "elapsed_ms", res.Elapsed.Milliseconds())
	return res, nil
}
