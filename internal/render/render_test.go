package render

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youruser/bannerprint/internal/apperr"
	"github.com/youruser/bannerprint/internal/assets"
	imagepkg "github.com/youruser/bannerprint/internal/image"
)

func pngOf(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, c), imaging.PNG))
	return buf.Bytes()
}

// newCDN serves files under the image-CDN path layout for cloud "demo".
func newCDN(t *testing.T, files map[string][]byte) (*httptest.Server, *Pipeline) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)

	fetcher := imagepkg.NewFetcher(srv.Client(), 2*time.Second, assets.NewCDN(srv.URL, "demo"))
	compositor := imagepkg.NewCompositor(fetcher, 2, 0, 0)
	return srv, NewPipeline(fetcher, compositor, Settings{DPI: 10, BleedIn: 0.125})
}

func f64(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	v := NewValidator()
	base := func() *RenderRequest {
		return &RenderRequest{OrderID: "1001", BannerWidthIn: 48, BannerHeightIn: 24, ImageURL: "https://cdn.example.com/a.png"}
	}

	tests := []struct {
		name   string
		mutate func(r *RenderRequest)
		field  string
	}{
		{"missing order id", func(r *RenderRequest) { r.OrderID = "" }, "orderId"},
		{"zero width", func(r *RenderRequest) { r.BannerWidthIn = 0 }, "bannerWidthIn"},
		{"negative height", func(r *RenderRequest) { r.BannerHeightIn = -2 }, "bannerHeightIn"},
		{"negative bleed", func(r *RenderRequest) { r.BleedIn = f64(-0.1) }, "bleedIn"},
		{"dpi too high", func(r *RenderRequest) { r.TargetDPI = 5000 }, "targetDpi"},
		{"bad url", func(r *RenderRequest) { r.ImageURL = "not a url" }, "imageUrl"},
		{"both sources", func(r *RenderRequest) { r.FileKey = "a.png" }, "imageUrl"},
		{"negative font size", func(r *RenderRequest) {
			r.TextElements = []TextElement{{Content: "x", FontSize: -1}}
		}, "textElements[0].fontSize"},
		{"negative overlay scale", func(r *RenderRequest) {
			r.OverlayImages = []OverlayImage{{URL: "https://x/y.png", Scale: -1}}
		}, "overlayImages[0].scale"},
		{"huge transform scale", func(r *RenderRequest) { r.Transform = &Transform{Scale: 1e9} }, "transform.scale"},
		{"huge translation", func(r *RenderRequest) { r.Transform = &Transform{Scale: 1, TranslateYpx: -1e12} }, "transform.translateYpx"},
		{"huge overlay scale", func(r *RenderRequest) {
			r.OverlayImage = &OverlayImage{URL: "https://x/y.png", Scale: 5000}
		}, "overlay[0].scale"},
		{"far overlay position", func(r *RenderRequest) {
			r.OverlayImages = []OverlayImage{{URL: "https://x/y.png", Position: &Position{X: 50, Y: 1e300}}}
		}, "overlay[0].position"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := base()
			tc.mutate(r)
			err := v.Validate(r)
			e, ok := apperr.As(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, apperr.KindValidation, e.Kind)
			assert.Equal(t, http.StatusBadRequest, e.HTTPStatus())
			fields, ok := e.Details.([]FieldError)
			require.True(t, ok)
			var names []string
			for _, f := range fields {
				names = append(names, f.Field)
			}
			assert.Contains(t, names, tc.field)
		})
	}

	assert.NoError(t, v.Validate(base()))
	assert.Error(t, v.Validate(nil))
}

func TestValidateRequiresContent(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&RenderRequest{OrderID: "1", BannerWidthIn: 10, BannerHeightIn: 5})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, MissingContentMessage, e.Message)

	assert.NoError(t, v.Validate(&RenderRequest{OrderID: "1", BannerWidthIn: 10, BannerHeightIn: 5,
		TextElements: []TextElement{{Content: "hi"}}}))
	assert.NoError(t, v.Validate(&RenderRequest{OrderID: "1", BannerWidthIn: 10, BannerHeightIn: 5,
		OverlayImage: &OverlayImage{URL: "https://x/logo.png", Scale: 1}}))
}

func TestRequestDecoding(t *testing.T) {
	raw := `{
		"orderId": "77",
		"bannerWidthIn": 36, "bannerHeightIn": 12,
		"includeBleed": false, "targetDpi": 100,
		"textElements": [
			{"content": "A", "xPercent": 10, "yPercent": 20, "fontWeight": 700},
			{"content": "B", "yPercent": 20, "fontWeight": "bold"}
		],
		"overlayImage": {"url": "https://x/a.png", "position": {"x": 25, "y": 75}, "scale": 0.5},
		"overlayImages": [{"fileKey": "logos/b.png", "scale": 1, "aspectRatio": 2}]
	}`
	var req RenderRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))

	assert.Equal(t, 0.0, req.Bleed(0.125))
	assert.Equal(t, 100, req.DPI(150))
	assert.Equal(t, FontWeight("700"), req.TextElements[0].FontWeight)
	assert.Equal(t, FontWeight("bold"), req.TextElements[1].FontWeight)

	texts := req.texts()
	assert.Equal(t, 10.0, texts[0].XPercent)
	assert.True(t, math.IsNaN(texts[1].XPercent), "missing xPercent becomes NaN")

	ovs := req.overlays()
	require.Len(t, ovs, 2)
	assert.Equal(t, "overlay[0]", ovs[0].Name)
	assert.Equal(t, 25.0, ovs[0].X)
	assert.Equal(t, 75.0, ovs[0].Y)
	assert.Equal(t, "logos/b.png", ovs[1].Ref.FileKey)
	assert.Equal(t, 50.0, ovs[1].X, "missing position centers the overlay")

	req.IncludeBleed = nil
	assert.Equal(t, 0.125, req.Bleed(0.125))
	req.BleedIn = f64(0.25)
	assert.Equal(t, 0.25, req.Bleed(0.125))
}

func TestRunImageDesign(t *testing.T) {
	_, p := newCDN(t, map[string][]byte{
		"/demo/image/upload/designs/1001.png": pngOf(t, 480, 240, color.NRGBA{B: 0xff, A: 0xff}),
	})

	res, err := p.Run(context.Background(), &RenderRequest{
		OrderID:         "1001",
		BannerWidthIn:   48,
		BannerHeightIn:  24,
		BleedIn:         f64(0.125),
		FileKey:         "designs/1001.png",
		Transform:       &Transform{Scale: 1},
		PreviewCanvasPx: &PreviewCanvas{Width: 480, Height: 240},
	})
	require.NoError(t, err)

	assert.InDelta(t, 3474.0, res.Document.PageWidthPt, 1e-9)
	assert.InDelta(t, 1746.0, res.Document.PageHeightPt, 1e-9)
	assert.True(t, bytes.HasPrefix(res.PDF, []byte("%PDF-")))
	assert.Equal(t, "order-1001-print-ready.pdf", res.FileName())

	require.Len(t, res.Composite.Layers, 1)
	base := res.Composite.Layers[0]
	assert.Equal(t, 0, base.Left)
	assert.Equal(t, 0, base.Top)
	assert.Equal(t, res.Geometry.TargetPxW, base.Image.Bounds().Dx())

	meta := res.Meta()
	assert.Equal(t, 10, meta.DPI)
	assert.Equal(t, 0.125, meta.BleedIn)
	assert.Equal(t, len(res.PDF), meta.Bytes)
}

func TestRunTextOnlyDesign(t *testing.T) {
	_, p := newCDN(t, nil)

	res, err := p.Run(context.Background(), &RenderRequest{
		OrderID:               "B",
		BannerWidthIn:         6,
		BannerHeightIn:        3,
		CanvasBackgroundColor: "#FF0000",
		PreviewCanvasPx:       &PreviewCanvas{Width: 600, Height: 300},
		TextElements: []TextElement{
			{Content: "Grand Opening", XPercent: f64(10), YPercent: f64(40), FontSize: 32},
			{Content: "no x", YPercent: f64(10)},
		},
	})
	require.NoError(t, err)

	comp := res.Composite
	assert.Empty(t, comp.Layers)
	assert.Equal(t, res.Geometry.TargetPxW, comp.Flattened.Bounds().Dx())
	assert.Equal(t, res.Geometry.TargetPxH, comp.Flattened.Bounds().Dy())
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, comp.Flattened.NRGBAAt(5, 5))

	require.Len(t, res.Document.Texts, 1)
	assert.Equal(t, []int{1}, res.Document.Skipped)
}

func TestRunIsolatesOverlayFailure(t *testing.T) {
	srv, p := newCDN(t, map[string][]byte{
		"/logos/good.png": pngOf(t, 30, 30, color.NRGBA{G: 0xff, A: 0xff}),
	})

	res, err := p.Run(context.Background(), &RenderRequest{
		OrderID:        "C",
		BannerWidthIn:  6,
		BannerHeightIn: 3,
		OverlayImages: []OverlayImage{
			{URL: srv.URL + "/logos/missing.png", Position: &Position{X: 25, Y: 50}, Scale: 0.5},
			{URL: srv.URL + "/logos/good.png", Position: &Position{X: 75, Y: 50}, Scale: 0.5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Composite.OverlayCount())
	assert.Equal(t, "overlay[1]", res.Composite.Layers[0].Name)
	assert.Equal(t, []int{0}, res.Composite.Skipped)
}

func TestRunBaseFetchFailureAborts(t *testing.T) {
	_, p := newCDN(t, nil)

	_, err := p.Run(context.Background(), &RenderRequest{
		OrderID:        "E",
		BannerWidthIn:  6,
		BannerHeightIn: 3,
		FileKey:        "designs/missing.png",
	})
	e, ok := apperr.As(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperr.KindFetchError, e.Kind)
	assert.Equal(t, http.StatusNotFound, e.Status)
	assert.Equal(t, apperr.StageAcquire, e.Stage)
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus())
}

func TestRunWithoutBleed(t *testing.T) {
	_, p := newCDN(t, nil)
	noBleed := false

	res, err := p.Run(context.Background(), &RenderRequest{
		OrderID:        "F",
		BannerWidthIn:  6,
		BannerHeightIn: 3,
		IncludeBleed:   &noBleed,
		TextElements:   []TextElement{{Content: "trim", XPercent: f64(0), YPercent: f64(0)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 432.0, res.Document.PageWidthPt)
	assert.Empty(t, res.Document.CropMarks)
	assert.Equal(t, 60, res.Geometry.TargetPxW)
}

func TestRunRejectsInvalid(t *testing.T) {
	_, p := newCDN(t, nil)
	_, err := p.Run(context.Background(), &RenderRequest{OrderID: "G", BannerWidthIn: 6, BannerHeightIn: 3})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRunRejectsOversizedRaster(t *testing.T) {
	_, p := newCDN(t, nil)
	_, err := p.Run(context.Background(), &RenderRequest{
		OrderID:        "H",
		BannerWidthIn:  1200,
		BannerHeightIn: 1200,
		TargetDPI:      1200,
		TextElements:   []TextElement{{Content: "big", XPercent: f64(10), YPercent: f64(10)}},
	})
	e, ok := apperr.As(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus())
	assert.Equal(t, []FieldError{{Field: "targetDpi", Rule: "max_pixels", Param: "160000000"}}, e.Details)
}

func TestRunRejectsExtremeZoom(t *testing.T) {
	srv, p := newCDN(t, map[string][]byte{"/art.png": pngOf(t, 40, 20, color.NRGBA{B: 0xff, A: 0xff})})
	_, err := p.Run(context.Background(), &RenderRequest{
		OrderID:        "I",
		BannerWidthIn:  6,
		BannerHeightIn: 3,
		ImageURL:       srv.URL + "/art.png",
		Transform:      &Transform{Scale: 1e9},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)

	res, err := p.Run(context.Background(), &RenderRequest{
		OrderID:         "I",
		BannerWidthIn:   6,
		BannerHeightIn:  3,
		ImageURL:        srv.URL + "/art.png",
		Transform:       &Transform{Scale: MaxTransformScale},
		PreviewCanvasPx: &PreviewCanvas{Width: 60, Height: 30},
	})
	require.NoError(t, err)
	require.Len(t, res.Composite.Layers, 1)
	assert.Equal(t, res.Geometry.TargetPxW, res.Composite.Layers[0].Image.Bounds().Dx())
}

func TestRunOverlayDuplicateCheck(t *testing.T) {
	green := pngOf(t, 30, 30, color.NRGBA{G: 0xff, A: 0xff})
	srv, p := newCDN(t, map[string][]byte{
		"/demo/image/upload/designs/image.png": pngOf(t, 60, 30, color.NRGBA{B: 0xff, A: 0xff}),
		"/demo/image/upload/logos/image.png":   green,
	})
	main := srv.URL + "/demo/image/upload/designs/image.png"
	logo := srv.URL + "/demo/image/upload/logos/image.png"

	tests := []struct {
		name         string
		single       *OverlayImage
		list         []OverlayImage
		wantOverlays int
		wantSkipped  []int
	}{
		{"same file name in another folder", &OverlayImage{URL: logo, Scale: 0.5}, nil, 1, nil},
		{"single overlay repeating the main image", &OverlayImage{URL: main, Scale: 0.5}, nil, 0, []int{0}},
		{"listed overlay repeating the main image", nil, []OverlayImage{{URL: main, Scale: 0.5}}, 1, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := p.Run(context.Background(), &RenderRequest{
				OrderID:        "J",
				BannerWidthIn:  6,
				BannerHeightIn: 3,
				ImageURL:       main,
				OverlayImage:   tc.single,
				OverlayImages:  tc.list,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.wantOverlays, res.Composite.OverlayCount())
			assert.Equal(t, tc.wantSkipped, res.Composite.Skipped)
		})
	}
}
