package imagepkg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/youruser/bannerprint/internal/apperr"
	"github.com/youruser/bannerprint/internal/assets"
	"github.com/youruser/bannerprint/internal/logging"
	"github.com/youruser/bannerprint/internal/util"
)

// MaxSourcePixels bounds a decoded image, checked from its header.
const MaxSourcePixels = 100_000_000

// ErrNoResolver is returned for a file key when no asset resolver is set.
var ErrNoResolver = errors.New("asset resolver is not configured")

// Ref points at a remote image: a stored asset key or a direct URL.
type Ref struct {
	FileKey string
	URL     string
}

func (r Ref) IsZero() bool {
	return strings.TrimSpace(r.FileKey) == "" && strings.TrimSpace(r.URL) == ""
}

// Fetcher downloads and decodes images. Each fetch gets its own deadline.
type Fetcher struct {
	Client   *http.Client
	Timeout  time.Duration
	Resolver assets.Resolver
}

func NewFetcher(client *http.Client, timeout time.Duration, resolver assets.Resolver) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = util.DefaultFetchTimeout
	}
	return &Fetcher{Client: client, Timeout: timeout, Resolver: resolver}
}

// URLFor returns the URL ref will be fetched from. A file key wins over a URL.
func (f *Fetcher) URLFor(ctx context.Context, ref Ref) (string, error) {
	if key := strings.TrimSpace(ref.FileKey); key != "" {
		if f.Resolver == nil {
			return "", apperr.FetchError(0, key, ErrNoResolver)
		}
		u, err := f.Resolver.ResolveURL(ctx, key)
		if err != nil {
			return "", apperr.FetchError(0, key, err)
		}
		return u, nil
	}
	return assets.PDFRendition(strings.TrimSpace(ref.URL)), nil
}

// Fetch downloads and decodes ref. autoOrient applies EXIF orientation.
func (f *Fetcher) Fetch(ctx context.Context, ref Ref, autoOrient bool) (image.Image, error) {
	u, err := f.URLFor(ctx, ref)
	if err != nil {
		return nil, err
	}
	return f.FetchURL(ctx, u, autoOrient)
}

// FetchURL downloads and decodes an already resolved URL.
func (f *Fetcher) FetchURL(ctx context.Context, u string, autoOrient bool) (image.Image, error) {
	start := time.Now()
	body, err := util.GetBytes(ctx, f.Client, u, f.Timeout)
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(body, autoOrient)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	logging.Debug("image fetched", "url", u, "bytes", len(body), "width", b.Dx(), "height", b.Dy(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return img, nil
}

// DecodeImage decodes PNG, JPEG, GIF, BMP, TIFF or WebP bytes.
func DecodeImage(b []byte, autoOrient bool) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, apperr.Decode(err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, apperr.Decode(fmt.Errorf("image is %dx%d, over %d pixels", cfg.Width, cfg.Height, MaxSourcePixels))
	}
	img, err := imaging.Decode(bytes.NewReader(b), imaging.AutoOrientation(autoOrient))
	if err != nil {
		return nil, apperr.Decode(err)
	}
	if r := img.Bounds(); r.Dx() == 0 || r.Dy() == 0 {
		return nil, apperr.Decode(nil)
	}
	return img, nil
}
