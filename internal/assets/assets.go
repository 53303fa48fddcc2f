// Package assets turns stored asset references into fetchable URLs and stores
// finished print files.
package assets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Resolver produces a canonical delivery URL for a stored asset key.
type Resolver interface {
	ResolveURL(ctx context.Context, fileKey string) (string, error)
}

// StoredObject describes an uploaded file.
type StoredObject struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ErrEmptyKey is returned when a reference has no key.
var ErrEmptyKey = errors.New("asset key is empty")

// CDN builds image-CDN delivery URLs of the form
// <base>/<cloud>/image/upload/<key>. PDF keys are delivered as a PNG of page one.
type CDN struct {
	BaseURL   string
	CloudName string
}

func NewCDN(baseURL, cloudName string) *CDN {
	return &CDN{BaseURL: strings.TrimRight(baseURL, "/"), CloudName: cloudName}
}

func (c *CDN) ResolveURL(_ context.Context, fileKey string) (string, error) {
	key := strings.TrimLeft(strings.TrimSpace(fileKey), "/")
	if key == "" {
		return "", ErrEmptyKey
	}
	if c.CloudName == "" {
		return "", errors.New("cdn cloud name is not configured")
	}
	transform := ""
	if isPDF(key) {
		transform = "pg_1/"
		key = key[:len(key)-len(".pdf")] + ".png"
	}
	return fmt.Sprintf("%s/%s/image/upload/%s%s", c.BaseURL, c.CloudName, transform, escapePath(key)), nil
}

// PDFRendition rewrites a CDN delivery URL for a PDF into the URL of its
// first page as PNG. Other URLs are returned unchanged.
func PDFRendition(raw string) string {
	if !isPDF(raw) {
		return raw
	}
	i := strings.Index(raw, "/upload/")
	if i == -1 {
		return raw
	}
	head := raw[:i+len("/upload/")]
	tail := raw[i+len("/upload/"):]
	return head + "pg_1/" + tail[:len(tail)-len(".pdf")] + ".png"
}

// SameAsset reports whether two delivery URLs point at the same stored file:
// equal URLs, or CDN URLs with the same host and public ID once transformation
// and version segments are dropped.
func SameAsset(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	pa, ok := publicID(a)
	if !ok {
		return false
	}
	pb, ok := publicID(b)
	return ok && pa == pb
}

var (
	versionSegment   = regexp.MustCompile(`^v\d+$`)
	transformSegment = regexp.MustCompile(`^[a-z]{1,3}_[^,]+(,[a-z]{1,3}_[^,]+)*$`)
)

// publicID is host, cloud prefix and the path after "/upload/" without
// leading transformation or version segments.
func publicID(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	i := strings.Index(u.Path, "/upload/")
	if i == -1 {
		return "", false
	}
	segs := strings.Split(u.Path[i+len("/upload/"):], "/")
	return u.Host + u.Path[:i] + "/" + strings.Join(trimDelivery(segs), "/"), true
}

// trimDelivery drops everything up to a version segment, or failing that
// the leading transformation segments.
func trimDelivery(segs []string) []string {
	for j := 0; j < len(segs)-1; j++ {
		if versionSegment.MatchString(segs[j]) {
			return segs[j+1:]
		}
	}
	for len(segs) > 1 && transformSegment.MatchString(segs[0]) {
		segs = segs[1:]
	}
	return segs
}

func isPDF(s string) bool {
	return strings.HasSuffix(strings.ToLower(s), ".pdf")
}

func escapePath(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
