package render

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/youruser/bannerprint/internal/apperr"
	"github.com/youruser/bannerprint/internal/geometry"
)

// MissingContentMessage is returned when a design has nothing to print.
const MissingContentMessage = "Missing required fields - need image, text, or overlay"

const (
	// MaxTransformScale bounds the preview zoom of the base image.
	MaxTransformScale = 1000
	// MaxTranslatePx bounds the preview offset of the base image.
	MaxTranslatePx = 1_000_000
	// MaxOverlayPercent bounds overlay centers, which may sit off the banner.
	MaxOverlayPercent = 1000
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (f FieldError) String() string {
	if f.Param != "" {
		return fmt.Sprintf("%s failed %s=%s", f.Field, f.Rule, f.Param)
	}
	return fmt.Sprintf("%s failed %s", f.Field, f.Rule)
}

// Validator checks render requests. Every failure is a single validation error.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate returns nil or an apperr validation error listing the bad fields.
func (val *Validator) Validate(r *RenderRequest) error {
	if r == nil {
		return apperr.Validation("request body is required")
	}

	var fields []FieldError
	if err := val.v.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperr.Validation(err.Error())
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fieldPath(fe.Namespace()), Rule: fe.Tag(), Param: fe.Param()})
		}
	}
	fields = append(fields, crossFieldErrors(r)...)

	if len(fields) > 0 {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = f.String()
		}
		return apperr.Validation("invalid request: " + strings.Join(parts, "; ")).WithDetails(fields)
	}

	if !r.HasImage() && len(r.TextElements) == 0 && !r.HasOverlays() {
		return apperr.Validation(MissingContentMessage)
	}
	return nil
}

func crossFieldErrors(r *RenderRequest) []FieldError {
	var out []FieldError
	if strings.TrimSpace(r.FileKey) != "" && strings.TrimSpace(r.ImageURL) != "" {
		out = append(out, FieldError{Field: "imageUrl", Rule: "excluded_with", Param: "fileKey"})
	}
	if r.BleedIn != nil {
		if b := *r.BleedIn; math.IsNaN(b) || b < 0 || b > 2 {
			out = append(out, FieldError{Field: "bleedIn", Rule: "range", Param: "0-2"})
		}
	}
	if t := r.Transform; t != nil {
		if !within(t.Scale, MaxTransformScale) {
			out = append(out, FieldError{Field: "transform.scale", Rule: "lte", Param: strconv.Itoa(MaxTransformScale)})
		}
		if !within(t.TranslateXpx, MaxTranslatePx) {
			out = append(out, FieldError{Field: "transform.translateXpx", Rule: "range", Param: strconv.Itoa(MaxTranslatePx)})
		}
		if !within(t.TranslateYpx, MaxTranslatePx) {
			out = append(out, FieldError{Field: "transform.translateYpx", Rule: "range", Param: strconv.Itoa(MaxTranslatePx)})
		}
	}
	for i, o := range r.overlayImages() {
		if !within(o.Scale, MaxTransformScale) {
			out = append(out, FieldError{Field: fmt.Sprintf("overlay[%d].scale", i), Rule: "lte", Param: strconv.Itoa(MaxTransformScale)})
		}
		if o.Position != nil && (!within(o.Position.X, MaxOverlayPercent) || !within(o.Position.Y, MaxOverlayPercent)) {
			out = append(out, FieldError{Field: fmt.Sprintf("overlay[%d].position", i), Rule: "range", Param: strconv.Itoa(MaxOverlayPercent)})
		}
	}
	for i, t := range r.TextElements {
		if t.XPercent != nil && !finite(*t.XPercent) {
			out = append(out, FieldError{Field: fmt.Sprintf("textElements[%d].xPercent", i), Rule: "finite"})
		}
		if t.YPercent != nil && !finite(*t.YPercent) {
			out = append(out, FieldError{Field: fmt.Sprintf("textElements[%d].yPercent", i), Rule: "finite"})
		}
	}
	return out
}

// ValidateCanvas rejects a resolved layout whose raster would not fit in memory.
func (val *Validator) ValidateCanvas(g geometry.Geometry) error {
	if g.WithinBudget() {
		return nil
	}
	return apperr.Validation(fmt.Sprintf("print raster %dx%d exceeds %d pixels; lower targetDpi or the banner size",
		g.TargetPxW, g.TargetPxH, geometry.MaxCanvasPixels)).
		WithDetails([]FieldError{{Field: "targetDpi", Rule: "max_pixels", Param: strconv.Itoa(geometry.MaxCanvasPixels)}})
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func within(v, limit float64) bool {
	return finite(v) && math.Abs(v) <= limit
}
