package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusByKind(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Validation("missing orderId"), http.StatusBadRequest},
		{FetchTimeout("http://x", nil), http.StatusInternalServerError},
		{FetchError(404, "http://x", nil), http.StatusInternalServerError},
		{Decode(errors.New("bad")), http.StatusInternalServerError},
		{Render(errors.New("bad")), http.StatusInternalServerError},
		{Aborted(nil), http.StatusInternalServerError},
		{Unavailable("no storage"), http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.err.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.HTTPStatus())
		})
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := FetchError(502, "http://cdn/a.png", nil).WithStage(StageAcquire)
	wrapped := fmt.Errorf("loading artwork: %w", base)

	assert.True(t, Is(wrapped, KindFetchError))
	e, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, 502, e.Status)
	assert.Equal(t, StageAcquire, e.Stage)
}

func TestWithStageDoesNotMutateOriginal(t *testing.T) {
	orig := Decode(errors.New("truncated"))
	tagged := orig.WithStage(StageOverlay)

	assert.Equal(t, Stage(""), orig.Stage)
	assert.Equal(t, StageOverlay, tagged.Stage)
	assert.Contains(t, tagged.Error(), "overlay: failed to decode image: truncated")
}

func TestStageOf(t *testing.T) {
	assert.Nil(t, StageOf(nil, StageRender))

	plain := StageOf(errors.New("boom"), StageComposite)
	assert.True(t, Is(plain, KindInternal))
	e, _ := As(plain)
	assert.Equal(t, StageComposite, e.Stage)

	kept := StageOf(Validation("x"), StageRender)
	e, _ = As(kept)
	assert.Equal(t, StageValidate, e.Stage)
}
