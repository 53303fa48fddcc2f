package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/youruser/bannerprint/internal/apperr"
	"github.com/youruser/bannerprint/internal/assets"
	imagepkg "github.com/youruser/bannerprint/internal/image"
	"github.com/youruser/bannerprint/internal/logging"
	"github.com/youruser/bannerprint/internal/orders"
	"github.com/youruser/bannerprint/internal/render"
)

// FinalBannersFolder is where uploaded print files live.
const FinalBannersFolder = "final_banners"

type Renderer interface {
	Run(ctx context.Context, req *render.RenderRequest) (*render.Result, error)
}

type Uploader interface {
	Upload(ctx context.Context, folder, fileName, contentType string, data []byte) (*assets.StoredObject, error)
}

type OrderRecorder interface {
	MarkRendered(ctx context.Context, rec orders.RenderRecord) error
}

// Handler serves the render API. uploader and recorder may be nil.
type Handler struct {
	renderer      Renderer
	uploader      Uploader
	recorder      OrderRecorder
	publicBaseURL string
}

func NewHandler(r Renderer, u Uploader, o OrderRecorder, publicBaseURL string) *Handler {
	return &Handler{renderer: r, uploader: u, recorder: o, publicBaseURL: publicBaseURL}
}

// health
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// renderOrderPDF streams the print-ready PDF back to the caller.
func (h *Handler) renderOrderPDF(c *gin.Context) {
	var req render.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: "+err.Error()))
		return
	}

	res, err := h.renderer.Run(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	setPDFHeaders(c, res)
	c.Data(http.StatusOK, "application/pdf", res.PDF)
}

type printFileResponse struct {
	FinalPDFURL string      `json:"finalPdfUrl"`
	PublicID    string      `json:"publicId"`
	DPI         int         `json:"dpi"`
	BleedIn     float64     `json:"bleedIn"`
	RenderedAt  time.Time   `json:"renderedAt"`
	Meta        render.Meta `json:"meta"`
}

// createPrintFile renders the order, stores the PDF and records it on the order.
func (h *Handler) createPrintFile(c *gin.Context) {
	if h.uploader == nil {
		writeError(c, apperr.Unavailable("print file storage is not configured").WithStage(apperr.StageStore))
		return
	}
	id := c.Param("id")

	var req render.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: "+err.Error()))
		return
	}
	if req.OrderID == "" {
		req.OrderID = id
	} else if req.OrderID != id {
		writeError(c, apperr.Validation(fmt.Sprintf("orderId %q does not match order %q", req.OrderID, id)))
		return
	}

	ctx := c.Request.Context()
	res, err := h.renderer.Run(ctx, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	obj, err := h.uploader.Upload(ctx, FinalBannersFolder, res.FileName(), "application/pdf", res.PDF)
	if err != nil {
		writeError(c, apperr.Internal("failed to store print file", err).WithStage(apperr.StageStore))
		return
	}

	renderedAt := time.Now().UTC()
	meta := res.Meta()
	if h.recorder != nil {
		rec := orders.RenderRecord{OrderID: id, PDFURL: obj.URL, PublicID: obj.Key, RenderedAt: renderedAt, Meta: meta}
		if err := h.recorder.MarkRendered(ctx, rec); err != nil {
			logging.Warn("failed to record print file on order", "order_id", id, "public_id", obj.Key, "error", err)
		}
	}

	logging.Info("print file stored", "order_id", id, "public_id", obj.Key, "bytes", len(res.PDF))
	c.JSON(http.StatusOK, printFileResponse{
		FinalPDFURL: obj.URL,
		PublicID:    obj.Key,
		DPI:         res.Geometry.DPI,
		BleedIn:     res.Geometry.BleedIn,
		RenderedAt:  renderedAt,
		Meta:        meta,
	})
}

// orderQR returns a PNG QR code linking to the order's tracking page.
func (h *Handler) orderQR(c *gin.Context) {
	if h.publicBaseURL == "" {
		writeError(c, apperr.Unavailable("public base URL is not configured"))
		return
	}
	size := imagepkg.DefaultQRSize
	if s := c.Query("size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeError(c, apperr.Validation("size must be an integer"))
			return
		}
		size = v
	}
	if size < imagepkg.MinQRSize || size > imagepkg.MaxQRSize {
		writeError(c, apperr.Validation(fmt.Sprintf("size must be between %d and %d", imagepkg.MinQRSize, imagepkg.MaxQRSize)))
		return
	}

	b, err := imagepkg.GenerateQRPNG(imagepkg.OrderTrackingURL(h.publicBaseURL, c.Param("id")), size)
	if err != nil {
		writeError(c, apperr.Internal("failed to generate qr code", err))
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

func setPDFHeaders(c *gin.Context, res *render.Result) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, res.FileName()))
	c.Header("X-PDF-DPI", strconv.Itoa(res.Geometry.DPI))
	c.Header("X-PDF-Bleed", strconv.FormatFloat(res.Geometry.BleedIn, 'f', -1, 64))
}
