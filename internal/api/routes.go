package api

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the API. limit guards the render endpoints.
func RegisterRoutes(r *gin.Engine, h *Handler, limit ...gin.HandlerFunc) {
	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.GET("/orders/:id/qr", h.orderQR)
	}

	renders := api.Group("", limit...)
	{
		renders.POST("/render-order-pdf", h.renderOrderPDF)
		renders.POST("/orders/:id/print-file", h.createPrintFile)
	}
}
