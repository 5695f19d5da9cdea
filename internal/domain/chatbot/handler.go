package chatbot

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/patient360/portal/internal/platform/validation"
)

type sendRequest struct {
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

type Handler struct {
	responder *Responder
}

func NewHandler(r *Responder) *Handler {
	return &Handler{responder: r}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/chatbot/send", h.Send)
}

func (h *Handler) Send(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return validation.BindError(err)
	}
	return c.JSON(http.StatusOK, h.responder.Respond(c.Request().Context(), req.Message, req.Context))
}
