package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/core"
)

type TicketHandler struct {
	tickets Tickets
}

func NewTicketHandler(tickets Tickets) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// QRCode - PNG of a ticket's entry credential, once revealed
func (h *TicketHandler) QRCode(e *core.RequestEvent) error {
	size, _ := strconv.Atoi(e.Request.URL.Query().Get("size"))

	png, err := h.tickets.QRImage(e.Request.Context(), e.Request.PathValue("ticketId"), size)
	if err != nil {
		return apiError("h.tickets.QRImage()", err)
	}

	e.Response.Header().Set("Cache-Control", "no-store")
	return e.Blob(http.StatusOK, "image/png", png)
}
