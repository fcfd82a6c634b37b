package api

import (
	"net/http"

	"github.com/haneulsoft/reserve-notify/internal/service"
)

type messageHandler struct {
	dispatcher *service.Dispatcher
}

type sendPayload struct {
	Content     string                   `json:"content"`
	Recipients  []service.BatchRecipient `json:"recipients"`
	Attachments []string                 `json:"attachments"`
}

// send fans out one ad-hoc message to every recipient. Partial failure is a
// 200 with per-recipient outcomes; only a rejected request is an error.
func (h *messageHandler) send(w http.ResponseWriter, r *http.Request) {
	var payload sendPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.dispatcher.SendBatch(r.Context(), service.SendBatchRequest{
		OwnerID:     OwnerFromContext(r.Context()),
		Content:     payload.Content,
		Recipients:  payload.Recipients,
		Attachments: payload.Attachments,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
