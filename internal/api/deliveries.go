package api

import (
	"net/http"

	"github.com/haneulsoft/reserve-notify/internal/cache"
	"github.com/haneulsoft/reserve-notify/internal/repo"
)

type deliveryHandler struct {
	deliveries repo.DeliveryRepository
	receipts   cache.ReceiptCache
}

func (h *deliveryHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := queryInt(q.Get("page"), 1)
	limit := queryInt(q.Get("limit"), 20)
	if limit > 100 {
		limit = 100
	}

	filter := repo.DeliveryFilter{
		Status:  q.Get("status"),
		Channel: q.Get("channel"),
		Search:  q.Get("search"),
		Limit:   limit,
		Offset:  (page - 1) * limit,
	}

	ownerID := OwnerFromContext(r.Context())
	logs, total, err := h.deliveries.List(r.Context(), ownerID, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.deliveries.Stats(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       logs,
		"statistics": stats,
		"pagination": map[string]int{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// receipt serves the cached provider acknowledgement for a ledger row.
// Receipts are TTL-bounded and the cache is optional, so absence is a
// plain 404, not an error.
func (h *deliveryHandler) receipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.receipts == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "receipt not found"})
		return
	}

	rc, ok, err := h.receipts.GetReceipt(r.Context(), OwnerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "receipt not found"})
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (h *deliveryHandler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deliveries.Stats(r.Context(), OwnerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
