package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/haneulsoft/reserve-notify/internal/apperr"
	"github.com/haneulsoft/reserve-notify/internal/model"
	"github.com/haneulsoft/reserve-notify/internal/service"
)

type ruleHandler struct {
	rules *service.RuleService
}

type rulePayload struct {
	Name         string            `json:"name"`
	SpaceID      *int64            `json:"space_id"`
	TemplateID   int64             `json:"template_id"`
	TriggerType  model.TriggerType `json:"trigger_type"`
	TimeType     model.TimeType    `json:"time_type"`
	OffsetValue  int               `json:"offset_value"`
	OffsetUnit   model.OffsetUnit  `json:"offset_unit"`
	Direction    model.Direction   `json:"direction"`
	Anchor       model.Anchor      `json:"anchor"`
	AbsoluteTime string            `json:"absolute_time"`
	Active       *bool             `json:"active"`
}

func (p *rulePayload) toModel(ownerID, id int64) *model.Rule {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return &model.Rule{
		ID:           id,
		OwnerID:      ownerID,
		Name:         p.Name,
		SpaceID:      p.SpaceID,
		TemplateID:   p.TemplateID,
		TriggerType:  p.TriggerType,
		TimeType:     p.TimeType,
		OffsetValue:  p.OffsetValue,
		OffsetUnit:   p.OffsetUnit,
		Direction:    p.Direction,
		Anchor:       p.Anchor,
		AbsoluteTime: p.AbsoluteTime,
		Active:       active,
	}
}

func (h *ruleHandler) create(w http.ResponseWriter, r *http.Request) {
	var payload rulePayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	rule := payload.toModel(OwnerFromContext(r.Context()), 0)
	if err := h.rules.Create(r.Context(), rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (h *ruleHandler) list(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context(), OwnerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rules})
}

func (h *ruleHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rule, err := h.rules.Get(r.Context(), OwnerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *ruleHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload rulePayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	rule := payload.toModel(OwnerFromContext(r.Context()), id)
	if err := h.rules.Update(r.Context(), rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *ruleHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.rules.Delete(r.Context(), OwnerFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NewValidation("id", "must be a positive integer")
	}
	return id, nil
}
