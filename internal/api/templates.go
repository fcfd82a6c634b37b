package api

import (
	"net/http"

	"github.com/haneulsoft/reserve-notify/internal/model"
	"github.com/haneulsoft/reserve-notify/internal/service"
)

type templateHandler struct {
	templates *service.TemplateService
}

type templatePayload struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Category string `json:"category"`
	Active   *bool  `json:"active"`
}

func (p *templatePayload) toModel(ownerID, id int64) *model.Template {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return &model.Template{
		ID:       id,
		OwnerID:  ownerID,
		Name:     p.Name,
		Content:  p.Content,
		Category: p.Category,
		Active:   active,
	}
}

func (h *templateHandler) create(w http.ResponseWriter, r *http.Request) {
	var payload templatePayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	tpl := payload.toModel(OwnerFromContext(r.Context()), 0)
	if err := h.templates.Create(r.Context(), tpl); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (h *templateHandler) list(w http.ResponseWriter, r *http.Request) {
	tpls, err := h.templates.List(r.Context(), OwnerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": tpls})
}

func (h *templateHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	tpl, err := h.templates.Get(r.Context(), OwnerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (h *templateHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload templatePayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	tpl := payload.toModel(OwnerFromContext(r.Context()), id)
	if err := h.templates.Update(r.Context(), tpl); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (h *templateHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.templates.Delete(r.Context(), OwnerFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
