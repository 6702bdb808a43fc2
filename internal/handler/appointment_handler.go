package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lexcal-scheduler/internal/schedule"
)

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in schedule.CreateInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.svc.Create(r.Context(), viewer(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, schedule.FullView(a))
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	var in schedule.RequestInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.svc.Request(r.Context(), viewer(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, schedule.FullView(a))
}

// handleByUser serves a user's records, merged with a lawyer's calendar
// when ?lawyerId= is given.
func (h *Handler) handleByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	var (
		views []schedule.View
		err   error
	)
	if lawyerID := r.URL.Query().Get("lawyerId"); lawyerID != "" {
		views, err = h.svc.CalendarFor(r.Context(), viewer(r), userID, lawyerID)
	} else {
		views, err = h.svc.ListForUser(r.Context(), viewer(r), userID)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleByLawyer(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListForLawyer(r.Context(), viewer(r), chi.URLParam(r, "lawyerId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListPendingForLawyer(r.Context(), viewer(r), chi.URLParam(r, "lawyerId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	var in schedule.RespondInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.svc.Respond(r.Context(), viewer(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule.FullView(a))
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	var in schedule.EditInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.svc.Update(r.Context(), viewer(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule.FullView(a))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Cancel(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule.FullView(a))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), viewer(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}
