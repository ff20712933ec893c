package billing

import (
	"net/http"
)

func (h *handlers) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.engine.Plans(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, mapSlice(plans, newPlanView))
}

func (h *handlers) getPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	plan, err := h.engine.Plan(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, newPlanView(*plan))
}
