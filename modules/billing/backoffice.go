package billing

import "net/http"

type refundRequest struct {
	Reason string `json:"reason"`
}

func (h *handlers) refund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transaction_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req refundRequest
	if err := bindJSON(r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.engine.Refund(r.Context(), id, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	accepted(w, newTransactionView(t))
}

func (h *handlers) adminCancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "subscription_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := h.engine.AdminCancel(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	accepted(w, newSubscriptionView(sub))
}
