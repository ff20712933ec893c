package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/billing/pkg/provider"
	"github.com/dmitrymomot/billing/pkg/reconciler"
	"github.com/dmitrymomot/billing/pkg/response"
)

type webhookView struct {
	Status string `json:"status"`
}

// webhook answers 200 for every delivery the reconciler acknowledges, including
// those whose processing failed internally, and 400 for rejected ones.
func (h *handlers) webhook(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "provider") != h.provider.Name() {
		h.fail(w, r, ErrUnknownWebhookProvider)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, ErrPayloadTooLarge)
			return
		}
		h.fail(w, r, errors.Join(ErrInvalidRequest, err))
		return
	}

	out := h.reconciler.Handle(r.Context(), payload, r.Header)
	if out.Status == reconciler.Rejected {
		response.Error(w, errBadRequest.Status, errBadRequest.Code, provider.ErrMalformedEvent.Error())
		return
	}
	ok(w, webhookView{Status: out.Status.String()})
}
