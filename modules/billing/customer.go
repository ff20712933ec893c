package billing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/ledger"
)

type addPaymentMethodRequest struct {
	ButtonText string `json:"button_text"`
	ReturnURL  string `json:"return_url"`
}

type subscribeRequest struct {
	PaymentMethodID *uuid.UUID `json:"payment_method_id"`
}

func (h *handlers) listPaymentMethods(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	methods, err := h.methods.ListActive(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, mapSlice(methods, newPaymentMethodView))
}

func (h *handlers) addPaymentMethod(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req addPaymentMethodRequest
	if err := bindJSON(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ReturnURL == "" {
		h.fail(w, r, fmt.Errorf("%w: return_url is required", ErrInvalidRequest))
		return
	}
	form, err := h.provider.AddPaymentMethod(r.Context(), userID, req.ButtonText, req.ReturnURL)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, form)
}

func (h *handlers) setDefaultPaymentMethod(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.methods.SetDefault(r.Context(), userID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

// removePaymentMethod detaches the method at the provider. The ledger row is
// deactivated when the provider confirms the detach through a webhook.
func (h *handlers) removePaymentMethod(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pm, err := h.methods.CheckRemovable(r.Context(), userID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.provider.RemovePaymentMethod(r.Context(), userID, pm.ProviderMethodID); err != nil {
		h.fail(w, r, err)
		return
	}
	accepted(w, newPaymentMethodView(*pm))
}

func (h *handlers) currentSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cur, err := h.engine.Current(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, newCurrentView(cur))
}

func (h *handlers) subscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	planID, err := pathID(r, "plan_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req subscribeRequest
	if err := bindJSON(r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.engine.Subscribe(r.Context(), userID, planID, req.PaymentMethodID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	accepted(w, newSubscribeView(res))
}

func (h *handlers) renew(w http.ResponseWriter, r *http.Request) {
	h.setRenewal(w, r, h.engine.Renew)
}

func (h *handlers) unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.setRenewal(w, r, h.engine.Unsubscribe)
}

func (h *handlers) setRenewal(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID uuid.UUID) (*ledger.Subscription, error)) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := fn(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, newSubscriptionView(sub))
}

func (h *handlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	txs, err := h.transactions.List(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, mapSlice(txs, func(t ledger.Transaction) *transactionView { return newTransactionView(&t) }))
}
