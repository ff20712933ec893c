package billing

import (
	"net/http"

	"github.com/dmitrymomot/billing/pkg/response"
)

func ok(w http.ResponseWriter, data any) {
	response.Data(w, http.StatusOK, data)
}

func accepted(w http.ResponseWriter, data any) {
	response.Data(w, http.StatusAccepted, data)
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
