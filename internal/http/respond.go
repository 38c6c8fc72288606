package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/wanderly/tour-bookings/internal/domain"
)

type envelope map[string]interface{}

func respond(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	respond(w, status, envelope{"status": "success", "data": data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	statusWord := "fail"
	if status >= 500 {
		statusWord = "error"
	}
	respond(w, status, envelope{"status": statusWord, "message": message})
}

// respondDomainError maps sentinel errors to their HTTP status. Anything
// unclassified becomes a 500 with no internal detail in production; the
// full error goes to the log either way.
func (h *Handlers) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, "duplicate value")
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidTour):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, "you do not have permission to perform this action")
	case errors.Is(err, domain.ErrPaymentProvider):
		respondError(w, http.StatusBadGateway, "payment provider is unavailable, checkout failed")
	default:
		h.logger.Error("unhandled error", err)
		if h.cfg.Production() {
			respondError(w, http.StatusInternalServerError, "something went wrong")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Mark(errors.Wrap(err, "decode request body"), domain.ErrInvalidInput)
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "invalid value for field " + verrs[0].Field()
	}
	return err.Error()
}
