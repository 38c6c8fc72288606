package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wanderly/tour-bookings/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type reviewRequest struct {
	Review string  `json:"review" validate:"required"`
	Rating float64 `json:"rating" validate:"required,gte=1,lte=5"`
	Tour   string  `json:"tour"`
}

// reviewTourID prefers the nested route param over the body field.
func reviewTourID(r *http.Request, body string) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, "tourID")
	if raw == "" {
		raw = body
	}
	return primitive.ObjectIDFromHex(raw)
}

func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	var tourID primitive.ObjectID
	if raw := chi.URLParam(r, "tourID"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid tour id")
			return
		}
		tourID = id
	}

	reviews, err := h.reviews.List(r.Context(), tourID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{
		"status":  "success",
		"results": len(reviews),
		"data":    envelope{"reviews": reviews},
	})
}

func (h *Handlers) GetReview(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	review, err := h.reviews.GetByID(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, envelope{"review": review})
}

func (h *Handlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	tourID, err := reviewTourID(r, req.Tour)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid tour id")
		return
	}
	if _, err := h.tours.GetByID(r.Context(), tourID); err != nil {
		h.respondDomainError(w, err)
		return
	}

	// The author is always the logged-in user, never the body.
	review := domain.Review{
		Review: req.Review,
		Rating: req.Rating,
		Tour:   tourID,
		User:   currentUser(r).ID,
	}
	if err := h.reviews.Create(r.Context(), &review); err != nil {
		if err == domain.ErrConflict {
			respondError(w, http.StatusConflict, "you already reviewed this tour")
			return
		}
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, envelope{"review": review})
}

// reviewMutable guards updates/deletes: regular users may only touch
// their own reviews, admins may touch any.
func (h *Handlers) reviewMutable(r *http.Request, review *domain.Review) bool {
	user := currentUser(r)
	return user.Role == domain.RoleAdmin || review.User == user.ID
}

func (h *Handlers) UpdateReview(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.reviews.GetByID(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if !h.reviewMutable(r, existing) {
		h.respondDomainError(w, domain.ErrForbidden)
		return
	}

	var req struct {
		Review string  `json:"review"`
		Rating float64 `json:"rating" validate:"omitempty,gte=1,lte=5"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	set := bson.M{}
	if req.Review != "" {
		set["review"] = req.Review
	}
	if req.Rating != 0 {
		set["rating"] = req.Rating
	}
	if len(set) == 0 {
		respondError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	review, err := h.reviews.Update(r.Context(), id, set)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, envelope{"review": review})
}

func (h *Handlers) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.reviews.GetByID(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if !h.reviewMutable(r, existing) {
		h.respondDomainError(w, domain.ErrForbidden)
		return
	}

	if err := h.reviews.Delete(r.Context(), id); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
