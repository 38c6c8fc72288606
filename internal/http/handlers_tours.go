package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wanderly/tour-bookings/internal/domain"
	"github.com/wanderly/tour-bookings/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (h *Handlers) ListTours(w http.ResponseWriter, r *http.Request) {
	features := query.Parse(r.URL.Query())
	tours, err := h.tours.List(r.Context(), features)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{
		"status":  "success",
		"results": len(tours),
		"data":    envelope{"tours": tours},
	})
}

// TopTours pins the query to the five cheapest well-rated tours before
// delegating to the regular listing.
func (h *Handlers) TopTours(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	q.Set("limit", "5")
	q.Set("sort", "-ratingsAverage,price")
	q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
	r.URL.RawQuery = q.Encode()
	h.ListTours(w, r)
}

func (h *Handlers) GetTour(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if h.tourCache != nil {
		if tour, err := h.tourCache.Get(r.Context(), id.Hex()); err == nil && tour != nil {
			respondData(w, http.StatusOK, envelope{"tour": tour})
			return
		}
	}

	tour, err := h.tours.GetByID(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	if h.tourCache != nil {
		if err := h.tourCache.Set(r.Context(), tour); err != nil {
			h.logger.Warn("failed to cache tour", err)
		}
	}
	respondData(w, http.StatusOK, envelope{"tour": tour})
}

func (h *Handlers) GetTourBySlug(w http.ResponseWriter, r *http.Request) {
	tour, err := h.tours.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, envelope{"tour": tour})
}

type tourRequest struct {
	Name          string            `json:"name" validate:"required,min=5,max=50"`
	Duration      int               `json:"duration" validate:"required,gt=0"`
	MaxGroupSize  int               `json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty    domain.Difficulty `json:"difficulty" validate:"required,oneof=easy medium difficult"`
	Price         float64           `json:"price" validate:"required,gt=0"`
	PriceDiscount float64           `json:"priceDiscount" validate:"omitempty,ltfield=Price"`
	Summary       string            `json:"summary" validate:"required"`
	Description   string            `json:"description"`
	ImageCover    string            `json:"imageCover" validate:"required"`
	Images        []string          `json:"images"`
	StartDates    []string          `json:"startDates"`
	SecretTour    bool              `json:"secretTour"`
	StartLocation *domain.Location  `json:"startLocation"`
	Locations     []domain.Location `json:"locations"`
}

func (h *Handlers) CreateTour(w http.ResponseWriter, r *http.Request) {
	var req tourRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	startDates, err := parseDates(req.StartDates)
	if err != nil {
		respondError(w, http.StatusBadRequest, "startDates must be RFC 3339 timestamps")
		return
	}

	tour := domain.Tour{
		Name:          req.Name,
		Duration:      req.Duration,
		MaxGroupSize:  req.MaxGroupSize,
		Difficulty:    req.Difficulty,
		Price:         req.Price,
		PriceDiscount: req.PriceDiscount,
		Summary:       req.Summary,
		Description:   req.Description,
		ImageCover:    req.ImageCover,
		Images:        req.Images,
		StartDates:    startDates,
		SecretTour:    req.SecretTour,
		StartLocation: req.StartLocation,
		Locations:     req.Locations,
	}
	if err := h.tours.Create(r.Context(), &tour); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, envelope{"tour": tour})
}

func (h *Handlers) UpdateTour(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var set bson.M
	if err := decodeJSON(r, &set); err != nil {
		h.respondDomainError(w, err)
		return
	}
	// Rating aggregates are owned by the ratings worker.
	delete(set, "ratingsAverage")
	delete(set, "ratingsQuantity")
	delete(set, "_id")
	if len(set) == 0 {
		respondError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if price, ok := set["price"].(float64); ok && price <= 0 {
		respondError(w, http.StatusBadRequest, "a tour must have a positive price")
		return
	}

	tour, err := h.tours.Update(r.Context(), id, set)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if h.tourCache != nil {
		h.tourCache.Invalidate(r.Context(), id.Hex())
	}
	respondData(w, http.StatusOK, envelope{"tour": tour})
}

func (h *Handlers) DeleteTour(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.tours.Delete(r.Context(), id); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if h.tourCache != nil {
		h.tourCache.Invalidate(r.Context(), id.Hex())
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handlers) TourStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tours.Stats(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, envelope{"stats": stats})
}

func (h *Handlers) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid year")
		return
	}
	plan, err := h.tours.MonthlyPlan(r.Context(), year)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, envelope{"plan": plan})
}

func parseDates(raw []string) ([]time.Time, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dates := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, err
		}
		dates = append(dates, t)
	}
	return dates, nil
}

func parseLatLng(raw string) (lat, lng float64, ok bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLng != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

func (h *Handlers) ToursWithin(w http.ResponseWriter, r *http.Request) {
	distance, err := strconv.ParseFloat(chi.URLParam(r, "distance"), 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid distance")
		return
	}
	lat, lng, ok := parseLatLng(chi.URLParam(r, "latlng"))
	if !ok {
		respondError(w, http.StatusBadRequest, "please provide latitude and longitude in the format lat,lng")
		return
	}

	tours, err := h.tours.Within(r.Context(), lat, lng, distance, chi.URLParam(r, "unit"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{
		"status":  "success",
		"results": len(tours),
		"data":    envelope{"tours": tours},
	})
}

func (h *Handlers) TourDistances(w http.ResponseWriter, r *http.Request) {
	lat, lng, ok := parseLatLng(chi.URLParam(r, "latlng"))
	if !ok {
		respondError(w, http.StatusBadRequest, "please provide latitude and longitude in the format lat,lng")
		return
	}

	distances, err := h.tours.Distances(r.Context(), lat, lng, chi.URLParam(r, "unit"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, envelope{"distances": distances})
}
