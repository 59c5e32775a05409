// winrahi/handlers/handlers.go
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"winrahi/database"
	"winrahi/listing"
	"winrahi/models"

	"github.com/go-chi/chi/v5"
)

// App is an interface that defines the dependencies our handlers need.
type App interface {
	DB() *database.DatabaseService
	RateLimiter() *models.RateLimiter
	Logger() *slog.Logger
	Storage() models.StorageService
	UploadDir() string
	JWTSecret() string
}

// respondJSON sends a JSON response with a given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}, app App) {
	response, err := json.Marshal(payload)
	if err != nil {
		app.Logger().Error("Failed to marshal JSON payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write([]byte(`{"error":"Failed to marshal JSON response"}`)); werr != nil {
			app.Logger().Error("Failed to write internal server error response", "error", werr)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		app.Logger().Error("Failed to write JSON response", "error", err)
	}
}

// decodeJSON reads a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// MakeHandler adapts an App-aware handler function to http.HandlerFunc.
func MakeHandler(app App, fn func(http.ResponseWriter, *http.Request, App)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, app)
	}
}

// HandleListItems serves the public listing with the full filter surface.
func HandleListItems(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleListItems")
	q := r.URL.Query()

	filters := models.ItemFilters{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Wilaya:   q.Get("wilaya"),
		Commune:  q.Get("commune"),
		Search:   q.Get("q"),
	}

	items, err := app.DB().ListActiveItems(filters.Search)
	if err != nil {
		logger.Error("DB error listing items", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error loading items."}, app)
		return
	}

	visible := listing.Apply(items, filters)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": visible,
		"count": len(visible),
	}, app)
}

// HandleItemDetail serves a single item. Missing or deactivated items
// render the not-found state; the view counter bump is fire-and-forget.
func HandleItemDetail(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleItemDetail")
	itemID := chi.URLParam(r, "itemID")

	item, err := app.DB().GetItem(itemID, true)
	if err != nil {
		logger.Error("DB error getting item", "item_id", itemID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error loading item."}, app)
		return
	}
	if item == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found."}, app)
		return
	}

	go func() {
		if err := app.DB().IncrementViews(itemID); err != nil {
			logger.Warn("Failed to increment item views", "item_id", itemID, "error", err)
		}
	}()

	respondJSON(w, http.StatusOK, item, app)
}

// HandleStats serves the public aggregate counters for the home page.
func HandleStats(w http.ResponseWriter, r *http.Request, app App) {
	stats, err := app.DB().Stats()
	if err != nil {
		app.Logger().Error("Failed to compute stats", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error loading stats."}, app)
		return
	}
	respondJSON(w, http.StatusOK, stats, app)
}

// HandleDashboard serves the caller's own items, including resolved and
// inactive ones, plus their aggregate counters.
func HandleDashboard(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleDashboard")
	claims := GetClaims(r.Context())

	items, err := app.DB().ListItemsByOwner(claims.UserID)
	if err != nil {
		logger.Error("DB error listing owner items", "user_id", claims.UserID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error loading your items."}, app)
		return
	}
	stats, err := app.DB().OwnerStats(claims.UserID)
	if err != nil {
		logger.Error("DB error aggregating owner stats", "user_id", claims.UserID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error loading your stats."}, app)
		return
	}
	if items == nil {
		items = []models.Item{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"stats": stats,
	}, app)
}

// HandleGetProfile serves the caller's profile.
func HandleGetProfile(w http.ResponseWriter, r *http.Request, app App) {
	claims := GetClaims(r.Context())
	profile, err := app.DB().GetProfile(claims.UserID)
	if err != nil {
		app.Logger().Error("DB error getting profile", "user_id", claims.UserID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error loading profile."}, app)
		return
	}
	if profile == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "Profile not found."}, app)
		return
	}
	respondJSON(w, http.StatusOK, profile, app)
}

// HandleUpdateProfile updates the owner-editable profile fields. The admin
// flag is server-controlled and never writable here.
func HandleUpdateProfile(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleUpdateProfile")
	claims := GetClaims(r.Context())

	var req struct {
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body."}, app)
		return
	}
	if req.FullName == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Full name is required."}, app)
		return
	}

	if err := app.DB().UpdateProfile(claims.UserID, req.FullName, req.Phone); err != nil {
		logger.Error("Failed to update profile", "user_id", claims.UserID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update profile."}, app)
		return
	}

	profile, err := app.DB().GetProfile(claims.UserID)
	if err != nil || profile == nil {
		respondJSON(w, http.StatusOK, map[string]string{"success": "Profile updated."}, app)
		return
	}
	respondJSON(w, http.StatusOK, profile, app)
}
