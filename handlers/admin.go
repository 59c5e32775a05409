// winrahi/handlers/admin.go
package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"winrahi/models"

	"github.com/go-chi/chi/v5"
)

// HandleAdminReports lists reports for the moderation queue. The status
// query parameter narrows the list; the default is pending.
func HandleAdminReports(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminReports")

	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.ReportPending
	}
	if status != "all" && status != models.ReportPending && status != models.ReportResolved && status != models.ReportDismissed {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid report status filter."}, app)
		return
	}
	if status == "all" {
		status = ""
	}

	reports, err := app.DB().ListReports(status)
	if err != nil {
		logger.Error("Failed to list reports", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"reports": reports, "count": len(reports)}, app)
}

// HandleReviewReport resolves or dismisses a single report.
func HandleReviewReport(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleReviewReport")
	claims := GetClaims(r.Context())

	reportID, err := strconv.ParseInt(chi.URLParam(r, "reportID"), 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid report ID."}, app)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body."}, app)
		return
	}
	if req.Status != models.ReportResolved && req.Status != models.ReportDismissed {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Status must be resolved or dismissed."}, app)
		return
	}

	ok, err := app.DB().SetReportStatus(reportID, req.Status, claims.UserID)
	if err != nil {
		logger.Error("Failed to update report", "report_id", reportID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "Report not found."}, app)
		return
	}

	logger.Info("Report reviewed", "report_id", reportID, "status", req.Status, "admin_id", claims.UserID)
	respondJSON(w, http.StatusOK, map[string]string{"success": "Report updated."}, app)
}

// HandleAdminItems lists every item including inactive ones, with an
// optional free-text search over titles and descriptions.
func HandleAdminItems(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminItems")

	items, err := app.DB().ListAllItems(strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		logger.Error("Failed to list items for admin", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}
	if items == nil {
		items = []models.Item{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"items": items, "count": len(items)}, app)
}

// HandleAdminDeleteItem permanently removes an item, its reports, and its
// stored images.
func HandleAdminDeleteItem(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminDeleteItem")
	claims := GetClaims(r.Context())
	itemID := chi.URLParam(r, "itemID")

	imageURL, thumbURL, err := app.DB().HardDeleteItem(itemID, claims.UserID)
	if err == sql.ErrNoRows {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found."}, app)
		return
	}
	if err != nil {
		logger.Error("Failed to hard-delete item", "item_id", itemID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete item."}, app)
		return
	}

	for _, ref := range []string{imageURL, thumbURL} {
		if ref == "" {
			continue
		}
		if err := app.Storage().DeleteFile(ref); err != nil {
			logger.Error("Failed to delete stored image", "ref", ref, "error", err)
		}
	}

	logger.Info("Item permanently deleted", "item_id", itemID, "admin_id", claims.UserID)
	respondJSON(w, http.StatusOK, map[string]string{"success": "Item permanently deleted."}, app)
}

// HandleAdminDeactivateItem hides an item from public listings without
// destroying it, for cases where the owner should still see it.
func HandleAdminDeactivateItem(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminDeactivateItem")
	claims := GetClaims(r.Context())
	itemID := chi.URLParam(r, "itemID")

	ok, err := app.DB().DeactivateItem(itemID, claims.UserID)
	if err != nil {
		logger.Error("Failed to deactivate item", "item_id", itemID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found."}, app)
		return
	}

	logger.Info("Item deactivated", "item_id", itemID, "admin_id", claims.UserID)
	respondJSON(w, http.StatusOK, map[string]string{"success": "Item deactivated."}, app)
}

// HandleAdminUsers lists every profile.
func HandleAdminUsers(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminUsers")

	profiles, err := app.DB().ListProfiles()
	if err != nil {
		logger.Error("Failed to list profiles", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"users": profiles, "count": len(profiles)}, app)
}

// HandleGrantAdmin toggles the admin flag on a profile. An admin may not
// revoke their own access, so the site can never lock itself out.
func HandleGrantAdmin(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleGrantAdmin")
	claims := GetClaims(r.Context())
	userID := chi.URLParam(r, "userID")

	var req struct {
		IsAdmin bool `json:"is_admin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body."}, app)
		return
	}

	if userID == claims.UserID && !req.IsAdmin {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "You cannot revoke your own admin access."}, app)
		return
	}

	profile, err := app.DB().GetProfile(userID)
	if err != nil {
		logger.Error("Failed to load target profile", "user_id", userID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}
	if profile == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "User not found."}, app)
		return
	}

	if err := app.DB().SetAdmin(userID, req.IsAdmin, claims.UserID); err != nil {
		logger.Error("Failed to set admin flag", "user_id", userID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}

	logger.Info("Admin flag changed", "user_id", userID, "is_admin", req.IsAdmin, "admin_id", claims.UserID)
	respondJSON(w, http.StatusOK, map[string]string{"success": "User updated."}, app)
}

// HandleAdminLog returns the most recent moderation actions.
func HandleAdminLog(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminLog")

	limit := parseLimit(r.URL.Query().Get("limit"), 100)
	if limit > 500 {
		limit = 500
	}

	actions, err := app.DB().ListAdminActions(limit)
	if err != nil {
		logger.Error("Failed to list admin actions", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}
	if actions == nil {
		actions = []models.AdminAction{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"actions": actions, "count": len(actions)}, app)
}
