// winrahi/handlers/actions.go
package handlers

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif" // Import gif decoder
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"winrahi/config"
	"winrahi/models"
	"winrahi/utils"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

// HandleCreateItem creates a new lost/found report from a multipart form.
func HandleCreateItem(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleCreateItem")
	claims := GetClaims(r.Context())

	ip := utils.GetIPAddress(r)
	if !app.RateLimiter().GetLimiter(ip).Allow() {
		logger.Warn("Rate limit exceeded", "ip", ip)
		respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded. Please wait a moment."}, app)
		return
	}

	if err := r.ParseMultipartForm(config.MaxFileSize + 1024); err != nil {
		logger.Warn("Form parsing error", "error", err)
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Form parsing error: " + err.Error()}, app)
		return
	}

	item := &models.Item{
		ID:              uuid.New().String(),
		UserID:          claims.UserID,
		Title:           strings.TrimSpace(r.FormValue("title")),
		Description:     strings.TrimSpace(r.FormValue("description")),
		Category:        r.FormValue("category"),
		Status:          r.FormValue("status"),
		Wilaya:          r.FormValue("wilaya"),
		Commune:         r.FormValue("commune"),
		DateLostFound:   r.FormValue("date_lost_found"),
		ContactPhone:    strings.TrimSpace(r.FormValue("contact_phone")),
		ContactEmail:    strings.TrimSpace(r.FormValue("contact_email")),
		ContactFacebook: strings.TrimSpace(r.FormValue("contact_facebook")),
	}

	if msg := validateItemDraft(item); msg != "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": msg}, app)
		return
	}

	imageURL, thumbURL, _, hasImage, err := processImage(r, app, logger)
	if err != nil {
		logger.Warn("Image processing failed", "error", err)
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Image processing failed: " + err.Error()}, app)
		return
	}
	if hasImage {
		item.ImageURL = imageURL
		item.ThumbnailURL = thumbURL
	}

	if err := app.DB().CreateItem(item); err != nil {
		logger.Error("Failed to insert new item", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error creating item."}, app)
		return
	}

	logger.Info("New item created", "item_id", item.ID, "category", item.Category, "status", item.Status)
	respondJSON(w, http.StatusCreated, item, app)
}

// HandleUpdateItem mutates an item. Owners may edit their own items;
// admins may edit anything.
func HandleUpdateItem(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleUpdateItem")
	claims := GetClaims(r.Context())
	itemID := chi.URLParam(r, "itemID")

	item, err := app.DB().GetItem(itemID, false)
	if err != nil {
		logger.Error("DB error getting item for update", "item_id", itemID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}
	if item == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found."}, app)
		return
	}

	if item.UserID != claims.UserID {
		profile, err := app.DB().GetProfile(claims.UserID)
		if err != nil || profile == nil || !profile.IsAdmin {
			logger.Warn("User tried to update an item they do not own", "user_id", claims.UserID, "item_id", itemID)
			respondJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to edit this item."}, app)
			return
		}
	}

	var patch struct {
		Title           *string `json:"title"`
		Description     *string `json:"description"`
		Status          *string `json:"status"`
		IsActive        *bool   `json:"is_active"`
		ContactPhone    *string `json:"contact_phone"`
		ContactEmail    *string `json:"contact_email"`
		ContactFacebook *string `json:"contact_facebook"`
	}
	if err := decodeJSON(r, &patch); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body."}, app)
		return
	}

	if patch.Title != nil {
		item.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		item.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.IsActive != nil {
		item.IsActive = *patch.IsActive
	}
	if patch.ContactPhone != nil {
		item.ContactPhone = strings.TrimSpace(*patch.ContactPhone)
	}
	if patch.ContactEmail != nil {
		item.ContactEmail = strings.TrimSpace(*patch.ContactEmail)
	}
	if patch.ContactFacebook != nil {
		item.ContactFacebook = strings.TrimSpace(*patch.ContactFacebook)
	}

	if msg := validateItemDraft(item); msg != "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": msg}, app)
		return
	}

	if err := app.DB().UpdateItem(item); err != nil {
		logger.Error("Failed to update item", "item_id", itemID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error updating item."}, app)
		return
	}

	respondJSON(w, http.StatusOK, item, app)
}

// HandleDeleteItem is the owner-initiated soft delete.
func HandleDeleteItem(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleDeleteItem")
	claims := GetClaims(r.Context())
	itemID := chi.URLParam(r, "itemID")

	ok, err := app.DB().SoftDeleteItem(itemID, claims.UserID)
	if err != nil {
		logger.Error("Failed to soft-delete item", "item_id", itemID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete item."}, app)
		return
	}
	if !ok {
		logger.Warn("User failed to delete item they do not own", "user_id", claims.UserID, "item_id", itemID)
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to delete this item."}, app)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"success": "Item deleted successfully."}, app)
}

// HandleReport files a complaint against an item. Works for anonymous
// callers; an authenticated caller is recorded as the reporter.
func HandleReport(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleReport")

	ip := utils.GetIPAddress(r)
	if !app.RateLimiter().GetLimiter(ip).Allow() {
		logger.Warn("Rate limit exceeded for report", "ip", ip)
		respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded. Please wait a moment."}, app)
		return
	}

	var req struct {
		ItemID  string `json:"item_id"`
		Reason  string `json:"reason"`
		Details string `json:"details"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body."}, app)
		return
	}

	if req.ItemID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid item ID provided."}, app)
		return
	}
	if !models.ValidReportReason(req.Reason) {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid report reason. Valid reasons: " + strings.Join(models.ReportReasons, ", ") + "."}, app)
		return
	}
	if len(req.Details) > config.MaxReportLen {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Report details exceed the maximum length."}, app)
		return
	}

	item, err := app.DB().GetItem(req.ItemID, true)
	if err != nil {
		logger.Error("DB error checking reported item", "item_id", req.ItemID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}
	if item == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found."}, app)
		return
	}

	var reporterID sql.NullString
	if claims := GetClaims(r.Context()); claims != nil {
		reporterID = sql.NullString{String: claims.UserID, Valid: true}
	}

	reportID, err := app.DB().CreateReport(req.ItemID, reporterID, req.Reason, strings.TrimSpace(req.Details))
	if err != nil {
		logger.Error("Failed to insert new report", "item_id", req.ItemID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to submit report."}, app)
		return
	}

	logger.Info("New report filed", "report_id", reportID, "item_id", req.ItemID, "reason", req.Reason)
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":      reportID,
		"success": "Report submitted successfully.",
	}, app)
}

// --- Internal Helper Functions ---

// validateItemDraft checks the posting-form invariants server-side before
// any row is written. Returns an empty string when the draft is valid.
func validateItemDraft(item *models.Item) string {
	switch {
	case item.Title == "":
		return "Title is required."
	case len(item.Title) > config.MaxTitleLen:
		return "Title exceeds the maximum length."
	case item.Description == "":
		return "Description is required."
	case len(item.Description) > config.MaxDescriptionLen:
		return "Description exceeds the maximum length."
	case !models.ValidCategory(item.Category):
		return "Invalid or missing category."
	case !models.ValidStatus(item.Status):
		return "Invalid or missing status."
	case item.Wilaya == "":
		return "Wilaya is required."
	case item.Commune == "":
		return "Commune is required."
	case item.DateLostFound == "":
		return "Date lost/found is required."
	}

	channels := item.ContactChannels()
	if len(channels) == 0 {
		return "A contact method is required."
	}
	if len(channels) > 1 {
		return "Only one contact method may be provided."
	}
	for _, v := range []string{item.ContactPhone, item.ContactEmail, item.ContactFacebook} {
		if len(v) > config.MaxContactLen {
			return "Contact value exceeds the maximum length."
		}
	}
	return ""
}

// processImage validates and re-encodes an uploaded photo, stores the main
// image plus a thumbnail through the storage service, and returns their
// public URLs together with the content hash.
func processImage(r *http.Request, app App, logger *slog.Logger) (imageURL, thumbURL, hash string, hasImage bool, err error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return "", "", "", false, nil
		}
		return "", "", "", false, fmt.Errorf("could not get form file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			logger.Error("Failed to close upload file", "error", cerr)
		}
	}()

	limitedReader := &io.LimitedReader{R: file, N: config.MaxFileSize + 1}
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return "", "", "", false, fmt.Errorf("could not read file data: %w", err)
	}
	if limitedReader.N == 0 {
		return "", "", "", true, fmt.Errorf("file is larger than the %dMB limit", config.MaxFileSize/1024/1024)
	}
	if len(data) == 0 {
		return "", "", "", true, fmt.Errorf("file is empty")
	}

	// Magic byte validation
	contentType := http.DetectContentType(data)
	allowedTypes := map[string]bool{
		"image/jpeg": true, "image/png": true, "image/gif": true, "image/webp": true,
	}
	if !allowedTypes[contentType] {
		logger.Warn("User uploaded file with invalid MIME type", "detected_type", contentType, "filename", header.Filename)
		return "", "", "", true, fmt.Errorf("unsupported file type: %s. Only JPG, PNG, GIF, and WebP are allowed", contentType)
	}

	sum := sha256.Sum256(data)
	hashStr := hex.EncodeToString(sum[:])

	reader := bytes.NewReader(data)
	cfg, format, err := image.DecodeConfig(reader)
	if err != nil {
		return "", "", "", true, fmt.Errorf("invalid image format, could not decode config: %w", err)
	}
	if cfg.Width > config.MaxWidth || cfg.Height > config.MaxHeight {
		return "", "", "", true, fmt.Errorf("image dimensions (%dx%d) exceed maximum (%dx%d)", cfg.Width, cfg.Height, config.MaxWidth, config.MaxHeight)
	}
	if _, err := reader.Seek(0, 0); err != nil {
		return "", "", "", true, fmt.Errorf("could not reset reader position: %w", err)
	}

	// Re-decode the full image for processing
	img, err := imaging.Decode(reader, imaging.AutoOrientation(true))
	if err != nil {
		return "", "", "", true, fmt.Errorf("failed to decode image with orientation correction: %w", err)
	}

	// Re-encode the main image. Non-PNG inputs become JPEG for
	// consistency and size.
	outputFormat := "jpeg"
	encodeAs := imaging.JPEG
	if format == "png" {
		outputFormat = "png"
		encodeAs = imaging.PNG
	}

	mainBuf := new(bytes.Buffer)
	if err := imaging.Encode(mainBuf, img, encodeAs, imaging.JPEGQuality(90)); err != nil {
		return "", "", "", true, fmt.Errorf("failed to encode main image: %w", err)
	}

	mainFilename := fmt.Sprintf("%d_%s.%s", utils.GetTime().UnixNano(), hashStr[:12], outputFormat)
	mainURL, err := app.Storage().SaveFile(mainFilename, mainBuf.Bytes(), "image/"+outputFormat)
	if err != nil {
		return "", "", "", true, fmt.Errorf("could not store main image: %w", err)
	}

	// Create a thumbnail, preserving aspect ratio. A thumbnail failure
	// never fails the whole post.
	thumb := imaging.Fit(img, config.ThumbnailWidth, config.ThumbnailHeight, imaging.Lanczos)
	thumbBuf := new(bytes.Buffer)
	if err := imaging.Encode(thumbBuf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		logger.Error("Failed to encode thumbnail", "error", err)
		return mainURL, "", hashStr, true, nil
	}
	thumbFilename := strings.TrimSuffix(mainFilename, "."+outputFormat) + "_thumb.jpeg"
	thumbStored, err := app.Storage().SaveFile(thumbFilename, thumbBuf.Bytes(), "image/jpeg")
	if err != nil {
		logger.Error("Could not store thumbnail", "error", err)
		return mainURL, "", hashStr, true, nil
	}

	return mainURL, thumbStored, hashStr, true, nil
}

// parseLimit reads a positive integer query parameter with a fallback.
func parseLimit(val string, fallback int) int {
	n, err := strconv.Atoi(val)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
