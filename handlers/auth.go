// winrahi/handlers/auth.go
package handlers

import (
	"net/http"
	"strings"

	"winrahi/auth"
	"winrahi/config"
	"winrahi/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HandleSignup registers a new account and returns a signed token plus the
// freshly created profile.
func HandleSignup(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleSignup")

	ip := utils.GetIPAddress(r)
	if !app.RateLimiter().GetLimiter(ip).Allow() {
		logger.Warn("Rate limit exceeded for signup", "ip", ip)
		respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded. Please wait a moment."}, app)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body."}, app)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)

	if msg := validateCredentials(req.Email, req.Password); msg != "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": msg}, app)
		return
	}
	if req.FullName == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Full name is required."}, app)
		return
	}
	if len(req.FullName) > config.MaxNameLen {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Full name exceeds the maximum length."}, app)
		return
	}

	existing, err := app.DB().GetUserByEmail(req.Email)
	if err != nil {
		logger.Error("DB error checking existing user", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}
	if existing != nil {
		respondJSON(w, http.StatusConflict, map[string]string{"error": "An account with this email already exists."}, app)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("Failed to hash password", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create account."}, app)
		return
	}

	userID := uuid.New().String()
	if err := app.DB().CreateUser(userID, req.Email, string(hash)); err != nil {
		logger.Error("Failed to insert new user", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create account."}, app)
		return
	}
	if err := app.DB().UpsertProfile(userID, req.FullName, req.Phone); err != nil {
		logger.Error("Failed to create profile", "user_id", userID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create account."}, app)
		return
	}

	token, err := auth.GenerateToken(app.JWTSecret(), userID, req.Email, false)
	if err != nil {
		logger.Error("Failed to sign token", "user_id", userID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create session."}, app)
		return
	}

	profile, err := app.DB().GetProfile(userID)
	if err != nil {
		logger.Error("Failed to load new profile", "user_id", userID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}

	logger.Info("New account created", "user_id", userID)
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"token":   token,
		"user_id": userID,
		"email":   req.Email,
		"profile": profile,
	}, app)
}

// HandleLogin verifies credentials and returns a signed token. Accounts
// missing a profile row get one on the way through, so a login is always
// enough to make the dashboard work.
func HandleLogin(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleLogin")

	ip := utils.GetIPAddress(r)
	if !app.RateLimiter().GetLimiter(ip).Allow() {
		logger.Warn("Rate limit exceeded for login", "ip", ip)
		respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded. Please wait a moment."}, app)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body."}, app)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := app.DB().GetUserByEmail(req.Email)
	if err != nil {
		logger.Error("DB error looking up user", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		logger.Warn("Failed login attempt", "ip", ip)
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password."}, app)
		return
	}

	if err := app.DB().UpsertProfile(user.ID, "", ""); err != nil {
		logger.Error("Failed to ensure profile", "user_id", user.ID, "error", err)
	}

	profile, err := app.DB().GetProfile(user.ID)
	if err != nil {
		logger.Error("Failed to load profile", "user_id", user.ID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}

	isAdmin := profile != nil && profile.IsAdmin
	token, err := auth.GenerateToken(app.JWTSecret(), user.ID, user.Email, isAdmin)
	if err != nil {
		logger.Error("Failed to sign token", "user_id", user.ID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create session."}, app)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"user_id": user.ID,
		"email":   user.Email,
		"profile": profile,
	}, app)
}

// HandleMe returns the caller's identity and profile from the token.
func HandleMe(w http.ResponseWriter, r *http.Request, app App) {
	claims := GetClaims(r.Context())

	profile, err := app.DB().GetProfile(claims.UserID)
	if err != nil {
		app.Logger().Error("Failed to load profile", "user_id", claims.UserID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": claims.UserID,
		"email":   claims.Email,
		"profile": profile,
	}, app)
}

func validateCredentials(email, password string) string {
	switch {
	case email == "":
		return "Email is required."
	case !strings.Contains(email, "@") || strings.ContainsAny(email, " \t"):
		return "Invalid email address."
	case len(email) > config.MaxContactLen:
		return "Email exceeds the maximum length."
	case len(password) < config.MinPasswordLen:
		return "Password must be at least 8 characters."
	case len(password) > 72:
		return "Password exceeds the maximum length."
	}
	return ""
}
