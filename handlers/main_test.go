package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
	"winrahi/auth"
	"winrahi/database"
	"winrahi/models"
	"winrahi/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret-do-not-use"

// MockApplication holds dependencies for handler tests.
type MockApplication struct {
	db          *database.DatabaseService
	rateLimiter *models.RateLimiter
	uploadDir   string
	logger      *slog.Logger
	storage     models.StorageService
}

func (a *MockApplication) DB() *database.DatabaseService    { return a.db }
func (a *MockApplication) RateLimiter() *models.RateLimiter { return a.rateLimiter }
func (a *MockApplication) Logger() *slog.Logger             { return a.logger }
func (a *MockApplication) UploadDir() string                { return a.uploadDir }
func (a *MockApplication) JWTSecret() string                { return testJWTSecret }
func (a *MockApplication) Storage() models.StorageService   { return a.storage }

// setupTestApp creates a full application stack with a test database for
// integration testing.
func setupTestApp(t *testing.T) *MockApplication {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dbDir, err := os.MkdirTemp("", "winrahi_test_db_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir for test DB: %v", err)
	}
	dbPath := filepath.Join(dbDir, "test.db") + "?_journal_mode=WAL&_foreign_keys=on"
	dbService, err := database.InitDB(dbPath, logger)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	uploadDir, err := os.MkdirTemp("", "winrahi_test_uploads_*")
	if err != nil {
		t.Fatalf("Failed to create temp upload dir: %v", err)
	}

	app := &MockApplication{
		db:          dbService,
		rateLimiter: models.NewRateLimiter(time.Millisecond, 1000, time.Hour, 24*time.Hour),
		uploadDir:   uploadDir,
		logger:      logger,
		storage:     &utils.LocalStorage{UploadDir: uploadDir},
	}

	t.Cleanup(func() {
		app.db.DB.Close()
		os.RemoveAll(dbDir)
		os.RemoveAll(uploadDir)
	})

	return app
}

// createTestUser inserts a user with a profile and returns the user ID and a
// valid Bearer token.
func createTestUser(t *testing.T, app *MockApplication, email string, isAdmin bool) (string, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash test password: %v", err)
	}
	userID := uuid.New().String()
	if err := app.db.CreateUser(userID, email, string(hash)); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	if err := app.db.UpsertProfile(userID, "Test User", "0555123456"); err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}
	if isAdmin {
		if _, err := app.db.DB.Exec("UPDATE profiles SET is_admin = 1 WHERE user_id = ?", userID); err != nil {
			t.Fatalf("Failed to promote test user: %v", err)
		}
	}

	token, err := auth.GenerateToken(testJWTSecret, userID, email, isAdmin)
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return userID, token
}

// createTestItem inserts an item owned by the given user.
func createTestItem(t *testing.T, app *MockApplication, userID, status, category string) *models.Item {
	t.Helper()

	item := &models.Item{
		ID:            uuid.New().String(),
		UserID:        userID,
		Title:         "Portefeuille noir",
		Description:   "Perdu pres de la gare routiere.",
		Category:      category,
		Status:        status,
		Wilaya:        "Alger",
		Commune:       "Bab El Oued",
		DateLostFound: "2026-08-20",
		ContactPhone:  "0555123456",
	}
	if err := app.db.CreateItem(item); err != nil {
		t.Fatalf("Failed to create test item: %v", err)
	}
	return item
}

func newJSONRequest(t *testing.T, method, path string, payload interface{}) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// serve runs a request through the full router, so middleware and URL
// params behave exactly as in production.
func serve(app *MockApplication, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	SetupRouter(app).ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response body %q: %v", rec.Body.String(), err)
	}
	return out
}
