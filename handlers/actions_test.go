package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newItemForm(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write form field %s: %v", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/items", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func validItemFields() map[string]string {
	return map[string]string{
		"title":           "Cles de voiture Renault",
		"description":     "Trouvees au parking du marche couvert.",
		"category":        "keys",
		"status":          "found",
		"wilaya":          "Oran",
		"commune":         "Es Senia",
		"date_lost_found": "2026-08-25",
		"contact_phone":   "0661234567",
	}
}

func TestCreateItem(t *testing.T) {
	app := setupTestApp(t)
	userID, token := createTestUser(t, app, "poster@example.dz", false)

	req := newItemForm(t, validItemFields())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := serve(app, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create item: got status %d, want 201. Body: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["user_id"] != userID {
		t.Errorf("Created item owner = %v, want %s", body["user_id"], userID)
	}
	itemID, _ := body["id"].(string)
	if itemID == "" {
		t.Fatal("Created item has no ID")
	}

	stored, err := app.db.GetItem(itemID, true)
	if err != nil || stored == nil {
		t.Fatalf("Created item not retrievable: %v", err)
	}
	if !stored.IsActive {
		t.Error("New item should be active")
	}
}

func TestCreateItemValidation(t *testing.T) {
	app := setupTestApp(t)
	_, token := createTestUser(t, app, "poster@example.dz", false)

	cases := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"missing title", func(f map[string]string) { f["title"] = "" }},
		{"missing description", func(f map[string]string) { f["description"] = "" }},
		{"bad category", func(f map[string]string) { f["category"] = "spaceships" }},
		{"bad status", func(f map[string]string) { f["status"] = "misplaced" }},
		{"missing wilaya", func(f map[string]string) { f["wilaya"] = "" }},
		{"missing date", func(f map[string]string) { f["date_lost_found"] = "" }},
		{"no contact method", func(f map[string]string) { f["contact_phone"] = "" }},
		{"two contact methods", func(f map[string]string) { f["contact_email"] = "x@y.dz" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := validItemFields()
			tc.mutate(fields)
			req := newItemForm(t, fields)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := serve(app, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("got status %d, want 400. Body: %s", rec.Code, rec.Body.String())
			}
		})
	}

	// No rows should have been written by any rejected draft.
	var count int
	if err := app.db.DB.QueryRow("SELECT COUNT(*) FROM items").Scan(&count); err != nil {
		t.Fatalf("Failed to count items: %v", err)
	}
	if count != 0 {
		t.Errorf("Rejected drafts left %d rows in items", count)
	}
}

func TestUpdateItemOwnership(t *testing.T) {
	app := setupTestApp(t)
	ownerID, ownerToken := createTestUser(t, app, "owner@example.dz", false)
	_, strangerToken := createTestUser(t, app, "stranger@example.dz", false)
	_, adminToken := createTestUser(t, app, "admin@example.dz", true)
	item := createTestItem(t, app, ownerID, "lost", "documents")

	patch := map[string]interface{}{"status": "found_owner"}

	req := newJSONRequest(t, "PATCH", "/api/items/"+item.ID, patch)
	req.Header.Set("Authorization", "Bearer "+strangerToken)
	if rec := serve(app, req); rec.Code != http.StatusForbidden {
		t.Errorf("Stranger patch: got status %d, want 403", rec.Code)
	}

	req = newJSONRequest(t, "PATCH", "/api/items/"+item.ID, patch)
	req.Header.Set("Authorization", "Bearer "+ownerToken)
	if rec := serve(app, req); rec.Code != http.StatusOK {
		t.Fatalf("Owner patch: got status %d, want 200. Body: %s", rec.Code, rec.Body.String())
	}

	updated, err := app.db.GetItem(item.ID, false)
	if err != nil || updated == nil {
		t.Fatalf("Failed to reload item: %v", err)
	}
	if updated.Status != "found_owner" {
		t.Errorf("Status = %q, want found_owner", updated.Status)
	}

	// found_owner items disappear from the public listing but stay
	// reachable for the owner and for admins.
	rec := serve(app, httptest.NewRequest("GET", "/api/items", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("List: got status %d", rec.Code)
	}
	if decodeBody(t, rec)["count"].(float64) != 0 {
		t.Error("found_owner item still visible in public listing")
	}

	req = newJSONRequest(t, "PATCH", "/api/items/"+item.ID, map[string]interface{}{"status": "lost"})
	req.Header.Set("Authorization", "Bearer "+adminToken)
	if rec := serve(app, req); rec.Code != http.StatusOK {
		t.Errorf("Admin patch: got status %d, want 200. Body: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateItemKeepsContactInvariant(t *testing.T) {
	app := setupTestApp(t)
	ownerID, token := createTestUser(t, app, "owner@example.dz", false)
	item := createTestItem(t, app, ownerID, "lost", "bags")

	req := newJSONRequest(t, "PATCH", "/api/items/"+item.ID, map[string]interface{}{
		"contact_email": "owner@example.dz",
	})
	req.Header.Set("Authorization", "Bearer "+token)
	rec := serve(app, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Adding a second contact channel: got status %d, want 400", rec.Code)
	}
}

func TestDeleteItem(t *testing.T) {
	app := setupTestApp(t)
	ownerID, ownerToken := createTestUser(t, app, "owner@example.dz", false)
	_, strangerToken := createTestUser(t, app, "stranger@example.dz", false)
	item := createTestItem(t, app, ownerID, "lost", "electronics")

	req := httptest.NewRequest("DELETE", "/api/items/"+item.ID, nil)
	req.Header.Set("Authorization", "Bearer "+strangerToken)
	if rec := serve(app, req); rec.Code != http.StatusForbidden {
		t.Errorf("Stranger delete: got status %d, want 403", rec.Code)
	}

	req = httptest.NewRequest("DELETE", "/api/items/"+item.ID, nil)
	req.Header.Set("Authorization", "Bearer "+ownerToken)
	if rec := serve(app, req); rec.Code != http.StatusOK {
		t.Fatalf("Owner delete: got status %d, want 200", rec.Code)
	}

	// Soft delete: gone from public view, row still present.
	if rec := serve(app, httptest.NewRequest("GET", "/api/items/"+item.ID, nil)); rec.Code != http.StatusNotFound {
		t.Errorf("Deleted item detail: got status %d, want 404", rec.Code)
	}
	stored, err := app.db.GetItem(item.ID, false)
	if err != nil || stored == nil {
		t.Fatalf("Soft-deleted item should still exist in DB: %v", err)
	}
	if stored.IsActive {
		t.Error("Soft-deleted item still marked active")
	}
}

func TestReportFlow(t *testing.T) {
	app := setupTestApp(t)
	ownerID, _ := createTestUser(t, app, "owner@example.dz", false)
	_, reporterToken := createTestUser(t, app, "reporter@example.dz", false)
	item := createTestItem(t, app, ownerID, "lost", "other")

	// Anonymous report
	rec := serve(app, newJSONRequest(t, "POST", "/api/reports", map[string]string{
		"item_id": item.ID,
		"reason":  "fake",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Anonymous report: got status %d, want 201. Body: %s", rec.Code, rec.Body.String())
	}

	// Authenticated report with details
	req := newJSONRequest(t, "POST", "/api/reports", map[string]string{
		"item_id": item.ID,
		"reason":  "incorrect",
		"details": "Le numero de telephone ne repond pas.",
	})
	req.Header.Set("Authorization", "Bearer "+reporterToken)
	if rec := serve(app, req); rec.Code != http.StatusCreated {
		t.Fatalf("Authed report: got status %d, want 201. Body: %s", rec.Code, rec.Body.String())
	}

	reports, err := app.db.ListReports("pending")
	if err != nil {
		t.Fatalf("Failed to list reports: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("Got %d pending reports, want 2", len(reports))
	}

	// Invalid reason and missing item are both rejected.
	rec = serve(app, newJSONRequest(t, "POST", "/api/reports", map[string]string{
		"item_id": item.ID,
		"reason":  "i-just-dislike-it",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid reason: got status %d, want 400", rec.Code)
	}
	rec = serve(app, newJSONRequest(t, "POST", "/api/reports", map[string]string{
		"item_id": "no-such-item",
		"reason":  "fake",
	}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Report on missing item: got status %d, want 404", rec.Code)
	}
}
