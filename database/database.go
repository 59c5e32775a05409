// winrahi/database/database.go
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"winrahi/models"
	"winrahi/utils"

	_ "github.com/mattn/go-sqlite3"
)

// DatabaseService is the central struct for all database operations.
type DatabaseService struct {
	DB     *sql.DB
	logger *slog.Logger
	dsn    string
}

// InitDB connects to the database and runs migrations.
func InitDB(dataSourceName string, logger *slog.Logger) (*DatabaseService, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}

	// Run the base schema to ensure all tables exist.
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to execute base schema: %w", err)
	}

	// Run versioned migrations
	if err := runMigrations(db, logger); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	logger.Info("Database initialized.")

	return &DatabaseService{
		DB:     db,
		logger: logger,
		dsn:    dataSourceName,
	}, nil
}

// runMigrations applies all un-applied migrations.
func runMigrations(db *sql.DB, logger *slog.Logger) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY, applied_at DATETIME NOT NULL)`); err != nil {
		return fmt.Errorf("could not create migrations table: %w", err)
	}

	var latestVersion uint
	err := db.QueryRow("SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&latestVersion)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("could not get db version: %w", err)
	}

	logger.Info("Current database schema version", "version", latestVersion)

	for _, m := range allMigrations {
		if m.Version > latestVersion {
			logger.Info("Applying migration", "version", m.Version)
			tx, err := db.Begin()
			if err != nil {
				return err
			}

			if _, err := tx.Exec(m.Query); err != nil {
				if rerr := tx.Rollback(); rerr != nil {
					logger.Error("Failed to rollback migration", "version", m.Version, "error", rerr)
				}
				return fmt.Errorf("failed to apply migration v%d: %w", m.Version, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, utils.GetSQLTime()); err != nil {
				if rerr := tx.Rollback(); rerr != nil {
					logger.Error("Failed to rollback migration record", "version", m.Version, "error", rerr)
				}
				return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
			}

			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit migration v%d: %w", m.Version, err)
			}
			logger.Info("Successfully applied migration", "version", m.Version)
		}
	}
	return nil
}

// --- Users & Profiles ---

// CreateUser inserts a new account row.
func (ds *DatabaseService) CreateUser(id, email, passwordHash string) error {
	_, err := ds.DB.Exec("INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		id, email, passwordHash, utils.GetSQLTime())
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByEmail fetches an account by email, or nil if none exists.
func (ds *DatabaseService) GetUserByEmail(email string) (*models.User, error) {
	var u models.User
	err := ds.DB.QueryRow("SELECT id, email, password_hash, created_at FROM users WHERE email = ?", email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error getting user by email: %w", err)
	}
	return &u, nil
}

// UpsertProfile creates a profile row for a user if one does not exist yet.
// Idempotent: an existing profile (and its admin flag) is left untouched.
func (ds *DatabaseService) UpsertProfile(userID, fullName, phone string) error {
	_, err := ds.DB.Exec(`INSERT INTO profiles (user_id, full_name, phone, is_admin, created_at)
		VALUES (?, ?, ?, 0, ?) ON CONFLICT(user_id) DO NOTHING`,
		userID, fullName, phone, utils.GetSQLTime())
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// GetProfile fetches a profile, or nil if none exists.
func (ds *DatabaseService) GetProfile(userID string) (*models.Profile, error) {
	var p models.Profile
	err := ds.DB.QueryRow("SELECT user_id, full_name, phone, is_admin, created_at FROM profiles WHERE user_id = ?", userID).
		Scan(&p.UserID, &p.FullName, &p.Phone, &p.IsAdmin, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error getting profile: %w", err)
	}
	return &p, nil
}

// UpdateProfile changes the owner-editable profile fields.
func (ds *DatabaseService) UpdateProfile(userID, fullName, phone string) error {
	_, err := ds.DB.Exec("UPDATE profiles SET full_name = ?, phone = ? WHERE user_id = ?", fullName, phone, userID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// ListProfiles returns every registered profile, newest first.
func (ds *DatabaseService) ListProfiles() ([]models.Profile, error) {
	rows, err := ds.DB.Query("SELECT user_id, full_name, phone, is_admin, created_at FROM profiles ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListProfiles", "error", err)
		}
	}()

	var profiles []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.UserID, &p.FullName, &p.Phone, &p.IsAdmin, &p.CreatedAt); err != nil {
			ds.logger.Error("Failed to scan profile row", "error", err)
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// SetAdmin grants or revokes the admin flag on a profile, audited.
func (ds *DatabaseService) SetAdmin(userID string, isAdmin bool, adminID string) error {
	tx, err := ds.DB.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback transaction in SetAdmin", "error", rerr)
		}
	}()

	res, err := tx.Exec("UPDATE profiles SET is_admin = ? WHERE user_id = ?", isAdmin, userID)
	if err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	if err := LogAdminAction(tx, adminID, "set_admin", userID, fmt.Sprintf("is_admin=%t", isAdmin)); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Items ---

const itemColumns = `id, user_id, title, description, category, status, wilaya, commune,
	date_lost_found, contact_phone, contact_email, contact_facebook,
	image_url, thumbnail_url, is_active, views_count, created_at, updated_at`

func scanItem(row interface{ Scan(...interface{}) error }, i *models.Item) error {
	return row.Scan(&i.ID, &i.UserID, &i.Title, &i.Description, &i.Category, &i.Status,
		&i.Wilaya, &i.Commune, &i.DateLostFound, &i.ContactPhone, &i.ContactEmail,
		&i.ContactFacebook, &i.ImageURL, &i.ThumbnailURL, &i.IsActive, &i.ViewsCount,
		&i.CreatedAt, &i.UpdatedAt)
}

// CreateItem inserts a new item row.
func (ds *DatabaseService) CreateItem(item *models.Item) error {
	now := utils.GetSQLTime()
	item.CreatedAt, item.UpdatedAt = now, now
	item.IsActive = true
	_, err := ds.DB.Exec(`INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0, ?, ?)`,
		item.ID, item.UserID, item.Title, item.Description, item.Category, item.Status,
		item.Wilaya, item.Commune, item.DateLostFound, item.ContactPhone, item.ContactEmail,
		item.ContactFacebook, item.ImageURL, item.ThumbnailURL, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// GetItem fetches a single item. When activeOnly is set, inactive items
// behave as if they do not exist.
func (ds *DatabaseService) GetItem(id string, activeOnly bool) (*models.Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE id = ?"
	if activeOnly {
		query += " AND is_active = 1"
	}
	var item models.Item
	err := scanItem(ds.DB.QueryRow(query, id), &item)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error getting item %s: %w", id, err)
	}
	return &item, nil
}

// ListActiveItems fetches the base set for public listing views: all active
// items, optionally narrowed by a case-insensitive free-text search over
// title OR description. Status/category/location filtering and ordering are
// applied afterwards by the listing engine.
func (ds *DatabaseService) ListActiveItems(search string) ([]models.Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE is_active = 1"
	var args []interface{}
	if search != "" {
		query += " AND (LOWER(title) LIKE ? OR LOWER(description) LIKE ?)"
		pattern := "%" + strings.ToLower(search) + "%"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY created_at DESC"

	rows, err := ds.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListActiveItems", "error", err)
		}
	}()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := scanItem(rows, &item); err != nil {
			ds.logger.Error("Failed to scan item row", "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListAllItems fetches every item regardless of active state, for the
// moderation view. The optional search behaves like ListActiveItems.
func (ds *DatabaseService) ListAllItems(search string) ([]models.Item, error) {
	query := "SELECT " + itemColumns + " FROM items"
	var args []interface{}
	if search != "" {
		query += " WHERE (LOWER(title) LIKE ? OR LOWER(description) LIKE ?)"
		pattern := "%" + strings.ToLower(search) + "%"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY created_at DESC"

	rows, err := ds.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListAllItems", "error", err)
		}
	}()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := scanItem(rows, &item); err != nil {
			ds.logger.Error("Failed to scan item row", "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListItemsByOwner fetches every item a user posted, including inactive and
// resolved ones. This is the dashboard view.
func (ds *DatabaseService) ListItemsByOwner(userID string) ([]models.Item, error) {
	rows, err := ds.DB.Query("SELECT "+itemColumns+" FROM items WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListItemsByOwner", "error", err)
		}
	}()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := scanItem(rows, &item); err != nil {
			ds.logger.Error("Failed to scan item row", "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// OwnerStats aggregates one user's listings for the dashboard header.
func (ds *DatabaseService) OwnerStats(userID string) (models.OwnerStats, error) {
	var stats models.OwnerStats
	err := ds.DB.QueryRow(`SELECT COUNT(*), COALESCE(SUM(views_count), 0),
		COALESCE(SUM(CASE WHEN status = 'found' THEN 1 ELSE 0 END), 0)
		FROM items WHERE user_id = ?`, userID).
		Scan(&stats.Total, &stats.Views, &stats.Found)
	if err != nil {
		return stats, fmt.Errorf("db error aggregating owner stats: %w", err)
	}
	return stats, nil
}

// UpdateItem persists the mutable fields of an item.
func (ds *DatabaseService) UpdateItem(item *models.Item) error {
	item.UpdatedAt = utils.GetSQLTime()
	res, err := ds.DB.Exec(`UPDATE items SET title = ?, description = ?, status = ?,
		contact_phone = ?, contact_email = ?, contact_facebook = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		item.Title, item.Description, item.Status,
		item.ContactPhone, item.ContactEmail, item.ContactFacebook, item.IsActive, item.UpdatedAt,
		item.ID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDeleteItem flips the active flag off, but only for the owning user.
// Returns false when no row matched (missing item or foreign owner).
func (ds *DatabaseService) SoftDeleteItem(id, ownerID string) (bool, error) {
	res, err := ds.DB.Exec("UPDATE items SET is_active = 0, updated_at = ? WHERE id = ? AND user_id = ?",
		utils.GetSQLTime(), id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to soft-delete item: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeactivateItem is the admin variant of a soft delete, audited.
func (ds *DatabaseService) DeactivateItem(id, adminID string) (bool, error) {
	tx, err := ds.DB.Begin()
	if err != nil {
		return false, err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback transaction in DeactivateItem", "error", rerr)
		}
	}()

	res, err := tx.Exec("UPDATE items SET is_active = 0, updated_at = ? WHERE id = ?", utils.GetSQLTime(), id)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate item: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	if err := LogAdminAction(tx, adminID, "deactivate_item", id, ""); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// HardDeleteItem removes an item row and its reports. It returns the stored
// image references so the caller can clean up the storage backend.
func (ds *DatabaseService) HardDeleteItem(id, adminID string) (imageURL, thumbURL string, err error) {
	tx, err := ds.DB.Begin()
	if err != nil {
		return "", "", err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback transaction in HardDeleteItem", "error", rerr)
		}
	}()

	err = tx.QueryRow("SELECT image_url, thumbnail_url FROM items WHERE id = ?", id).Scan(&imageURL, &thumbURL)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", "", err
		}
		return "", "", fmt.Errorf("db error fetching item for deletion: %w", err)
	}

	if _, err = tx.Exec("DELETE FROM reports WHERE item_id = ?", id); err != nil {
		return "", "", fmt.Errorf("failed to delete associated reports: %w", err)
	}
	if _, err = tx.Exec("DELETE FROM items WHERE id = ?", id); err != nil {
		return "", "", fmt.Errorf("failed to delete item: %w", err)
	}
	if err = LogAdminAction(tx, adminID, "delete_item", id, ""); err != nil {
		return "", "", err
	}
	return imageURL, thumbURL, tx.Commit()
}

// IncrementViews bumps an item's view counter atomically. Best effort:
// callers fire it in the background and only log failures.
func (ds *DatabaseService) IncrementViews(id string) error {
	_, err := ds.DB.Exec("UPDATE items SET views_count = views_count + 1 WHERE id = ?", id)
	return err
}

// Stats runs the count-only queries behind the public stats block.
func (ds *DatabaseService) Stats() (models.Stats, error) {
	var stats models.Stats
	queries := []struct {
		dest  *int64
		query string
	}{
		{&stats.TotalItems, "SELECT COUNT(*) FROM items WHERE is_active = 1"},
		{&stats.FoundItems, "SELECT COUNT(*) FROM items WHERE is_active = 1 AND status = 'found'"},
		{&stats.FoundOwner, "SELECT COUNT(*) FROM items WHERE is_active = 1 AND status = 'found_owner'"},
		{&stats.TotalProfiles, "SELECT COUNT(*) FROM profiles"},
	}
	for _, q := range queries {
		if err := ds.DB.QueryRow(q.query).Scan(q.dest); err != nil {
			return stats, fmt.Errorf("stats query failed: %w", err)
		}
	}
	return stats, nil
}

// --- Reports ---

// CreateReport files a complaint against an item. ReporterID is null for
// anonymous reports.
func (ds *DatabaseService) CreateReport(itemID string, reporterID sql.NullString, reason, details string) (int64, error) {
	res, err := ds.DB.Exec(`INSERT INTO reports (item_id, reporter_id, reason, details, status, created_at)
		VALUES (?, ?, ?, ?, 'pending', ?)`,
		itemID, reporterID, reason, details, utils.GetSQLTime())
	if err != nil {
		return 0, fmt.Errorf("failed to insert report: %w", err)
	}
	return res.LastInsertId()
}

// ListReports returns reports joined with item and reporter info for the
// admin review table. An empty status returns all reports.
func (ds *DatabaseService) ListReports(status string) ([]models.Report, error) {
	query := `
		SELECT r.id, r.item_id, r.reporter_id, r.reason, r.details, r.status, r.created_at,
		       COALESCE(i.title, ''), COALESCE(i.status, ''), COALESCE(p.full_name, '')
		FROM reports r
		LEFT JOIN items i ON r.item_id = i.id
		LEFT JOIN profiles p ON r.reporter_id = p.user_id`
	var args []interface{}
	if status != "" {
		query += " WHERE r.status = ?"
		args = append(args, status)
	}
	query += " ORDER BY r.created_at DESC"

	rows, err := ds.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListReports", "error", err)
		}
	}()

	var reports []models.Report
	for rows.Next() {
		var rep models.Report
		if err := rows.Scan(&rep.ID, &rep.ItemID, &rep.ReporterID, &rep.Reason, &rep.Details,
			&rep.Status, &rep.CreatedAt, &rep.ItemTitle, &rep.ItemStatus, &rep.ReporterName); err != nil {
			ds.logger.Error("Failed to scan report row", "error", err)
			continue
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

// SetReportStatus moves a report to resolved or dismissed, audited.
func (ds *DatabaseService) SetReportStatus(id int64, status, adminID string) (bool, error) {
	tx, err := ds.DB.Begin()
	if err != nil {
		return false, err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback transaction in SetReportStatus", "error", rerr)
		}
	}()

	res, err := tx.Exec("UPDATE reports SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return false, fmt.Errorf("failed to update report status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	if err := LogAdminAction(tx, adminID, "report_"+status, fmt.Sprintf("%d", id), ""); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// --- Audit Log ---

// LogAdminAction records a moderator's action to the database.
func LogAdminAction(tx *sql.Tx, adminID, action, targetID, details string) error {
	_, err := tx.Exec("INSERT INTO admin_actions (timestamp, admin_id, action, target_id, details) VALUES (?, ?, ?, ?, ?)",
		utils.GetSQLTime(), adminID, action, targetID, details)
	if err != nil {
		return fmt.Errorf("failed to log admin action: %w", err)
	}
	return nil
}

// ListAdminActions returns the most recent audit log entries.
func (ds *DatabaseService) ListAdminActions(limit int) ([]models.AdminAction, error) {
	rows, err := ds.DB.Query("SELECT id, timestamp, admin_id, action, target_id, details FROM admin_actions ORDER BY timestamp DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListAdminActions", "error", err)
		}
	}()

	var actions []models.AdminAction
	for rows.Next() {
		var a models.AdminAction
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.AdminID, &a.Action, &a.TargetID, &a.Details); err != nil {
			ds.logger.Error("Failed to scan admin action row", "error", err)
			continue
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
