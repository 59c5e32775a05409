package database

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS profiles (
	user_id TEXT PRIMARY KEY,
	full_name TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	is_admin BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT NOT NULL,
	status TEXT NOT NULL, -- 'lost', 'found' or 'found_owner'
	wilaya TEXT NOT NULL,
	commune TEXT NOT NULL,
	date_lost_found TEXT NOT NULL,
	contact_phone TEXT NOT NULL DEFAULT '',
	contact_email TEXT NOT NULL DEFAULT '',
	contact_facebook TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT 1,
	views_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id TEXT NOT NULL,
	reporter_id TEXT, -- NULL for anonymous reports
	reason TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending', -- 'pending', 'resolved' or 'dismissed'
	created_at DATETIME NOT NULL,
	FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
);
-- Audit log of moderator operations
CREATE TABLE IF NOT EXISTS admin_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	admin_id TEXT NOT NULL,
	action TEXT NOT NULL,
	target_id TEXT,
	details TEXT
);

-- --- INDEXES ---
CREATE INDEX IF NOT EXISTS idx_items_owner ON items(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_items_listing ON items(is_active, status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_items_wilaya ON items(wilaya);
CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);
CREATE INDEX IF NOT EXISTS idx_reports_item ON reports(item_id);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_admin_actions_time ON admin_actions(timestamp DESC);
`
