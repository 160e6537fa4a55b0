package sqlstore

// schema is applied once, at Open, via a sequence of idempotent
// CREATE TABLE/INDEX IF NOT EXISTS statements. A real migration framework
// (golang-migrate, which the rest of this module's dependency set could
// have carried) buys nothing here: there is exactly one schema version in
// play for a single-instance controller, so a plain embedded DDL script
// applied on every boot is the simpler, equally idiomatic choice — see
// DESIGN.md for the fuller justification.
const schema = `
CREATE TABLE IF NOT EXISTS organisations (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS users (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS components (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	handle TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS providers (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	name              TEXT NOT NULL UNIQUE,
	host              TEXT NOT NULL DEFAULT '',
	port              INTEGER NOT NULL DEFAULT 0,
	verify_ssl        INTEGER NOT NULL DEFAULT 1,
	api_version       TEXT NOT NULL DEFAULT '',
	org_name          TEXT NOT NULL DEFAULT '',
	vdc_name          TEXT NOT NULL DEFAULT '',
	catalogue_name    TEXT NOT NULL DEFAULT '',
	gateway_name      TEXT NOT NULL DEFAULT '',
	gateway_interface TEXT NOT NULL DEFAULT '',
	libcloud_id       TEXT NOT NULL DEFAULT '',
	pipe_path         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS artifacts (
	id                         INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid                       TEXT NOT NULL UNIQUE,
	kind                       TEXT NOT NULL,
	model_version              INTEGER NOT NULL DEFAULT 1,
	organisation_id            INTEGER NOT NULL REFERENCES organisations(id),
	role                       TEXT,
	catalogue_choice_name      TEXT,
	catalogue_choice_natrouted INTEGER,
	label_name                 TEXT,
	label_description          TEXT
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	artifact_id     INTEGER NOT NULL REFERENCES artifacts(id),
	organisation_id INTEGER NOT NULL REFERENCES organisations(id),
	provider_id     INTEGER NOT NULL REFERENCES providers(id)
);

CREATE TABLE IF NOT EXISTS states (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	fsm  TEXT NOT NULL,
	name TEXT NOT NULL,
	UNIQUE(fsm, name)
);

CREATE TABLE IF NOT EXISTS touches (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	artifact_id INTEGER NOT NULL REFERENCES artifacts(id),
	actor_kind  TEXT NOT NULL,
	actor_id    INTEGER NOT NULL,
	state_id    INTEGER NOT NULL REFERENCES states(id),
	at          DATETIME NOT NULL,
	UNIQUE(artifact_id, at)
);

CREATE TABLE IF NOT EXISTS resources (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	touch_id    INTEGER NOT NULL REFERENCES touches(id),
	kind        TEXT NOT NULL,
	provider_id INTEGER,
	uri         TEXT,
	value       TEXT,
	ip_int      TEXT,
	ip_ext      TEXT,
	token_key   TEXT,
	token_value TEXT,
	creation    TEXT,
	power       TEXT,
	health      TEXT
);

CREATE INDEX IF NOT EXISTS idx_touches_artifact ON touches(artifact_id, at);
CREATE INDEX IF NOT EXISTS idx_resources_touch ON resources(touch_id);
CREATE INDEX IF NOT EXISTS idx_resources_kind_provider ON resources(kind, provider_id);
`
