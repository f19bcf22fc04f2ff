package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "nodes: weighted knowledge graph entities",
		SQL: `
CREATE TABLE nodes (
    id            TEXT PRIMARY KEY,
    type          TEXT NOT NULL DEFAULT 'concept',
    title         TEXT NOT NULL DEFAULT '',
    content       TEXT NOT NULL DEFAULT '',
    aka           TEXT NOT NULL DEFAULT '[]',     -- JSON array of synonyms
    weight        REAL NOT NULL DEFAULT 0.5,
    domains       TEXT NOT NULL DEFAULT '[]',     -- JSON array
    status        TEXT NOT NULL DEFAULT 'active',
    audience      TEXT NOT NULL DEFAULT 'private' CHECK (audience IN ('private', 'team', 'org', 'public')),
    extra         TEXT NOT NULL DEFAULT '{}',     -- JSON object, domain-specific fields
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL,
    last_accessed INTEGER NOT NULL
);

CREATE INDEX idx_nodes_type     ON nodes(type);
CREATE INDEX idx_nodes_status   ON nodes(status);
CREATE INDEX idx_nodes_audience ON nodes(audience);
CREATE INDEX idx_nodes_weight   ON nodes(weight DESC);
CREATE INDEX idx_nodes_accessed ON nodes(last_accessed);
`,
	},
	{
		Version:     2,
		Description: "edges: weighted directed relationships",
		SQL: `
CREATE TABLE edges (
    id            INTEGER PRIMARY KEY,
    from_id       TEXT NOT NULL REFERENCES nodes(id),
    to_id         TEXT NOT NULL REFERENCES nodes(id),
    type          TEXT NOT NULL DEFAULT 'relates_to',
    weight        REAL NOT NULL DEFAULT 0.5,
    provenance    TEXT NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL,
    last_accessed INTEGER NOT NULL,

    UNIQUE(from_id, to_id, type)
);

CREATE INDEX idx_edges_from ON edges(from_id);
CREATE INDEX idx_edges_to   ON edges(to_id);
`,
	},
	{
		Version:     3,
		Description: "nodes_fts: FTS5 full-text index over node text",
		SQL: `
CREATE VIRTUAL TABLE nodes_fts USING fts5(
    id UNINDEXED,
    title,
    content,
    aka,
    domains,
    content='nodes',
    content_rowid='rowid'
);

CREATE TRIGGER nodes_fts_ai AFTER INSERT ON nodes BEGIN
    INSERT INTO nodes_fts(rowid, id, title, content, aka, domains)
    VALUES (new.rowid, new.id, new.title, new.content, new.aka, new.domains);
END;

CREATE TRIGGER nodes_fts_ad AFTER DELETE ON nodes BEGIN
    INSERT INTO nodes_fts(nodes_fts, rowid, id, title, content, aka, domains)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.aka, old.domains);
END;

CREATE TRIGGER nodes_fts_au AFTER UPDATE ON nodes BEGIN
    INSERT INTO nodes_fts(nodes_fts, rowid, id, title, content, aka, domains)
    VALUES ('delete', old.rowid, old.id, old.title, old.content, old.aka, old.domains);
    INSERT INTO nodes_fts(rowid, id, title, content, aka, domains)
    VALUES (new.rowid, new.id, new.title, new.content, new.aka, new.domains);
END;
`,
	},
	{
		Version:     4,
		Description: "node_vectors: embedding vectors for semantic search",
		SQL: `
CREATE TABLE node_vectors (
    node_id    TEXT PRIMARY KEY REFERENCES nodes(id) ON DELETE CASCADE,
    embedding  BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
`,
	},
	{
		Version:     5,
		Description: "meta: key/value store for decay cursor and settings",
		SQL: `
CREATE TABLE meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT ''
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
