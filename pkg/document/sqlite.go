package document

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entities (
	id      INTEGER PRIMARY KEY,
	class   TEXT NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entities_class ON entities(class);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	node    TEXT PRIMARY KEY,
	payload TEXT NOT NULL
);
`

func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("open document db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate document db: %w", err)
	}
	return db, nil
}

// Open loads the document stored at path. A missing or empty database
// yields an empty document.
func Open(ctx context.Context, path string) (*Document, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	d := New()

	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		switch k {
		case "schema":
			d.schema = v
		case "next_id":
			n, err := strconv.Atoi(v)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("meta next_id %q: %w", v, err)
			}
			d.nextID = ID(n)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.QueryContext(ctx, `SELECT id, class, payload FROM entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("read entities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id      int
			class   string
			payload string
		)
		if err := rows.Scan(&id, &class, &payload); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e, err := decodeEntity(class, []byte(payload))
		if err != nil {
			return nil, fmt.Errorf("entity #%d: %w", id, err)
		}
		if e.EntityID() != ID(id) {
			return nil, fmt.Errorf("entity #%d: payload carries id #%d", id, e.EntityID())
		}
		d.insert(e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snaps, err := db.QueryContext(ctx, `SELECT node, payload FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	defer snaps.Close()
	for snaps.Next() {
		var node, payload string
		if err := snaps.Scan(&node, &payload); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		d.snapshots[node] = []byte(payload)
	}
	if err := snaps.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// Save writes the whole document to path, replacing its previous contents.
func (d *Document) Save(ctx context.Context, path string) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	d.mu.RLock()
	defer d.mu.RUnlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entities (id, class, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for id, e := range d.entities {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode #%d: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, int(id), e.Class(), string(b)); err != nil {
			return fmt.Errorf("insert #%d: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	for node, payload := range d.snapshots {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (node, payload) VALUES (?, ?)`, node, string(payload)); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", node, err)
		}
	}

	meta := map[string]string{
		"schema":  d.schema,
		"next_id": strconv.Itoa(int(d.nextID)),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			k, v); err != nil {
			return fmt.Errorf("write meta %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func decodeEntity(class string, payload []byte) (Entity, error) {
	var e Entity
	switch class {
	case ClassContext, ClassSubContext:
		e = &Context{}
	case ClassRepresentation:
		e = &Representation{}
	case ClassFaceSet:
		e = &FaceSet{}
	default:
		return nil, fmt.Errorf("unknown class %q", class)
	}
	if err := json.Unmarshal(payload, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", class, err)
	}
	return e, nil
}
