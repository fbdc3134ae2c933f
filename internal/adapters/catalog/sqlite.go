// Package catalog provides the relational document catalog.
// Clean Architecture: Adapter implementing ports.MetadataCatalog. The catalog
// is the sole source of truth for which documents exist: search results whose
// doc id has no row here are treated as deleted.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/harborview/docretrieval/internal/domain/entities"
)

// SQLiteCatalog implements ports.MetadataCatalog with a SQLite table.
type SQLiteCatalog struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at path.
func Open(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	c := &SQLiteCatalog{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing catalog schema: %w", err)
	}
	return c, nil
}

func (c *SQLiteCatalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		doc_id      TEXT PRIMARY KEY,
		filename    TEXT NOT NULL,
		visibility  TEXT NOT NULL,
		tenant_id   TEXT,
		owner_id    TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		byte_size   INTEGER NOT NULL,
		vector_ids  TEXT NOT NULL,
		created_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Insert stores a new document record.
func (c *SQLiteCatalog) Insert(ctx context.Context, rec *entities.DocumentRecord) error {
	vectorIDs, err := json.Marshal(rec.VectorIDs)
	if err != nil {
		return fmt.Errorf("encoding vector ids: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents
		(doc_id, filename, visibility, tenant_id, owner_id, chunk_count, byte_size, vector_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.DocID,
		rec.Filename,
		string(rec.Visibility),
		nullable(rec.TenantID),
		rec.OwnerID,
		rec.ChunkCount,
		rec.ByteSize,
		string(vectorIDs),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return tx.Commit()
}

// GetOwner returns the owner of docID.
func (c *SQLiteCatalog) GetOwner(ctx context.Context, docID string) (string, error) {
	var owner string
	err := c.db.QueryRowContext(ctx, "SELECT owner_id FROM documents WHERE doc_id = ?", docID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", entities.ErrNotFound, docID)
	}
	if err != nil {
		return "", fmt.Errorf("querying owner: %w", err)
	}
	return owner, nil
}

// List returns records most-recent-first. A tenant filter admits global
// documents as well, matching the visibility rules applied at search time.
func (c *SQLiteCatalog) List(ctx context.Context, tenantID, ownerID string) ([]entities.DocumentRecord, error) {
	query := `
		SELECT doc_id, filename, visibility, tenant_id, owner_id, chunk_count, byte_size, vector_ids, created_at
		FROM documents
		WHERE 1=1
	`
	var args []any

	if tenantID != "" {
		query += " AND (tenant_id = ? OR visibility = ?)"
		args = append(args, tenantID, string(entities.VisibilityGlobal))
	}
	if ownerID != "" {
		query += " AND owner_id = ?"
		args = append(args, ownerID)
	}
	query += " ORDER BY created_at DESC, doc_id"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var records []entities.DocumentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Delete removes docID's row after verifying ownership. The vector index is
// deliberately untouched: deletion is logical, enforced by search filtering.
func (c *SQLiteCatalog) Delete(ctx context.Context, docID, ownerID string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx, "SELECT owner_id FROM documents WHERE doc_id = ?", docID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", entities.ErrNotFound, docID)
	}
	if err != nil {
		return fmt.Errorf("querying owner: %w", err)
	}
	if owner != ownerID {
		return fmt.Errorf("%w: %s is not owned by %s", entities.ErrForbidden, docID, ownerID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE doc_id = ?", docID); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return tx.Commit()
}

// LiveDocs reports which of the given doc ids still have a catalog row.
func (c *SQLiteCatalog) LiveDocs(ctx context.Context, docIDs []string) (map[string]bool, error) {
	live := make(map[string]bool, len(docIDs))
	if len(docIDs) == 0 {
		return live, nil
	}

	placeholders := strings.Repeat("?,", len(docIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(docIDs))
	for i, id := range docIDs {
		args[i] = id
	}

	rows, err := c.db.QueryContext(ctx,
		"SELECT doc_id FROM documents WHERE doc_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying live documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning doc id: %w", err)
		}
		live[id] = true
	}
	return live, rows.Err()
}

// Stats aggregates document, chunk, and byte counts by visibility. A tenant
// filter scopes tenant-owned rows to that tenant while keeping global rows.
func (c *SQLiteCatalog) Stats(ctx context.Context, tenantID string) (*entities.UsageStats, error) {
	query := `
		SELECT visibility, COUNT(*), COALESCE(SUM(chunk_count), 0), COALESCE(SUM(byte_size), 0)
		FROM documents
		WHERE 1=1
	`
	var args []any
	if tenantID != "" {
		query += " AND (tenant_id = ? OR visibility = ?)"
		args = append(args, tenantID, string(entities.VisibilityGlobal))
	}
	query += " GROUP BY visibility"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating stats: %w", err)
	}
	defer rows.Close()

	stats := &entities.UsageStats{ByVisibility: map[entities.Visibility]entities.StatsBucket{}}
	for rows.Next() {
		var (
			visibility string
			bucket     entities.StatsBucket
		)
		if err := rows.Scan(&visibility, &bucket.Documents, &bucket.Chunks, &bucket.Bytes); err != nil {
			return nil, fmt.Errorf("scanning stats row: %w", err)
		}
		stats.ByVisibility[entities.Visibility(visibility)] = bucket
		stats.Totals.Documents += bucket.Documents
		stats.Totals.Chunks += bucket.Chunks
		stats.Totals.Bytes += bucket.Bytes
	}
	return stats, rows.Err()
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

func scanRecord(rows *sql.Rows) (*entities.DocumentRecord, error) {
	var (
		rec       entities.DocumentRecord
		tenantID  sql.NullString
		vectorIDs string
	)
	err := rows.Scan(
		&rec.DocID,
		&rec.Filename,
		(*string)(&rec.Visibility),
		&tenantID,
		&rec.OwnerID,
		&rec.ChunkCount,
		&rec.ByteSize,
		&vectorIDs,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning document row: %w", err)
	}
	rec.TenantID = tenantID.String
	if err := json.Unmarshal([]byte(vectorIDs), &rec.VectorIDs); err != nil {
		return nil, fmt.Errorf("decoding vector ids for %s: %w", rec.DocID, err)
	}
	return &rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
