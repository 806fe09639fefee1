package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/oogsj/coastwatch/internal/domain"
)

// UpsertDocuments commits literature records and their author graph.
// Each document is one transaction: a failure partway through one record
// never leaves a document without its authors.
func (p *Postgres) UpsertDocuments(ctx context.Context, docs []domain.Document) (int64, error) {
	var inserted int64
	for _, doc := range docs {
		created, err := p.upsertDocument(ctx, doc)
		if err != nil {
			return inserted, err
		}
		if created {
			inserted++
		}
	}
	return inserted, nil
}

func (p *Postgres) upsertDocument(ctx context.Context, doc domain.Document) (bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, &domain.StorageError{Op: "begin document upsert", Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	docID, exists, err := findDocument(ctx, tx, doc)
	if err != nil {
		return false, err
	}
	if exists {
		// Refresh the volatile citation count; everything else is immutable.
		if _, err := tx.Exec(ctx,
			`UPDATE document SET citations = $2 WHERE id = $1`, docID, doc.Citations,
		); err != nil {
			return false, &domain.StorageError{Op: "update citations", Err: err}
		}
		if err := tx.Commit(ctx); err != nil {
			return false, &domain.StorageError{Op: "commit document upsert", Err: err}
		}
		return false, nil
	}

	err = tx.QueryRow(ctx, `
INSERT INTO document (title, year, venue, citations, url, doi)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
RETURNING id`,
		doc.Title, doc.Year, doc.Venue, doc.Citations, doc.URL, doc.DOI,
	).Scan(&docID)
	if err != nil {
		return false, &domain.StorageError{Op: "insert document", Err: err}
	}

	for i, name := range doc.Authors {
		var authorID int64
		err = tx.QueryRow(ctx, `
INSERT INTO author (full_name) VALUES ($1)
ON CONFLICT (full_name) DO UPDATE SET full_name = EXCLUDED.full_name
RETURNING id`, name,
		).Scan(&authorID)
		if err != nil {
			return false, &domain.StorageError{Op: "resolve author", Err: err}
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO document_author (document_id, author_id, author_order)
VALUES ($1, $2, $3)
ON CONFLICT (document_id, author_id) DO NOTHING`,
			docID, authorID, i+1,
		); err != nil {
			return false, &domain.StorageError{Op: "link author", Err: err}
		}
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO document_source (document_id, source_type, source_name, raw_payload)
VALUES ($1, 'scraper', 'openalex', $2)`,
		docID, doc.Raw,
	); err != nil {
		return false, &domain.StorageError{Op: "record document source", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, &domain.StorageError{Op: "commit document upsert", Err: err}
	}
	return true, nil
}

// findDocument locates an existing document by DOI when present, otherwise
// by the (normalized title, year, first author) heuristic.
func findDocument(ctx context.Context, tx pgx.Tx, doc domain.Document) (int64, bool, error) {
	var id int64
	var err error
	if doc.DOI != "" {
		err = tx.QueryRow(ctx,
			`SELECT id FROM document WHERE doi = $1`, doc.DOI,
		).Scan(&id)
	} else {
		err = tx.QueryRow(ctx, `
SELECT d.id FROM document d
JOIN document_author da ON da.document_id = d.id AND da.author_order = 1
JOIN author a ON a.id = da.author_id
WHERE btrim(lower(regexp_replace(d.title, '[^[:alnum:]]+', ' ', 'g'))) = $1
  AND d.year = $2
  AND a.full_name = $3`,
			domain.NormalizeTitle(doc.Title), doc.Year, doc.FirstAuthor(),
		).Scan(&id)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &domain.StorageError{Op: "find document", Err: err}
	}
	return id, true, nil
}
