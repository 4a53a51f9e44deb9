package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	apperrors "github.com/jordigilh/docflow/internal/errors"
	"github.com/jordigilh/docflow/pkg/citation"
)

type citationRow struct {
	DOI            string `db:"doi"`
	PMID           string `db:"pmid"`
	Title          string `db:"title"`
	Authors        []byte `db:"authors"`
	Year           int    `db:"year"`
	Journal        string `db:"journal"`
	Volume         string `db:"volume"`
	Pages          string `db:"pages"`
	URL            string `db:"url"`
	Abstract       string `db:"abstract"`
	IsValid        bool   `db:"is_valid"`
	ValidationDate sql.NullTime `db:"validation_date"`
	ExtraMetadata  []byte `db:"extra_metadata"`
}

func (r citationRow) toRecord() (citation.Record, error) {
	rec := citation.Record{
		DOI:      r.DOI,
		PMID:     r.PMID,
		Title:    r.Title,
		Year:     r.Year,
		Journal:  r.Journal,
		Volume:   r.Volume,
		Pages:    r.Pages,
		URL:      r.URL,
		Abstract: r.Abstract,
		IsValid:  r.IsValid,
	}
	if r.ValidationDate.Valid {
		rec.ValidationDate = r.ValidationDate.Time
	}
	if len(r.Authors) > 0 {
		if err := json.Unmarshal(r.Authors, &rec.Authors); err != nil {
			return citation.Record{}, fmt.Errorf("unmarshal authors: %w", err)
		}
	}
	if len(r.ExtraMetadata) > 0 {
		if err := json.Unmarshal(r.ExtraMetadata, &rec.ExtraMetadata); err != nil {
			return citation.Record{}, fmt.Errorf("unmarshal extra metadata: %w", err)
		}
	}
	return rec, nil
}

// GetCitationRecord looks up a resolved bibliographic record by its
// canonical DOI, the same cache key the citation validator uses.
func (s *Store) GetCitationRecord(ctx context.Context, doi string) (*citation.Record, error) {
	var row citationRow
	err := s.db.GetContext(ctx, &row, `
		SELECT doi, pmid, title, authors, year, journal, volume, pages, url, abstract, is_valid, validation_date, extra_metadata
		FROM citation_records WHERE doi = $1`, doi)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("citation record")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get citation record", err)
	}
	rec, err := row.toRecord()
	if err != nil {
		return nil, apperrors.NewDatabaseError("decode citation record", err)
	}
	return &rec, nil
}

// SaveCitationRecord upserts a resolved record, shared across every
// document that cites the same DOI.
func (s *Store) SaveCitationRecord(ctx context.Context, rec *citation.Record) error {
	authors, err := json.Marshal(rec.Authors)
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}
	extra, err := json.Marshal(rec.ExtraMetadata)
	if err != nil {
		return fmt.Errorf("marshal extra metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO citation_records (doi, pmid, title, authors, year, journal, volume, pages, url, abstract, is_valid, validation_date, extra_metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (doi) DO UPDATE SET
			pmid = EXCLUDED.pmid,
			title = EXCLUDED.title,
			authors = EXCLUDED.authors,
			year = EXCLUDED.year,
			journal = EXCLUDED.journal,
			volume = EXCLUDED.volume,
			pages = EXCLUDED.pages,
			url = EXCLUDED.url,
			abstract = EXCLUDED.abstract,
			is_valid = EXCLUDED.is_valid,
			validation_date = EXCLUDED.validation_date,
			extra_metadata = EXCLUDED.extra_metadata`,
		rec.DOI, rec.PMID, rec.Title, authors, rec.Year, rec.Journal, rec.Volume,
		rec.Pages, rec.URL, rec.Abstract, rec.IsValid, rec.ValidationDate, extra)
	if err != nil {
		return apperrors.NewDatabaseError("save citation record", err)
	}
	return nil
}
