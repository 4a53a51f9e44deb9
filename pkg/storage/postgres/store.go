// Package postgres is the production engine.Store: a sqlx + pgx/v5
// stdlib-driver adapter over Postgres, grounded on the teacher's
// datastorage/repository package family and its jackc/pgx +
// jmoiron/sqlx dependencies.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jordigilh/docflow/internal/config"
	apperrors "github.com/jordigilh/docflow/internal/errors"
	"github.com/jordigilh/docflow/pkg/shared/logging"
	"github.com/jordigilh/docflow/pkg/workflow/engine"
)

//go:embed schema.sql
var schemaSQL string

// Store implements engine.Store over Postgres. Nodes are append-only:
// SaveDocument/AppendNode never delete rows, matching the in-memory
// store's contract.
type Store struct {
	db  *sqlx.DB
	log *logrus.Logger
}

// Open connects to Postgres via the pgx/v5 stdlib driver, applies the
// pool tunables from cfg, and ensures the schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.New()
	}

	db, err := sqlx.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.WithFields(logrus.Fields(logging.NewFields().Component("postgres"))).Info("connected to database")
	return &Store{db: db, log: log}, nil
}

// NewWithDB wraps an already-open *sqlx.DB, used by tests against
// go-sqlmock without a real Postgres instance.
func NewWithDB(db *sqlx.DB, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	return &Store{db: db, log: log}
}

func (s *Store) Close() error { return s.db.Close() }

var _ engine.Store = (*Store)(nil)

type documentRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	Status    string    `db:"status"`
	Config    []byte    `db:"config"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r documentRow) toDocument() (engine.Document, error) {
	var cfg engine.Config
	if len(r.Config) > 0 {
		if err := json.Unmarshal(r.Config, &cfg); err != nil {
			return engine.Document{}, fmt.Errorf("unmarshal document config: %w", err)
		}
	}
	return engine.Document{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Content:   r.Content,
		Status:    engine.DocumentStatus(r.Status),
		Config:    cfg,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*engine.Document, error) {
	var row documentRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, title, content, status, config, created_at, updated_at
		FROM documents WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("document")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get document", err)
	}
	doc, err := row.toDocument()
	if err != nil {
		return nil, apperrors.NewDatabaseError("decode document", err)
	}
	return &doc, nil
}

func (s *Store) SaveDocument(ctx context.Context, doc *engine.Document) error {
	configJSON, err := json.Marshal(doc.Config)
	if err != nil {
		return fmt.Errorf("marshal document config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, title, content, status, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			status = EXCLUDED.status,
			config = EXCLUDED.config,
			updated_at = EXCLUDED.updated_at`,
		doc.ID, doc.UserID, doc.Title, doc.Content, string(doc.Status), configJSON, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return apperrors.NewDatabaseError("save document", err)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, userID string) ([]engine.Document, error) {
	var rows []documentRow
	query := `SELECT id, user_id, title, content, status, config, created_at, updated_at FROM documents`
	var err error
	if userID == "" {
		err = s.db.SelectContext(ctx, &rows, query+` ORDER BY created_at`)
	} else {
		err = s.db.SelectContext(ctx, &rows, query+` WHERE user_id = $1 ORDER BY created_at`, userID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("list documents", err)
	}

	docs := make([]engine.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.toDocument()
		if err != nil {
			return nil, apperrors.NewDatabaseError("decode document", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) AppendNode(ctx context.Context, node *engine.Node) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, document_id, type, status, content, parent_id, branch, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		node.ID, node.DocumentID, string(node.Type), string(node.Status), node.Content,
		node.ParentID, node.Branch, node.RetryCount, node.CreatedAt)
	if err != nil {
		return apperrors.NewDatabaseError("append node", err)
	}
	return nil
}

type nodeRow struct {
	ID         string    `db:"id"`
	DocumentID string    `db:"document_id"`
	Type       string    `db:"type"`
	Status     string    `db:"status"`
	Content    string    `db:"content"`
	ParentID   string    `db:"parent_id"`
	Branch     string    `db:"branch"`
	RetryCount int       `db:"retry_count"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r nodeRow) toNode() engine.Node {
	return engine.Node{
		ID:         r.ID,
		DocumentID: r.DocumentID,
		Type:       engine.NodeType(r.Type),
		Status:     engine.NodeStatus(r.Status),
		Content:    r.Content,
		ParentID:   r.ParentID,
		Branch:     r.Branch,
		RetryCount: r.RetryCount,
		CreatedAt:  r.CreatedAt,
	}
}

func (s *Store) ListNodes(ctx context.Context, documentID string) ([]engine.Node, error) {
	var rows []nodeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, document_id, type, status, content, parent_id, branch, retry_count, created_at
		FROM nodes WHERE document_id = $1 ORDER BY created_at`, documentID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list nodes", err)
	}

	nodes := make([]engine.Node, 0, len(rows))
	for _, row := range rows {
		nodes = append(nodes, row.toNode())
	}
	return nodes, nil
}

func (s *Store) GetNode(ctx context.Context, documentID, nodeID string) (*engine.Node, error) {
	var row nodeRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, document_id, type, status, content, parent_id, branch, retry_count, created_at
		FROM nodes WHERE document_id = $1 AND id = $2`, documentID, nodeID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("node")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get node", err)
	}
	node := row.toNode()
	return &node, nil
}

func (s *Store) SaveMetrics(ctx context.Context, metrics *engine.NodeMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO node_metrics (node_id, readability_score, grammar_errors, citation_count, validation_rate, word_count, token_usage, processing_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (node_id) DO UPDATE SET
			readability_score = EXCLUDED.readability_score,
			grammar_errors = EXCLUDED.grammar_errors,
			citation_count = EXCLUDED.citation_count,
			validation_rate = EXCLUDED.validation_rate,
			word_count = EXCLUDED.word_count,
			token_usage = EXCLUDED.token_usage,
			processing_time_ms = EXCLUDED.processing_time_ms`,
		metrics.NodeID, metrics.ReadabilityScore, metrics.GrammarErrors, metrics.CitationCount,
		metrics.ValidationRate, metrics.WordCount, metrics.TokenUsage, metrics.ProcessingTimeMs)
	if err != nil {
		return apperrors.NewDatabaseError("save node metrics", err)
	}
	return nil
}

func (s *Store) GetMetrics(ctx context.Context, nodeID string) (*engine.NodeMetrics, error) {
	var metrics engine.NodeMetrics
	err := s.db.GetContext(ctx, &metrics, `
		SELECT node_id, readability_score, grammar_errors, citation_count, validation_rate, word_count, token_usage, processing_time_ms
		FROM node_metrics WHERE node_id = $1`, nodeID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("node metrics")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get node metrics", err)
	}
	return &metrics, nil
}
