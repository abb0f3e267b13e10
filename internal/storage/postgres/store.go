package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ipatka/compound-monitoring/internal/model"
)

// Store provides Postgres persistence for findings.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutFindings inserts a batch of findings.
func (s *Store) PutFindings(ctx context.Context, findings []model.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, finding := range findings {
		metadata, err := json.Marshal(finding.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		batch.Queue(`
			INSERT INTO findings (
				alert_id, name, description, finding_type, severity, protocol, tx_hash, metadata, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		`,
			finding.AlertID,
			finding.Name,
			finding.Description,
			string(finding.Type),
			string(finding.Severity),
			finding.Protocol,
			finding.TxHash,
			metadata,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range findings {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
