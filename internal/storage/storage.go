package storage

import (
	"context"

	"github.com/ipatka/compound-monitoring/internal/model"
)

// FindingSink receives the findings produced for one transaction.
type FindingSink interface {
	PutFindings(ctx context.Context, findings []model.Finding) error
}
