package service

import (
	"context"

	"github.com/project-euler/queryassist/internal/models"
)

// Store is the storage collaborator the pipeline reads sources from. Unknown
// sources are reported with an error wrapping state.ErrSourceNotFound.
type Store interface {
	GetSchema(ctx context.Context, sourceID string) (*models.Schema, error)
	GetAllRows(ctx context.Context, sourceID string) ([]models.Row, error)
	ListSources(ctx context.Context) ([]models.SourceMeta, error)
}
