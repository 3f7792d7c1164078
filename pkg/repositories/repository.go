package repositories

import (
	"context"

	"github.com/cbodonnell/gravwell/pkg/repositories/models"
	"github.com/google/uuid"
)

type Repository interface {
	Close(ctx context.Context) error
	// SaveMatchResult stores the result of a match. Saving a match that has
	// already been saved is a no-op.
	SaveMatchResult(ctx context.Context, result *models.MatchResult) error
	LoadMatchResult(ctx context.Context, matchID uuid.UUID) (*models.MatchResult, error)
	// ListMatchResults returns up to limit results, most recent first.
	ListMatchResults(ctx context.Context, limit int) ([]*models.MatchResult, error)
}
