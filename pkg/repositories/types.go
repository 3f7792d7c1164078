package repositories

import (
	"fmt"

	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
	"github.com/cbodonnell/gravwell/pkg/repositories/models"
	"github.com/google/uuid"
)

type ErrNotFound struct {
}

func (e *ErrNotFound) Error() string {
	return "not found"
}

func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

// scanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanMatchResult(row scanner) (*models.MatchResult, error) {
	var matchID string
	var outcome string
	result := &models.MatchResult{}
	if err := row.Scan(&matchID, &outcome, &result.Deaths, &result.Survivors, &result.Boost, &result.EndedAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse match id %q: %v", matchID, err)
	}
	result.MatchID = id

	o, ok := gametypes.ParseMatchOutcome(outcome)
	if !ok {
		return nil, fmt.Errorf("unknown match outcome %q", outcome)
	}
	result.Outcome = o

	return result, nil
}
