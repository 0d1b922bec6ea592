package recommend

import (
	"context"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/predict"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/workload"
)

const (
	StrategySearch     = "search"
	StrategyRegression = "regression"
)

// Strategy proposes one point for a snapshot classified as label. An
// empty point means no change.
type Strategy interface {
	Propose(ctx context.Context, snap *snapshot.Snapshot, label workload.Label) params.Point
}

// NewStrategy builds the strategy named by kind. The search strategy
// scores at most limit points of space with scorer; the regression
// strategy uses regressor directly.
func NewStrategy(kind string, regressor, scorer predict.Model, space *params.Space, limit int) (Strategy, error) {
	switch kind {
	case StrategySearch, "":
		return &GridSearch{Search: NewSearch(scorer), Space: space, Limit: limit}, nil
	case StrategyRegression:
		return NewRegression(regressor), nil
	default:
		return nil, errors.New().WithData(errors.ErrInvalidStrategy, struct {
			Strategy string
		}{kind})
	}
}
