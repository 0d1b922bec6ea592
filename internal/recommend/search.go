package recommend

import (
	"context"
	"math"
	"sort"
	"time"

	"codeberg.org/mutker/kerntune/internal/features"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/predict"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/telemetry"
	"codeberg.org/mutker/kerntune/internal/workload"
)

// ScoredCandidate is a grid point with its predicted score. Index is the
// point's position in the grid it was scored from.
type ScoredCandidate struct {
	Point params.Point
	Score float64
	Index int
}

// Search scores every candidate point in one batched model call.
type Search struct {
	model  predict.Model
	schema *features.Schema
}

func NewSearch(model predict.Model) *Search {
	return &Search{model: model, schema: features.Score}
}

// Recommend returns up to topK candidates ordered by descending score,
// ties broken by grid position. It does not bound the grid itself.
func (s *Search) Recommend(
	ctx context.Context,
	snap *snapshot.Snapshot,
	label workload.Label,
	grid []params.Point,
	topK int,
) []ScoredCandidate {
	if len(grid) == 0 || topK <= 0 {
		return nil
	}
	if !s.model.Available() {
		logger.Debug().Msg("No scoring model loaded, skipping search")
		return nil
	}

	start := time.Now()
	defer func() {
		telemetry.ObserveRecommendation("search", time.Since(start))
	}()

	base := s.baseRow(snap, label)
	rows := make([][]float64, len(grid))
	for i, p := range grid {
		rows[i] = s.schema.Overlay(base, p)
	}

	out, err := s.model.Predict(ctx, predict.Batch{Columns: s.schema.Columns(), Rows: rows})
	if err != nil {
		logger.Warn().Err(err).Int("candidates", len(grid)).Msg("Candidate scoring failed")
		return nil
	}

	candidates := make([]ScoredCandidate, 0, len(grid))
	for i, vec := range out {
		score := math.Inf(-1)
		if len(vec) > 0 && !math.IsNaN(vec[0]) {
			score = vec[0]
		}
		candidates = append(candidates, ScoredCandidate{Point: grid[i], Score: score, Index: i})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	logger.Debug().
		Int("candidates", len(grid)).
		Int("top_k", len(candidates)).
		Float64("best_score", candidates[0].Score).
		Msg("Scored parameter grid")

	return candidates
}

// baseRow builds the inference row shared by all candidates. A live
// snapshot has no exec_time; cpu_avg falls back to the instantaneous
// cpu_percent.
func (s *Search) baseRow(snap *snapshot.Snapshot, label workload.Label) []float64 {
	row := s.schema.Row(snap)
	if _, ok := snap.Number(snapshot.FieldCPUAvg); !ok {
		cpu, _ := snap.Number(snapshot.FieldCPUPercent)
		s.schema.Set(row, snapshot.FieldCPUAvg, cpu)
	}
	s.schema.Set(row, snapshot.FieldWorkloadType, features.EncodeLabel(label))

	return row
}

// GridSearch proposes the best point of a bounded grid.
type GridSearch struct {
	Search *Search
	Space  *params.Space
	Limit  int
}

func (g *GridSearch) Propose(ctx context.Context, snap *snapshot.Snapshot, label workload.Label) params.Point {
	best := g.Search.Recommend(ctx, snap, label, g.Space.First(g.Limit), 1)
	if len(best) == 0 {
		return params.Point{}
	}

	telemetry.SetPredictedScore(best[0].Score)

	return best[0].Point
}
