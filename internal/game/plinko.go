package game

import (
	"encoding/json"
	"fmt"
	"sort"

	"casino-engine/internal/core/domain"
	"casino-engine/pkg/apperror"
)

const (
	plinkoMinBias = 0.3
	plinkoMaxBias = 0.7
)

type plinkoChoice struct {
	Rows int `json:"rows"`
}

// Plinko drops a ball through Rows pegs. The landing bucket is the number
// of right bounces, so a board of n rows has n+1 buckets. Each bounce is
// nudged back toward the centre in proportion to the ball's offset.
type Plinko struct{}

func (Plinko) Game() domain.Game { return domain.GamePlinko }

func (Plinko) rows(odds *domain.OddsSnapshot, raw json.RawMessage) (int, error) {
	var c plinkoChoice
	if err := decodeChoice(raw, &c); err != nil {
		return 0, err
	}
	table, ok := odds.Plinko.Tables[c.Rows]
	if !ok || len(table) != c.Rows+1 {
		return 0, apperror.Validation(fmt.Sprintf("rows must be one of %v", PlinkoRows(odds.Plinko)))
	}
	return c.Rows, nil
}

func (p Plinko) Validate(odds *domain.OddsSnapshot, _ int64, choice json.RawMessage) (int, error) {
	return p.rows(odds, choice)
}

func (p Plinko) Resolve(bet int64, choice json.RawMessage, odds *domain.OddsSnapshot, draws []float64) (Result, error) {
	rows, err := p.rows(odds, choice)
	if err != nil {
		return Result{}, err
	}
	if err := requireDraws(draws, rows); err != nil {
		return Result{}, err
	}

	rights := 0
	path := make([]string, rows)
	for i := 0; i < rows; i++ {
		if draws[i] < rightProbability(odds.Plinko.CenterBias, 2*rights-i) {
			rights++
			path[i] = "R"
		} else {
			path[i] = "L"
		}
	}

	mult := odds.Plinko.Tables[rows][rights]
	payout := domain.ApplyMultiplier(bet, mult)
	return Result{
		IsWin:      payout > bet,
		Multiplier: mult,
		Payout:     payout,
		Outcome:    fmt.Sprintf("bucket_%d", rights),
		Detail: map[string]any{
			"rows":   rows,
			"bucket": rights,
			"path":   path,
		},
	}, nil
}

// rightProbability is the chance of bouncing right at the given offset
// from the centre line (negative = left of centre).
func rightProbability(bias float64, offset int) float64 {
	sign := 0.0
	switch {
	case offset > 0:
		sign = 1
	case offset < 0:
		sign = -1
	}
	mag := offset
	if mag < 0 {
		mag = -mag
	}
	if mag > 3 {
		mag = 3
	}
	p := 0.5 - bias*sign*float64(mag)/3
	if p < plinkoMinBias {
		return plinkoMinBias
	}
	if p > plinkoMaxBias {
		return plinkoMaxBias
	}
	return p
}

// PlinkoRTP computes the exact return of the table for the given row count.
func PlinkoRTP(o domain.PlinkoOdds, rows int) float64 {
	table := o.Tables[rows]
	if len(table) != rows+1 {
		return 0
	}
	dist := make([]float64, rows+1)
	dist[0] = 1
	for i := 0; i < rows; i++ {
		next := make([]float64, rows+1)
		for r := 0; r <= i; r++ {
			if dist[r] == 0 {
				continue
			}
			pr := rightProbability(o.CenterBias, 2*r-i)
			next[r+1] += dist[r] * pr
			next[r] += dist[r] * (1 - pr)
		}
		dist = next
	}
	var rtp float64
	for r, p := range dist {
		rtp += p * table[r]
	}
	return rtp
}

// PlinkoRows lists the configured row counts in ascending order.
func PlinkoRows(o domain.PlinkoOdds) []int {
	rows := make([]int, 0, len(o.Tables))
	for r := range o.Tables {
		rows = append(rows, r)
	}
	sort.Ints(rows)
	return rows
}
