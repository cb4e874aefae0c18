package rules

import "github.com/mcoot/gocup/internal/model"

// Engine decides whether a stone may be placed and what it captures
type Engine interface {
	// Place returns the board after color plays at p, and the captured points
	Place(board model.Board, color model.Color, p model.Point) (model.Board, []model.Point, error)
}

// Basic places stones on empty intersections, removes opponent groups left
// without liberties and rejects suicide. It does not track ko.
type Basic struct{}

// Place implements Engine
func (Basic) Place(board model.Board, color model.Color, p model.Point) (model.Board, []model.Point, error) {
	if !board.InBounds(p) {
		return nil, nil, model.ErrInvalidPosition
	}
	if board.At(p) != model.ColorNone {
		return nil, nil, model.ErrCellOccupied
	}

	next := board.Clone()
	next[p.Y][p.X] = color

	var captured []model.Point
	for _, n := range neighbours(next, p) {
		if next.At(n) != color.Opponent() {
			continue
		}
		group, liberties := groupAt(next, n)
		if liberties == 0 {
			for _, stone := range group {
				next[stone.Y][stone.X] = model.ColorNone
			}
			captured = append(captured, group...)
		}
	}

	if _, liberties := groupAt(next, p); liberties == 0 {
		return nil, nil, model.ErrInvalidMove
	}
	return next, captured, nil
}

// groupAt returns the connected stones of the same color as p and their liberty count
func groupAt(board model.Board, p model.Point) ([]model.Point, int) {
	color := board.At(p)
	seen := map[model.Point]bool{p: true}
	libertySet := map[model.Point]bool{}
	stack := []model.Point{p}
	var group []model.Point

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		group = append(group, current)

		for _, n := range neighbours(board, current) {
			switch board.At(n) {
			case model.ColorNone:
				libertySet[n] = true
			case color:
				if !seen[n] {
					seen[n] = true
					stack = append(stack, n)
				}
			}
		}
	}
	return group, len(libertySet)
}

func neighbours(board model.Board, p model.Point) []model.Point {
	candidates := []model.Point{
		{X: p.X - 1, Y: p.Y},
		{X: p.X + 1, Y: p.Y},
		{X: p.X, Y: p.Y - 1},
		{X: p.X, Y: p.Y + 1},
	}
	result := candidates[:0]
	for _, c := range candidates {
		if board.InBounds(c) {
			result = append(result, c)
		}
	}
	return result
}
