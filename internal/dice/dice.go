package dice

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
)

// Die is one of the supported polyhedral dice.
type Die string

const (
	D4   Die = "D4"
	D6   Die = "D6"
	D8   Die = "D8"
	D10  Die = "D10"
	D12  Die = "D12"
	D20  Die = "D20"
	D100 Die = "D100"
)

var faces = map[Die]int{
	D4: 4, D6: 6, D8: 8, D10: 10, D12: 12, D20: 20, D100: 100,
}

// Faces returns the face count for d, or 0 for an unknown die.
func (d Die) Faces() int { return faces[d] }

// Roll is one requested die.
type Roll struct {
	Die     Die  `json:"die"`
	Private bool `json:"private,omitempty"`
}

// RolledDie is one resolved die.
type RolledDie struct {
	Die   Die `json:"die"`
	Value int `json:"value"`
}

// Result is immutable once produced; it is broadcast, never persisted.
type Result struct {
	Rolls     []RolledDie `json:"rolls"`
	Aggregate map[Die]int `json:"aggregate"`
	Total     int         `json:"total"`
}

// StressDie is one resolved d6 of the success/stress mechanic.
type StressDie struct {
	Value  int  `json:"value"`
	Stress bool `json:"stress"`
}

// StressResult reports successes (any 6) and panics (a 1 on a stress die).
type StressResult struct {
	Rolls     []StressDie `json:"rolls"`
	Successes int         `json:"successes"`
	Panics    int         `json:"panics"`
}

// Engine resolves roll requests. Values are drawn from a cryptographically
// strong source: players must be able to trust the server's fairness.
type Engine struct {
	draw func(faceCount int) (int, error)
}

func NewEngine() *Engine {
	return &Engine{draw: cryptoDraw}
}

func cryptoDraw(faceCount int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(faceCount)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + 1, nil
}

// Resolve rolls every requested die. Entries are stable-sorted ascending by
// face count, so equal dice keep their request order; the output preserves
// that sorted order. Privacy flags are carried through untouched: deciding
// who may see the result is the broadcaster's job, the engine never filters.
func (e *Engine) Resolve(rolls []Roll) (*Result, error) {
	sorted := make([]Roll, len(rolls))
	copy(sorted, rolls)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Die.Faces() < sorted[j].Die.Faces()
	})

	res := &Result{
		Rolls:     make([]RolledDie, 0, len(sorted)),
		Aggregate: make(map[Die]int),
	}
	for _, r := range sorted {
		fc := r.Die.Faces()
		if fc == 0 {
			return nil, fmt.Errorf("unknown die type %q", r.Die)
		}
		v, err := e.draw(fc)
		if err != nil {
			return nil, err
		}
		res.Rolls = append(res.Rolls, RolledDie{Die: r.Die, Value: v})
		res.Aggregate[r.Die]++
		res.Total += v
	}
	return res, nil
}

// ResolveStress rolls diceCount plain and stressCount stress six-sided dice,
// plain first, in generation order. A 6 on any die is a success; a 1 on a
// stress die is additionally a panic.
func (e *Engine) ResolveStress(diceCount, stressCount int) (*StressResult, error) {
	if diceCount < 0 || stressCount < 0 {
		return nil, fmt.Errorf("negative die count")
	}

	res := &StressResult{Rolls: make([]StressDie, 0, diceCount+stressCount)}
	for i := 0; i < diceCount+stressCount; i++ {
		stress := i >= diceCount
		v, err := e.draw(D6.Faces())
		if err != nil {
			return nil, err
		}
		res.Rolls = append(res.Rolls, StressDie{Value: v, Stress: stress})
		if v == 6 {
			res.Successes++
		}
		if stress && v == 1 {
			res.Panics++
		}
	}
	return res, nil
}
