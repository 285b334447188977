package trading

import (
	"math"

	"github.com/w1r2p1/moonshot/internal/domain"
)

// quantityGrid is an Instrument x Account matrix of signed integer
// quantities.
type quantityGrid struct {
	instruments []string
	accounts    []string
	values      [][]int64 // [instrumentIdx][accountIdx]
	instIdx     map[string]int
	acctIdx     map[string]int
}

func newQuantityGrid(instruments, accounts []string) *quantityGrid {
	g := &quantityGrid{
		instruments: instruments,
		accounts:    accounts,
		values:      make([][]int64, len(instruments)),
		instIdx:     make(map[string]int, len(instruments)),
		acctIdx:     make(map[string]int, len(accounts)),
	}
	for i := range instruments {
		g.values[i] = make([]int64, len(accounts))
		g.instIdx[instruments[i]] = i
	}
	for a := range accounts {
		g.acctIdx[accounts[a]] = a
	}
	return g
}

func (g *quantityGrid) at(i, a int) int64     { return g.values[i][a] }
func (g *quantityGrid) set(i, a int, v int64) { g.values[i][a] = v }

func (g *quantityGrid) instrumentIndex(id string) int {
	if i, ok := g.instIdx[id]; ok {
		return i
	}
	return -1
}

func (g *quantityGrid) accountIndex(id string) int {
	if a, ok := g.acctIdx[id]; ok {
		return a
	}
	return -1
}

func (g *quantityGrid) allZero() bool {
	for i := range g.values {
		for a := range g.values[i] {
			if g.values[i][a] != 0 {
				return false
			}
		}
	}
	return true
}

// clipMax caps each cell's magnitude at the per-instrument bound,
// preserving sign. NaN bounds leave the cell unconstrained.
func (g *quantityGrid) clipMax(bounds []float64) {
	for i := range g.values {
		bound := bounds[i]
		if math.IsNaN(bound) {
			continue
		}
		limit := int64(math.Round(bound))
		for a := range g.values[i] {
			v := g.values[i][a]
			switch {
			case v > limit:
				g.values[i][a] = limit
			case v < -limit:
				g.values[i][a] = -limit
			}
		}
	}
}

// clipMin raises each nonzero cell's magnitude to the per-instrument
// bound, preserving sign. NaN bounds leave the cell unconstrained.
func (g *quantityGrid) clipMin(bounds []float64) {
	for i := range g.values {
		bound := bounds[i]
		if math.IsNaN(bound) {
			continue
		}
		limit := int64(math.Round(bound))
		for a := range g.values[i] {
			v := g.values[i][a]
			switch {
			case v > 0 && v < limit:
				g.values[i][a] = limit
			case v < 0 && v > -limit:
				g.values[i][a] = -limit
			}
		}
	}
}

// orderStubs emits one stub per nonzero cell, instruments outer, accounts
// inner, matching the grid's deterministic ordering.
func (g *quantityGrid) orderStubs(orderRef string) []*domain.Order {
	var stubs []*domain.Order
	for i, instrumentID := range g.instruments {
		for a, account := range g.accounts {
			quantity := g.values[i][a]
			if quantity == 0 {
				continue
			}
			action := domain.SideBuy
			if quantity < 0 {
				action = domain.SideSell
				quantity = -quantity
			}
			stubs = append(stubs, &domain.Order{
				InstrumentID:  instrumentID,
				Account:       account,
				Action:        action,
				OrderRef:      orderRef,
				TotalQuantity: quantity,
			})
		}
	}
	return stubs
}
