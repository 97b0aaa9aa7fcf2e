package tradingutils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGeometricRung_MovesAwayFromRefEachStep(t *testing.T) {
	ref := decimal.NewFromInt(100)
	spread := decimal.NewFromFloat(0.01)

	r0 := GeometricRung(ref, spread, 0, -1) // first rung below ref
	r1 := GeometricRung(ref, spread, 1, -1) // second rung further below

	assert.True(t, r0.LessThan(ref))
	assert.True(t, r1.LessThan(r0))
}

func TestGeometricRung_PositiveDirectionMovesUp(t *testing.T) {
	ref := decimal.NewFromInt(100)
	spread := decimal.NewFromFloat(0.01)

	up := GeometricRung(ref, spread, 0, 1)
	assert.True(t, up.GreaterThan(ref))
}

func TestSeedRung_FirstRungSitsAtRef(t *testing.T) {
	ref := decimal.NewFromInt(100)
	spread := decimal.NewFromFloat(0.005)

	assert.True(t, SeedRung(ref, spread, 0, -1).Equal(ref), "rung 0 must be the reference price itself")
}

func TestSeedRung_MatchesLiteralLadder(t *testing.T) {
	ref := decimal.NewFromInt(100)
	spread := decimal.NewFromFloat(0.005)

	want := []string{"100", "99.5", "99", "98.51", "98.01"}
	for i, w := range want {
		got := RoundPrice(SeedRung(ref, spread, i, -1), 2)
		assert.True(t, got.Equal(decimal.RequireFromString(w)), "rung %d: got %s want %s", i, got, w)
	}
}

func TestRoundPrice(t *testing.T) {
	p := decimal.NewFromFloat(1.23456)
	assert.True(t, RoundPrice(p, 2).Equal(decimal.NewFromFloat(1.23)))
}
