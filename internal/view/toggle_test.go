package view

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlippedFloorsAtZero(t *testing.T) {
	assert.Equal(t, Toggle{Active: false, Count: 0}, Toggle{Active: true, Count: 0}.Flipped())
	assert.Equal(t, Toggle{Active: true, Count: 1}, Toggle{Active: false, Count: 0}.Flipped())
}

func TestPendingCommit(t *testing.T) {
	p := Begin(Toggle{Active: false, Count: 4})
	assert.Equal(t, Toggle{Active: true, Count: 5}, p.Tentative())
	assert.Equal(t, Toggle{Active: true, Count: 5}, p.Commit())
	// settled, later rollback is ignored
	assert.Equal(t, Toggle{Active: true, Count: 5}, p.Rollback())
}

func TestPendingSettleRollsBackOnError(t *testing.T) {
	p := Begin(Toggle{Active: true, Count: 4})
	assert.Equal(t, Toggle{Active: true, Count: 4}, p.Settle(errors.New("unavailable")))
}
