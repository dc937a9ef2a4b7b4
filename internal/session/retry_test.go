package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryCandidates_FirstSuccessWins(t *testing.T) {
	probed := []string{}
	got, attempts, err := tryCandidates(context.Background(), []string{"a", "b", "c"}, 10, 0,
		func(c string) (int, error) {
			probed = append(probed, c)
			if c == "b" {
				return 7, nil
			}
			return 0, errNotReady
		})

	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []string{"a", "b"}, probed)
}

func TestTryCandidates_CyclesUntilBudgetSpent(t *testing.T) {
	probes := 0
	_, attempts, err := tryCandidates(context.Background(), []string{"a", "b"}, 5, 0,
		func(string) (int, error) {
			probes++
			return 0, errNotReady
		})

	assert.ErrorIs(t, err, errNotReady)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, 5, probes)
}

func TestTryCandidates_LaterPassSucceeds(t *testing.T) {
	pass := 0
	got, attempts, err := tryCandidates(context.Background(), []string{"only"}, 5, 0,
		func(string) (string, error) {
			pass++
			if pass < 3 {
				return "", errNotReady
			}
			return "ready", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ready", got)
	assert.Equal(t, 3, attempts)
}

func TestTryCandidates_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, attempts, err := tryCandidates(ctx, []string{"a"}, 5, time.Second,
		func(string) (int, error) {
			return 0, errNotReady
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestTryCandidates_HardErrorsCountAgainstBudget(t *testing.T) {
	boom := errors.New("boom")
	_, attempts, err := tryCandidates(context.Background(), []string{"a"}, 3, 0,
		func(string) (int, error) {
			return 0, boom
		})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
}
