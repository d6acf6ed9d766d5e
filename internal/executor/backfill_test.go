package executor

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-helland/warp/internal/corelog"
)

func TestBackfillEmptyTrajectoryIsNoop(t *testing.T) {
	called := false
	err := Backfill(nil, func(target string) *exec.Cmd {
		called = true
		return exec.Command("true")
	}, corelog.New())
	require.NoError(t, err)
	assert.False(t, called)
}

func TestBackfillRunsEachStepInOrder(t *testing.T) {
	var ran []string
	err := Backfill([]string{"a", "b", "c"}, func(target string) *exec.Cmd {
		ran = append(ran, target)
		return exec.Command("true")
	}, corelog.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ran)
}

func TestBackfillHaltsAtFirstFailure(t *testing.T) {
	var ran []string
	err := Backfill([]string{"a", "b", "c"}, func(target string) *exec.Cmd {
		ran = append(ran, target)
		if target == "b" {
			return exec.Command("false")
		}
		return exec.Command("true")
	}, corelog.New())
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, ran)
}
