package calc_test

import (
	"testing"

	"github.com/azag0/calcfw/calc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyCallbackFiresImmediatelyWhenAlreadyReady(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	identity := calc.NewRule(func(n any) (any, error) { return n, nil })
	task, err := identity.Call(1)
	require.NoError(t, err)

	fired := false
	task.AddReadyCallback(func(calc.HashedFuture) { fired = true })
	assert.True(t, fired, "task has no pending args, so it is already ready at construction")
}

func TestDoneCallbackFiresOnceOnSetResult(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	identity := calc.NewRule(func(n any) (any, error) { return n, nil })
	task, err := identity.Call(1)
	require.NoError(t, err)

	calls := 0
	task.AddDoneCallback(func(calc.HashedFuture) { calls++ })

	_, err = s.RunTask(task, false)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestAddDoneCallbackOnAlreadyDoneFuturePanics(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	identity := calc.NewRule(func(n any) (any, error) { return n, nil })
	task, err := identity.Call(1)
	require.NoError(t, err)

	_, err = s.RunTask(task, false)
	require.NoError(t, err)

	assert.Panics(t, func() {
		task.AddDoneCallback(func(calc.HashedFuture) {})
	})
}

func TestTemplatePropagatesParentReadiness(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	identity := calc.NewRule(func(n any) (any, error) { return n, nil })
	task, err := identity.Call(5)
	require.NoError(t, err)

	tmpl, err := calc.TemplateFromObject(map[string]any{"v": task})
	require.NoError(t, err)
	assert.False(t, tmpl.Done(), "template holds a not-yet-done future")

	result, err := s.Eval(tmpl)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": 5}, result)
}
