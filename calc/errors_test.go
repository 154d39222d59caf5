package calc_test

import (
	"errors"
	"testing"

	"github.com/azag0/calcfw/calc"
	"github.com/stretchr/testify/assert"
)

func TestRunTaskPropagatesRuleError(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	failing := calc.NewRule(func(n any) (any, error) {
		return nil, errors.New("boom")
	})
	task, err := failing.Call(1)
	assert.NoError(t, err)

	_, err = s.RunTask(task, false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestResultBeforeDoneReportsErrFutureNotDone(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	identity := calc.NewRule(func(n any) (any, error) { return n, nil })
	task, err := identity.Call(1)
	assert.NoError(t, err)

	_, err = task.Result()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, calc.ErrFutureNotDone))
}

func TestFutureResultBeforeRunReportsErrTaskHasNotRun(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	identity := calc.NewRule(func(n any) (any, error) { return n, nil })
	task, err := identity.Call(1)
	assert.NoError(t, err)

	_, err = task.FutureResult()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, calc.ErrTaskHasNotRun))
}
