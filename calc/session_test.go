package calc_test

import (
	"errors"
	"testing"

	"github.com/azag0/calcfw/calc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalPassThrough(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	result, err := s.Eval(10)
	require.NoError(t, err)
	assert.Equal(t, 10, result)
}

func TestEvalPassThroughNestedValue(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	result, err := s.Eval(map[string]any{"a": 1, "b": []any{2, 3}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": []any{2, 3}}, result)
}

// fibChain exercises spec's two-phase task completion: a fib(n) task
// for n >= 2 returns a further task (the sum of its two recursive
// calls) rather than a plain value, so the engine must drive HAS_RUN
// tasks to DONE before the root future itself completes.
func newFibChainRules() (fib, add *calc.Rule) {
	add = calc.NewRule(func(a, b any) (any, error) {
		return a.(int) + b.(int), nil
	})
	fib = calc.NewRule(func(n any) (any, error) {
		i := n.(int)
		if i < 2 {
			return i, nil
		}
		t1, err := fib.Call(i - 1)
		if err != nil {
			return nil, err
		}
		t2, err := fib.Call(i - 2)
		if err != nil {
			return nil, err
		}
		return add.Call(t1, t2)
	})
	return fib, add
}

func TestEvalFibonacciChaining(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	fib, _ := newFibChainRules()
	task, err := fib.Call(10)
	require.NoError(t, err)

	result, err := s.Eval(task)
	require.NoError(t, err)
	assert.Equal(t, 55, result)
}

func TestEvalFibonacciPairSum(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	fib, _ := newFibChainRules()
	a, err := fib.Call(5)
	require.NoError(t, err)
	b, err := fib.Call(10)
	require.NoError(t, err)

	result, err := s.Eval([]any{a, b})
	require.NoError(t, err)
	assert.Equal(t, []any{5, 55}, result)
}

// fibNested returns its value wrapped two lists deep, so indexing it
// twice ([0][0]) exercises Indexor composition (spec.md §4.4).
func newFibNestedRules() (fibNested, addNested *calc.Rule) {
	addNested = calc.NewRule(func(a, b any) (any, error) {
		av := a.([]any)[0].([]any)[0].(int)
		bv := b.([]any)[0].([]any)[0].(int)
		return []any{[]any{av + bv}}, nil
	})
	fibNested = calc.NewRule(func(n any) (any, error) {
		i := n.(int)
		if i < 2 {
			return []any{[]any{i}}, nil
		}
		t1, err := fibNested.Call(i - 1)
		if err != nil {
			return nil, err
		}
		t2, err := fibNested.Call(i - 2)
		if err != nil {
			return nil, err
		}
		return addNested.Call(t1, t2)
	})
	return fibNested, addNested
}

func TestEvalIndexorComposition(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	fibNested, _ := newFibNestedRules()
	task, err := fibNested.Call(10)
	require.NoError(t, err)

	result, err := s.Eval(task.Index(0).Index(0))
	require.NoError(t, err)
	assert.Equal(t, 55, result)
}

func TestEvalTwoPhaseCalc(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	setup := calc.NewRule(func() (any, error) {
		return map[string]any{"x": 1, "y": 2}, nil
	})
	analysis := calc.NewRule(func(cfg any) (any, error) {
		m := cfg.(map[string]any)
		return m["x"].(int) + m["y"].(int), nil
	})

	cfgTask, err := setup.Call()
	require.NoError(t, err)
	resultTask, err := analysis.Call(cfgTask)
	require.NoError(t, err)

	result, err := s.Eval(resultTask)
	require.NoError(t, err)
	assert.Equal(t, 3, result)
}

func TestRuleCallWithoutActiveSessionFails(t *testing.T) {
	identity := calc.NewRule(func(n any) (any, error) { return n, nil })
	_, err := identity.Call(1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, calc.ErrNoActiveSession))
}

func TestCreateTaskRejectsArgFromAnotherSession(t *testing.T) {
	identity := calc.NewRule(func(n any) (any, error) { return n, nil })

	s1 := calc.NewSession()
	s1.Enter()
	foreign, err := identity.Call(1)
	require.NoError(t, err)
	s1.Exit()

	s2 := calc.NewSession()
	s2.Enter()
	defer s2.Exit()

	_, err = identity.Call(foreign)
	require.Error(t, err)
	assert.True(t, errors.Is(err, calc.ErrArgNotInSession))
}

func TestCreateTaskDedupesIdenticalCalls(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	identity := calc.NewRule(func(n any) (any, error) { return n, nil })
	t1, err := identity.Call(7)
	require.NoError(t, err)
	t2, err := identity.Call(7)
	require.NoError(t, err)

	assert.Equal(t, t1.Hashid(), t2.Hashid())
}

func TestWithDefaultIsAdvisoryOnly(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	slow := calc.NewRule(func(n any) (any, error) { return n, nil }, calc.WithDefault(-1))
	task, err := slow.Call(42)
	require.NoError(t, err)

	// Not yet run: ResultOrDefault falls back to the advisory default.
	assert.Equal(t, -1, task.ResultOrDefault(-1))

	result, err := s.Eval(task)
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	// Once done, the real result always wins over the default.
	assert.Equal(t, 42, task.ResultOrDefault(-1))
}
