package calc_test

import (
	"reflect"
	"testing"

	"github.com/azag0/calcfw/calc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// point stands in for a user-defined "class" a codec user wants to
// carry through the composite walk intact.
type point struct {
	X int
	Y int
}

func newPointCodec() *calc.Codec {
	c := calc.NewCodec()
	c.RegisterClass(reflect.TypeOf(point{}), "Point", func(obj any) (map[string]any, error) {
		p := obj.(point)
		return map[string]any{"x": p.X, "y": p.Y}, nil
	})
	return c
}

func pointDecoder(payload map[string]any) (any, error) {
	return point{X: payload["x"].(int), Y: payload["y"].(int)}, nil
}

func TestCodecCompositeRoundTrip(t *testing.T) {
	c := newPointCodec()
	original := []any{point{X: 1, Y: 2}, point{X: 3, Y: 4}, "plain"}

	jsonstr, tape, err := c.Encode(original)
	require.NoError(t, err)
	assert.Len(t, tape, 2)

	decoded, err := c.Decode(jsonstr, map[string]calc.ClassDecoder{"Point": pointDecoder})
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestCodecEncodeIsCanonical(t *testing.T) {
	c := calc.NewCodec()
	a, _, err := c.Encode(map[string]any{"b": 1, "a": 2})
	require.NoError(t, err)
	b, _, err := c.Encode(map[string]any{"a": 2, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, `{"a":2,"b":1}`, a)
}

func TestCodecRoundTripsIntVsFloat(t *testing.T) {
	c := calc.NewCodec()
	jsonstr, _, err := c.Encode([]any{5, 5.5})
	require.NoError(t, err)

	decoded, err := c.Decode(jsonstr, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{5, 5.5}, decoded)
}

func TestCodecRejectsUnregisteredFuture(t *testing.T) {
	s := calc.NewSession()
	s.Enter()
	defer s.Exit()

	identity := calc.NewRule(func(n any) (any, error) { return n, nil })
	task, err := identity.Call(1)
	require.NoError(t, err)

	c := calc.NewCodec()
	_, _, err = c.Encode(task)
	assert.Error(t, err)
}
