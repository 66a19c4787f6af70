package diff

import (
	"testing"

	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/constraints"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_IdenticalValues(t *testing.T) {
	e := NewEngine(0)

	values := []any{
		nil,
		true,
		"hello",
		float64(42),
		map[string]any{"a": float64(1), "b": []any{"x", "y"}, "c": map[string]any{"d": nil}},
		[]any{float64(1), float64(2), float64(3)},
	}

	for _, v := range values {
		ops, truncated := e.Compare(v, v)
		assert.Empty(t, ops)
		assert.False(t, truncated)
	}
}

func TestCompare_AddRemoveReplace(t *testing.T) {
	e := NewEngine(0)

	a := map[string]any{"x": float64(1), "y": float64(2)}
	b := map[string]any{"y": float64(3), "z": float64(4)}

	ops, truncated := e.Compare(a, b)
	require.False(t, truncated)
	require.Equal(t, []v1.DiffOp{
		{Op: constraints.OpRemove, Path: "/x"},
		{Op: constraints.OpReplace, Path: "/y", Value: float64(3)},
		{Op: constraints.OpAdd, Path: "/z", Value: float64(4)},
	}, ops)
}

func TestCompare_Deterministic(t *testing.T) {
	e := NewEngine(0)

	a := map[string]any{
		"user":  map[string]any{"email": "a@b.c", "name": "Ann"},
		"total": float64(10),
		"tags":  []any{"one", "two"},
	}
	b := map[string]any{
		"user":  map[string]any{"email": "x@b.c", "phone": "123"},
		"total": float64(11),
		"tags":  []any{"one"},
	}

	first, _ := e.Compare(a, b)
	second, _ := e.Compare(a, b)
	require.Equal(t, first, second)

	// Sorted-key traversal: tags before total before user.
	paths := make([]string, 0, len(first))
	for _, op := range first {
		paths = append(paths, op.Path)
	}
	require.Equal(t, []string{"/tags/1", "/total", "/user/email", "/user/name", "/user/phone"}, paths)
}

func TestCompare_Arrays(t *testing.T) {
	e := NewEngine(0)

	ops, _ := e.Compare([]any{"a", "b", "c"}, []any{"a", "x"})
	require.Equal(t, []v1.DiffOp{
		{Op: constraints.OpReplace, Path: "/1", Value: "x"},
		{Op: constraints.OpRemove, Path: "/2"},
	}, ops)

	ops, _ = e.Compare([]any{"a"}, []any{"a", "b", "c"})
	require.Equal(t, []v1.DiffOp{
		{Op: constraints.OpAdd, Path: "/1", Value: "b"},
		{Op: constraints.OpAdd, Path: "/2", Value: "c"},
	}, ops)
}

func TestCompare_NestedSubtreeEmitsLeafOps(t *testing.T) {
	e := NewEngine(0)

	a := map[string]any{"meta": map[string]any{"a": float64(1), "b": float64(2)}}
	b := map[string]any{}

	ops, _ := e.Compare(a, b)
	require.Equal(t, []v1.DiffOp{
		{Op: constraints.OpRemove, Path: "/meta/a"},
		{Op: constraints.OpRemove, Path: "/meta/b"},
	}, ops)
}

func TestCompare_NumericNormalization(t *testing.T) {
	e := NewEngine(0)

	// Same quantity in different Go numeric types is not a diff.
	ops, _ := e.Compare(map[string]any{"n": int64(7)}, map[string]any{"n": float64(7)})
	assert.Empty(t, ops)

	// But no epsilon: close is not equal.
	ops, _ = e.Compare(map[string]any{"n": 0.1}, map[string]any{"n": 0.10000001})
	require.Len(t, ops, 1)
	assert.Equal(t, constraints.OpReplace, ops[0].Op)
}

func TestCompare_TypeMismatchIsReplace(t *testing.T) {
	e := NewEngine(0)

	ops, _ := e.Compare(map[string]any{"v": "1"}, map[string]any{"v": float64(1)})
	require.Equal(t, []v1.DiffOp{
		{Op: constraints.OpReplace, Path: "/v", Value: float64(1)},
	}, ops)

	ops, _ = e.Compare(map[string]any{"v": map[string]any{"a": float64(1)}}, map[string]any{"v": "flat"})
	require.Equal(t, []v1.DiffOp{
		{Op: constraints.OpReplace, Path: "/v", Value: "flat"},
	}, ops)
}

func TestCompare_DepthGuard(t *testing.T) {
	e := NewEngine(3)

	deep := func(levels int, leaf any) map[string]any {
		v := map[string]any{"leaf": leaf}
		for i := 0; i < levels; i++ {
			v = map[string]any{"nest": v}
		}
		return v
	}

	ops, truncated := e.Compare(deep(10, float64(1)), deep(10, float64(2)))
	require.True(t, truncated)
	require.Len(t, ops, 1)
	assert.Equal(t, constraints.OpReplace, ops[0].Op)

	// Cyclic structures terminate via the same guard.
	cyc := map[string]any{}
	cyc["self"] = cyc
	other := map[string]any{"self": map[string]any{}}
	_, truncated = e.Compare(cyc, other)
	require.True(t, truncated)
}

func TestPointerEscaping(t *testing.T) {
	e := NewEngine(0)

	a := map[string]any{"a/b": float64(1), "c~d": float64(2)}
	ops, _ := e.Compare(a, map[string]any{})
	require.Equal(t, []v1.DiffOp{
		{Op: constraints.OpRemove, Path: "/a~1b"},
		{Op: constraints.OpRemove, Path: "/c~0d"},
	}, ops)
}

func TestMarshalOps(t *testing.T) {
	s, err := MarshalOps([]v1.DiffOp{{Op: constraints.OpRemove, Path: "/x"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"op":"remove","path":"/x"}]`, s)

	s, err = MarshalOps(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", s)
}
