package diff

import (
	"testing"

	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/constraints"

	"github.com/stretchr/testify/assert"
)

func budgetRules() map[string]Rules {
	return map[string]Rules{
		"budget.recordSpending": {
			CriticalPaths: []string{"id", "amount"},
			VolatilePaths: []string{"updatedAt"},
		},
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier(budgetRules())
	const endpoint = "budget.recordSpending"

	tests := []struct {
		name string
		ops  []v1.DiffOp
		want string
	}{
		{
			name: "empty diff is info",
			ops:  nil,
			want: constraints.SeverityInfo,
		},
		{
			name: "volatile-only diff is info",
			ops:  []v1.DiffOp{{Op: constraints.OpReplace, Path: "/updatedAt", Value: "2026-01-01"}},
			want: constraints.SeverityInfo,
		},
		{
			name: "critical field is error",
			ops:  []v1.DiffOp{{Op: constraints.OpReplace, Path: "/amount", Value: float64(12)}},
			want: constraints.SeverityError,
		},
		{
			name: "nested critical segment is error",
			ops:  []v1.DiffOp{{Op: constraints.OpRemove, Path: "/entry/id"}},
			want: constraints.SeverityError,
		},
		{
			name: "critical wins over volatile",
			ops: []v1.DiffOp{
				{Op: constraints.OpReplace, Path: "/updatedAt", Value: "x"},
				{Op: constraints.OpReplace, Path: "/amount", Value: float64(1)},
			},
			want: constraints.SeverityError,
		},
		{
			name: "unrelated field is warning",
			ops:  []v1.DiffOp{{Op: constraints.OpReplace, Path: "/notes", Value: "typo"}},
			want: constraints.SeverityWarning,
		},
		{
			name: "volatile plus unrelated is warning",
			ops: []v1.DiffOp{
				{Op: constraints.OpReplace, Path: "/updatedAt", Value: "x"},
				{Op: constraints.OpAdd, Path: "/notes", Value: "new"},
			},
			want: constraints.SeverityWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(endpoint, tt.ops))
		})
	}
}

func TestClassify_UnknownEndpoint(t *testing.T) {
	c := NewClassifier(nil)

	// No rules configured: any diff is a warning, none is info.
	assert.Equal(t, constraints.SeverityInfo, c.Classify("unknown.op", nil))
	assert.Equal(t, constraints.SeverityWarning, c.Classify("unknown.op", []v1.DiffOp{
		{Op: constraints.OpReplace, Path: "/anything", Value: true},
	}))
}

func TestClassify_AbsolutePathRules(t *testing.T) {
	c := NewClassifier(map[string]Rules{
		"chores.complete": {
			CriticalPaths: []string{"/assignee/id"},
			VolatilePaths: []string{"/syncedAt"},
		},
	})

	assert.Equal(t, constraints.SeverityError, c.Classify("chores.complete", []v1.DiffOp{
		{Op: constraints.OpReplace, Path: "/assignee/id", Value: float64(9)},
	}))
	// Absolute rule does not match a deeper path with the same suffix.
	assert.Equal(t, constraints.SeverityWarning, c.Classify("chores.complete", []v1.DiffOp{
		{Op: constraints.OpReplace, Path: "/history/0/syncedAt", Value: "t"},
	}))
}
