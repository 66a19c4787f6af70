package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/constraints"
)

const DefaultMaxDepth = 32

// Engine computes the structural difference between two decoded-JSON
// values. Ops always describe the secondary (supabase) value relative to
// the primary (legacy) one and come out in a deterministic order: object
// keys sorted, array indexes ascending. Identical inputs yield no ops.
type Engine struct {
	maxDepth int
}

func NewEngine(maxDepth int) *Engine {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Engine{maxDepth: maxDepth}
}

// Compare walks both values in lockstep. The second return reports that
// the depth guard tripped: the op list then ends with one synthetic
// replace at the truncation path and the record should be flagged for
// manual review.
func (e *Engine) Compare(primary, secondary any) ([]v1.DiffOp, bool) {
	ops := make([]v1.DiffOp, 0, 4)
	truncated := e.walk("", 0, primary, secondary, &ops)
	return ops, truncated
}

func (e *Engine) walk(path string, depth int, a, b any, ops *[]v1.DiffOp) bool {
	if depth > e.maxDepth {
		*ops = append(*ops, v1.DiffOp{Op: constraints.OpReplace, Path: pointer(path), Value: b})
		return true
	}

	aObj, aIsObj := a.(map[string]any)
	bObj, bIsObj := b.(map[string]any)
	if aIsObj && bIsObj {
		return e.walkObjects(path, depth, aObj, bObj, ops)
	}

	aArr, aIsArr := a.([]any)
	bArr, bIsArr := b.([]any)
	if aIsArr && bIsArr {
		return e.walkArrays(path, depth, aArr, bArr, ops)
	}

	// Leaf or container/leaf mismatch: exact comparison, supabase wins
	// the reported value. Tolerance belongs to the classifier.
	if !leafEqual(a, b) {
		*ops = append(*ops, v1.DiffOp{Op: constraints.OpReplace, Path: pointer(path), Value: b})
	}
	return false
}

func (e *Engine) walkObjects(path string, depth int, a, b map[string]any, ops *[]v1.DiffOp) bool {
	keys := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
		seen[k] = struct{}{}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	truncated := false
	for _, k := range keys {
		child := path + "/" + escape(k)
		av, inA := a[k]
		bv, inB := b[k]
		switch {
		case inA && inB:
			if e.walk(child, depth+1, av, bv, ops) {
				truncated = true
			}
		case inA:
			if e.emitLeaves(child, depth+1, av, constraints.OpRemove, ops) {
				truncated = true
			}
		default:
			if e.emitLeaves(child, depth+1, bv, constraints.OpAdd, ops) {
				truncated = true
			}
		}
	}
	return truncated
}

func (e *Engine) walkArrays(path string, depth int, a, b []any, ops *[]v1.DiffOp) bool {
	truncated := false
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		child := path + "/" + strconv.Itoa(i)
		if e.walk(child, depth+1, a[i], b[i], ops) {
			truncated = true
		}
	}
	for i := n; i < len(a); i++ {
		child := path + "/" + strconv.Itoa(i)
		if e.emitLeaves(child, depth+1, a[i], constraints.OpRemove, ops) {
			truncated = true
		}
	}
	for i := n; i < len(b); i++ {
		child := path + "/" + strconv.Itoa(i)
		if e.emitLeaves(child, depth+1, b[i], constraints.OpAdd, ops) {
			truncated = true
		}
	}
	return truncated
}

// emitLeaves descends a one-sided subtree and emits one op per leaf path,
// so adds and removes stay addressable at field granularity.
func (e *Engine) emitLeaves(path string, depth int, v any, op string, ops *[]v1.DiffOp) bool {
	if depth > e.maxDepth {
		*ops = append(*ops, v1.DiffOp{Op: constraints.OpReplace, Path: pointer(path), Value: v})
		return true
	}

	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			*ops = append(*ops, leafOp(op, path, v))
			return false
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		truncated := false
		for _, k := range keys {
			if e.emitLeaves(path+"/"+escape(k), depth+1, t[k], op, ops) {
				truncated = true
			}
		}
		return truncated
	case []any:
		if len(t) == 0 {
			*ops = append(*ops, leafOp(op, path, v))
			return false
		}
		truncated := false
		for i, item := range t {
			if e.emitLeaves(path+"/"+strconv.Itoa(i), depth+1, item, op, ops) {
				truncated = true
			}
		}
		return truncated
	default:
		*ops = append(*ops, leafOp(op, path, v))
		return false
	}
}

func leafOp(op, path string, v any) v1.DiffOp {
	if op == constraints.OpRemove {
		return v1.DiffOp{Op: op, Path: pointer(path)}
	}
	return v1.DiffOp{Op: op, Path: pointer(path), Value: v}
}

// leafEqual is exact scalar equality with numeric types normalized, so a
// legacy int64 and a supabase float64 with the same value do not diff.
// No epsilon is applied here.
func leafEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	switch at := a.(type) {
	case string:
		bt, ok := b.(string)
		return ok && at == bt
	case bool:
		bt, ok := b.(bool)
		return ok && at == bt
	case nil:
		return b == nil
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// pointer renders the root as "/" so every op has a non-empty path.
func pointer(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

func escape(segment string) string {
	if !strings.ContainsAny(segment, "~/") {
		return segment
	}
	segment = strings.ReplaceAll(segment, "~", "~0")
	return strings.ReplaceAll(segment, "/", "~1")
}

// MarshalOps serializes an op list for storage.
func MarshalOps(ops []v1.DiffOp) (string, error) {
	b, err := json.Marshal(ops)
	if err != nil {
		return "", fmt.Errorf("marshal diff ops: %w", err)
	}
	return string(b), nil
}
