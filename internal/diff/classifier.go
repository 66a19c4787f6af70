package diff

import (
	"strings"

	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/constraints"
)

// Rules is the per-endpoint field policy. Critical paths (identifiers,
// foreign keys, monetary amounts) escalate any diff to error; volatile
// paths (auto-generated timestamps, independently recomputed counters)
// are ignored for severity but still kept in the recorded diff. An entry
// starting with "/" matches the whole pointer, anything else matches a
// single path segment.
type Rules struct {
	CriticalPaths []string `json:"critical_paths"`
	VolatilePaths []string `json:"volatile_paths"`
}

// Classifier assigns a severity to a diff. The rule table is supplied at
// construction by the surrounding application; endpoints without an entry
// classify with empty rules.
type Classifier struct {
	rules map[string]Rules
}

func NewClassifier(rules map[string]Rules) *Classifier {
	if rules == nil {
		rules = make(map[string]Rules)
	}
	return &Classifier{rules: rules}
}

// Classify maps a diff to info, warning or error. An empty diff is info:
// "no difference" is an observation worth recording, not an absence of
// one. Any critical hit wins over everything else.
func (c *Classifier) Classify(endpoint string, ops []v1.DiffOp) string {
	if len(ops) == 0 {
		return constraints.SeverityInfo
	}

	rules := c.rules[endpoint]
	significant := 0
	for _, op := range ops {
		if matchAny(op.Path, rules.CriticalPaths) {
			return constraints.SeverityError
		}
		if !matchAny(op.Path, rules.VolatilePaths) {
			significant++
		}
	}
	if significant == 0 {
		return constraints.SeverityInfo
	}
	return constraints.SeverityWarning
}

func matchAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "/") {
			if path == p {
				return true
			}
			continue
		}
		for _, seg := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
			if seg == p {
				return true
			}
		}
	}
	return false
}
