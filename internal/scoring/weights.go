package scoring

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"classpulse/pkg/types"
)

// Vector holds per-state weights in types.EngagementStates order:
// engaged, bored, confused, not paying attention.
type Vector [4]float64

const neutralLabel = "neutral"

// defaultVectors maps normalized emotion labels to state weights. Labels
// follow the FER taxonomy of the inference service. Unknown labels
// resolve to the neutral vector at lookup time, so the table is a total
// function over all inputs.
var defaultVectors = map[string]Vector{
	"happy":    {0.85, 0.03, 0.05, 0.07},
	"surprise": {0.60, 0.05, 0.25, 0.10},
	"neutral":  {0.45, 0.30, 0.10, 0.15},
	"sad":      {0.10, 0.55, 0.15, 0.20},
	"fear":     {0.10, 0.15, 0.55, 0.20},
	"angry":    {0.10, 0.20, 0.50, 0.20},
	"disgust":  {0.05, 0.40, 0.30, 0.25},
}

// Table is the emotion-to-weight lookup used by the scorer. It can be
// replaced wholesale from a YAML file while the scorer keeps running.
type Table struct {
	mu      sync.RWMutex
	vectors map[string]Vector
}

// DefaultTable returns a table with the compiled-in weights.
func DefaultTable() *Table {
	vectors := make(map[string]Vector, len(defaultVectors))
	for label, vec := range defaultVectors {
		vectors[label] = vec
	}
	return &Table{vectors: vectors}
}

// NormalizeLabel lowers and trims an emotion label. All lookups and all
// file keys pass through here, keeping normalization at one boundary.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Lookup returns the weight vector for a label, falling back to the
// neutral vector for labels the table does not know.
func (t *Table) Lookup(label string) Vector {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if vec, ok := t.vectors[NormalizeLabel(label)]; ok {
		return vec
	}
	return t.vectors[neutralLabel]
}

// Known reports whether the table has an explicit entry for the label.
func (t *Table) Known(label string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.vectors[NormalizeLabel(label)]
	return ok
}

// weightsFile is the on-disk YAML shape:
//
//	weights:
//	  happy:
//	    engaged: 0.85
//	    bored: 0.03
//	    confused: 0.05
//	    not_paying_attention: 0.07
type weightsFile struct {
	Weights map[string]map[string]float64 `yaml:"weights"`
}

// LoadFile replaces the table contents from a YAML weights file. The
// file must define a neutral entry because it doubles as the unknown-
// label fallback. On any error the previous table is left untouched.
func (t *Table) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read weights file %s: %w", path, err)
	}

	var file weightsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse weights file %s: %w", path, err)
	}
	if len(file.Weights) == 0 {
		return fmt.Errorf("weights file %s: no weights defined", path)
	}

	vectors := make(map[string]Vector, len(file.Weights))
	for label, states := range file.Weights {
		var vec Vector
		for i, state := range types.EngagementStates {
			weight, ok := states[string(state)]
			if !ok {
				return fmt.Errorf("weights file %s: label %q missing state %q", path, label, state)
			}
			if weight < 0 {
				return fmt.Errorf("weights file %s: label %q state %q is negative", path, label, state)
			}
			vec[i] = weight
		}
		vectors[NormalizeLabel(label)] = vec
	}

	if _, ok := vectors[neutralLabel]; !ok {
		return fmt.Errorf("weights file %s: %q entry is required", path, neutralLabel)
	}

	t.mu.Lock()
	t.vectors = vectors
	t.mu.Unlock()
	return nil
}
