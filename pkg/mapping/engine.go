// Package mapping fills gaps in a target dataset from a master dataset,
// joining rows on a normalized customer identifier.
//
// The master is deduplicated by identifier with the last occurrence winning.
// A target cell is written only when it is empty and the matching master
// row holds a non-empty value, so existing target data is never overwritten.
package mapping

import (
	"strings"

	"github.com/appenmapper/appenmapper/internal/model"
	"github.com/appenmapper/appenmapper/pkg/errors"
	"github.com/appenmapper/appenmapper/pkg/identifier"
)

// Dataset names used in errors.
const (
	DatasetMaster = "master"
	DatasetTarget = "target"
)

// Config selects the key column and the column mapping table.
type Config struct {
	// KeyColumn is the identifier column, compared after trimming.
	KeyColumn string

	// Pairs is the ordered master→target column table.
	Pairs []Pair
}

// DefaultConfig returns the fixed key column and mapping table.
func DefaultConfig() Config {
	return Config{
		KeyColumn: DefaultKeyColumn,
		Pairs:     DefaultPairs(),
	}
}

// Engine applies one mapping configuration. It holds no per-run state and
// may be shared.
type Engine struct {
	key   string
	pairs []Pair
}

// Result is the outcome of one Apply call.
type Result struct {
	// Dataset is the updated copy of the target.
	Dataset *model.Dataset

	// Stats is computed from the pre-fill match mask.
	Stats Stats

	// Filled counts written cells per target column.
	Filled map[string]int

	// Skipped lists pairs whose source or target column was absent.
	Skipped []Pair
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	key := strings.TrimSpace(cfg.KeyColumn)
	if key == "" {
		return nil, errors.InvalidMapping("key column is empty")
	}
	if err := ValidatePairs(cfg.Pairs); err != nil {
		return nil, err
	}

	pairs := make([]Pair, len(cfg.Pairs))
	for i, p := range cfg.Pairs {
		pairs[i] = Pair{Source: strings.TrimSpace(p.Source), Target: strings.TrimSpace(p.Target)}
		if pairs[i].Target == key {
			return nil, errors.InvalidMapping("key column cannot be a fill target").WithContext("pair", p.String())
		}
	}

	return &Engine{key: key, pairs: pairs}, nil
}

// Default returns an Engine for DefaultConfig.
func Default() *Engine {
	e, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return e
}

// KeyColumn returns the identifier column name.
func (e *Engine) KeyColumn() string { return e.key }

// Pairs returns a copy of the mapping table.
func (e *Engine) Pairs() []Pair {
	out := make([]Pair, len(e.pairs))
	copy(out, e.pairs)
	return out
}

// Apply maps master attributes into a copy of target. Neither input is
// modified. It fails with a MissingKeyColumn error when either dataset lacks
// the key column; no statistics are produced in that case.
func (e *Engine) Apply(master, target *model.Dataset) (*Result, error) {
	var missing []string
	if master == nil {
		missing = append(missing, DatasetMaster)
	}
	if target == nil {
		missing = append(missing, DatasetTarget)
	}
	if len(missing) > 0 {
		return nil, errors.MissingUploads(missing...)
	}

	out := target.Clone()
	out.TrimColumns()
	out.PadRows()

	masterKey := master.Index(e.key)
	if masterKey < 0 {
		return nil, errors.MissingKeyColumn(DatasetMaster, e.key, trimmed(master.Columns))
	}
	targetKey := out.Index(e.key)
	if targetKey < 0 {
		return nil, errors.MissingKeyColumn(DatasetTarget, e.key, out.Columns)
	}

	// Last occurrence wins: later rows overwrite earlier ones.
	lookup := make(map[identifier.ID]int, len(master.Rows))
	for i, row := range master.Rows {
		id := identifier.Normalize(cell(row, masterKey))
		if id.IsEmpty() {
			continue
		}
		lookup[id] = i
	}

	ids := make([]identifier.ID, len(out.Rows))
	matched := make([]bool, len(out.Rows))
	for i, row := range out.Rows {
		ids[i] = identifier.Normalize(cell(row, targetKey))
		if !ids[i].IsEmpty() {
			_, matched[i] = lookup[ids[i]]
		}
	}

	res := &Result{
		Dataset: out,
		Stats:   computeStats(ids, matched),
		Filled:  make(map[string]int),
	}

	for _, p := range e.pairs {
		src := master.Index(p.Source)
		dst := out.Index(p.Target)
		if src < 0 || dst < 0 {
			res.Skipped = append(res.Skipped, p)
			continue
		}

		for i, row := range out.Rows {
			if !matched[i] || !row[dst].IsEmpty() {
				continue
			}
			v := cell(master.Rows[lookup[ids[i]]], src)
			if v.IsEmpty() {
				continue
			}
			row[dst] = v
			res.Filled[p.Target]++
		}
	}

	return res, nil
}

// Apply runs the default engine: key column "Customer Number/ID" and the
// fixed mapping table.
func Apply(master, target *model.Dataset) (*model.Dataset, Stats, error) {
	res, err := Default().Apply(master, target)
	if err != nil {
		return nil, Stats{}, err
	}
	return res.Dataset, res.Stats, nil
}

func cell(row model.Record, i int) model.Value {
	if i < 0 || i >= len(row) {
		return model.Empty
	}
	return row[i]
}

func trimmed(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
