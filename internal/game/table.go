package game

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const probabilityTolerance = 1e-9

var ErrInvalidTable = errors.New("invalid multiplier table")

// Multiplier is one row of the payout table.
type Multiplier struct {
	Tag         string          `json:"tag"`
	Value       decimal.Decimal `json:"value"`
	Probability float64         `json:"probability"`
	Color       string          `json:"color,omitempty"`
}

// Label renders the multiplier the way the board shows it, e.g. "2.00x".
func (m Multiplier) Label() string {
	return m.Value.StringFixed(2) + "x"
}

func (m Multiplier) IsLoss() bool {
	return m.Value.IsZero()
}

// Table is an ordered, immutable multiplier distribution.
type Table struct {
	entries []Multiplier
}

// NewTable validates entries and returns a table holding a private copy.
func NewTable(entries []Multiplier) (*Table, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrInvalidTable)
	}
	seen := make(map[string]bool, len(entries))
	sum := 0.0
	for i, e := range entries {
		if e.Tag == "" {
			return nil, fmt.Errorf("%w: entry %d has no tag", ErrInvalidTable, i)
		}
		if seen[e.Tag] {
			return nil, fmt.Errorf("%w: duplicate tag %q", ErrInvalidTable, e.Tag)
		}
		seen[e.Tag] = true
		if e.Value.IsNegative() {
			return nil, fmt.Errorf("%w: %s has negative value", ErrInvalidTable, e.Tag)
		}
		if math.IsNaN(e.Probability) || e.Probability < 0 || e.Probability > 1 {
			return nil, fmt.Errorf("%w: %s probability %v outside [0,1]", ErrInvalidTable, e.Tag, e.Probability)
		}
		sum += e.Probability
	}
	if math.Abs(sum-1) > probabilityTolerance {
		return nil, fmt.Errorf("%w: probabilities sum to %v", ErrInvalidTable, sum)
	}
	cp := make([]Multiplier, len(entries))
	copy(cp, entries)
	for i := range cp {
		cp[i].Value = cp[i].Value.Round(2)
	}
	return &Table{entries: cp}, nil
}

func mustTable(entries []Multiplier) *Table {
	t, err := NewTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var defaultTable = mustTable([]Multiplier{
	{Tag: "x0_00", Value: dec("0.00"), Probability: 0.30, Color: "#ff4444"},
	{Tag: "x0_10", Value: dec("0.10"), Probability: 0.20, Color: "#ffbb33"},
	{Tag: "x0_20", Value: dec("0.20"), Probability: 0.15, Color: "#00C851"},
	{Tag: "x0_30", Value: dec("0.30"), Probability: 0.15, Color: "#33b5e5"},
	{Tag: "x0_50", Value: dec("0.50"), Probability: 0.10, Color: "#aa66cc"},
	{Tag: "x1_00", Value: dec("1.00"), Probability: 0.05, Color: "#ff8800"},
	{Tag: "x2_00", Value: dec("2.00"), Probability: 0.03, Color: "#ff4444"},
	{Tag: "x3_00", Value: dec("3.00"), Probability: 0.02, Color: "#ffd700"},
})

// DefaultTable is the stock 0.00x–3.00x distribution.
func DefaultTable() *Table {
	return defaultTable
}

// Entries returns a copy of the rows in sampling order.
func (t *Table) Entries() []Multiplier {
	out := make([]Multiplier, len(t.entries))
	copy(out, t.entries)
	return out
}

// Lookup finds a row by tag.
func (t *Table) Lookup(tag string) (Multiplier, bool) {
	for _, e := range t.entries {
		if e.Tag == tag {
			return e, true
		}
	}
	return Multiplier{}, false
}

// Sample walks the table accumulating probability and returns the first row
// whose cumulative mass reaches r. Rounding leftovers fall back to the last row.
func (t *Table) Sample(src RandomSource) Multiplier {
	r := src.Float64()
	cum := 0.0
	for _, e := range t.entries {
		// A strict "first cumulative >= r" walk would hand r == 0 to a leading
		// p=0 row. Such rows are never drawn here.
		if e.Probability <= 0 {
			continue
		}
		cum += e.Probability
		if cum >= r {
			return e
		}
	}
	return t.entries[len(t.entries)-1]
}

// ExpectedReturn is the mean amount credited per unit staked: a winning card
// returns the stake plus stake*m, a 0.00x card returns nothing.
func (t *Table) ExpectedReturn() float64 {
	total := 0.0
	for _, e := range t.entries {
		if e.IsLoss() {
			continue
		}
		total += e.Probability * (1 + e.Value.InexactFloat64())
	}
	return total
}

// HitRate is the probability that a card pays anything.
func (t *Table) HitRate() float64 {
	total := 0.0
	for _, e := range t.entries {
		if !e.IsLoss() {
			total += e.Probability
		}
	}
	return total
}

type tableFile struct {
	Multipliers []struct {
		Tag         string  `yaml:"tag"`
		Value       string  `yaml:"value"`
		Probability float64 `yaml:"probability"`
		Color       string  `yaml:"color"`
	} `yaml:"multipliers"`
}

// ParseTable decodes a YAML table document.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	entries := make([]Multiplier, 0, len(f.Multipliers))
	for _, row := range f.Multipliers {
		v, err := decimal.NewFromString(row.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s value %q: %v", ErrInvalidTable, row.Tag, row.Value, err)
		}
		entries = append(entries, Multiplier{
			Tag:         row.Tag,
			Value:       v,
			Probability: row.Probability,
			Color:       row.Color,
		})
	}
	return NewTable(entries)
}

// LoadTable reads a YAML table from path. An empty path yields the default table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	return ParseTable(data)
}
