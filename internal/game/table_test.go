package game

import (
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	entries := table.Entries()
	if len(entries) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(entries))
	}

	sum := 0.0
	for _, e := range entries {
		sum += e.Probability
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("probabilities sum to %v", sum)
	}

	labels := []string{"0.00x", "0.10x", "0.20x", "0.30x", "0.50x", "1.00x", "2.00x", "3.00x"}
	for i, e := range entries {
		if e.Label() != labels[i] {
			t.Errorf("entry %d label = %q, want %q", i, e.Label(), labels[i])
		}
	}
}

func TestNewTable_Validation(t *testing.T) {
	tests := []struct {
		name    string
		entries []Multiplier
	}{
		{"empty", nil},
		{"sum below one", []Multiplier{
			{Tag: "a", Value: dec("1"), Probability: 0.5},
		}},
		{"duplicate tag", []Multiplier{
			{Tag: "a", Value: dec("1"), Probability: 0.5},
			{Tag: "a", Value: dec("2"), Probability: 0.5},
		}},
		{"negative value", []Multiplier{
			{Tag: "a", Value: dec("-1"), Probability: 1},
		}},
		{"probability out of range", []Multiplier{
			{Tag: "a", Value: dec("1"), Probability: 1.5},
			{Tag: "b", Value: dec("1"), Probability: -0.5},
		}},
		{"missing tag", []Multiplier{
			{Value: dec("1"), Probability: 1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.entries)
			if !errors.Is(err, ErrInvalidTable) {
				t.Errorf("expected ErrInvalidTable, got %v", err)
			}
		})
	}
}

func TestTable_SampleBands(t *testing.T) {
	table := DefaultTable()
	tests := []struct {
		r    float64
		want string
	}{
		{0.0, "x0_00"},
		{0.30, "x0_00"}, // cumulative mass reaching r wins ties
		{0.31, "x0_10"},
		{0.64, "x0_20"},
		{0.96, "x2_00"},
		{0.999, "x3_00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := table.Sample(RandomFunc(func() float64 { return tt.r }))
			if got.Tag != tt.want {
				t.Errorf("Sample(%v) = %s, want %s", tt.r, got.Tag, tt.want)
			}
		})
	}
}

func TestTable_SampleFallback(t *testing.T) {
	entries := make([]Multiplier, 10)
	for i := range entries {
		entries[i] = Multiplier{
			Tag:         string(rune('a' + i)),
			Value:       decimal.NewFromInt(int64(i)),
			Probability: 0.1,
		}
	}
	table, err := NewTable(entries)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	// ten additions of 0.1 land just below 1.0
	got := table.Sample(RandomFunc(func() float64 { return 1.0 }))
	if got.Tag != "j" {
		t.Errorf("expected fallback to last entry, got %s", got.Tag)
	}
}

func TestTable_SampleSkipsZeroProbability(t *testing.T) {
	table, err := NewTable([]Multiplier{
		{Tag: "never", Value: dec("5"), Probability: 0},
		{Tag: "always", Value: dec("1"), Probability: 1},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	got := table.Sample(RandomFunc(func() float64 { return 0 }))
	if got.Tag != "always" {
		t.Errorf("zero-probability entry drawn: %s", got.Tag)
	}
}

func TestTable_SampleFrequency(t *testing.T) {
	table := DefaultTable()
	src := rand.New(rand.NewPCG(42, 1337))
	const n = 200000

	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		counts[table.Sample(src).Tag]++
	}

	for _, e := range table.Entries() {
		observed := float64(counts[e.Tag]) / n
		if math.Abs(observed-e.Probability) > 0.01 {
			t.Errorf("%s observed %.4f, declared %.4f", e.Tag, observed, e.Probability)
		}
	}
}

func TestTable_ExpectedReturn(t *testing.T) {
	table := DefaultTable()

	if got := table.HitRate(); math.Abs(got-0.70) > 1e-9 {
		t.Errorf("HitRate() = %v, want 0.70", got)
	}

	// 0.2*1.1 + 0.15*1.2 + 0.15*1.3 + 0.1*1.5 + 0.05*2 + 0.03*3 + 0.02*4
	want := 0.22 + 0.18 + 0.195 + 0.15 + 0.10 + 0.09 + 0.08
	if got := table.ExpectedReturn(); math.Abs(got-want) > 1e-9 {
		t.Errorf("ExpectedReturn() = %v, want %v", got, want)
	}
}

func TestParseTable(t *testing.T) {
	doc := []byte(`
multipliers:
  - tag: lose
    value: "0.00"
    probability: 0.5
  - tag: double
    value: "2.00"
    probability: 0.5
    color: "#ff4444"
`)
	table, err := ParseTable(doc)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	m, ok := table.Lookup("double")
	if !ok {
		t.Fatal("double not found")
	}
	if !m.Value.Equal(dec("2")) || m.Color != "#ff4444" {
		t.Errorf("unexpected entry %+v", m)
	}

	t.Run("bad value", func(t *testing.T) {
		_, err := ParseTable([]byte("multipliers:\n  - tag: a\n    value: abc\n    probability: 1\n"))
		if !errors.Is(err, ErrInvalidTable) {
			t.Errorf("expected ErrInvalidTable, got %v", err)
		}
	})
}

func TestLoadTable(t *testing.T) {
	t.Run("empty path gives default", func(t *testing.T) {
		table, err := LoadTable("")
		if err != nil || table != DefaultTable() {
			t.Errorf("LoadTable(\"\") = %v, %v", table, err)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "table.yaml")
		doc := "multipliers:\n  - tag: even\n    value: \"1.00\"\n    probability: 1\n"
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		table, err := LoadTable(path)
		if err != nil {
			t.Fatalf("LoadTable: %v", err)
		}
		if len(table.Entries()) != 1 {
			t.Errorf("expected 1 entry, got %d", len(table.Entries()))
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadTable(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestCryptoSource_Range(t *testing.T) {
	src := NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64() = %v outside [0,1)", v)
		}
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestCryptoSource_PanicsWithoutEntropy(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Float64() returned a value from a failed reader")
		}
	}()
	cryptoSource{r: brokenReader{}}.Float64()
}
