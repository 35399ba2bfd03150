package features

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HatiCode/anomalyd/pkg/adapters"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "fuzzy", want: ModeFuzzy},
		{in: "EXACT", want: ModeExact},
		{in: " exact ", want: ModeExact},
		{in: "regex", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultSchema(t *testing.T) {
	fuzzy := DefaultSchema(ModeFuzzy)
	assert.True(t, fuzzy.Has(ColumnTimestamp))
	assert.Equal(t, ColumnTimestamp, fuzzy.Columns[0].Column)

	exact := DefaultSchema(ModeExact)
	assert.False(t, exact.Has(ColumnTimestamp))
	assert.Len(t, exact.Columns, 3)
}

func TestResolve_Fuzzy(t *testing.T) {
	header := []string{"Random_Timestamp_utc", "Host", "CPU_Usage(%)", "Memory_Usage(%)", "Latency(ms)", "Latency_p99"}

	res, err := DefaultSchema(ModeFuzzy).Resolve(header)
	require.NoError(t, err)

	idx, ok := res.Index(ColumnLatency)
	require.True(t, ok)
	assert.Equal(t, 4, idx, "first matching header wins")
	assert.Equal(t, "Latency(ms)", res.Name(ColumnLatency))
	assert.Equal(t, "Random_Timestamp_utc", res.Name(ColumnTimestamp))
}

func TestResolve_Exact(t *testing.T) {
	header := []string{"CPU_Usage(%)", "Memory_Usage(%)", "Latency(ms)"}

	res, err := DefaultSchema(ModeExact).Resolve(header)
	require.NoError(t, err)

	_, ok := res.Index(ColumnTimestamp)
	assert.False(t, ok)
	assert.Equal(t, "Memory_Usage(%)", res.Name(ColumnMemory))
}

func TestResolve_ExactRejectsVariants(t *testing.T) {
	header := []string{"CPU_Usage", "Memory_Usage(%)", "Latency (ms)"}

	_, err := DefaultSchema(ModeExact).Resolve(header)
	require.Error(t, err)

	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"CPU_Usage(%)", "Latency(ms)"}, missing.Columns)
	assert.Equal(t, "Missing required columns: CPU_Usage(%), Latency(ms)", err.Error())
}

func TestResolve_FuzzyMissingTimestamp(t *testing.T) {
	header := []string{"CPU_Usage(%)", "Memory_Usage(%)", "Latency(ms)"}

	_, err := DefaultSchema(ModeFuzzy).Resolve(header)

	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"Random_Timestamp"}, missing.Columns)
}

func TestLoadSchemaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "columns.yaml")
	content := `
fuzzy:
  cpu: cpu_pct
  timestamp: ts
exact:
  latency: "latency_ms"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	fuzzy, err := LoadSchemaFile(path, ModeFuzzy)
	require.NoError(t, err)
	res, err := fuzzy.Resolve([]string{"ts", "cpu_pct", "Memory_Usage", "Latency"})
	require.NoError(t, err)
	assert.Equal(t, "cpu_pct", res.Name(ColumnCPU))

	exact, err := LoadSchemaFile(path, ModeExact)
	require.NoError(t, err)
	_, err = exact.Resolve([]string{"CPU_Usage(%)", "Memory_Usage(%)", "latency_ms"})
	assert.NoError(t, err)
}

func TestLoadSchemaFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSchemaFile(filepath.Join(dir, "missing.yaml"), ModeFuzzy)
	assert.Error(t, err)

	tsInExact := filepath.Join(dir, "exact.yaml")
	require.NoError(t, os.WriteFile(tsInExact, []byte("exact:\n  timestamp: ts\n"), 0o600))
	_, err = LoadSchemaFile(tsInExact, ModeExact)
	assert.ErrorContains(t, err, "not part of the exact schema")

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("fuzzy:\n  cpu: \"\"\n"), 0o600))
	_, err = LoadSchemaFile(empty, ModeFuzzy)
	assert.ErrorContains(t, err, "empty pattern")

	schema, err := LoadSchemaFile("", ModeExact)
	require.NoError(t, err)
	assert.Equal(t, DefaultSchema(ModeExact), schema)
}

func TestDerivedFeatures(t *testing.T) {
	assert.Equal(t, 7200.0, CPURAMInteraction(90, 80))

	v, err := LatencyPerCPU(50, 90)
	require.NoError(t, err)
	assert.InDelta(t, 0.549, v, 0.001)

	v, err = LatencyPerCPU(10, 0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	_, err = LatencyPerCPU(10, -1)
	assert.ErrorIs(t, err, ErrZeroDenominator)
}

func TestSample_Vector(t *testing.T) {
	vec, err := Sample{CPU: 90, Memory: 80, Latency: 50}.Vector()
	require.NoError(t, err)
	require.Len(t, vec, Width)

	assert.Equal(t, 90.0, vec[0])
	assert.Equal(t, 80.0, vec[1])
	assert.Equal(t, 50.0, vec[2])
	assert.Equal(t, 7200.0, vec[3])
	assert.InDelta(t, 50.0/91.0, vec[4], 1e-12)
}

func TestBuildFeatures(t *testing.T) {
	df := &adapters.DataFrame{
		Columns: []string{"Random_Timestamp", "CPU_Usage(%)", "Memory_Usage(%)", "Latency(ms)"},
		Rows: []adapters.Row{
			{"t0", "90", "80", "50"},
			{"t1", " 12.5 ", "40", "3"},
			{"t2", "0", "0", "0"},
		},
	}
	res, err := DefaultSchema(ModeFuzzy).Resolve(df.Columns)
	require.NoError(t, err)

	frame, err := NewBuilder().BuildFeatures(df, res)
	require.NoError(t, err)
	require.Equal(t, 3, frame.Len())

	for i, s := range frame.Samples {
		vec := frame.Vectors[i]
		assert.Equal(t, s.CPU*s.Memory, vec[3])
		assert.Equal(t, s.Latency/(s.CPU+1), vec[4])
	}
	assert.Equal(t, "t1", frame.Samples[1].Timestamp)
	assert.Equal(t, 12.5, frame.Samples[1].CPU)
}

func TestBuildFeatures_Empty(t *testing.T) {
	df := &adapters.DataFrame{Columns: []string{"CPU_Usage(%)", "Memory_Usage(%)", "Latency(ms)"}}
	res, err := DefaultSchema(ModeExact).Resolve(df.Columns)
	require.NoError(t, err)

	frame, err := NewBuilder().BuildFeatures(df, res)
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Len())
	assert.NotNil(t, frame.Vectors)
}

func TestBuildFeatures_Errors(t *testing.T) {
	header := []string{"CPU_Usage(%)", "Memory_Usage(%)", "Latency(ms)"}
	tests := []struct {
		name    string
		row     adapters.Row
		wantErr string
	}{
		{name: "not a number", row: adapters.Row{"abc", "1", "1"}, wantErr: `row 1: column "CPU_Usage(%)": could not convert "abc" to float`},
		{name: "missing value", row: adapters.Row{"1", "", "1"}, wantErr: `row 1: column "Memory_Usage(%)": missing value`},
		{name: "nan", row: adapters.Row{"1", "1", "NaN"}, wantErr: "non-finite"},
		{name: "cpu minus one", row: adapters.Row{"-1", "1", "1"}, wantErr: "row 1: Latency_per_CPU denominator is zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df := &adapters.DataFrame{Columns: header, Rows: []adapters.Row{tt.row}}
			res, err := DefaultSchema(ModeExact).Resolve(header)
			require.NoError(t, err)

			_, err = NewBuilder().BuildFeatures(df, res)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildFeatures_CPUMinusOneWraps(t *testing.T) {
	header := []string{"CPU_Usage(%)", "Memory_Usage(%)", "Latency(ms)"}
	df := &adapters.DataFrame{Columns: header, Rows: []adapters.Row{{"1", "1", "1"}, {"-1", "5", "5"}}}
	res, err := DefaultSchema(ModeExact).Resolve(header)
	require.NoError(t, err)

	_, err = NewBuilder().BuildFeatures(df, res)
	assert.ErrorIs(t, err, ErrZeroDenominator)
	assert.Contains(t, err.Error(), "row 2")
}
