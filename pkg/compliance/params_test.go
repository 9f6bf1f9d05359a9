package compliance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/RyanBlaney/kaldi-compliance/pkg/kaldi"
)

func TestParseParamsPreservesOrderAndText(t *testing.T) {
	params, err := ParseParams(`{"num_mel_bins": 40, "dither": 0.0, "snip_edges": false, "window_type": "hamming", "energy_floor": 1e-05}`)
	require.NoError(t, err)

	keys := make([]string, len(params))
	for i, p := range params {
		keys[i] = p.Key
	}
	assert.Equal(t, []string{"num_mel_bins", "dither", "snip_edges", "window_type", "energy_floor"}, keys)

	assert.Equal(t, []kaldi.Option{
		{Name: "num_mel_bins", Value: "40"},
		{Name: "dither", Value: "0.0"},
		{Name: "snip_edges", Value: "false"},
		{Name: "window_type", Value: "hamming"},
		{Name: "energy_floor", Value: "1e-05"},
	}, params.Options())

	assert.Equal(t, "num_mel_bins=40 dither=0.0 snip_edges=false window_type=hamming energy_floor=1e-05", params.String())
}

func TestParseParamsErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"invalid json", `{"dither": }`},
		{"not an object", `[1, 2]`},
		{"nested array", `{"dither": [0.0]}`},
		{"nested object", `{"dither": {"value": 0}}`},
		{"null value", `{"dither": null}`},
		{"duplicate key", `{"dither": 0.0, "dither": 1.0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParams(tt.line)
			assert.Error(t, err)
		})
	}
}

func TestParamsJSON(t *testing.T) {
	params, err := ParseParams(`{"sample_rate": 8000, "window_type": "povey", "use_energy": true}`)
	require.NoError(t, err)

	assert.JSONEq(t, `{"sample_frequency": 8000, "window_type": "povey", "use_energy": true}`, string(params.JSON()))

	empty, err := ParseParams(`{}`)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, "{}", string(empty.JSON()))
}

func TestParamsWith(t *testing.T) {
	params, err := ParseParams(`{"dither": 0.0, "num_ceps": 13}`)
	require.NoError(t, err)

	updated, err := params.With("num_ceps", "20")
	require.NoError(t, err)
	assert.Equal(t, "dither=0.0 num_ceps=20", updated.String())
	assert.Equal(t, "dither=0.0 num_ceps=13", params.String(), "original must be untouched")

	updated, err = updated.With("window_type", `"hamming"`)
	require.NoError(t, err)
	v, ok := updated.Get("window_type")
	require.True(t, ok)
	assert.Equal(t, gjson.String, v.Type)
	assert.Equal(t, "hamming", v.String())

	_, err = params.With("window_type", "hamming")
	assert.Error(t, err, "unquoted strings are not JSON")

	_, ok = params.Get("missing")
	assert.False(t, ok)
}

func TestLoadParamsSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "args.jsonl")
	content := "{\"dither\": 0.0}\n\n   \n{\"dither\": 0.0, \"num_ceps\": 20}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sets, err := LoadParams(path)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Len(t, sets[0], 1)
	assert.Len(t, sets[1], 2)
}

func TestLoadParamsReportsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "args.jsonl")
	content := "{\"dither\": 0.0}\n\n{\"dither\": null}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadParams(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "args.jsonl:3:")

	_, err = LoadParams(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestBundledParamsFiles(t *testing.T) {
	counts := map[FeatureKind]int{
		KindFbank:       9,
		KindSpectrogram: 7,
		KindMFCC:        8,
	}

	for _, kind := range AllKinds() {
		sets, err := LoadParams(filepath.Join("testdata", kind.ParamsFile()))
		require.NoError(t, err, kind)
		assert.Len(t, sets, counts[kind], kind)

		for i, params := range sets {
			dither, ok := params.Get("dither")
			require.True(t, ok, "%s case %d must disable dither", kind, i)
			assert.Zero(t, dither.Float(), "%s case %d", kind, i)
		}
	}
}
