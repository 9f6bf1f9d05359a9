package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/kaldi-compliance/pkg/audio/wav"
	"github.com/RyanBlaney/kaldi-compliance/pkg/compliance"
	"github.com/RyanBlaney/kaldi-compliance/pkg/kaldi"
)

// ParseParamOverrides turns key=value pairs into a parameter set. Values
// that are not valid JSON are taken as strings, so window_type=hamming works.
func ParseParamOverrides(pairs []string) (compliance.Params, error) {
	var params compliance.Params
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}

		raw := strings.TrimSpace(value)
		updated, err := params.With(key, raw)
		if err != nil {
			quoted, _ := json.Marshal(raw)
			updated, err = params.With(key, string(quoted))
			if err != nil {
				return nil, err
			}
		}
		params = updated
	}
	return params, nil
}

// Extract computes one feature matrix for a WAV file and writes it as json,
// yaml or a Kaldi text archive ("ark"). An empty format falls back to the
// configured output format, where table means ark.
func (app *ComplianceApp) Extract(kindName, waveFile string, params compliance.Params, format string) error {
	kind, err := compliance.ParseFeatureKind(kindName)
	if err != nil {
		return err
	}

	w, err := wav.Load(waveFile, false)
	if err != nil {
		return err
	}
	samples, err := w.Channel(0)
	if err != nil {
		return err
	}

	matrix, err := kind.Extract(samples, params)
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", kind, err)
	}

	rows, cols := len(matrix), 0
	if rows > 0 {
		cols = len(matrix[0])
	}
	app.logger.Debug("Features extracted", logging.Fields{
		"kind": string(kind),
		"file": waveFile,
		"rows": rows,
		"cols": cols,
	})

	if format == "" {
		format = app.config.OutputFormat
	}
	data, err := formatMatrix(format, app.config.UtteranceKey, matrix)
	if err != nil {
		return err
	}
	return app.write(data)
}

func formatMatrix(format, key string, matrix [][]float64) ([]byte, error) {
	switch format {
	case "json", "yaml":
		return serialize(format, sanitizeMatrix(matrix), false)
	case "ark", "table":
		var buf bytes.Buffer
		if err := kaldi.WriteTextMatrix(&buf, key, matrix); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Commands returns the Kaldi command line of every case of a kind, in the
// form the suite runs them
func (app *ComplianceApp) Commands(kindName string) ([][]string, error) {
	kind, err := compliance.ParseFeatureKind(kindName)
	if err != nil {
		return nil, err
	}

	sets, err := compliance.LoadParams(filepath.Join(app.config.Data.ParamsDir, kind.ParamsFile()))
	if err != nil {
		return nil, err
	}

	commands := make([][]string, len(sets))
	for i, params := range sets {
		commands[i] = kaldi.Command(kind.Command(), params.Options())
	}
	return commands, nil
}
