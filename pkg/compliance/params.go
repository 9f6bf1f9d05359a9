package compliance

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/RyanBlaney/kaldi-compliance/pkg/kaldi"
)

// Param is one option of a parameter set. Value keeps the literal JSON text
// so numbers reach Kaldi exactly as written.
type Param struct {
	Key   string
	Value gjson.Result
}

// Text returns the value as passed on a command line: strings unquoted,
// booleans lowercase, numbers verbatim
func (p Param) Text() string {
	if p.Value.Type == gjson.String {
		return p.Value.String()
	}
	return p.Value.Raw
}

// Params is an ordered parameter set, one line of a params file
type Params []Param

// ParseParams decodes a single JSON object. Values must be numbers,
// booleans or strings.
func ParseParams(line string) (Params, error) {
	line = strings.TrimSpace(line)
	if !gjson.Valid(line) {
		return nil, fmt.Errorf("invalid JSON: %s", line)
	}

	obj := gjson.Parse(line)
	if !obj.IsObject() {
		return nil, fmt.Errorf("expected a JSON object, got %s", obj.Type)
	}

	var (
		params Params
		bad    error
		seen   = make(map[string]bool)
	)
	obj.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		switch {
		case value.IsArray() || value.IsObject():
			bad = fmt.Errorf("parameter %q: nested values are not supported", name)
		case value.Type == gjson.Null:
			bad = fmt.Errorf("parameter %q: null is not a valid value", name)
		case seen[name]:
			bad = fmt.Errorf("parameter %q given twice", name)
		}
		if bad != nil {
			return false
		}
		seen[name] = true
		params = append(params, Param{Key: name, Value: value})
		return true
	})
	if bad != nil {
		return nil, bad
	}

	return params, nil
}

// LoadParams reads a JSON-lines file, one parameter set per non-blank line
func LoadParams(path string) ([]Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open params file: %w", err)
	}
	defer f.Close()

	var sets []Params
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		params, err := ParseParams(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		sets = append(sets, params)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read params file: %w", err)
	}

	return sets, nil
}

// Get returns the value of key, if present
func (p Params) Get(key string) (gjson.Result, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return gjson.Result{}, false
}

// With returns a copy with key set to the raw JSON value, replacing an
// existing entry in place or appending a new one
func (p Params) With(key, raw string) (Params, error) {
	value := gjson.Parse(raw)
	if !gjson.Valid(raw) || value.IsArray() || value.IsObject() || value.Type == gjson.Null {
		return nil, fmt.Errorf("parameter %q: invalid value %s", key, raw)
	}

	out := make(Params, 0, len(p)+1)
	replaced := false
	for _, param := range p {
		if param.Key == key {
			param.Value = value
			replaced = true
		}
		out = append(out, param)
	}
	if !replaced {
		out = append(out, Param{Key: key, Value: value})
	}
	return out, nil
}

// JSON encodes the set as a JSON object using canonical option names,
// suitable for features.DecodeOptions
func (p Params) JSON() []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, param := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:%s", kaldi.CanonicalName(param.Key), param.Value.Raw)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// Options converts the set to Kaldi command-line options
func (p Params) Options() []kaldi.Option {
	opts := make([]kaldi.Option, len(p))
	for i, param := range p {
		opts[i] = kaldi.Option{Name: param.Key, Value: param.Text()}
	}
	return opts
}

func (p Params) String() string {
	parts := make([]string, len(p))
	for i, param := range p {
		parts[i] = param.Key + "=" + param.Text()
	}
	return strings.Join(parts, " ")
}
