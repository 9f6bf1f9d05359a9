package kaldi

import "strings"

// Option is one command-line option in snake_case with its textual value
type Option struct {
	Name  string
	Value string
}

// CanonicalName maps option aliases onto the names Kaldi's feature tools
// accept, e.g. sample_rate becomes sample_frequency
func CanonicalName(name string) string {
	if name == "sample_rate" {
		return "sample_frequency"
	}
	return name
}

// ConvertArgs turns options into Kaldi flags, e.g. num_mel_bins=23 becomes
// --num-mel-bins=23. Order is preserved.
func ConvertArgs(options []Option) []string {
	args := make([]string, 0, len(options))
	for _, opt := range options {
		name := CanonicalName(opt.Name)
		args = append(args, "--"+strings.ReplaceAll(name, "_", "-")+"="+opt.Value)
	}
	return args
}

// Command builds a full feature command line reading an scp from stdin and
// writing an ark to stdout
func Command(executable string, options []Option) []string {
	command := []string{executable}
	command = append(command, ConvertArgs(options)...)
	return append(command, "scp:-", "ark:-")
}
