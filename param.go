package mplsverify

// param.go holds the run-time configuration of an evaluation: pool size,
// simulation caps, overflow policy, output selection.  A configuration can
// be read from a yaml or json file and overridden field by field from the
// command line.

import (
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"
)

// An EvalConfig collects every tunable of an evaluation run
type EvalConfig struct {
	// Workers sizes the evaluation pool; 0 selects one worker per CPU
	Workers int `json:"workers" yaml:"workers"`

	// MaxHops caps each forwarding simulation; 0 selects DefaultMaxHops
	MaxHops int `json:"maxhops" yaml:"maxhops"`

	// ScenarioCap bounds exhaustive enumeration; exceeding it raises the
	// overflow advisory unless sampling is configured
	ScenarioCap int `json:"scenariocap" yaml:"scenariocap"`

	// SampleCount, when positive, turns an over-cap enumeration into a
	// reproducible sample of that many scenarios
	SampleCount int `json:"samplecount" yaml:"samplecount"`

	// TimeoutSecs bounds the whole evaluation; 0 means no timeout
	TimeoutSecs float64 `json:"timeoutsecs" yaml:"timeoutsecs"`

	// TraceFile, when non-empty, activates hop tracing and names the file
	// (yaml or json by extension) the records are written to
	TraceFile string `json:"tracefile" yaml:"tracefile"`

	// EncodeFile, when non-empty, names the file the graph encoding is
	// written to (yaml or json by extension)
	EncodeFile string `json:"encodefile" yaml:"encodefile"`

	LogLevel  string `json:"loglevel" yaml:"loglevel"`
	LogFormat string `json:"logformat" yaml:"logformat"`
}

// DefaultEvalConfig is an initialization constructor holding the defaults
// the command line starts from
func DefaultEvalConfig() *EvalConfig {
	cfg := new(EvalConfig)
	cfg.Workers = 0
	cfg.MaxHops = DefaultMaxHops
	cfg.ScenarioCap = 1 << 20
	cfg.SampleCount = 0
	cfg.LogLevel = "info"
	cfg.LogFormat = "text"
	return cfg
}

// ReadEvalConfig deserializes a byte slice holding a representation of an
// EvalConfig struct.  If the input argument of dict (those bytes) is empty,
// the file whose name is given is read to acquire them.  A deserialized
// representation is returned, or an error if one is generated from a file
// read or the deserialization.
func ReadEvalConfig(filename string, useYAML bool, dict []byte) (*EvalConfig, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := *DefaultEvalConfig()

	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}

	if err != nil {
		return nil, err
	}

	return &example, nil
}

// WriteToFile stores the EvalConfig struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (cfg *EvalConfig) WriteToFile(filename string) error {
	return writeDescFile(filename, *cfg)
}
