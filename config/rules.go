package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
)

// LoadRules reads engine rules from a YAML file. Keys missing from the file
// keep their default values; unknown keys are rejected.
//
// Example file:
//
//	activity_gate_days: 3
//	many_attempts: 4
//	cadence:
//	  enabled: true
//	  on_time_quiet_days: 4
//	  bands:
//	    - {max_score: 2, quiet_days: 7}
//	    - {max_score: 4, quiet_days: 5}
//	  default_quiet_days: 3
func LoadRules(path string) (nudge.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nudge.Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	rules, err := ParseRules(bytes.NewReader(data))
	if err != nil {
		return nudge.Rules{}, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes YAML rules on top of nudge.DefaultRules and validates them.
func ParseRules(r io.Reader) (nudge.Rules, error) {
	rules := nudge.DefaultRules()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil && !errors.Is(err, io.EOF) {
		return nudge.Rules{}, fmt.Errorf("decode rules: %w", err)
	}

	if err := rules.Validate(); err != nil {
		return nudge.Rules{}, err
	}
	return rules, nil
}

// MarshalRules renders rules as YAML, e.g. for printing the effective rules.
func MarshalRules(rules nudge.Rules) ([]byte, error) {
	return yaml.Marshal(rules)
}
