package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// options are the CLI defaults loadable from a YAML file. Explicit flags on
// the command line win over file values.
type options struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Jobs   int    `yaml:"jobs"`
	Strict bool   `yaml:"strict"`
	Rules  bool   `yaml:"rules"`
	Quiet  bool   `yaml:"quiet"`
	Color  string `yaml:"color"`
}

func defaultOptions() options {
	return options{From: "oracle", Jobs: 4, Color: "auto"}
}

// loadOptions reads a YAML options file over the built-in defaults.
func loadOptions(path string) (options, error) {
	opts := defaultOptions()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read options file: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse options file %s: %w", path, err)
	}
	if opts.Jobs <= 0 {
		opts.Jobs = 1
	}
	return opts, nil
}
