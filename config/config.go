package config

import (
	"bytes"
	"errors"
	"os"
	"sort"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

type Config struct {
	models map[string]*Model
}

func Parse(path string) (*Config, error) {
	file, err := parseFile(path)

	if err != nil {
		return nil, err
	}

	c := &Config{}

	if err := c.registerProviders(file); err != nil {
		return nil, err
	}

	return c, nil
}

type configFile struct {
	Providers []providerConfig `yaml:"providers"`
}

func parseFile(path string) (*configFile, error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return nil, err
	}

	return parseData(data)
}

func parseData(data []byte) (*configFile, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var config configFile

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// RegisterModel makes m available under id. The first registered model is
// also the default model.
func (cfg *Config) RegisterModel(id string, m *Model) {
	if cfg.models == nil {
		cfg.models = make(map[string]*Model)
	}

	if _, ok := cfg.models[""]; !ok {
		cfg.models[""] = m
	}

	cfg.models[id] = m
}

// Model returns the model registered as id. An empty id selects the default
// model.
func (cfg *Config) Model(id string) (*Model, error) {
	if cfg.models != nil {
		if m, ok := cfg.models[id]; ok {
			return m, nil
		}
	}

	return nil, errors.New("model not found: " + id)
}

func (cfg *Config) Models() []string {
	var result []string

	for id := range cfg.models {
		if id == "" {
			continue
		}

		result = append(result, id)
	}

	sort.Strings(result)

	return result
}

func createLimiter(limit *int) *rate.Limiter {
	if limit == nil {
		return nil
	}

	return rate.NewLimiter(rate.Limit(*limit), *limit)
}
