package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DecodeYAML decodes one or more YAML documents into a single Config.
// Every document is a Config fragment; fragments are merged in order.
// JSON input is accepted as well since JSON is a subset of YAML.
func DecodeYAML(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	cfg := &Config{}
	for doc := 0; ; doc++ {
		var fragment Config
		err := dec.Decode(&fragment)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", doc, err)
		}
		cfg.Merge(&fragment)
	}

	cfg.Normalize()
	return cfg, nil
}

// DecodeJSON decodes a single JSON Config document.
func DecodeJSON(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// EncodeJSON encodes c with the proto3 JSON field names.
func EncodeJSON(c *Config) ([]byte, error) {
	if c == nil {
		return nil, errors.New("config cannot be nil")
	}
	return json.Marshal(c)
}

// EncodeYAML encodes c as a single YAML document.
func EncodeYAML(c *Config) ([]byte, error) {
	if c == nil {
		return nil, errors.New("config cannot be nil")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
