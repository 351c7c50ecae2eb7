package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"mercator-hq/mixer/pkg/cli"
	"mercator-hq/mixer/pkg/telemetry/logging"
)

func TestReadAttributes(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "attrs.json")
	if err := os.WriteFile(file, []byte(`{"destination.service": "reviews", "response.code": 200}`), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		stdin   string
		file    string
		sets    []string
		want    map[string]interface{}
		wantErr bool
	}{
		{
			name: "sets only",
			sets: []string{"destination.service=ratings", "response.code=500", "secure=true"},
			want: map[string]interface{}{
				"destination.service": "ratings",
				"response.code":       float64(500),
				"secure":              true,
			},
		},
		{
			name: "set overrides file",
			file: file,
			sets: []string{"response.code=503"},
			want: map[string]interface{}{
				"destination.service": "reviews",
				"response.code":       float64(503),
			},
		},
		{
			name:  "stdin",
			stdin: `{"a": "b"}`,
			file:  "-",
			want:  map[string]interface{}{"a": "b"},
		},
		{
			name: "quoted json string",
			sets: []string{`name="500"`},
			want: map[string]interface{}{"name": "500"},
		},
		{name: "missing equals", sets: []string{"response.code"}, wantErr: true},
		{name: "empty key", sets: []string{"=1"}, wantErr: true},
		{name: "not an object", stdin: `[1, 2]`, file: "-", wantErr: true},
		{name: "missing file", file: filepath.Join(dir, "missing.json"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readAttributes(strings.NewReader(tt.stdin), tt.file, tt.sets)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readAttributes() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("readAttributes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunEval(t *testing.T) {
	dir := validConfig(t)

	tests := []struct {
		name         string
		values       map[string]interface{}
		wantRules    []int
		wantHandlers []string
	}{
		{
			name:         "both rules",
			values:       map[string]interface{}{"destination.service": "ratings.default", "response.code": 500},
			wantRules:    []int{0, 1},
			wantHandlers: []string{"sink", "audit"},
		},
		{
			name:         "second rule",
			values:       map[string]interface{}{"destination.service": "reviews", "response.code": 500},
			wantRules:    []int{1},
			wantHandlers: []string{"audit"},
		},
		{
			name:      "no match",
			values:    map[string]interface{}{"destination.service": "reviews", "response.code": 200},
			wantRules: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := runEval(context.Background(), &buf, dir, tt.values, true, cli.FormatJSON, logging.Discard()); err != nil {
				t.Fatalf("runEval() error = %v", err)
			}

			var report struct {
				Rules      []int `json:"rules"`
				Deliveries []struct {
					Ref       string `json:"ref"`
					Handler   string `json:"handler"`
					Instances []struct {
						Name string `json:"name"`
					} `json:"instances"`
				} `json:"deliveries"`
				Builds int `json:"builds"`
			}
			if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
				t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
			}

			if len(report.Rules) != len(tt.wantRules) {
				t.Fatalf("rules = %v, want %v", report.Rules, tt.wantRules)
			}
			for i := range tt.wantRules {
				if report.Rules[i] != tt.wantRules[i] {
					t.Errorf("rules = %v, want %v", report.Rules, tt.wantRules)
				}
			}
			if len(report.Deliveries) != len(tt.wantHandlers) {
				t.Fatalf("got %d deliveries, want %d", len(report.Deliveries), len(tt.wantHandlers))
			}
			for i, d := range report.Deliveries {
				if d.Handler != tt.wantHandlers[i] {
					t.Errorf("deliveries[%d].handler = %q, want %q", i, d.Handler, tt.wantHandlers[i])
				}
				if len(d.Instances) != 1 || d.Instances[0].Name != "requestcount" {
					t.Errorf("deliveries[%d].instances = %+v", i, d.Instances)
				}
			}
			if len(tt.wantHandlers) > 0 && report.Builds != 1 {
				t.Errorf("builds = %d, want 1", report.Builds)
			}
		})
	}
}

func TestRunEval_Text(t *testing.T) {
	dir := validConfig(t)
	values := map[string]interface{}{"destination.service": "ratings", "response.code": 500}

	var buf bytes.Buffer
	if err := runEval(context.Background(), &buf, dir, values, true, cli.FormatText, logging.Discard()); err != nil {
		t.Fatalf("runEval() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Matched: rules[0], rules[1]", "rules[0].actions[0] -> sink (memory)", "rules[1].actions[0] -> audit (log)", "requestcount [metric]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunEval_InvalidConfig(t *testing.T) {
	dir := writeConfig(t, map[string]string{
		"rules.yaml": strings.Replace(rulesYAML, "handler: sink", "handler: missing", 1),
	})

	err := runEval(context.Background(), &bytes.Buffer{}, dir, nil, false, cli.FormatText, logging.Discard())
	if !errors.Is(err, cli.ErrInvalid) {
		t.Fatalf("runEval() error = %v, want ErrInvalid", err)
	}
}
