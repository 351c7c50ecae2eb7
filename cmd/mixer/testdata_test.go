package main

import (
	"os"
	"path/filepath"
	"testing"
)

const manifestsYAML = `
manifests:
  - name: proxy
    attributes:
      destination.service: {valueType: STRING}
      response.code: {valueType: INT64}
`

const rulesYAML = `
rules:
  - match: destination.service == "ratings*"
    actions:
      - handler: sink
        instances: [requestcount]
  - match: response.code == 500
    actions:
      - handler: audit
        instances: [requestcount]
instances:
  - name: requestcount
    template: metric
    params:
      value: "1"
      dimensions:
        code: response.code | 0
handlers:
  - name: sink
    adapter: memory
  - name: audit
    adapter: log
`

// writeConfig writes files (name to content) into a new directory.
func writeConfig(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func validConfig(t *testing.T) string {
	t.Helper()
	return writeConfig(t, map[string]string{
		"manifests.yaml": manifestsYAML,
		"rules.yaml":     rulesYAML,
	})
}
