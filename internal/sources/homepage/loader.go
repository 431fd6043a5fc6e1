// Package homepage imports the link lists of a Homepage dashboard
// (bookmarks.yaml and services.yaml) as client snapshots.
package homepage

import (
	"bytes"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Kind selects which Homepage file a document is.
type Kind string

const (
	KindBookmarks Kind = "bookmarks"
	KindServices  Kind = "services"
)

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// ParseBookmarks parses the content of a bookmarks.yaml file
func ParseBookmarks(data []byte) (BookmarksConfig, error) {
	var config BookmarksConfig
	if err := unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse bookmarks yaml: %w", err)
	}
	return config, nil
}

// ParseServices parses the content of a services.yaml file
func ParseServices(data []byte) (ServicesConfig, error) {
	var config ServicesConfig
	if err := unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse services yaml: %w", err)
	}
	return config, nil
}

func unmarshal(data []byte, out any) error {
	// Strip Homepage template variables ({{HOMEPAGE_VAR_...}})
	data = stripTemplateVariables(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("empty document")
	}
	return yaml.Unmarshal(data, out)
}

// stripTemplateVariables removes Homepage template variables from YAML
// Example: {{HOMEPAGE_VAR_ADGUARD_USER}} -> ""
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}
