// Package defaults carries the built-in clinical rule policy used when no
// rules file is configured.
package defaults

import _ "embed"

// ClinicalRules is the default rule configuration in YAML.
//
//go:embed clinical_rules.yaml
var ClinicalRules []byte
