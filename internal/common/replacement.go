// Package common provides utility functions for key/value reference replacement.
//
// The {key-name} syntax allows configuration values (site credentials, solver
// API key) to reference secrets stored in the key/value store instead of being
// written into the config file. At runtime the references are replaced with
// the stored values. Missing keys are logged as warnings but not treated as
// errors, allowing graceful degradation.

package common

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// keyRefPattern matches {key-name} references in strings.
// Allows alphanumeric characters, hyphens, and underscores.
var keyRefPattern = regexp.MustCompile(`\{([a-zA-Z0-9_-]+)\}`)

// ReplaceKeyReferences replaces all {key-name} references in the input string
// with values from the provided KV map. If a key is not found, the reference
// is left unchanged and a warning is logged.
func ReplaceKeyReferences(input string, kvMap map[string]string, logger arbor.ILogger) string {
	if input == "" {
		return input
	}

	logUnresolvedKeys(input, kvMap, logger)

	return keyRefPattern.ReplaceAllStringFunc(input, func(match string) string {
		keyName := match[1 : len(match)-1]
		if value, exists := kvMap[keyName]; exists {
			return value
		}
		return match
	})
}

// ResolveSecrets applies key reference replacement to the config fields that
// may carry secrets. Only string fields that plausibly hold credentials are
// touched; structural fields (paths, URLs with braces) are left alone.
func ResolveSecrets(config *Config, kvMap map[string]string, logger arbor.ILogger) {
	if config == nil || len(kvMap) == 0 {
		return
	}
	config.Site.Username = ReplaceKeyReferences(config.Site.Username, kvMap, logger)
	config.Site.Password = ReplaceKeyReferences(config.Site.Password, kvMap, logger)
	config.Solver.APIKey = ReplaceKeyReferences(config.Solver.APIKey, kvMap, logger)
}

// logUnresolvedKeys finds all {key-name} references and logs warnings for missing keys
func logUnresolvedKeys(input string, kvMap map[string]string, logger arbor.ILogger) {
	matches := keyRefPattern.FindAllStringSubmatch(input, -1)
	for _, match := range matches {
		if len(match) > 1 {
			keyName := match[1]
			if _, exists := kvMap[keyName]; !exists {
				logger.Warn().
					Str("reference", match[0]).
					Str("key", keyName).
					Msg("Unresolved key reference - key not found in KV store")
			}
		}
	}
}
