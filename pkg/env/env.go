// Package env reads process environment variables with fallbacks.
package env

import "os"

// Get looks up key and returns fallback when it is unset or blank.
func Get(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
