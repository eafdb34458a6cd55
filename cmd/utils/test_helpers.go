package utils

import (
	"os"
	"strings"
	"testing"
)

// ClearTestEnvironment blanks every variable of the process environment for the duration of the test, so config
// options only see what the test sets.
func ClearTestEnvironment(t *testing.T) {
	t.Helper()

	for _, entry := range os.Environ() {
		if key, _, found := strings.Cut(entry, "="); found && key != "" {
			t.Setenv(key, "")
		}
	}
}
