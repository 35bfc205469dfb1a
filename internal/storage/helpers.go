package storage

import (
	"strings"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// Outputs are stored as one newline separated column.
func joinOutputs(outputs []string) string {
	return strings.Join(outputs, "\n")
}

func splitOutputs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
