package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/vesseleye/internal/api/client"
)

// newClient is replaced in tests.
var newClient = client.NewClientFromEnv

func apiClient() (*client.Client, error) {
	c, err := newClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
