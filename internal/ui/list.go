package ui

import (
	"fmt"
	"strings"
)

// maxQueueRows caps the up-next list so the view fits a small terminal.
const maxQueueRows = 5

// renderQueue lists the upcoming track IDs, eliding anything past [maxQueueRows].
func renderQueue(queue []string) string {
	if len(queue) == 0 {
		return styles.dim.Render("Queue empty")
	}

	var b strings.Builder
	b.WriteString("Up next:")
	for i, id := range queue {
		if i == maxQueueRows {
			fmt.Fprintf(&b, "\n  … %d more", len(queue)-maxQueueRows)
			break
		}
		fmt.Fprintf(&b, "\n  %d. %s", i+1, id)
	}
	return b.String()
}
