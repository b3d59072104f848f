package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/democrite/internal/printer"
	"github.com/dyluth/democrite/pkg/blackboard"
)

// FormatTable writes records as a table with columns ID, STATUS, TYPE, NAME, AGE and
// PAYLOAD (truncated). Ages are relative to now. Returns the number of rows written.
func FormatTable(w io.Writer, records []*blackboard.DataRecord, board string, now time.Time) int {
	if len(records) == 0 {
		fmt.Fprintf(w, "No records found on board '%s'\n", board)
		return 0
	}

	fmt.Fprintf(w, "Records on board '%s':\n\n", board)
	fmt.Fprintf(w, "%-10s %-14s %-20s %-20s %-8s %s\n",
		"ID", "STATUS", "TYPE", "NAME", "AGE", "PAYLOAD")
	fmt.Fprintf(w, "%-10s %-14s %-20s %-20s %-8s %s\n",
		"----------", "--------------", "--------------------", "--------------------", "--------", "----------------------------------------")

	for _, r := range records {
		fmt.Fprintf(w, "%-10s %-14s %-20s %-20s %-8s %s\n",
			formatID(r.UID.String()),
			r.Status,
			truncate(r.LogicalType, 20),
			formatName(r.DisplayName),
			formatAge(r.CreatedAt, now),
			formatPayload(r.Payload),
		)
	}

	noun := "record"
	if len(records) != 1 {
		noun = "records"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(records), noun)
	return len(records)
}

// FormatJSONL writes one compact JSON object per record.
func FormatJSONL(w io.Writer, records []*blackboard.DataRecord) error {
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal record to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes one record as indented JSON.
func FormatSingleJSON(w io.Writer, record *blackboard.DataRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// BoardSummary is one row of the board listing.
type BoardSummary struct {
	ID      blackboard.BoardID
	Status  blackboard.LifeStatus
	Records int
}

// FormatBoards writes the registered boards as a table.
func FormatBoards(w io.Writer, boards []BoardSummary, namespace string) {
	if len(boards) == 0 {
		fmt.Fprintf(w, "No boards registered in namespace '%s'\n", namespace)
		return
	}

	fmt.Fprintf(w, "%-10s %-20s %-20s %-10s %s\n", "ID", "NAME", "TEMPLATE", "STATUS", "RECORDS")
	for _, b := range boards {
		fmt.Fprintf(w, "%-10s %-20s %-20s %-10s %d\n",
			formatID(b.ID.UID.String()),
			truncate(b.ID.Name, 20),
			truncate(b.ID.TemplateKey, 20),
			printer.LifeStatus(b.Status),
			b.Records,
		)
	}
}

func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatName(name string) string {
	if name == "" {
		return "-"
	}
	return truncate(name, 20)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

// formatPayload renders the first non-empty line of a payload's JSON, at most 40
// characters. Empty slots show "-".
func formatPayload(payload any) string {
	if payload == nil {
		return "-"
	}

	var text string
	if s, ok := payload.(string); ok {
		text = s
	} else {
		data, err := json.Marshal(payload)
		if err != nil {
			return "<unprintable>"
		}
		text = string(data)
	}

	var first string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			first = trimmed
			break
		}
	}
	if first == "" {
		return "-"
	}
	return truncate(first, 40)
}

// formatAge renders how long before now t is, like "2m ago".
func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}

	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
