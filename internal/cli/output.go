package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"flashdeck-backend-go/internal/core"
	"flashdeck-backend-go/internal/models"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// NewOutputFormatter creates an OutputFormatter.
func NewOutputFormatter(format string, w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: format, Writer: w}
}

// JSON writes v as indented JSON.
func (f *OutputFormatter) JSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type deckRow struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Role      models.Role `json:"role"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type decksOutput struct {
	Identity string    `json:"identity"`
	Decks    []deckRow `json:"decks"`
	Degraded bool      `json:"degraded,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Decks prints one accessible decks view.
func (f *OutputFormatter) Decks(view core.AccessibleDecksView) error {
	out := decksOutput{Identity: view.Identity, Decks: make([]deckRow, 0, len(view.Decks))}
	for _, d := range view.Decks {
		out.Decks = append(out.Decks, deckRow{ID: d.ID, Title: d.Title, Role: d.EffectiveRole, UpdatedAt: d.UpdatedAt})
	}
	if view.CollabErr != nil {
		out.Degraded = true
	}
	if view.Err != nil {
		out.Error = view.Err.Error()
	}
	if f.Format == "json" {
		return f.JSON(out)
	}

	if view.Err != nil {
		fmt.Fprintf(f.Writer, "error: %v\n", view.Err)
	}
	if view.CollabErr != nil {
		fmt.Fprintln(f.Writer, "warning: shared decks unavailable, showing owned decks only")
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tROLE\tUPDATED")
	for _, row := range out.Decks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.ID, row.Title, row.Role, row.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// Snapshots prints saved orders.
func (f *OutputFormatter) Snapshots(snapshots []*models.OrderSnapshot) error {
	if f.Format == "json" {
		if snapshots == nil {
			snapshots = []*models.OrderSnapshot{}
		}
		return f.JSON(snapshots)
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCARDS\tCREATED")
	for _, s := range snapshots {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Name, len(s.CardOrder), s.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// Order prints a deck's card order.
func (f *OutputFormatter) Order(deckID string, ids []string, message string) error {
	if f.Format == "json" {
		return f.JSON(map[string]any{"deckId": deckID, "cardOrder": ids, "message": message})
	}
	fmt.Fprintln(f.Writer, message)
	if len(ids) > 0 {
		fmt.Fprintln(f.Writer, strings.Join(ids, " "))
	}
	return nil
}
