package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/bumpwatch/bumpwatch/server/internal/api"
)

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printList(l api.ListResponse) error {
	if a.cfg.Output == "json" {
		return a.printJSON(l)
	}
	if len(l.Bumps) == 0 {
		fmt.Fprintln(a.stdout, l.EmptyMessage)
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTREET\tSTATUS\tHEALTH\tCARS\tUPDATED")
	for _, b := range l.Bumps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			b.ID, b.StreetName, b.Status, healthCell(b), b.CarCount, updatedCell(b.LastUpdated))
	}
	return tw.Flush()
}

func (a *app) printBump(b api.BumpResponse) error {
	if a.cfg.Output == "json" {
		return a.printJSON(b)
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", b.ID)
	fmt.Fprintf(tw, "Street:\t%s\n", b.StreetName)
	fmt.Fprintf(tw, "Location:\t%s\n", b.ExactLocation)
	fmt.Fprintf(tw, "Status:\t%s\n", b.Status)
	fmt.Fprintf(tw, "Health:\t%s\n", healthCell(b))
	fmt.Fprintf(tw, "Cars:\t%d\n", b.CarCount)
	fmt.Fprintf(tw, "Updated:\t%s\n", updatedCell(b.LastUpdated))
	for _, h := range b.Hints {
		fmt.Fprintf(tw, "Hint:\t[%s] %s: %s\n", h.Level, h.Title, h.Detail)
	}
	return tw.Flush()
}

func (a *app) printSummary(s api.SummaryResponse) error {
	if a.cfg.Output == "json" {
		return a.printJSON(s)
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOTAL\tGOOD\tDAMAGED\tCRITICAL\tMODE")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\n", s.Total, s.Good, s.Damaged, s.Critical, s.Mode)
	return tw.Flush()
}

func healthCell(b api.BumpResponse) string {
	if b.Health == nil {
		return "-"
	}
	s := strconv.Itoa(*b.Health)
	if b.HealthPct != nil {
		s += fmt.Sprintf(" (%.0f%%)", *b.HealthPct)
	}
	return s
}

// updatedCell renders an RFC3339 timestamp in local time.
func updatedCell(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("Jan 2, 2006, 3:04 PM")
}
