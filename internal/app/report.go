package app

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"doclife/internal/database"
	"doclife/internal/doc"
)

const timeLayout = "2006-01-02 15:04:05"

// WriteSyncReport prints one line per item that needs attention, followed
// by the totals. In-sync documents are only counted.
func WriteSyncReport(w io.Writer, r *doc.SyncReport) {
	for _, item := range r.Items {
		if item.Status == doc.StatusOK {
			continue
		}
		fmt.Fprintf(w, "%-10s  %-14s  %s", item.Status, item.Drift, item.Path)
		if item.Err != nil {
			fmt.Fprintf(w, "  (%v)", item.Err)
		}
		fmt.Fprintln(w)
	}
	if r.DryRun {
		fmt.Fprintf(w, "dry run: %d checked, %d in sync, %d to repair, %d failed, %d orphans\n",
			r.Checked, r.InSync, r.Pending, r.Failed, r.Orphans)
		return
	}
	fmt.Fprintf(w, "%d checked, %d in sync, %d corrected, %d failed, %d orphans\n",
		r.Checked, r.InSync, r.Corrected, r.Failed, r.Orphans)
}

// WriteMigrationReport prints every planned or attempted move and the totals.
func WriteMigrationReport(w io.Writer, r *doc.MigrationReport) {
	for _, item := range r.Items {
		fmt.Fprintf(w, "%-8s  %s -> %s", item.Status, item.From, item.To)
		if item.Err != nil {
			fmt.Fprintf(w, "  (%v)", item.Err)
		}
		fmt.Fprintln(w)
	}
	if r.DryRun {
		fmt.Fprintf(w, "dry run: %d to migrate, %d skipped\n", len(r.Items)-r.Skipped, r.Skipped)
		return
	}
	fmt.Fprintf(w, "operation %s: %d migrated, %d failed, %d skipped\n", r.OperationID, r.Migrated, r.Failed, r.Skipped)
}

// WriteDocumentList prints one line per document.
func WriteDocumentList(w io.Writer, docs []*doc.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents.")
		return
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%-36s  %-9s  %-8s  %-16s  %s\n", d.ID, d.Stage, d.Visibility, d.DocumentType, d.FilePath)
	}
}

// WriteDocument prints every field of one document.
func WriteDocument(w io.Writer, d *doc.Document) {
	field := func(name string, value any) {
		fmt.Fprintf(w, "%-16s %v\n", name+":", value)
	}
	field("ID", d.ID)
	field("Title", d.Title)
	if d.Description != "" {
		field("Description", d.Description)
	}
	field("Owner", d.EntityType+"/"+d.EntityID)
	field("Type", fmt.Sprintf("%s (%s)", d.DocumentType, d.Category))
	field("Path", d.FilePath)
	field("Visibility", d.Visibility)
	field("Stage", d.Stage)
	if d.Stage == doc.StageArchived {
		field("Archived from", d.ArchivedFrom)
	}
	field("Checksum", d.ContentHash)
	for _, r := range d.Reviewers {
		decision := r.Decision
		if decision == "" {
			decision = doc.DecisionPending
		}
		field("Reviewer", fmt.Sprintf("%s (%s)", r.ReviewerID, decision))
	}
	if d.PublishedPath != "" {
		field("Published", fmt.Sprintf("%s at %s", d.PublishedPath, d.PublishedAt.Format(timeLayout)))
	}
	if d.AutoPublishRule != "" {
		field("Auto-publish", d.AutoPublishRule)
	}
	field("Created", d.CreatedAt.Format(timeLayout))
	field("Updated", d.UpdatedAt.Format(timeLayout))
}

// WriteAudit prints a document's history, oldest first.
func WriteAudit(w io.Writer, entries []*doc.AuditEntry) {
	for _, e := range entries {
		transition := string(e.ToState)
		if e.FromState != "" && e.FromState != e.ToState {
			transition = fmt.Sprintf("%s->%s", e.FromState, e.ToState)
		}
		fmt.Fprintf(w, "%s  %-18s  %-10s  %-19s", e.Timestamp.Format(timeLayout), e.Action, e.Actor, transition)
		for _, k := range slices.Sorted(maps.Keys(e.Details)) {
			fmt.Fprintf(w, "  %s=%s", k, e.Details[k])
		}
		if e.Comment != "" {
			fmt.Fprintf(w, "  %q", e.Comment)
		}
		fmt.Fprintln(w)
	}
}

// WriteHistory prints operations in the format of the history command.
func WriteHistory(w io.Writer, ops []*database.Operation) {
	if len(ops) == 0 {
		fmt.Fprintln(w, "No operations recorded.")
		return
	}
	for _, op := range ops {
		status := op.Status
		if !op.FinishedAt.Valid {
			status = "running"
		}
		fmt.Fprintf(w, "#%d  %-15s  %s  %-10s  %s\n",
			op.ID, op.Operation, op.StartedAt.Format(timeLayout), status, op.Parameters)
	}
}

// WriteStatus prints per-stage document counts.
func WriteStatus(w io.Writer, st *Status) {
	fmt.Fprintf(w, "Project:  %s\n", st.ProjectID)
	fmt.Fprintf(w, "Version:  %d\n", st.MetadataVersion)
	var parts []string
	for _, stage := range doc.AllStages {
		parts = append(parts, fmt.Sprintf("%s=%d", stage, st.Stages[stage]))
	}
	fmt.Fprintf(w, "Documents: %d (%s)\n", st.Total, strings.Join(parts, " "))
}
