package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"doclife/internal/doc"
)

var (
	badgeBase = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	stageColors = map[doc.Stage]lipgloss.Color{
		doc.StageDraft:     lipgloss.Color("#999999"),
		doc.StageReview:    lipgloss.Color("#F7B801"),
		doc.StageApproved:  lipgloss.Color("#5B8DEF"),
		doc.StageRejected:  lipgloss.Color("#FF6B6B"),
		doc.StagePublished: lipgloss.Color("#4CAF50"),
		doc.StageArchived:  lipgloss.Color("#666666"),
	}

	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

func stageBadge(s doc.Stage) string {
	return badgeBase.Foreground(stageColors[s]).Render(strings.ToUpper(string(s)))
}

// printResult reports the state a command left a document in.
func printResult(d *doc.Document) {
	fmt.Printf("%s %s  %s\n", stageBadge(d.Stage), d.ID, d.FilePath)
	if d.PublishedPath != "" && d.Stage == doc.StagePublished {
		fmt.Println(hintStyle.Render("public copy: " + d.PublishedPath))
	}
}
