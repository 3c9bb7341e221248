package ui

import (
	"strings"
	"testing"

	"github.com/unblockhq/unblock/models"
)

func TestColumnWidthsExpandForContent(t *testing.T) {
	tbl := Table{
		Headers: []string{"ID", "Status"},
		Rows: [][]string{
			{"abc12345", "UNDER_REVIEW"},
			{"x", "OPEN"},
		},
	}
	widths := tbl.ColumnWidths()
	if widths[0] != 8 {
		t.Errorf("id width = %d, want 8", widths[0])
	}
	if widths[1] != len("UNDER_REVIEW") {
		t.Errorf("status width = %d, want %d", widths[1], len("UNDER_REVIEW"))
	}
}

func TestColumnWidthsRespectMax(t *testing.T) {
	tbl := Table{
		Headers:  []string{"Question"},
		Rows:     [][]string{{strings.Repeat("a", 100)}},
		MaxWidth: 40,
	}
	if w := tbl.ColumnWidths()[0]; w != 40 {
		t.Errorf("width = %d, want 40", w)
	}
}

func TestRenderTruncatesLongCells(t *testing.T) {
	tbl := Table{
		Headers:  []string{"Question"},
		Rows:     [][]string{{strings.Repeat("x", 100)}},
		MaxWidth: 10,
	}
	out := tbl.Render()
	if strings.Contains(out, strings.Repeat("x", 11)) {
		t.Error("render did not truncate long cell")
	}
	if !strings.Contains(out, "…") {
		t.Error("truncated cell missing ellipsis")
	}
}

func TestRenderStatusKnownAndUnknown(t *testing.T) {
	if RenderStatus(models.StatusOpen) == "" {
		t.Error("empty render for known status")
	}
	if RenderStatus(models.TaskStatus("BOGUS")) == "" {
		t.Error("empty render for unknown status")
	}
}
