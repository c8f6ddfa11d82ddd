package studyplan_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/rapidrevise/internal/studyplan"
)

func TestExportXLSX(t *testing.T) {
	plan := samplePlan("Physics", time.Now())
	plan.Schedule = studyplan.Assemble(studyplan.Input{Subject: "Physics", StudyHours: 2, Topics: plan.Topics})

	var buf bytes.Buffer
	if err := studyplan.ExportXLSX(&buf, plan); err != nil {
		t.Fatalf("ExportXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	want := []string{"Topics", "Videos", "Schedule", "QA"}
	sheets := f.GetSheetList()
	if len(sheets) != len(want) {
		t.Fatalf("sheets = %v, want %v", sheets, want)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, sheets[i], want[i])
		}
	}

	topic, err := f.GetCellValue("Topics", "B2")
	if err != nil || topic != "Optics" {
		t.Errorf("Topics!B2 = %q (%v), want Optics", topic, err)
	}
	views, _ := f.GetCellValue("Videos", "E2")
	if views != "unknown" {
		t.Errorf("Videos!E2 = %q, want unknown", views)
	}
	step, _ := f.GetCellValue("Schedule", "B2")
	if step != "Watch: Lenses" {
		t.Errorf("Schedule!B2 = %q, want Watch: Lenses", step)
	}
	rec, _ := f.GetCellValue("QA", "B2")
	if rec != "Optics" {
		t.Errorf("QA!B2 = %q, want Optics", rec)
	}
}
