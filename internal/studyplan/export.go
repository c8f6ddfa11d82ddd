package studyplan

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

type sheet struct {
	name   string
	header []any
	rows   [][]any
}

// ExportXLSX writes plan as a workbook with Topics, Videos, Schedule and QA
// sheets.
func ExportXLSX(w io.Writer, plan *StudyPlan) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for i, sh := range planSheets(plan) {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.name); err != nil {
				return fmt.Errorf("renaming sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", sh.name, err)
		}

		if err := f.SetSheetRow(sh.name, "A1", &sh.header); err != nil {
			return fmt.Errorf("writing %s header: %w", sh.name, err)
		}
		if err := f.SetRowStyle(sh.name, 1, 1, bold); err != nil {
			return fmt.Errorf("styling %s header: %w", sh.name, err)
		}
		for r, row := range sh.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
				return fmt.Errorf("writing %s row %d: %w", sh.name, r+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func planSheets(plan *StudyPlan) []sheet {
	topics := sheet{
		name:   "Topics",
		header: []any{"Rank", "Topic", "Importance", "Prep Time (min)", "Videos", "Video Time (min)"},
	}
	videos := sheet{
		name:   "Videos",
		header: []any{"Topic", "Title", "Channel", "Duration (min)", "Views", "Engagement", "Relevance", "URL"},
	}
	for i, t := range plan.Topics {
		topics.rows = append(topics.rows, []any{i + 1, t.Name, t.Importance, t.PrepTimeMinutes, len(t.Videos), t.TotalVideoMinutes})
		for _, v := range t.Videos {
			videos.rows = append(videos.rows, []any{t.Name, v.Title, v.Channel, v.DurationMinutes, v.Views.String(), v.EngagementScore, v.RelevanceScore, v.URL})
		}
	}

	schedule := sheet{
		name:   "Schedule",
		header: []any{"Step", "Activity", "Duration (min)", "Type", "Topic", "URL", "Description"},
	}
	for _, st := range plan.Schedule.Steps {
		schedule.rows = append(schedule.rows, []any{st.Step, st.Activity, st.DurationMinutes, st.ResourceType, st.Topic, st.ResourceURL, st.Description})
	}

	qa := sheet{
		name:   "QA",
		header: []any{"Question", "Recommendation"},
	}
	for _, item := range plan.StructuredQA {
		qa.rows = append(qa.rows, []any{item.Question, item.Recommendation})
	}

	return []sheet{topics, videos, schedule, qa}
}
