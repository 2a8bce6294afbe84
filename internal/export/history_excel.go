package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/classroom-board/internal/models"
)

const HistorySheet = "歷史紀錄"

var historyHeader = []string{"時間", "類型", "分數變化", "原分數", "新分數", "項目", "來源"}

var eventTypeLabels = map[models.EventType]string{
	models.EventQuickAdjust:   "快速加減分",
	models.EventCustomAdjust:  "自訂加減分",
	models.EventManualEdit:    "手動修改",
	models.EventDeductionItem: "扣分項目",
	models.EventUnknown:       "其他",
}

func EventTypeLabel(t models.EventType) string {
	if l, ok := eventTypeLabels[t]; ok {
		return l
	}
	return eventTypeLabels[models.EventUnknown]
}

// HistoryWorkbook — книга с историей ученика: события в переданном порядке
// (обычно уже отфильтрованные, от новых к старым) и итог по дельтам.
func HistoryWorkbook(studentName, className string, events []models.ScoreEvent, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", HistorySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	_ = f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("%s / %s", cleanName(className), cleanName(studentName)),
		Creator: "classroom-board",
	})

	for col, h := range historyHeader {
		if err := f.SetCellStr(HistorySheet, cellName(col+1, 1), h); err != nil {
			return nil, err
		}
	}

	var total float64
	for i, ev := range events {
		row := i + 2
		values := []any{
			ev.PerformedAt.In(loc).Format("2006-01-02 15:04"),
			EventTypeLabel(ev.Type),
			ev.Delta,
			intOrEmpty(ev.PreviousScore),
			intOrEmpty(ev.NewScore),
			models.MetaString(ev.Metadata, models.MetaItemName),
			models.MetaString(ev.Metadata, models.MetaSource),
		}
		for col, v := range values {
			if err := f.SetCellValue(HistorySheet, cellName(col+1, row), v); err != nil {
				return nil, err
			}
		}
		total += ev.Delta
	}

	sumRow := len(events) + 2
	_ = f.SetCellStr(HistorySheet, cellName(2, sumRow), "合計")
	_ = f.SetCellValue(HistorySheet, cellName(3, sumRow), total)
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(HistorySheet, cellName(1, sumRow), cellName(len(historyHeader), sumRow), bold)
	}
	if neg, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "C00000"}}); err == nil && len(events) > 0 {
		_ = f.SetConditionalFormat(HistorySheet, fmt.Sprintf("C2:C%d", len(events)+1), []excelize.ConditionalFormatOptions{
			{Type: "cell", Criteria: "<", Format: &neg, Value: "0"},
		})
	}

	if err := ApplyDefaultExcelFormatting(f, HistorySheet); err != nil {
		return nil, err
	}
	return f, nil
}

func intOrEmpty(p *int) any {
	if p == nil {
		return ""
	}
	return *p
}

func cellName(col, row int) string {
	return fmt.Sprintf("%s%d", columnName(col), row)
}
