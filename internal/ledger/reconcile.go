package ledger

import (
	"github.com/Spok95/classroom-board/internal/models"
)

// ReconcileReport — итог одного прохода сверки.
type ReconcileReport struct {
	Checked   int
	ByHistory int
	ByName    int
	Orphaned  int
}

func (r ReconcileReport) Repaired() int { return r.ByHistory + r.ByName }

// ReconcileIndexes чинит studentIndex/studentName событий класса после
// перестановки, удаления или переименования. Порядок: владелец historyId,
// затем первый ученик с тем же именем; иначе событие остаётся сиротой как есть.
// Повторный вызов без изменений состава ничего не меняет.
func (l *Ledger) ReconcileIndexes(className string, students []models.Student) ReconcileReport {
	historyOwner := map[string]int{}
	firstByName := map[string]int{}
	for i := len(students) - 1; i >= 0; i-- {
		firstByName[students[i].Name] = i
		for _, r := range students[i].DeductionHistory {
			if r.ID != "" {
				historyOwner[r.ID] = i
			}
		}
	}

	var rep ReconcileReport
	for i := range l.doc.ScoreEvents {
		ev := &l.doc.ScoreEvents[i]
		if ev.ClassName != className {
			continue
		}
		rep.Checked++
		if ev.StudentIndex != nil {
			idx := *ev.StudentIndex
			if idx >= 0 && idx < len(students) && students[idx].Name == ev.StudentName {
				continue
			}
		}
		if hid := ev.HistoryID(); hid != "" {
			if j, ok := historyOwner[hid]; ok {
				repoint(ev, j, students[j].Name)
				rep.ByHistory++
				continue
			}
		}
		if j, ok := firstByName[ev.StudentName]; ok {
			repoint(ev, j, students[j].Name)
			rep.ByName++
			continue
		}
		rep.Orphaned++
	}
	return rep
}

func repoint(ev *models.ScoreEvent, idx int, name string) {
	ev.StudentIndex = models.IntPtr(idx)
	ev.StudentName = name
}

// ReconcileOnRename переносит события со старого имени (или старого индекса)
// на новое имя. Вызывать до ReconcileIndexes, чтобы сверка по имени уже видела новое.
func (l *Ledger) ReconcileOnRename(className string, studentIndex int, oldName, newName string) int {
	n := 0
	for i := range l.doc.ScoreEvents {
		ev := &l.doc.ScoreEvents[i]
		if ev.ClassName != className {
			continue
		}
		if ev.IndexIs(studentIndex) || ev.StudentName == oldName {
			repoint(ev, studentIndex, newName)
			n++
		}
	}
	return n
}

// DetachStudent снимает индекс с событий удаляемого ученика: дальше они
// находятся только по имени и не прилипают к следующему ученику на этой позиции.
func (l *Ledger) DetachStudent(className string, studentIndex int, studentName string) int {
	n := 0
	for i := range l.doc.ScoreEvents {
		ev := &l.doc.ScoreEvents[i]
		if ev.ClassName == className && ev.IndexIs(studentIndex) && ev.StudentName == studentName {
			ev.StudentIndex = nil
			n++
		}
	}
	return n
}

// MigrateLegacyHistory создаёт события для записей deductionHistory, у которых
// ещё нет зеркального события (по metadata.historyId), и проставляет записям eventId.
// Идемпотентна.
func (l *Ledger) MigrateLegacyHistory(classes models.Classes) []models.ScoreEvent {
	mirrored := map[string]string{}
	for _, ev := range l.doc.ScoreEvents {
		if hid := ev.HistoryID(); hid != "" {
			if _, seen := mirrored[hid]; !seen {
				mirrored[hid] = ev.ID
			}
		}
	}

	var created []models.ScoreEvent
	for _, className := range classes.Names() {
		students, _ := classes.Get(className)
		for i := range students {
			st := &students[i]
			for j := range st.DeductionHistory {
				rec := &st.DeductionHistory[j]
				if rec.ID == "" {
					continue
				}
				if evID, ok := mirrored[rec.ID]; ok {
					if rec.EventID == "" {
						rec.EventID = evID
					}
					continue
				}

				meta := map[string]any{
					models.MetaHistoryID: rec.ID,
					models.MetaSource:    SourceLegacyHistory,
				}
				if rec.ItemName != "" {
					meta[models.MetaItemName] = rec.ItemName
				}
				if rec.ItemID != nil && *rec.ItemID != "" {
					meta[models.MetaItemID] = rec.ItemID.String()
				}
				at := rec.AppliedAt
				if at.IsZero() {
					at = l.now()
				}
				ev := l.record(RecordInput{
					ClassName:     className,
					StudentName:   st.Name,
					StudentIndex:  models.IntPtr(i),
					PreviousScore: models.IntPtr(rec.ScoreAfter - rec.ScoreDelta()),
					Delta:         rec.Points,
					NewScore:      models.IntPtr(rec.ScoreAfter),
					Type:          models.EventDeductionItem,
					Metadata:      meta,
				}, at)
				if ev == nil {
					continue
				}
				rec.EventID = ev.ID
				mirrored[rec.ID] = ev.ID
				created = append(created, *ev)
			}
		}
	}
	return created
}
