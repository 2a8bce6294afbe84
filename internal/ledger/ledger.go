// Package ledger ведёт журнал изменений баллов (scoreEvents) и сверяет
// позиционные ссылки событий на учеников после изменений состава класса.
//
// Сироты (ученик не найден ни по historyId, ни по имени) при сверке остаются
// как есть. Исключение: при удалении ученика DetachStudent обнуляет studentIndex
// его событий, иначе они приписались бы ученику, сдвинувшемуся на эту позицию.
// Такие события по-прежнему доступны через QueryByName.
package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/classroom-board/internal/models"
)

// SourceLegacyHistory — metadata.source событий, восстановленных из deductionHistory.
const SourceLegacyHistory = "legacy-history"

type Ledger struct {
	doc    *models.ClassesState
	now    func() time.Time
	suffix func() string
}

type Option func(*Ledger)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDSuffix подменяет случайный суффикс id события.
func WithIDSuffix(fn func() string) Option {
	return func(l *Ledger) { l.suffix = fn }
}

func New(doc *models.ClassesState, opts ...Option) *Ledger {
	l := &Ledger{doc: doc, now: time.Now, suffix: RandomSuffix}
	for _, o := range opts {
		o(l)
	}
	return l
}

type RecordInput struct {
	ClassName     string
	StudentName   string
	StudentIndex  *int
	PreviousScore *int
	Delta         float64
	NewScore      *int
	Type          models.EventType
	Metadata      map[string]any
}

// Record добавляет событие в журнал. Нулевая или нечисловая дельта — не ошибка:
// возвращаем nil и ничего не пишем.
func (l *Ledger) Record(in RecordInput) *models.ScoreEvent {
	return l.record(in, l.now())
}

func (l *Ledger) record(in RecordInput, at time.Time) *models.ScoreEvent {
	if in.Delta == 0 || math.IsNaN(in.Delta) || math.IsInf(in.Delta, 0) {
		return nil
	}
	typ := models.EventUnknown
	if in.Type != "" {
		typ = models.ParseEventType(string(in.Type))
	}
	meta := make(map[string]any, len(in.Metadata))
	for k, v := range in.Metadata {
		meta[k] = v
	}
	at = at.UTC().Truncate(time.Millisecond)

	ev := models.ScoreEvent{
		ID:          NewEventID(at, l.takenIDs(), l.suffix),
		ClassName:   in.ClassName,
		StudentName: in.StudentName,
		Delta:       in.Delta,
		Type:        typ,
		Metadata:    meta,
		PerformedAt: at,
	}
	if in.StudentIndex != nil {
		ev.StudentIndex = models.IntPtr(*in.StudentIndex)
	}
	if in.PreviousScore != nil {
		ev.PreviousScore = models.IntPtr(*in.PreviousScore)
	}
	if in.NewScore != nil {
		ev.NewScore = models.IntPtr(*in.NewScore)
	}
	l.doc.ScoreEvents = append(l.doc.ScoreEvents, ev)

	out := ev.Clone()
	return &out
}

func (l *Ledger) takenIDs() map[string]struct{} {
	taken := make(map[string]struct{}, len(l.doc.ScoreEvents))
	for _, ev := range l.doc.ScoreEvents {
		taken[ev.ID] = struct{}{}
	}
	return taken
}

// NewEventID — "evt_<unixms>_<suffix>", повторяем пока id занят.
func NewEventID(at time.Time, taken map[string]struct{}, suffix func() string) string {
	for attempt := 0; ; attempt++ {
		id := fmt.Sprintf("evt_%d_%s", at.UnixMilli(), suffix())
		if attempt >= 16 {
			// суффикс мог оказаться детерминированным
			id += "_" + strconv.Itoa(attempt)
		}
		if _, dup := taken[id]; !dup {
			return id
		}
	}
}

func RandomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Events возвращает копию журнала в порядке добавления.
func (l *Ledger) Events() []models.ScoreEvent {
	out := make([]models.ScoreEvent, len(l.doc.ScoreEvents))
	for i, ev := range l.doc.ScoreEvents {
		out[i] = ev.Clone()
	}
	return out
}

func (l *Ledger) Len() int { return len(l.doc.ScoreEvents) }

// QueryForStudent — события ученика className[studentIndex]. Совпадение по любому
// из трёх ключей: сохранённый индекс, historyId из его deductionHistory, имя.
// Ни один ключ по отдельности не надёжен: индекс плывёт при перестановках,
// имя меняется при переименовании.
func (l *Ledger) QueryForStudent(className string, studentIndex int) []models.ScoreEvent {
	students, ok := l.doc.ClassesByName.Get(className)
	if !ok || studentIndex < 0 || studentIndex >= len(students) {
		return nil
	}
	st := students[studentIndex]

	var out []models.ScoreEvent
	for _, ev := range l.doc.ScoreEvents {
		sameClass := ev.ClassName == className
		if sameClass && ev.IndexIs(studentIndex) {
			out = append(out, ev.Clone())
			continue
		}
		if st.HasHistoryRecord(ev.HistoryID()) {
			out = append(out, ev.Clone())
			continue
		}
		if sameClass && ev.StudentName == st.Name {
			out = append(out, ev.Clone())
		}
	}
	return out
}

// QueryByName ищет только по имени; так остаются доступны события удалённых учеников.
func (l *Ledger) QueryByName(className, studentName string) []models.ScoreEvent {
	var out []models.ScoreEvent
	for _, ev := range l.doc.ScoreEvents {
		if ev.ClassName == className && ev.StudentName == studentName {
			out = append(out, ev.Clone())
		}
	}
	return out
}

// RenameClass переносит события класса под новое имя.
func (l *Ledger) RenameClass(oldName, newName string) int {
	n := 0
	for i := range l.doc.ScoreEvents {
		if l.doc.ScoreEvents[i].ClassName == oldName {
			l.doc.ScoreEvents[i].ClassName = newName
			n++
		}
	}
	return n
}

// DeleteClass удаляет все события класса. В отличие от удаления ученика,
// удаление класса каскадное.
func (l *Ledger) DeleteClass(className string) int {
	kept := l.doc.ScoreEvents[:0]
	removed := 0
	for _, ev := range l.doc.ScoreEvents {
		if ev.ClassName == className {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	// хвост обнуляем, чтобы не держать удалённые metadata
	for i := len(kept); i < len(l.doc.ScoreEvents); i++ {
		l.doc.ScoreEvents[i] = models.ScoreEvent{}
	}
	l.doc.ScoreEvents = kept
	return removed
}
