package roster

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/classroom-board/internal/catalog"
	"github.com/Spok95/classroom-board/internal/ledger"
	"github.com/Spok95/classroom-board/internal/metrics"
	"github.com/Spok95/classroom-board/internal/models"
	"github.com/Spok95/classroom-board/internal/store"
)

const (
	SourceScoreButton   = "score-button"
	SourceCustomInput   = "custom-input"
	SourceStudentEditor = "student-editor"
)

// adjust меняет балл на delta и пишет ровно одно событие. При delta == 0 ничего не делает.
func (s *Service) adjust(className string, idx int, st *models.Student, delta int, typ models.EventType, meta map[string]any) *models.ScoreEvent {
	if delta == 0 {
		metrics.NoopMutations.Inc()
		return nil
	}
	prev := st.Score
	st.Score = prev + delta
	ev := s.ledger.Record(ledger.RecordInput{
		ClassName:     className,
		StudentName:   st.Name,
		StudentIndex:  models.IntPtr(idx),
		PreviousScore: models.IntPtr(prev),
		Delta:         float64(delta),
		NewScore:      models.IntPtr(st.Score),
		Type:          typ,
		Metadata:      meta,
	})
	if ev != nil {
		metrics.EventsRecorded.WithLabelValues(string(ev.Type)).Inc()
	}
	return ev
}

// QuickAdjust применяет быструю кнопку scoreButtons[button].
func (s *Service) QuickAdjust(className string, idx, button int) (*models.ScoreEvent, error) {
	st, err := s.student(className, idx)
	if err != nil {
		return nil, err
	}
	buttons := s.Document().ScoreButtons
	if button < 0 || button >= len(buttons) {
		return nil, ErrButtonOutOfRange
	}
	ev := s.adjust(className, idx, st, buttons[button], models.EventQuickAdjust, map[string]any{
		models.MetaSource:      SourceScoreButton,
		models.MetaButtonIndex: float64(button),
	})
	if ev != nil {
		s.persist("quick-adjust", className)
	}
	return ev, nil
}

// CustomAdjust применяет произвольную дельту из текстового поля. Нечитаемый ввод
// считается нулём: ни изменения балла, ни события.
func (s *Service) CustomAdjust(className string, idx int, sign, input string) (*models.ScoreEvent, error) {
	st, err := s.student(className, idx)
	if err != nil {
		return nil, err
	}
	value, err := parseLeadingInt(input)
	if err != nil {
		return nil, err
	}
	if value < 0 {
		value = -value
	}
	if sign != "-" {
		sign = "+"
	}
	delta := value
	if sign == "-" {
		delta = -value
	}
	ev := s.adjust(className, idx, st, delta, models.EventCustomAdjust, map[string]any{
		models.MetaSource:     SourceCustomInput,
		models.MetaInputValue: float64(value),
		models.MetaSign:       sign,
	})
	if ev != nil {
		s.persist("custom-adjust", className)
	}
	return ev, nil
}

// MaxCustomDelta — предел ручного ввода, чтобы балл не переполнился.
const MaxCustomDelta = 1_000_000_000

// parseLeadingInt ведёт себя как parseInt в браузере: "7abc" → 7, "abc" → 0.
// Число больше MaxCustomDelta по модулю отклоняется, а не обнуляется.
func parseLeadingInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, nil
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n > MaxCustomDelta || n < -MaxCustomDelta {
		return 0, fmt.Errorf("%w: %s", ErrDeltaTooLarge, s[:end])
	}
	return n, nil
}

// ApplyDeduction списывает баллы по позиции справочника. Битая ссылка на
// позицию — ошибка вызывающего: ничего не меняем.
func (s *Service) ApplyDeduction(className string, idx int, itemID models.ItemID) (*models.ScoreEvent, error) {
	item, ok := s.catalog.Find(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	st, err := s.student(className, idx)
	if err != nil {
		return nil, err
	}
	// балл целый: дробные баллы позиции округляются при списании
	delta := item.ScoreDelta()
	if delta == 0 {
		metrics.NoopMutations.Inc()
		return nil, nil
	}

	at := s.now().UTC().Truncate(time.Millisecond)
	id := item.ID
	rec := models.DeductionHistoryRecord{
		ID:       store.NewHistoryID(at, s.historyIDs()),
		ItemID:   &id,
		ItemName: item.Name,
		Points:   float64(delta),
	}
	ev := s.adjust(className, idx, st, delta, models.EventDeductionItem, map[string]any{
		models.MetaItemID:    item.ID.String(),
		models.MetaItemName:  item.Name,
		models.MetaHistoryID: rec.ID,
	})
	rec.ScoreAfter = st.Score
	rec.AppliedAt = at
	if ev != nil {
		rec.EventID = ev.ID
		rec.AppliedAt = ev.PerformedAt
	}
	st.DeductionHistory = append(st.DeductionHistory, rec)
	sort.SliceStable(st.DeductionHistory, func(i, j int) bool {
		return st.DeductionHistory[i].AppliedAt.Before(st.DeductionHistory[j].AppliedAt)
	})

	s.log.Info("списание по справочнику",
		zap.String("class", className),
		zap.String("student", st.Name),
		zap.String("item", item.Name),
		zap.Float64("points", item.Points),
		zap.Int("delta", delta))
	s.persist("apply-deduction", className)
	return ev, nil
}

func (s *Service) historyIDs() map[string]struct{} {
	ids := map[string]struct{}{}
	doc := s.Document()
	for _, name := range doc.ClassesByName.Names() {
		students, _ := doc.ClassesByName.Get(name)
		for _, st := range students {
			for _, r := range st.DeductionHistory {
				ids[r.ID] = struct{}{}
			}
		}
	}
	return ids
}

// StudentEdit — поля редактора ученика; nil — поле не меняется.
type StudentEdit struct {
	Name              *string
	Score             *int
	Gender            *models.Gender
	ImageLabel        *string
	CustomImage       *string
	CustomImageFileID *string
	ClearCustomImage  bool
}

// EditStudent применяет редактор ученика. Изменение балла пишется как
// manual-edit, переименование перепривязывает события к новому имени.
func (s *Service) EditStudent(className string, idx int, e StudentEdit) (*models.ScoreEvent, error) {
	st, err := s.student(className, idx)
	if err != nil {
		return nil, err
	}
	newName := st.Name
	if e.Name != nil {
		newName = strings.TrimSpace(*e.Name)
		if newName == "" {
			return nil, ErrInvalidName
		}
	}

	changed := applyProfile(st, e)
	oldName := st.Name
	renamed := newName != oldName
	if renamed {
		st.Name = newName
		s.ledger.ReconcileOnRename(className, idx, oldName, newName)
		changed = true
	}

	var ev *models.ScoreEvent
	if e.Score != nil {
		meta := map[string]any{models.MetaSource: SourceStudentEditor}
		if renamed {
			meta[models.MetaPreviousName] = oldName
		}
		ev = s.adjust(className, idx, st, *e.Score-st.Score, models.EventManualEdit, meta)
		if ev != nil {
			changed = true
		}
	}
	if renamed {
		s.reconcile(className)
	}
	if changed {
		s.persist("edit-student", className)
	}
	return ev, nil
}

func applyProfile(st *models.Student, e StudentEdit) bool {
	changed := false
	if e.Gender != nil && (*e.Gender == models.Male || *e.Gender == models.Female) && *e.Gender != st.Gender {
		st.Gender = *e.Gender
		changed = true
	}
	if e.ImageLabel != nil && *e.ImageLabel != st.ImageLabel {
		st.ImageLabel = *e.ImageLabel
		changed = true
	}
	if e.ClearCustomImage {
		if st.CustomImage != nil || st.CustomImageFileID != nil {
			changed = true
		}
		st.CustomImage, st.CustomImageFileID = nil, nil
		return changed
	}
	if e.CustomImage != nil && (st.CustomImage == nil || *st.CustomImage != *e.CustomImage) {
		v := *e.CustomImage
		st.CustomImage = &v
		changed = true
	}
	if e.CustomImageFileID != nil && (st.CustomImageFileID == nil || *st.CustomImageFileID != *e.CustomImageFileID) {
		v := *e.CustomImageFileID
		st.CustomImageFileID = &v
		changed = true
	}
	return changed
}

// DeductionItems возвращает копию справочника.
func (s *Service) DeductionItems() []models.DeductionItem { return s.catalog.List() }

func (s *Service) UpsertDeductionItem(d catalog.Draft) (models.DeductionItem, error) {
	it, changed, err := s.catalog.Upsert(d)
	if err != nil {
		return models.DeductionItem{}, err
	}
	if changed {
		s.persist("upsert-deduction-item", "")
	}
	return it, nil
}

// RemoveDeductionItem удаляет позицию; подтверждение остаётся на стороне интерфейса.
func (s *Service) RemoveDeductionItem(id models.ItemID) bool {
	if !s.catalog.Remove(id) {
		return false
	}
	s.persist("remove-deduction-item", "")
	return true
}
