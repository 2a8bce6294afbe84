package store

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Spok95/classroom-board/internal/catalog"
	"github.com/Spok95/classroom-board/internal/ledger"
	"github.com/Spok95/classroom-board/internal/models"
)

const DefaultClassName = "預設班級"

// DefaultScoreButtons — дельты быстрых кнопок по умолчанию.
var DefaultScoreButtons = []int{1, 5, -1, -5}

// NewDocument создаёт пустой документ с одним классом по умолчанию.
func NewDocument() *models.ClassesState {
	doc := &models.ClassesState{
		ClassesByName:  models.NewClasses(),
		ScoreButtons:   append([]int(nil), DefaultScoreButtons...),
		Rewards:        []string{},
		DeductionItems: []models.DeductionItem{},
		ScoreEvents:    []models.ScoreEvent{},
	}
	doc.ClassesByName.Set(DefaultClassName, []models.Student{})
	return doc
}

// EnsureIntegrity приводит сырой документ к корректной структуре.
// Не падает: всё, что можно привести, приводится, остальное заменяется
// значениями по умолчанию. Вызывающий не отличает "был корректен" от "починен".
func EnsureIntegrity(raw []byte) *models.ClassesState {
	doc := NewDocument()
	top, err := models.DecodeOrderedObject(raw)
	if err != nil {
		return doc
	}
	fields := make(map[string]json.RawMessage, len(top))
	for _, kv := range top {
		fields[kv.Key] = kv.Value
	}

	if classes, ok := repairClasses(fields["classesByName"]); ok {
		doc.ClassesByName = classes
	}
	if buttons, ok := repairButtons(fields["scoreButtons"]); ok {
		doc.ScoreButtons = buttons
	}
	doc.Rewards = repairRewards(fields["rewards"])
	doc.DeductionItems = repairItems(fields["deductionItems"])
	doc.ScoreEvents = repairEvents(fields["scoreEvents"])
	return doc
}

func repairClasses(raw json.RawMessage) (models.Classes, bool) {
	if len(raw) == 0 {
		return models.Classes{}, false
	}
	kvs, err := models.DecodeOrderedObject(raw)
	if err != nil || len(kvs) == 0 {
		return models.Classes{}, false
	}
	out := models.NewClasses()
	historyIDs := map[string]struct{}{}
	for _, kv := range kvs {
		var items []any
		if err := json.Unmarshal(kv.Value, &items); err != nil {
			items = nil
		}
		students := make([]models.Student, 0, len(items))
		for _, it := range items {
			if st, ok := coerceStudent(it, historyIDs); ok {
				students = append(students, st)
			}
		}
		out.Set(kv.Key, students)
	}
	return out, true
}

func coerceStudent(v any, historyIDs map[string]struct{}) (models.Student, bool) {
	switch x := v.(type) {
	case string:
		return models.Student{Name: x, Gender: models.Male, DeductionHistory: []models.DeductionHistoryRecord{}}, true
	case map[string]any:
		st := models.Student{
			Name:              coerceString(x["name"]),
			Gender:            models.Male,
			ImageLabel:        coerceString(x["imageLabel"]),
			CustomImage:       coerceNullableString(x["customImage"]),
			CustomImageFileID: coerceNullableString(x["customImageFileId"]),
		}
		if n, ok := coerceInt(x["score"]); ok {
			st.Score = n
		}
		if g, _ := x["gender"].(string); models.Gender(g) == models.Female {
			st.Gender = models.Female
		}
		hist, _ := x["deductionHistory"].([]any)
		st.DeductionHistory = make([]models.DeductionHistoryRecord, 0, len(hist))
		for _, h := range hist {
			if rec, ok := coerceHistoryRecord(h, historyIDs); ok {
				st.DeductionHistory = append(st.DeductionHistory, rec)
			}
		}
		sort.SliceStable(st.DeductionHistory, func(i, j int) bool {
			return st.DeductionHistory[i].AppliedAt.Before(st.DeductionHistory[j].AppliedAt)
		})
		return st, true
	default:
		return models.Student{}, false
	}
}

func coerceHistoryRecord(v any, taken map[string]struct{}) (models.DeductionHistoryRecord, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return models.DeductionHistoryRecord{}, false
	}
	rec := models.DeductionHistoryRecord{
		ID:        coerceString(m["id"]),
		ItemName:  coerceString(m["itemName"]),
		AppliedAt: coerceTime(m["appliedAt"]),
		EventID:   coerceString(m["eventId"]),
	}
	if id := coerceString(m["itemId"]); id != "" {
		itemID := models.ItemID(id)
		rec.ItemID = &itemID
	}
	rec.Points, _ = coerceFloat(m["points"])
	rec.ScoreAfter, _ = coerceInt(m["scoreAfter"])
	if _, dup := taken[rec.ID]; rec.ID == "" || dup {
		rec.ID = NewHistoryID(rec.AppliedAt, taken)
	}
	taken[rec.ID] = struct{}{}
	return rec, true
}

// NewHistoryID выдаёт уникальный id записи deductionHistory.
func NewHistoryID(at time.Time, taken map[string]struct{}) string {
	if at.IsZero() {
		at = time.Now()
	}
	for {
		id := "hist_" + strconv.FormatInt(at.UnixMilli(), 10) + "_" + ledger.RandomSuffix()
		if _, dup := taken[id]; !dup {
			return id
		}
	}
}

func repairButtons(raw json.RawMessage) ([]int, bool) {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil || len(items) != len(DefaultScoreButtons) {
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, it := range items {
		n, ok := coerceInt(it)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func repairRewards(raw json.RawMessage) []string {
	var items []any
	_ = json.Unmarshal(raw, &items)
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch x := it.(type) {
		case string:
			out = append(out, x)
		case float64:
			out = append(out, coerceString(x))
		}
	}
	return out
}

func repairItems(raw json.RawMessage) []models.DeductionItem {
	var items []any
	_ = json.Unmarshal(raw, &items)
	out := make([]models.DeductionItem, 0, len(items))
	seen := map[string]struct{}{}
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(coerceString(m["name"]))
		points, ok := coerceFloat(m["points"])
		if name == "" || !ok {
			continue
		}
		if utf8.RuneCountInString(name) > catalog.MaxNameLen {
			name = string([]rune(name)[:catalog.MaxNameLen])
		}
		if points > 0 {
			// списания храним неположительными
			points = -points
		}
		id := models.ItemID(coerceString(m["id"]))
		if _, dup := seen[id.String()]; id == "" || dup {
			id = catalog.GenerateID(out, time.Now())
		}
		seen[id.String()] = struct{}{}
		out = append(out, models.DeductionItem{ID: id, Name: name, Points: points})
	}
	return out
}

func repairEvents(raw json.RawMessage) []models.ScoreEvent {
	var items []any
	_ = json.Unmarshal(raw, &items)
	out := make([]models.ScoreEvent, 0, len(items))
	taken := map[string]struct{}{}
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		delta, ok := coerceFloat(m["delta"])
		if !ok || delta == 0 {
			continue
		}
		ev := models.ScoreEvent{
			ID:            coerceString(m["id"]),
			ClassName:     coerceString(m["className"]),
			StudentName:   coerceString(m["studentName"]),
			StudentIndex:  coerceIntPtr(m["studentIndex"]),
			PreviousScore: coerceIntPtr(m["previousScore"]),
			Delta:         delta,
			NewScore:      coerceIntPtr(m["newScore"]),
			Type:          models.ParseEventType(coerceString(m["type"])),
			Metadata:      map[string]any{},
			PerformedAt:   coerceTime(m["performedAt"]),
		}
		if meta, ok := m["metadata"].(map[string]any); ok {
			ev.Metadata = meta
		}
		if _, dup := taken[ev.ID]; ev.ID == "" || dup {
			ev.ID = ledger.NewEventID(ev.PerformedAt, taken, ledger.RandomSuffix)
		}
		taken[ev.ID] = struct{}{}
		out = append(out, ev)
	}
	return out
}

func coerceString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func coerceNullableString(v any) *string {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func coerceFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coerceInt(v any) (int, bool) {
	f, ok := coerceFloat(v)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

func coerceIntPtr(v any) *int {
	if n, ok := coerceInt(v); ok {
		return &n
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceTime(v any) time.Time {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	case float64:
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			return time.UnixMilli(int64(x)).UTC()
		}
	}
	return time.Time{}
}
