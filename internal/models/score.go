package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

type EventType string

const (
	EventQuickAdjust   EventType = "quick-adjust"
	EventCustomAdjust  EventType = "custom-adjust"
	EventManualEdit    EventType = "manual-edit"
	EventDeductionItem EventType = "deduction-item"
	EventUnknown       EventType = "unknown"
)

// ParseEventType сводит неизвестные значения к EventUnknown.
func ParseEventType(s string) EventType {
	switch t := EventType(s); t {
	case EventQuickAdjust, EventCustomAdjust, EventManualEdit, EventDeductionItem:
		return t
	default:
		return EventUnknown
	}
}

// Ключи metadata, которые читает ядро.
const (
	MetaSource       = "source"
	MetaItemID       = "itemId"
	MetaItemName     = "itemName"
	MetaHistoryID    = "historyId"
	MetaSign         = "sign"
	MetaInputValue   = "inputValue"
	MetaPreviousName = "previousName"
	MetaButtonIndex  = "buttonIndex"
)

// ScoreEvent — запись журнала изменений баллов.
// Неизменяема после создания, кроме StudentIndex/StudentName (их правит сверка).
type ScoreEvent struct {
	ID            string         `json:"id"`
	ClassName     string         `json:"className"`
	StudentName   string         `json:"studentName"`
	StudentIndex  *int           `json:"studentIndex"`
	PreviousScore *int           `json:"previousScore"`
	Delta         float64        `json:"delta"`
	NewScore      *int           `json:"newScore"`
	Type          EventType      `json:"type"`
	Metadata      map[string]any `json:"metadata"`
	PerformedAt   time.Time      `json:"performedAt"`
}

// HistoryID достаёт ссылку на DeductionHistoryRecord, если событие её несёт.
func (e ScoreEvent) HistoryID() string {
	return MetaString(e.Metadata, MetaHistoryID)
}

// IndexIs сравнивает сохранённый индекс с i (nil не совпадает ни с чем).
func (e ScoreEvent) IndexIs(i int) bool {
	return e.StudentIndex != nil && *e.StudentIndex == i
}

// Clone делает копию с независимыми указателями и metadata.
func (e ScoreEvent) Clone() ScoreEvent {
	out := e
	out.StudentIndex = cloneInt(e.StudentIndex)
	out.PreviousScore = cloneInt(e.PreviousScore)
	out.NewScore = cloneInt(e.NewScore)
	out.Metadata = make(map[string]any, len(e.Metadata))
	for k, v := range e.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// MetaString читает значение metadata как строку; числа форматируются без экспоненты.
func MetaString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case ItemID:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// ItemID — идентификатор позиции каталога. В старых документах встречаются
// и числа, и строки; сравниваем всегда как строки.
type ItemID string

func (id ItemID) String() string { return string(id) }

// numeric: id пришёл JSON-числом, если строка совпадает с каноничной
// записью конечного числа ("42", "-3", "1.5").
func (id ItemID) numeric() bool {
	s := string(id)
	if s == "" {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return strconv.FormatFloat(f, 'f', -1, 64) == s
}

// MarshalJSON пишет числовые id числом, остальные строкой.
func (id ItemID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ItemID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*id = ItemID(str)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*id = ItemID(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// DeductionItem — шаблон типового списания.
type DeductionItem struct {
	ID     ItemID  `json:"id"`
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// ScoreDelta — на сколько позиция меняет целый балл ученика.
func (it DeductionItem) ScoreDelta() int { return roundPoints(it.Points) }

// DeductionHistoryRecord — старая запись истории списаний внутри ученика.
type DeductionHistoryRecord struct {
	ID         string    `json:"id"`
	ItemID     *ItemID   `json:"itemId"`
	ItemName   string    `json:"itemName"`
	Points     float64   `json:"points"`
	ScoreAfter int       `json:"scoreAfter"`
	AppliedAt  time.Time `json:"appliedAt"`
	EventID    string    `json:"eventId,omitempty"`
}

// ScoreDelta — изменение балла, которое отражает запись.
func (r DeductionHistoryRecord) ScoreDelta() int { return roundPoints(r.Points) }

// roundPoints: баллы справочника могут быть дробными, балл ученика целый.
// Округляем половины от нуля (-1.5 → -2).
func roundPoints(p float64) int {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return int(math.Round(p))
}

func IntPtr(v int) *int { return &v }

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
