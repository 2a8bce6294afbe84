// Package history строит отфильтрованное представление событий ученика.
package history

import (
	"sort"
	"strings"
	"time"

	"github.com/Spok95/classroom-board/internal/models"
)

type FilterType string

const (
	TypeAll        FilterType = "all"
	TypeDeductions FilterType = "deductions"
)

const (
	KeyOther   = "other"
	idPrefix   = "id:"
	namePrefix = "name:"
	OtherLabel = "其他"
)

type Criteria struct {
	Type      FilterType
	ItemKey   string
	StartDate *time.Time
	EndDate   *time.Time
}

type ItemOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

func ItemKeyForID(id string) string     { return idPrefix + id }
func ItemKeyForName(name string) string { return namePrefix + name }

// Filter возвращает события по критериям, от новых к старым.
// Границы дат включительные: начало дня StartDate и конец дня EndDate
// в часовом поясе самой даты.
func Filter(events []models.ScoreEvent, c Criteria) []models.ScoreEvent {
	var from, to time.Time
	if c.StartDate != nil {
		from = startOfDay(*c.StartDate)
	}
	if c.EndDate != nil {
		to = endOfDay(*c.EndDate)
	}

	out := make([]models.ScoreEvent, 0, len(events))
	for _, ev := range events {
		if c.Type == TypeDeductions {
			if ev.Delta >= 0 {
				continue
			}
			if !matchesItemKey(ev, c.ItemKey) {
				continue
			}
		}
		if c.StartDate != nil && ev.PerformedAt.Before(from) {
			continue
		}
		if c.EndDate != nil && ev.PerformedAt.After(to) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PerformedAt.After(out[j].PerformedAt)
	})
	return out
}

func matchesItemKey(ev models.ScoreEvent, key string) bool {
	switch {
	case key == "":
		return true
	case key == KeyOther:
		return models.MetaString(ev.Metadata, models.MetaItemName) == ""
	case strings.HasPrefix(key, idPrefix):
		return models.MetaString(ev.Metadata, models.MetaItemID) == strings.TrimPrefix(key, idPrefix)
	case strings.HasPrefix(key, namePrefix):
		return models.MetaString(ev.Metadata, models.MetaItemName) == strings.TrimPrefix(key, namePrefix)
	default:
		return false
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// BuildItemFilterOptions строит варианты для фильтра по позициям справочника.
// Считать по нефильтрованным событиям ученика, иначе список будет сжиматься
// вместе с диапазоном дат.
func BuildItemFilterOptions(events []models.ScoreEvent) []ItemOption {
	labels := map[string]string{}
	var keys []string
	hasOther := false

	for _, ev := range events {
		if ev.Delta >= 0 {
			continue
		}
		name := models.MetaString(ev.Metadata, models.MetaItemName)
		id := models.MetaString(ev.Metadata, models.MetaItemID)
		if name == "" {
			hasOther = true
			continue
		}
		key := ItemKeyForName(name)
		if id != "" {
			key = ItemKeyForID(id)
		}
		if _, seen := labels[key]; !seen {
			keys = append(keys, key)
		}
		labels[key] = name
	}

	sort.SliceStable(keys, func(i, j int) bool {
		if labels[keys[i]] != labels[keys[j]] {
			return labels[keys[i]] < labels[keys[j]]
		}
		return keys[i] < keys[j]
	})
	out := make([]ItemOption, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, ItemOption{Key: k, Label: labels[k]})
	}
	if hasOther {
		out = append(out, ItemOption{Key: KeyOther, Label: OtherLabel})
	}
	return out
}
