package history

import (
	"testing"
	"time"

	"github.com/Spok95/classroom-board/internal/models"
)

func ev(id string, delta float64, at time.Time, meta map[string]any) models.ScoreEvent {
	if meta == nil {
		meta = map[string]any{}
	}
	return models.ScoreEvent{ID: id, Delta: delta, PerformedAt: at, Metadata: meta, Type: models.EventQuickAdjust}
}

func ids(events []models.ScoreEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var day = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func sample() []models.ScoreEvent {
	return []models.ScoreEvent{
		ev("e1", 5, day.Add(9*time.Hour), nil),
		ev("e2", -2, day.Add(10*time.Hour), map[string]any{models.MetaItemID: "1", models.MetaItemName: "遲到"}),
		ev("e3", -1, day.Add(24*time.Hour+time.Hour), map[string]any{models.MetaItemName: "講話"}),
		ev("e4", -3, day.Add(48*time.Hour), nil),
		ev("e5", -2, day.Add(-time.Hour), map[string]any{models.MetaItemID: "1", models.MetaItemName: "遲到"}),
	}
}

func TestFilter_AllSortedDescending(t *testing.T) {
	got := ids(Filter(sample(), Criteria{Type: TypeAll}))
	want := []string{"e4", "e3", "e2", "e1", "e5"}
	if !sameIDs(got, want) {
		t.Fatalf("ожидали %v, получили %v", want, got)
	}
}

func TestFilter_Deductions(t *testing.T) {
	cases := []struct {
		name string
		key  string
		want []string
	}{
		{"все списания", "", []string{"e4", "e3", "e2", "e5"}},
		{"по id", ItemKeyForID("1"), []string{"e2", "e5"}},
		{"по имени", ItemKeyForName("講話"), []string{"e3"}},
		{"прочее", KeyOther, []string{"e4"}},
		{"неизвестный ключ", "bogus", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(Filter(sample(), Criteria{Type: TypeDeductions, ItemKey: tc.key}))
			if !sameIDs(got, tc.want) {
				t.Fatalf("ожидали %v, получили %v", tc.want, got)
			}
		})
	}
}

func TestFilter_DateBoundsInclusive(t *testing.T) {
	start := day.Add(15 * time.Hour) // учитывается только дата
	end := day.Add(24 * time.Hour)
	got := ids(Filter(sample(), Criteria{Type: TypeAll, StartDate: &start, EndDate: &end}))
	want := []string{"e3", "e2", "e1"}
	if !sameIDs(got, want) {
		t.Fatalf("ожидали %v, получили %v", want, got)
	}

	// конец дня включительно до последней миллисекунды
	edge := []models.ScoreEvent{ev("last", 1, day.Add(24*time.Hour-time.Millisecond), nil)}
	if got := Filter(edge, Criteria{EndDate: &day}); len(got) != 1 {
		t.Fatal("событие в 23:59:59.999 должно попасть в диапазон")
	}
}

func TestFilter_UsesDateLocation(t *testing.T) {
	taipei := time.FixedZone("CST", 8*3600)
	local := time.Date(2024, 5, 10, 12, 0, 0, 0, taipei)
	// 2024-05-09 17:00 UTC — это уже 10 мая в Тайбэе
	events := []models.ScoreEvent{ev("a", 1, time.Date(2024, 5, 9, 17, 0, 0, 0, time.UTC), nil)}
	if got := Filter(events, Criteria{StartDate: &local, EndDate: &local}); len(got) != 1 {
		t.Fatal("границы дня считаются в часовом поясе даты")
	}
}

func TestFilter_NarrowingIsMonotonic(t *testing.T) {
	all := Filter(sample(), Criteria{Type: TypeAll})
	narrowed := Filter(sample(), Criteria{Type: TypeDeductions, ItemKey: ItemKeyForID("1"), StartDate: &day})
	in := map[string]bool{}
	for _, e := range all {
		in[e.ID] = true
	}
	for _, e := range narrowed {
		if !in[e.ID] {
			t.Fatalf("сужение фильтра добавило событие %s", e.ID)
		}
	}
	if len(narrowed) > len(all) {
		t.Fatal("сужение фильтра увеличило результат")
	}
}

func TestBuildItemFilterOptions(t *testing.T) {
	events := append(sample(),
		ev("e6", 4, day, map[string]any{models.MetaItemName: "加分不算"}),
		ev("e7", -1, day, map[string]any{models.MetaItemName: "aaa"}),
	)
	got := BuildItemFilterOptions(events)
	want := []ItemOption{
		{Key: ItemKeyForName("aaa"), Label: "aaa"},
		{Key: ItemKeyForID("1"), Label: "遲到"},
		{Key: ItemKeyForName("講話"), Label: "講話"},
		{Key: KeyOther, Label: OtherLabel},
	}
	if len(got) != len(want) {
		t.Fatalf("ожидали %d вариантов, получили %+v", len(want), got)
	}
	byKey := map[string]string{}
	for _, o := range got {
		byKey[o.Key] = o.Label
	}
	for _, w := range want {
		if byKey[w.Key] != w.Label {
			t.Fatalf("нет варианта %+v в %+v", w, got)
		}
	}
	if got[len(got)-1].Key != KeyOther {
		t.Fatalf("«прочее» должно быть последним: %+v", got)
	}
	for i := 1; i < len(got)-1; i++ {
		if got[i-1].Label > got[i].Label {
			t.Fatalf("варианты не отсортированы по метке: %+v", got)
		}
	}

	if opts := BuildItemFilterOptions([]models.ScoreEvent{ev("p", 3, day, nil)}); len(opts) != 0 {
		t.Fatalf("без списаний вариантов нет, получили %+v", opts)
	}
}
