package store

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/Spok95/classroom-board/internal/models"
)

func sampleDocument() *models.ClassesState {
	doc := NewDocument()
	item := models.ItemID("1700000000000")
	half := models.ItemID("1.5")
	img := "data:image/png;base64,AAAA"
	at := time.Date(2024, 3, 1, 9, 30, 0, 123000000, time.UTC)
	doc.ClassesByName.Set("一年甲班", []models.Student{
		{
			Name: "小明", Score: 8, Gender: models.Male, ImageLabel: "🐱",
			DeductionHistory: []models.DeductionHistoryRecord{
				{ID: "hist_1", ItemID: &item, ItemName: "遲到", Points: -2, ScoreAfter: 8, AppliedAt: at, EventID: "evt_1"},
			},
		},
		{
			Name: "小華", Score: -1, Gender: models.Female, CustomImage: &img,
			DeductionHistory: []models.DeductionHistoryRecord{
				{ID: "hist_2", ItemID: &half, ItemName: "吃東西", Points: -1.5, ScoreAfter: -1, AppliedAt: at},
			},
		},
	})
	doc.Rewards = []string{"貼紙", "糖果"}
	doc.DeductionItems = []models.DeductionItem{{ID: item, Name: "遲到", Points: -2}, {ID: "abc", Name: "講話", Points: -1}, {ID: half, Name: "吃東西", Points: -1.5}}
	doc.ScoreEvents = []models.ScoreEvent{
		{
			ID: "evt_1", ClassName: "一年甲班", StudentName: "小明", StudentIndex: models.IntPtr(0),
			PreviousScore: models.IntPtr(10), Delta: -2, NewScore: models.IntPtr(8), Type: models.EventDeductionItem,
			Metadata:    map[string]any{"itemId": "1700000000000", "itemName": "遲到", "historyId": "hist_1"},
			PerformedAt: at,
		},
		{
			ID: "evt_2", ClassName: "一年甲班", StudentName: "已刪除", Delta: 0.5, Type: models.EventUnknown,
			Metadata: map[string]any{"source": "import", "nested": map[string]any{"x": 1.5}}, PerformedAt: at.Add(time.Hour),
		},
	}
	return doc
}

func TestEnsureIntegrity_RoundTrip(t *testing.T) {
	doc := sampleDocument()
	first, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	repaired := EnsureIntegrity(first)
	second, err := json.Marshal(repaired)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("корректный документ изменился при починке:\n%s\n%s", first, second)
	}
	if !reflect.DeepEqual(repaired.ClassesByName.Names(), doc.ClassesByName.Names()) {
		t.Fatalf("порядок классов: %v", repaired.ClassesByName.Names())
	}
}

func TestEnsureIntegrity_KeepsFractionalPointsAndIDs(t *testing.T) {
	raw := `{"classesByName":{"A":[{"name":"小明","score":0,"gender":"male","imageLabel":"","customImage":null,"customImageFileId":null,` +
		`"deductionHistory":[{"id":"h1","itemId":1.5,"itemName":"n","points":-1.5,"scoreAfter":-2,"appliedAt":"2024-03-01T00:00:00Z"}]}]},` +
		`"scoreButtons":[1,5,-1,-5],"rewards":[],"deductionItems":[{"id":1.5,"name":"n","points":-1.5}],"scoreEvents":[]}`
	doc := EnsureIntegrity([]byte(raw))

	it := doc.DeductionItems[0]
	if it.ID != "1.5" || it.Points != -1.5 {
		t.Fatalf("позиция не должна округляться: %+v", it)
	}
	a, _ := doc.ClassesByName.Get("A")
	rec := a[0].DeductionHistory[0]
	if rec.ItemID == nil || *rec.ItemID != "1.5" || rec.Points != -1.5 {
		t.Fatalf("запись истории не должна округляться: %+v", rec)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"deductionItems":[{"id":1.5,"name":"n","points":-1.5}]`, `"itemId":1.5`, `"points":-1.5,"scoreAfter":-2`} {
		if !bytes.Contains(out, []byte(want)) {
			t.Fatalf("в JSON нет %s:\n%s", want, out)
		}
	}
}

func TestEnsureIntegrity_Defaults(t *testing.T) {
	for _, raw := range []string{``, `null`, `[]`, `"x"`, `{}`, `{"classesByName":{}}`} {
		doc := EnsureIntegrity([]byte(raw))
		if doc.ClassesByName.Len() != 1 || !doc.ClassesByName.Has(DefaultClassName) {
			t.Fatalf("%q: ожидали класс по умолчанию, получили %v", raw, doc.ClassesByName.Names())
		}
		if !reflect.DeepEqual(doc.ScoreButtons, DefaultScoreButtons) {
			t.Fatalf("%q: кнопки %v", raw, doc.ScoreButtons)
		}
		if doc.Rewards == nil || doc.DeductionItems == nil || doc.ScoreEvents == nil {
			t.Fatalf("%q: коллекции должны быть пустыми, а не nil", raw)
		}
	}
}

func TestEnsureIntegrity_Repairs(t *testing.T) {
	raw := `{
		"classesByName": {
			"A": ["小明", {"name": "小華", "score": "7", "gender": "other",
				"deductionHistory": [
					{"id": "h1", "points": -1, "appliedAt": "2024-03-02T00:00:00Z"},
					{"id": "h1", "points": -2, "appliedAt": "2024-03-01T00:00:00Z"},
					"bad"
				]}, 42],
			"B": "not a list"
		},
		"scoreButtons": [1, 2, 3],
		"rewards": ["a", 3, null],
		"deductionItems": [
			{"id": 5, "name": "  遲到  ", "points": 2},
			{"id": 5, "name": "講話講話講話講話講話講話講話講話講話講話講話講話講話講話講話講話", "points": -1},
			{"name": "", "points": -1}
		],
		"scoreEvents": [
			{"id": "e1", "delta": 0},
			{"id": "e2", "delta": -1, "type": "weird", "studentIndex": 1.6},
			{"id": "e2", "delta": 3, "metadata": null},
			"junk"
		]
	}`
	doc := EnsureIntegrity([]byte(raw))

	a, _ := doc.ClassesByName.Get("A")
	if len(a) != 2 || a[0].Name != "小明" || a[0].Gender != models.Male {
		t.Fatalf("строка должна стать учеником, мусор отброшен: %+v", a)
	}
	if a[1].Score != 7 || a[1].Gender != models.Male {
		t.Fatalf("неверная починка ученика: %+v", a[1])
	}
	hist := a[1].DeductionHistory
	if len(hist) != 2 || hist[0].Points != -2 || hist[0].ID == hist[1].ID {
		t.Fatalf("история должна быть отсортирована и с уникальными id: %+v", hist)
	}
	if b, _ := doc.ClassesByName.Get("B"); len(b) != 0 {
		t.Fatalf("битый класс должен стать пустым: %+v", b)
	}

	if !reflect.DeepEqual(doc.ScoreButtons, DefaultScoreButtons) {
		t.Fatalf("три кнопки вместо четырёх: ожидали значения по умолчанию, получили %v", doc.ScoreButtons)
	}
	if !reflect.DeepEqual(doc.Rewards, []string{"a", "3"}) {
		t.Fatalf("призы: %v", doc.Rewards)
	}

	items := doc.DeductionItems
	if len(items) != 2 || items[0].Name != "遲到" || items[0].Points != -2 || items[0].ID != "5" {
		t.Fatalf("позиции: %+v", items)
	}
	if items[1].ID == "5" || len([]rune(items[1].Name)) != 30 {
		t.Fatalf("повтор id и длинное имя должны чиниться: %+v", items[1])
	}

	evs := doc.ScoreEvents
	if len(evs) != 2 {
		t.Fatalf("события с нулевой дельтой и мусор отбрасываются: %+v", evs)
	}
	if evs[0].Type != models.EventUnknown || !evs[0].IndexIs(2) {
		t.Fatalf("тип и индекс: %+v", evs[0])
	}
	if evs[1].ID == "e2" || evs[1].Metadata == nil {
		t.Fatalf("повтор id должен перегенерироваться, metadata — {}: %+v", evs[1])
	}
}

func TestStore_LoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "classes.json")
	st := New(FileBackend{Path: path}, nil)

	doc, err := st.Load()
	if err != nil {
		t.Fatalf("отсутствующий файл не ошибка: %v", err)
	}
	if !doc.ClassesByName.Has(DefaultClassName) {
		t.Fatal("ожидали документ по умолчанию")
	}

	st.Replace(sampleDocument())
	if err := st.Save(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("файл не записан: %v", err)
	}

	again := New(FileBackend{Path: path}, nil)
	loaded, err := again.Load()
	if err != nil {
		t.Fatal(err)
	}
	want, _ := st.Snapshot()
	got, _ := json.Marshal(loaded)
	if !bytes.Equal(want, got) {
		t.Fatalf("после перезагрузки документ другой:\n%s\n%s", want, got)
	}
}

func TestMemoryBackend(t *testing.T) {
	b := NewMemoryBackend(nil)
	st := New(b, nil)
	if _, err := st.Load(); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(); err != nil {
		t.Fatal(err)
	}
	if b.WriteCount() != 1 {
		t.Fatalf("ожидали одну запись, получили %d", b.WriteCount())
	}
}
