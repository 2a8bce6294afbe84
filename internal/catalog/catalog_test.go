package catalog

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Spok95/classroom-board/internal/models"
)

func newCatalog(items ...models.DeductionItem) (*Catalog, *models.ClassesState) {
	doc := &models.ClassesState{DeductionItems: append([]models.DeductionItem{}, items...)}
	now := time.UnixMilli(1700000000000)
	return New(doc, WithClock(func() time.Time { return now })), doc
}

func TestValidate(t *testing.T) {
	c, _ := newCatalog()

	cases := []struct {
		name  string
		draft Draft
		field string
		tag   string
	}{
		{"пустое имя", Draft{Name: "   ", Points: -1}, "name", "required"},
		{"длинное имя", Draft{Name: strings.Repeat("遲", MaxNameLen+1), Points: -1}, "name", "max"},
		{"положительные баллы", Draft{Name: "遲到", Points: 2}, "points", "lte"},
		{"NaN", Draft{Name: "遲到", Points: math.NaN()}, "points", "finite"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := c.Validate(tc.draft)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("ожидали ErrValidation, получили %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ожидали *ValidationError, получили %T", err)
			}
			if len(verr.Fields) != 1 || verr.Fields[0].Field != tc.field || verr.Fields[0].Tag != tc.tag {
				t.Fatalf("ожидали %s:%s, получили %+v", tc.field, tc.tag, verr.Fields)
			}
		})
	}

	name, points, err := c.Validate(Draft{Name: "  " + strings.Repeat("遲", MaxNameLen) + " ", Points: 0})
	if err != nil {
		t.Fatalf("ровно %d символов и 0 баллов допустимы: %v", MaxNameLen, err)
	}
	if name != strings.Repeat("遲", MaxNameLen) || points != 0 {
		t.Fatalf("неверная нормализация: %q %v", name, points)
	}

	if _, points, err := c.Validate(Draft{Name: "遲到", Points: -1.5}); err != nil || points != -1.5 {
		t.Fatalf("дробные неположительные баллы допустимы и не округляются: %v %v", points, err)
	}
}

func TestUpsert(t *testing.T) {
	c, doc := newCatalog(models.DeductionItem{ID: "1700000000000", Name: "講話", Points: -1})

	it, changed, err := c.Upsert(Draft{Name: " 遲到 ", Points: -2})
	if err != nil || !changed {
		t.Fatalf("создание: changed=%v err=%v", changed, err)
	}
	if it.ID != "1700000000001" {
		t.Fatalf("id должен сдвинуться при коллизии, получили %q", it.ID)
	}
	if it.Name != "遲到" || it.Points != -2 || len(doc.DeductionItems) != 2 {
		t.Fatalf("неверная позиция: %+v", it)
	}

	if _, changed, err := c.Upsert(Draft{ID: it.ID, Name: "遲到", Points: -2}); err != nil || changed {
		t.Fatalf("повтор без изменений: changed=%v err=%v", changed, err)
	}

	upd, changed, err := c.Upsert(Draft{ID: it.ID, Name: "遲到", Points: -3})
	if err != nil || !changed || upd.Points != -3 || doc.DeductionItems[1].Points != -3 {
		t.Fatalf("обновление: %+v changed=%v err=%v", upd, changed, err)
	}

	half, changed, err := c.Upsert(Draft{ID: it.ID, Name: "遲到", Points: -1.5})
	if err != nil || !changed || half.Points != -1.5 || doc.DeductionItems[1].Points != -1.5 {
		t.Fatalf("дробные баллы: %+v changed=%v err=%v", half, changed, err)
	}

	if _, _, err := c.Upsert(Draft{ID: it.ID, Name: "", Points: -3}); !errors.Is(err, ErrValidation) {
		t.Fatalf("ожидали ошибку проверки, получили %v", err)
	}
	if doc.DeductionItems[1].Name != "遲到" {
		t.Fatal("ошибка проверки не должна менять справочник")
	}
}

func TestFindMatchesNumericAndStringIDs(t *testing.T) {
	c, _ := newCatalog(models.DeductionItem{ID: "42", Name: "遲到", Points: -2})
	if _, ok := c.Find(models.ItemID("42")); !ok {
		t.Fatal("позиция 42 не найдена")
	}
	if _, ok := c.Find(""); ok {
		t.Fatal("пустой id не должен находиться")
	}
}

func TestRemove(t *testing.T) {
	c, doc := newCatalog(
		models.DeductionItem{ID: "1", Name: "a", Points: -1},
		models.DeductionItem{ID: "2", Name: "b", Points: -2},
	)
	if !c.Remove("1") {
		t.Fatal("ожидали удаление")
	}
	if c.Remove("1") {
		t.Fatal("повторное удаление должно вернуть false")
	}
	if len(doc.DeductionItems) != 1 || doc.DeductionItems[0].ID != "2" {
		t.Fatalf("неверный справочник: %+v", doc.DeductionItems)
	}

	list := c.List()
	list[0].Name = "изменено"
	if doc.DeductionItems[0].Name != "b" {
		t.Fatal("List должен возвращать копию")
	}
}
