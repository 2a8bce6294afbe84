// Package catalog — справочник типовых списаний (название + баллы ≤ 0).
package catalog

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Spok95/classroom-board/internal/models"
)

const MaxNameLen = 30

var ErrValidation = errors.New("некорректная позиция справочника")

// FieldError описывает ошибку одного поля черновика.
type FieldError struct {
	Field string
	Tag   string
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+":"+f.Tag)
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Draft — то, что пришло из формы редактирования. Пустой ID — новая позиция.
type Draft struct {
	ID     models.ItemID
	Name   string
	Points float64
}

type normalized struct {
	Name   string  `json:"name" validate:"required,max=30"`
	Points float64 `json:"points" validate:"finite,lte=0"`
}

type Catalog struct {
	doc      *models.ClassesState
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Catalog)

// WithClock задаёт источник времени для генерации id.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

func New(doc *models.ClassesState, opts ...Option) *Catalog {
	c := &Catalog{doc: doc, validate: newValidator(), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	return v
}

// Validate проверяет черновик и возвращает нормализованные имя и баллы.
func (c *Catalog) Validate(d Draft) (string, float64, error) {
	n := normalized{Name: strings.TrimSpace(d.Name), Points: d.Points}
	if err := c.validate.Struct(n); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			out := &ValidationError{}
			for _, fe := range verrs {
				out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Tag: fe.Tag()})
			}
			return "", 0, out
		}
		return "", 0, err
	}
	return n.Name, n.Points, nil
}

// List возвращает копию справочника, вызывающий может её менять.
func (c *Catalog) List() []models.DeductionItem {
	out := make([]models.DeductionItem, len(c.doc.DeductionItems))
	copy(out, c.doc.DeductionItems)
	return out
}

func (c *Catalog) Find(id models.ItemID) (models.DeductionItem, bool) {
	if i := c.indexOf(id); i >= 0 {
		return c.doc.DeductionItems[i], true
	}
	return models.DeductionItem{}, false
}

func (c *Catalog) indexOf(id models.ItemID) int {
	if id == "" {
		return -1
	}
	for i, it := range c.doc.DeductionItems {
		if it.ID.String() == id.String() {
			return i
		}
	}
	return -1
}

// Upsert создаёт или обновляет позицию. changed=false, если позиция уже такая же.
func (c *Catalog) Upsert(d Draft) (models.DeductionItem, bool, error) {
	name, points, err := c.Validate(d)
	if err != nil {
		return models.DeductionItem{}, false, err
	}
	if i := c.indexOf(d.ID); i >= 0 {
		cur := c.doc.DeductionItems[i]
		if cur.Name == name && cur.Points == points {
			return cur, false, nil
		}
		cur.Name, cur.Points = name, points
		c.doc.DeductionItems[i] = cur
		return cur, true, nil
	}
	id := d.ID
	if id == "" {
		id = GenerateID(c.doc.DeductionItems, c.now())
	}
	it := models.DeductionItem{ID: id, Name: name, Points: points}
	c.doc.DeductionItems = append(c.doc.DeductionItems, it)
	return it, true, nil
}

// Remove удаляет позицию. События и записи истории со ссылкой на неё не трогаем.
func (c *Catalog) Remove(id models.ItemID) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.doc.DeductionItems = append(c.doc.DeductionItems[:i], c.doc.DeductionItems[i+1:]...)
	return true
}

// GenerateID берёт миллисекундную метку времени, при коллизии линейно +1.
func GenerateID(existing []models.DeductionItem, now time.Time) models.ItemID {
	taken := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		taken[it.ID.String()] = struct{}{}
	}
	n := now.UnixMilli()
	for {
		id := strconv.FormatInt(n, 10)
		if _, dup := taken[id]; !dup {
			return models.ItemID(id)
		}
		n++
	}
}
