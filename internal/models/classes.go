package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ClassesState — корневой документ, который целиком сохраняется и синхронизируется.
type ClassesState struct {
	ClassesByName  Classes         `json:"classesByName"`
	ScoreButtons   []int           `json:"scoreButtons"`
	Rewards        []string        `json:"rewards"`
	DeductionItems []DeductionItem `json:"deductionItems"`
	ScoreEvents    []ScoreEvent    `json:"scoreEvents"`
}

// Classes — упорядоченное отображение имя класса → ученики.
// Порядок ключей в JSON сохраняется (это порядок отображения).
type Classes struct {
	names    []string
	students map[string][]Student
}

func NewClasses() Classes {
	return Classes{students: map[string][]Student{}}
}

func (c *Classes) init() {
	if c.students == nil {
		c.students = map[string][]Student{}
	}
}

func (c Classes) Len() int { return len(c.names) }

// Names возвращает копию списка имён в порядке отображения.
func (c Classes) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c Classes) Has(name string) bool {
	_, ok := c.students[name]
	return ok
}

// Get возвращает срез учеников класса (не копию: изменения видны документу).
func (c Classes) Get(name string) ([]Student, bool) {
	s, ok := c.students[name]
	return s, ok
}

// Set заменяет учеников класса; новый класс добавляется в конец.
func (c *Classes) Set(name string, students []Student) {
	c.init()
	if students == nil {
		students = []Student{}
	}
	if _, ok := c.students[name]; !ok {
		c.names = append(c.names, name)
	}
	c.students[name] = students
}

func (c *Classes) Delete(name string) bool {
	if _, ok := c.students[name]; !ok {
		return false
	}
	delete(c.students, name)
	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i], c.names[i+1:]...)
			break
		}
	}
	return true
}

// Rename переименовывает класс, сохраняя его позицию.
func (c *Classes) Rename(oldName, newName string) bool {
	s, ok := c.students[oldName]
	if !ok || oldName == newName {
		return ok
	}
	if _, taken := c.students[newName]; taken {
		return false
	}
	delete(c.students, oldName)
	c.students[newName] = s
	for i, n := range c.names {
		if n == oldName {
			c.names[i] = newName
			break
		}
	}
	return true
}

func (c Classes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range c.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		students := c.students[name]
		if students == nil {
			students = []Student{}
		}
		v, err := json.Marshal(students)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Classes) UnmarshalJSON(b []byte) error {
	raw, err := DecodeOrderedObject(b)
	if err != nil {
		return err
	}
	out := NewClasses()
	for _, kv := range raw {
		var students []Student
		if err := json.Unmarshal(kv.Value, &students); err != nil {
			return fmt.Errorf("class %q: %w", kv.Key, err)
		}
		out.Set(kv.Key, students)
	}
	*c = out
	return nil
}

// KeyValue — пара ключ/сырое значение JSON-объекта.
type KeyValue struct {
	Key   string
	Value json.RawMessage
}

// DecodeOrderedObject разбирает JSON-объект, сохраняя порядок ключей.
// Повторный ключ заменяет значение, но остаётся на первой позиции.
func DecodeOrderedObject(b []byte) ([]KeyValue, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	var out []KeyValue
	pos := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key token %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if i, seen := pos[key]; seen {
			out[i].Value = v
			continue
		}
		pos[key] = len(out)
		out = append(out, KeyValue{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}
