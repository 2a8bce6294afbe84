package roster

import (
	"strings"

	"go.uber.org/zap"

	"github.com/Spok95/classroom-board/internal/models"
)

// AddStudent добавляет ученика в конец класса и возвращает его индекс.
func (s *Service) AddStudent(className string, st models.Student) (int, error) {
	students, err := s.students(className)
	if err != nil {
		return 0, err
	}
	st.Name = strings.TrimSpace(st.Name)
	if st.Name == "" {
		return 0, ErrInvalidName
	}
	if st.Gender != models.Female {
		st.Gender = models.Male
	}
	if st.DeductionHistory == nil {
		st.DeductionHistory = []models.DeductionHistoryRecord{}
	}
	students = append(students, st)
	s.Document().ClassesByName.Set(className, students)
	s.persist("add-student", className)
	return len(students) - 1, nil
}

// MoveStudent переставляет ученика (drag-and-drop) и сверяет журнал.
func (s *Service) MoveStudent(className string, from, to int) error {
	students, err := s.students(className)
	if err != nil {
		return err
	}
	if from < 0 || from >= len(students) || to < 0 || to >= len(students) {
		return ErrStudentNotFound
	}
	if from == to {
		return nil
	}
	moved := students[from]
	rest := append(append([]models.Student{}, students[:from]...), students[from+1:]...)
	out := make([]models.Student, 0, len(students))
	out = append(out, rest[:to]...)
	out = append(out, moved)
	out = append(out, rest[to:]...)

	s.Document().ClassesByName.Set(className, out)
	s.reconcile(className)
	s.persist("move-student", className)
	return nil
}

// DeleteStudent удаляет ученика. Его события не удаляются: индекс с них
// снимается, и дальше они находятся только по имени.
func (s *Service) DeleteStudent(className string, idx int) error {
	students, err := s.students(className)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(students) {
		return ErrStudentNotFound
	}
	removed := students[idx]
	detached := s.ledger.DetachStudent(className, idx, removed.Name)

	out := make([]models.Student, 0, len(students)-1)
	out = append(out, students[:idx]...)
	out = append(out, students[idx+1:]...)
	s.Document().ClassesByName.Set(className, out)
	s.reconcile(className)

	s.log.Info("ученик удалён",
		zap.String("class", className),
		zap.String("student", removed.Name),
		zap.Int("orphaned_events", detached))
	s.persist("delete-student", className)
	return nil
}

// ClassNames отдаёт классы в порядке отображения.
func (s *Service) ClassNames() []string {
	return s.Document().ClassesByName.Names()
}

// Students отдаёт копию состава класса.
func (s *Service) Students(className string) ([]models.Student, error) {
	students, err := s.students(className)
	if err != nil {
		return nil, err
	}
	out := make([]models.Student, len(students))
	for i, st := range students {
		out[i] = st.Clone()
	}
	return out, nil
}

func (s *Service) AddClass(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	doc := s.Document()
	if doc.ClassesByName.Has(name) {
		return ErrClassExists
	}
	doc.ClassesByName.Set(name, []models.Student{})
	s.persist("add-class", name)
	return nil
}

// RenameClass переименовывает класс вместе с className во всех его событиях.
func (s *Service) RenameClass(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrInvalidName
	}
	doc := s.Document()
	if !doc.ClassesByName.Has(oldName) {
		return ErrClassNotFound
	}
	if oldName == newName {
		return nil
	}
	if doc.ClassesByName.Has(newName) {
		return ErrClassExists
	}
	doc.ClassesByName.Rename(oldName, newName)
	n := s.ledger.RenameClass(oldName, newName)
	s.log.Info("класс переименован", zap.String("from", oldName), zap.String("to", newName), zap.Int("events", n))
	s.persist("rename-class", newName)
	return nil
}

// DeleteClass удаляет класс и все его события. Последний класс удалить нельзя.
func (s *Service) DeleteClass(name string) error {
	doc := s.Document()
	if !doc.ClassesByName.Has(name) {
		return ErrClassNotFound
	}
	if doc.ClassesByName.Len() <= 1 {
		return ErrLastClass
	}
	doc.ClassesByName.Delete(name)
	n := s.ledger.DeleteClass(name)
	s.log.Info("класс удалён", zap.String("class", name), zap.Int("events", n))
	s.persist("delete-class", name)
	return nil
}

func (s *Service) SetScoreButtons(buttons []int) error {
	if len(buttons) != 4 {
		return ErrInvalidScoreButtons
	}
	doc := s.Document()
	doc.ScoreButtons = append([]int(nil), buttons...)
	s.persist("set-score-buttons", "")
	return nil
}

// SetRewards — данные колеса призов, ядро их не интерпретирует.
func (s *Service) SetRewards(rewards []string) {
	doc := s.Document()
	doc.Rewards = append([]string{}, rewards...)
	s.persist("set-rewards", "")
}
