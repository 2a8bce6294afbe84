// Package roster — операции над составом классов и баллами учеников.
// Каждая мутация: изменить документ → записать не больше одного события → сохранить.
package roster

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/classroom-board/internal/catalog"
	"github.com/Spok95/classroom-board/internal/ctxutil"
	"github.com/Spok95/classroom-board/internal/history"
	"github.com/Spok95/classroom-board/internal/ledger"
	"github.com/Spok95/classroom-board/internal/metrics"
	"github.com/Spok95/classroom-board/internal/models"
	"github.com/Spok95/classroom-board/internal/observability"
	"github.com/Spok95/classroom-board/internal/store"
)

var (
	ErrClassNotFound       = errors.New("класс не найден")
	ErrClassExists         = errors.New("класс с таким именем уже есть")
	ErrLastClass           = errors.New("нельзя удалить последний класс")
	ErrStudentNotFound     = errors.New("ученик не найден")
	ErrInvalidName         = errors.New("имя не может быть пустым")
	ErrItemNotFound        = errors.New("позиция справочника не найдена")
	ErrButtonOutOfRange    = errors.New("нет такой быстрой кнопки")
	ErrInvalidScoreButtons = errors.New("быстрых кнопок должно быть ровно 4")
	ErrDeltaTooLarge       = errors.New("слишком большое изменение балла")
)

// Service — сессия работы с документом. Не потокобезопасна: вызывающий
// выполняет действия по одному (см. app.Serializer).
type Service struct {
	store   *store.Store
	ledger  *ledger.Ledger
	catalog *catalog.Catalog
	log     *zap.Logger
	now     func() time.Time
	suffix  func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDSuffix делает id событий детерминированными (тесты).
func WithIDSuffix(fn func() string) Option {
	return func(s *Service) { s.suffix = fn }
}

func New(st *store.Store, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{store: st, log: log, now: time.Now, suffix: ledger.RandomSuffix}
	for _, o := range opts {
		o(s)
	}
	s.bind()
	return s
}

func (s *Service) bind() {
	doc := s.store.Document()
	s.ledger = ledger.New(doc, ledger.WithClock(s.now), ledger.WithIDSuffix(s.suffix))
	s.catalog = catalog.New(doc, catalog.WithClock(s.now))
}

// Open загружает документ и переносит старую историю списаний в журнал.
func (s *Service) Open() error {
	if _, err := s.store.Load(); err != nil {
		return err
	}
	s.bind()
	s.MigrateLegacyHistory()
	return nil
}

// Replace подменяет документ (загрузка из облака) и сохраняет его локально.
func (s *Service) Replace(doc *models.ClassesState) {
	s.store.Replace(doc)
	s.bind()
	if len(s.MigrateLegacyHistory()) == 0 {
		s.persist("replace-document", "")
	}
}

func (s *Service) Document() *models.ClassesState { return s.store.Document() }

func (s *Service) Snapshot() ([]byte, error) { return s.store.Snapshot() }

func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// MigrateLegacyHistory вызывает ledger.MigrateLegacyHistory и сохраняет, если что-то создано.
func (s *Service) MigrateLegacyHistory() []models.ScoreEvent {
	created := s.ledger.MigrateLegacyHistory(s.Document().ClassesByName)
	if len(created) > 0 {
		metrics.LegacyMigrated.Add(float64(len(created)))
		s.log.Info("перенесена старая история списаний", zap.Int("events", len(created)))
		s.persist("migrate-legacy-history", "")
	}
	return created
}

// Сохранение «выстрелил и забыл»: ошибка записи не отменяет уже сделанную операцию.
func (s *Service) persist(op, className string) {
	if err := s.store.Save(); err != nil {
		metrics.PersistErrors.Inc()
		s.log.Error("не удалось сохранить документ", zap.String("op", op), zap.Error(err))
		ctx := ctxutil.WithOp(context.Background(), op)
		if className != "" {
			ctx = ctxutil.WithClassName(ctx, className)
		}
		observability.CaptureErrCtx(ctx, err)
	}
}

func (s *Service) students(className string) ([]models.Student, error) {
	students, ok := s.Document().ClassesByName.Get(className)
	if !ok {
		return nil, ErrClassNotFound
	}
	return students, nil
}

func (s *Service) student(className string, idx int) (*models.Student, error) {
	students, err := s.students(className)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(students) {
		return nil, ErrStudentNotFound
	}
	return &students[idx], nil
}

func (s *Service) reconcile(className string) {
	students, ok := s.Document().ClassesByName.Get(className)
	if !ok {
		return
	}
	rep := s.ledger.ReconcileIndexes(className, students)
	if rep.ByHistory > 0 {
		metrics.ReconcileRepairs.WithLabelValues("history").Add(float64(rep.ByHistory))
	}
	if rep.ByName > 0 {
		metrics.ReconcileRepairs.WithLabelValues("name").Add(float64(rep.ByName))
	}
	if rep.Orphaned > 0 {
		metrics.ReconcileOrphans.Add(float64(rep.Orphaned))
	}
	s.log.Debug("сверка журнала",
		zap.String("class", className),
		zap.Int("checked", rep.Checked),
		zap.Int("repaired", rep.Repaired()),
		zap.Int("orphaned", rep.Orphaned))
}

// HistoryView — то, что нужно экрану истории ученика.
type HistoryView struct {
	Events  []models.ScoreEvent  `json:"events"`
	Options []history.ItemOption `json:"itemOptions"`
}

// StudentHistory — события ученика по фильтру; варианты фильтра по позициям
// считаются по всем его событиям.
func (s *Service) StudentHistory(className string, idx int, c history.Criteria) (HistoryView, error) {
	if _, err := s.student(className, idx); err != nil {
		return HistoryView{}, err
	}
	events := s.ledger.QueryForStudent(className, idx)
	return HistoryView{
		Events:  history.Filter(events, c),
		Options: history.BuildItemFilterOptions(events),
	}, nil
}

// EventsByName ищет события удалённых (или переименованных) учеников по имени.
func (s *Service) EventsByName(className, studentName string) []models.ScoreEvent {
	return s.ledger.QueryByName(className, studentName)
}
