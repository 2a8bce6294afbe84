// Package store владеет корневым документом ClassesState и его локальным хранением.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Spok95/classroom-board/internal/models"
)

// Backend — куда физически пишется документ (файл, память).
type Backend interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

type Store struct {
	backend Backend
	doc     *models.ClassesState
	log     *zap.Logger
}

func New(backend Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: backend, doc: NewDocument(), log: log}
}

// Load читает документ и чинит его. Отсутствующий файл не считается ошибкой.
func (s *Store) Load() (*models.ClassesState, error) {
	raw, err := s.backend.Read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Info("документ не найден, создаём новый")
			s.doc = NewDocument()
			return s.doc, nil
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	s.doc = EnsureIntegrity(raw)
	return s.doc, nil
}

func (s *Store) Document() *models.ClassesState { return s.doc }

// Replace подменяет документ целиком (например, после загрузки из облака).
func (s *Store) Replace(doc *models.ClassesState) {
	s.doc = doc
}

func (s *Store) Snapshot() ([]byte, error) {
	return json.Marshal(s.doc)
}

func (s *Store) Save() error {
	data, err := s.Snapshot()
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := s.backend.Write(data); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// FileBackend хранит документ в JSON-файле; запись атомарная (temp + rename).
type FileBackend struct {
	Path string
}

func (b FileBackend) Read() ([]byte, error) {
	return os.ReadFile(b.Path)
}

func (b FileBackend) Write(data []byte) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".classes-*.json")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.Path)
}

// MemoryBackend — для тестов и режима без диска.
type MemoryBackend struct {
	mu     sync.Mutex
	data   []byte
	Writes int
}

func NewMemoryBackend(initial []byte) *MemoryBackend {
	return &MemoryBackend{data: initial}
}

func (b *MemoryBackend) Read() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, fs.ErrNotExist
	}
	return append([]byte(nil), b.data...), nil
}

func (b *MemoryBackend) Write(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]byte(nil), data...)
	b.Writes++
	return nil
}

func (b *MemoryBackend) WriteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Writes
}
