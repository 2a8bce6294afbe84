package app

import "sync"

// Serializer не даёт двум действиям одновременно менять документ
// (HTTP-запросы, автосинхронизация, CLI). Сетевые вызовы делаются снаружи.
type Serializer struct {
	mu sync.Mutex
}

func NewSerializer() *Serializer { return &Serializer{} }

func (s *Serializer) lock() func() {
	s.mu.Lock()
	return func() { s.mu.Unlock() }
}

// Do выполняет fn под блокировкой документа.
func (s *Serializer) Do(fn func() error) error {
	unlock := s.lock()
	defer unlock()
	return fn()
}
