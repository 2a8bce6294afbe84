//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/Spok95/classroom-board/internal/db"
	"github.com/Spok95/classroom-board/internal/testutil/testdb"
)

func TestRemoteFiles_SaveLoad(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	rf := db.NewRemoteFiles(h.DB)
	if err := rf.Ping(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := rf.LoadRemoteFile(ctx, "board.json")
	if err != nil || got != nil {
		t.Fatalf("ожидали (nil, nil) для отсутствующего файла, получили %s / %v", got, err)
	}

	// порядок ключей должен сохраниться как есть
	doc := json.RawMessage(`{"classesByName":{"乙班":[],"甲班":[]},"scoreEvents":[]}`)
	if err := rf.SaveRemoteFile(ctx, "board.json", doc); err != nil {
		t.Fatal(err)
	}
	got, err = rf.LoadRemoteFile(ctx, "board.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(doc) {
		t.Fatalf("документ изменился:\n%s\n%s", doc, got)
	}

	first, ok, err := rf.UpdatedAt(ctx, "board.json")
	if err != nil || !ok {
		t.Fatalf("updated_at: %v %v", ok, err)
	}
	// тот же payload — строка не переписывается
	if err := rf.SaveRemoteFile(ctx, "board.json", doc); err != nil {
		t.Fatal(err)
	}
	second, _, _ := rf.UpdatedAt(ctx, "board.json")
	if !second.Equal(first) {
		t.Fatalf("неизменённый документ не должен обновлять updated_at: %v → %v", first, second)
	}
}

func TestRemoteFiles_ParallelSaves(t *testing.T) {
	h, err := testdb.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	rf := db.NewRemoteFiles(h.DB)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload, _ := json.Marshal(map[string]int{"n": i})
			if err := rf.SaveRemoteFile(context.Background(), "board.json", payload); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	got, err := rf.LoadRemoteFile(context.Background(), "board.json")
	if err != nil || got == nil {
		t.Fatalf("после параллельных записей файл должен быть: %v", err)
	}
}
