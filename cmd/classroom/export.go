package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/Spok95/classroom-board/internal/export"
	"github.com/Spok95/classroom-board/internal/history"
)

func (e *env) export(args []string) error {
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	class := fs.String("class", "", "класс")
	student := fs.IntP("student", "s", -1, "позиция ученика в классе")
	out := fs.StringP("out", "o", ".", "каталог для файла")
	deductions := fs.Bool("deductions", false, "только списания")
	item := fs.String("item", "", "ключ позиции справочника (id:..., name:..., other)")
	from := fs.String("from", "", "с даты YYYY-MM-DD")
	to := fs.String("to", "", "по дату YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *class == "" || *student < 0 {
		return errors.New("usage: export --class NAME --student N [--out DIR]")
	}

	crit := history.Criteria{Type: history.TypeAll, ItemKey: *item}
	if *deductions {
		crit.Type = history.TypeDeductions
	}
	for _, p := range []struct {
		val string
		dst **time.Time
	}{{*from, &crit.StartDate}, {*to, &crit.EndDate}} {
		if p.val == "" {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", p.val, e.cfg.Location)
		if err != nil {
			return fmt.Errorf("bad date %q: %w", p.val, err)
		}
		*p.dst = &t
	}

	svc, err := e.openService()
	if err != nil {
		return err
	}
	view, err := svc.StudentHistory(*class, *student, crit)
	if err != nil {
		return err
	}
	students, err := svc.Students(*class)
	if err != nil {
		return err
	}
	name := students[*student].Name

	f, err := export.HistoryWorkbook(name, *class, view.Events, e.cfg.Location)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	path := filepath.Join(*out, export.BuildHistoryFilename(name, *class, time.Now().In(e.cfg.Location)))
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	fmt.Printf("%s: %d events\n", path, len(view.Events))
	return nil
}
