package app

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Spok95/classroom-board/internal/catalog"
	"github.com/Spok95/classroom-board/internal/export"
	"github.com/Spok95/classroom-board/internal/history"
	"github.com/Spok95/classroom-board/internal/models"
	"github.com/Spok95/classroom-board/internal/remotesync"
	"github.com/Spok95/classroom-board/internal/roster"
)

type api struct {
	svc    *roster.Service
	serial *Serializer
	syncer *remotesync.Syncer
	loc    *time.Location
	log    *zap.Logger
}

func registerAPI(g *echo.Group, a *api) {
	g.GET("/document", a.document)
	g.PUT("/score-buttons", a.setScoreButtons)
	g.PUT("/rewards", a.setRewards)

	g.GET("/classes", a.listClasses)
	g.POST("/classes", a.addClass)
	g.PUT("/classes/:class", a.renameClass)
	g.DELETE("/classes/:class", a.deleteClass)
	g.GET("/classes/:class/events", a.eventsByName)

	g.GET("/classes/:class/students", a.listStudents)
	g.POST("/classes/:class/students", a.addStudent)
	g.PATCH("/classes/:class/students/:idx", a.editStudent)
	g.DELETE("/classes/:class/students/:idx", a.deleteStudent)
	g.POST("/classes/:class/students/:idx/move", a.moveStudent)
	g.POST("/classes/:class/students/:idx/quick", a.quickAdjust)
	g.POST("/classes/:class/students/:idx/custom", a.customAdjust)
	g.POST("/classes/:class/students/:idx/deduction", a.applyDeduction)
	g.GET("/classes/:class/students/:idx/history", a.studentHistory)
	g.GET("/classes/:class/students/:idx/history.xlsx", a.studentHistoryXLSX)

	g.GET("/deduction-items", a.listItems)
	g.POST("/deduction-items", a.upsertItem)
	g.PUT("/deduction-items/:id", a.upsertItem)
	g.DELETE("/deduction-items/:id", a.removeItem)

	g.POST("/sync/push", a.syncPush)
	g.POST("/sync/pull", a.syncPull)
}

func pathParam(c echo.Context, name string) string {
	v := c.Param(name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func indexParam(c echo.Context) (int, error) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "bad student index")
	}
	return idx, nil
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bad request body")
	}
	return nil
}

// eventResult — ответ мутации: событие или null, если ничего не изменилось.
type eventResult struct {
	Event *models.ScoreEvent `json:"event"`
}

func (a *api) document(c echo.Context) error {
	var data []byte
	err := a.serial.Do(func() (err error) {
		data, err = a.svc.Snapshot()
		return err
	})
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func (a *api) setScoreButtons(c echo.Context) error {
	var req struct {
		Buttons []int `json:"scoreButtons"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := a.serial.Do(func() error { return a.svc.SetScoreButtons(req.Buttons) }); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) setRewards(c echo.Context) error {
	var req struct {
		Rewards []string `json:"rewards"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	_ = a.serial.Do(func() error {
		a.svc.SetRewards(req.Rewards)
		return nil
	})
	return c.NoContent(http.StatusNoContent)
}

func (a *api) listClasses(c echo.Context) error {
	var names []string
	_ = a.serial.Do(func() error {
		names = a.svc.ClassNames()
		return nil
	})
	return c.JSON(http.StatusOK, echo.Map{"classes": names})
}

type nameRequest struct {
	Name string `json:"name"`
}

func (a *api) addClass(c echo.Context) error {
	var req nameRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := a.serial.Do(func() error { return a.svc.AddClass(req.Name) }); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

func (a *api) renameClass(c echo.Context) error {
	var req nameRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	class := pathParam(c, "class")
	if err := a.serial.Do(func() error { return a.svc.RenameClass(class, req.Name) }); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) deleteClass(c echo.Context) error {
	class := pathParam(c, "class")
	if err := a.serial.Do(func() error { return a.svc.DeleteClass(class) }); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) eventsByName(c echo.Context) error {
	class, name := pathParam(c, "class"), strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	var events []models.ScoreEvent
	_ = a.serial.Do(func() error {
		events = a.svc.EventsByName(class, name)
		return nil
	})
	if events == nil {
		events = []models.ScoreEvent{}
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}

func (a *api) listStudents(c echo.Context) error {
	class := pathParam(c, "class")
	var students []models.Student
	if err := a.serial.Do(func() (err error) {
		students, err = a.svc.Students(class)
		return err
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"students": students})
}

type studentRequest struct {
	Name       string        `json:"name"`
	Gender     models.Gender `json:"gender"`
	ImageLabel string        `json:"imageLabel"`
}

func (a *api) addStudent(c echo.Context) error {
	var req studentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	class := pathParam(c, "class")
	var idx int
	if err := a.serial.Do(func() (err error) {
		idx, err = a.svc.AddStudent(class, models.Student{Name: req.Name, Gender: req.Gender, ImageLabel: req.ImageLabel})
		return err
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"index": idx})
}

type editRequest struct {
	Name              *string        `json:"name"`
	Score             *int           `json:"score"`
	Gender            *models.Gender `json:"gender"`
	ImageLabel        *string        `json:"imageLabel"`
	CustomImage       *string        `json:"customImage"`
	CustomImageFileID *string        `json:"customImageFileId"`
	ClearCustomImage  bool           `json:"clearCustomImage"`
}

func (a *api) editStudent(c echo.Context) error {
	idx, err := indexParam(c)
	if err != nil {
		return err
	}
	var req editRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	class := pathParam(c, "class")
	var ev *models.ScoreEvent
	if err := a.serial.Do(func() (err error) {
		ev, err = a.svc.EditStudent(class, idx, roster.StudentEdit{
			Name:              req.Name,
			Score:             req.Score,
			Gender:            req.Gender,
			ImageLabel:        req.ImageLabel,
			CustomImage:       req.CustomImage,
			CustomImageFileID: req.CustomImageFileID,
			ClearCustomImage:  req.ClearCustomImage,
		})
		return err
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, eventResult{Event: ev})
}

func (a *api) deleteStudent(c echo.Context) error {
	idx, err := indexParam(c)
	if err != nil {
		return err
	}
	class := pathParam(c, "class")
	if err := a.serial.Do(func() error { return a.svc.DeleteStudent(class, idx) }); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) moveStudent(c echo.Context) error {
	idx, err := indexParam(c)
	if err != nil {
		return err
	}
	var req struct {
		To int `json:"to"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	class := pathParam(c, "class")
	if err := a.serial.Do(func() error { return a.svc.MoveStudent(class, idx, req.To) }); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) quickAdjust(c echo.Context) error {
	idx, err := indexParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Button int `json:"button"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	return a.mutate(c, func() (*models.ScoreEvent, error) {
		return a.svc.QuickAdjust(pathParam(c, "class"), idx, req.Button)
	})
}

func (a *api) customAdjust(c echo.Context) error {
	idx, err := indexParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Sign  string `json:"sign"`
		Input string `json:"input"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	return a.mutate(c, func() (*models.ScoreEvent, error) {
		return a.svc.CustomAdjust(pathParam(c, "class"), idx, req.Sign, req.Input)
	})
}

func (a *api) applyDeduction(c echo.Context) error {
	idx, err := indexParam(c)
	if err != nil {
		return err
	}
	var req struct {
		ItemID models.ItemID `json:"itemId"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	return a.mutate(c, func() (*models.ScoreEvent, error) {
		return a.svc.ApplyDeduction(pathParam(c, "class"), idx, req.ItemID)
	})
}

func (a *api) mutate(c echo.Context, fn func() (*models.ScoreEvent, error)) error {
	var ev *models.ScoreEvent
	if err := a.serial.Do(func() (err error) {
		ev, err = fn()
		return err
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, eventResult{Event: ev})
}

// criteria читает ?type=&item=&from=&to= (даты YYYY-MM-DD в поясе приложения).
func (a *api) criteria(c echo.Context) (history.Criteria, error) {
	cr := history.Criteria{Type: history.TypeAll, ItemKey: c.QueryParam("item")}
	if history.FilterType(c.QueryParam("type")) == history.TypeDeductions {
		cr.Type = history.TypeDeductions
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &cr.StartDate}, {"to", &cr.EndDate}} {
		v := strings.TrimSpace(c.QueryParam(p.name))
		if v == "" {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", v, a.loc)
		if err != nil {
			return cr, echo.NewHTTPError(http.StatusBadRequest, "bad date "+p.name)
		}
		*p.dst = &t
	}
	return cr, nil
}

func (a *api) studentHistory(c echo.Context) error {
	idx, err := indexParam(c)
	if err != nil {
		return err
	}
	cr, err := a.criteria(c)
	if err != nil {
		return err
	}
	class := pathParam(c, "class")
	var view roster.HistoryView
	if err := a.serial.Do(func() (err error) {
		view, err = a.svc.StudentHistory(class, idx, cr)
		return err
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (a *api) studentHistoryXLSX(c echo.Context) error {
	idx, err := indexParam(c)
	if err != nil {
		return err
	}
	cr, err := a.criteria(c)
	if err != nil {
		return err
	}
	class := pathParam(c, "class")
	var (
		view roster.HistoryView
		name string
	)
	if err := a.serial.Do(func() (err error) {
		view, err = a.svc.StudentHistory(class, idx, cr)
		if err != nil {
			return err
		}
		students, err := a.svc.Students(class)
		if err != nil {
			return err
		}
		name = students[idx].Name
		return nil
	}); err != nil {
		return err
	}

	f, err := export.HistoryWorkbook(name, class, view.Events, a.loc)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	filename := export.BuildHistoryFilename(name, class, time.Now().In(a.loc))
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().WriteHeader(http.StatusOK)
	_, err = f.WriteTo(c.Response())
	return err
}

func (a *api) listItems(c echo.Context) error {
	var items []models.DeductionItem
	_ = a.serial.Do(func() error {
		items = a.svc.DeductionItems()
		return nil
	})
	return c.JSON(http.StatusOK, echo.Map{"deductionItems": items})
}

type itemRequest struct {
	ID     models.ItemID `json:"id"`
	Name   string        `json:"name"`
	Points *float64      `json:"points"`
}

func (a *api) upsertItem(c echo.Context) error {
	var req itemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if id := pathParam(c, "id"); id != "" {
		req.ID = models.ItemID(id)
	}
	draft := catalog.Draft{ID: req.ID, Name: req.Name, Points: math.NaN()}
	if req.Points != nil {
		draft.Points = *req.Points
	}
	var it models.DeductionItem
	if err := a.serial.Do(func() (err error) {
		it, err = a.svc.UpsertDeductionItem(draft)
		return err
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func (a *api) removeItem(c echo.Context) error {
	id := models.ItemID(pathParam(c, "id"))
	var ok bool
	_ = a.serial.Do(func() error {
		ok = a.svc.RemoveDeductionItem(id)
		return nil
	})
	if !ok {
		return roster.ErrItemNotFound
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) syncPush(c echo.Context) error {
	if a.syncer == nil {
		return errSyncDisabled
	}
	var payload []byte
	if err := a.serial.Do(func() (err error) {
		payload, err = a.svc.Snapshot()
		return err
	}); err != nil {
		return err
	}
	pushed, err := a.syncer.Push(c.Request().Context(), payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"pushed": pushed})
}

func (a *api) syncPull(c echo.Context) error {
	if a.syncer == nil {
		return errSyncDisabled
	}
	doc, err := a.syncer.Pull(c.Request().Context())
	if err != nil {
		return err
	}
	if doc == nil {
		return c.JSON(http.StatusOK, echo.Map{"pulled": false})
	}
	_ = a.serial.Do(func() error {
		a.svc.Replace(doc)
		return nil
	})
	a.log.Info("документ заменён версией из облака", zap.Int("events", len(doc.ScoreEvents)))
	return c.JSON(http.StatusOK, echo.Map{"pulled": true})
}
