package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/export"
	"github.com/trezcool/shule/core/form"
	"github.com/trezcool/shule/core/grid"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/core/screen"
	"github.com/trezcool/shule/core/slider"
	"github.com/trezcool/shule/core/user"
)

type screenAPI struct {
	reg    *screen.Registry
	logger core.Logger
}

// gridResponse is an outcome along with the grid of its state.
// View is left out when the outcome navigates to another screen.
type gridResponse struct {
	screen.Outcome
	Download string     `json:"download,omitempty"` // URL of the requested export
	View     *grid.View `json:"view,omitempty"`
}

func registerScreenAPI(g *echo.Group, reg *screen.Registry, logger core.Logger) {
	api := screenAPI{reg: reg, logger: logger}

	g.GET("/screens", api.list)
	g.GET("/hierarchy/:kind", api.cards)

	scr := g.Group("/screens/:screen", screenMiddleware(reg))
	scr.GET("", api.get)
	scr.POST("/events", api.handle)
	scr.GET("/form", api.form)
	scr.POST("/rows", api.create)
	scr.PUT("/rows/:id", api.update)
	scr.GET("/export", api.export)
	scr.POST("/import", api.upload)
}

func (api screenAPI) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.reg.List(usr))
}

// respond renders the grid of out.State, unless out navigates away.
func (api screenAPI) respond(ctx echo.Context, code int, scr *screen.Screen, out screen.Outcome) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	resp := gridResponse{Outcome: out}
	if out.Export != "" {
		resp.Download = apiExportURL(scr.Definition().Name, out.State, out.Export)
	}
	if out.Navigate == nil {
		g, frame, err := scr.Grid(ctx.Request().Context(), usr, out.State)
		if err != nil {
			return err
		}
		view := g.Render()
		resp.View = &view
		resp.State = frame.Outcome().State
	}
	return ctx.JSON(code, resp)
}

func (api screenAPI) get(ctx echo.Context) error {
	scr, _, err := getContextScreen(ctx)
	if err != nil {
		return err
	}
	return api.respond(ctx, http.StatusOK, scr, screen.Outcome{State: bindState(ctx)})
}

func (api screenAPI) handle(ctx echo.Context) error {
	scr, usr, err := getContextScreen(ctx)
	if err != nil {
		return err
	}
	req := new(eventRequest)
	if err = req.Bind(ctx); err != nil {
		return err
	}
	out, err := scr.Handle(ctx.Request().Context(), usr, req.State, req.Event)
	if err != nil {
		return err
	}
	if out.Alert != "" {
		return api.respond(ctx, http.StatusConflict, scr, out)
	}
	return api.respond(ctx, http.StatusOK, scr, out)
}

func (api screenAPI) form(ctx echo.Context) error {
	scr, usr, err := getContextScreen(ctx)
	if err != nil {
		return err
	}
	mode, id, err := bindMode(ctx)
	if err != nil {
		return err
	}
	frm, err := scr.Form(ctx.Request().Context(), usr, bindState(ctx), mode, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, frm)
}

func (api screenAPI) submit(ctx echo.Context, mode form.Mode, id string, code int) error {
	scr, usr, err := getContextScreen(ctx)
	if err != nil {
		return err
	}
	input := make(map[string]any)
	if err = json.NewDecoder(ctx.Request().Body).Decode(&input); err != nil {
		return &echo.HTTPError{Code: http.StatusBadRequest, Message: "invalid JSON body", Internal: err}
	}
	out, err := scr.Submit(ctx.Request().Context(), usr, bindState(ctx), mode, id, input)
	if err != nil {
		return err
	}
	if out.Alert != "" {
		return api.respond(ctx, http.StatusConflict, scr, out)
	}
	return api.respond(ctx, code, scr, out)
}

func (api screenAPI) create(ctx echo.Context) error {
	return api.submit(ctx, form.ModeCreate, "", http.StatusCreated)
}

func (api screenAPI) update(ctx echo.Context) error {
	return api.submit(ctx, form.ModeEdit, ctx.Param("id"), http.StatusOK)
}

func (api screenAPI) export(ctx echo.Context) error {
	scr, usr, err := getContextScreen(ctx)
	if err != nil {
		return err
	}
	return writeExport(ctx, scr, usr, bindState(ctx), ctx.QueryParam(formatParam))
}

func (api screenAPI) upload(ctx echo.Context) error {
	scr, usr, err := getContextScreen(ctx)
	if err != nil {
		return err
	}
	out, err := importFile(ctx, scr, usr, bindState(ctx))
	if err != nil {
		return err
	}
	api.logger.Info("rows imported", map[string]interface{}{"screen": scr.Definition().Name, "result": out.Notice}, usr)
	return api.respond(ctx, http.StatusOK, scr, out)
}

// cardsResponse is a card slider over the nodes of one level.
type cardsResponse struct {
	Kind     hierarchy.Kind `json:"kind"`
	Query    string         `json:"query,omitempty"`
	Selected string         `json:"selected,omitempty"`
	Cards    []slider.Card  `json:"cards"`
}

func (api screenAPI) cards(ctx echo.Context) error {
	kind := hierarchy.Kind(ctx.Param("kind"))
	sl, err := levelSlider(ctx, api.reg, kind, ctx.QueryParam("parent"), ctx.QueryParam("selected"))
	if err != nil {
		return err
	}
	sl.Search(ctx.QueryParam("q"))

	cards := sl.Visible()
	for i := range cards {
		cards[i].Image = imageURL(cards[i].Image)
	}
	if cards == nil {
		cards = []slider.Card{}
	}
	return ctx.JSON(http.StatusOK, cardsResponse{Kind: kind, Query: sl.Query(), Selected: sl.Selected(), Cards: cards})
}

// levelSlider returns a slider over the nodes of kind under parent. A level whose parent
// is not selected has no cards.
func levelSlider(ctx echo.Context, reg *screen.Registry, kind hierarchy.Kind, parent, selected string) (*slider.Slider, error) {
	opts, err := reg.Options(ctx.Request().Context(), kind, parent)
	if err != nil {
		return nil, err
	}
	sl := slider.New(nil, "", nil)
	sl.SetCards(slider.FromOptions(opts))
	sl.Click(selected)
	return sl, nil
}

// writeExport sends the export of the grid of st as an attachment.
func writeExport(ctx echo.Context, scr *screen.Screen, usr user.User, st screen.State, format string) error {
	ct := export.ContentType(format)
	if ct == "" {
		return errors.Wrapf(export.ErrUnknownFormat, "%q", format)
	}
	var buf bytes.Buffer
	if err := scr.Export(ctx.Request().Context(), usr, st, format, &buf); err != nil {
		return err
	}
	filename := export.Filename(scr.Definition().Title, format)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Blob(http.StatusOK, ct, buf.Bytes())
}

// importFile imports the spreadsheet uploaded as "file".
func importFile(ctx echo.Context, scr *screen.Screen, usr user.User, st screen.State) (screen.Outcome, error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return screen.Outcome{}, errMissingFile
	}
	f, err := fh.Open()
	if err != nil {
		return screen.Outcome{}, errors.Wrap(err, "opening upload")
	}
	defer f.Close()
	return scr.Import(ctx.Request().Context(), usr, st, f, fh.Filename)
}

func apiExportURL(name string, st screen.State, format string) string {
	values := st.Values()
	values.Set(formatParam, format)
	return "/api/screens/" + url.PathEscape(name) + "/export?" + values.Encode()
}
