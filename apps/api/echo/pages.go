package echoapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/safehtml"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/form"
	"github.com/trezcool/shule/core/grid"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/core/screen"
	"github.com/trezcool/shule/core/slider"
)

// page is what every page shows around its content.
type page struct {
	AppName  string
	Title    string
	UserName string
	HomeURL  safehtml.URL
	Alert    string
	Notice   string
	CSRF     string
}

type (
	screenLink struct {
		Title string
		URL   safehtml.URL
	}

	indexData struct {
		page
		Screens []screenLink
	}
)

type (
	cardView struct {
		Key      string
		Value    string // filter value sent when the card is clicked
		Name     string
		Class    string
		HasImage bool
		Image    safehtml.URL
	}

	sliderView struct {
		Label string
		Cards []cardView
	}

	optionView struct {
		Value    string
		Label    string
		Selected bool
	}

	filterView struct {
		Key      string
		Label    string
		Disabled bool
		Options  []optionView
	}

	controlView struct {
		Event  string
		Value  string
		Label  string
		RowID  string
		Upload bool
	}

	cellView struct {
		Text     string
		Class    string
		RowID    string
		Open     bool
		Controls []controlView
	}

	rowView struct {
		Class string
		Cells []cellView
	}

	screenData struct {
		page
		EventURL          safehtml.URL
		ImportURL         safehtml.URL
		Sliders           []sliderView
		Filters           []filterView
		HasSearch         bool
		SearchText        string
		SearchPlaceholder string
		Toolbar           []controlView
		Headers           []string
		Rows              []rowView
		Empty             bool
		EmptyText         string
		Warnings          []string
	}
)

type (
	fieldView struct {
		ID          safehtml.Identifier
		Label       string
		Value       string
		Placeholder string
		Error       string
		Textarea    bool
		Select      bool
		Multi       bool
		Number      bool
		Date        bool
		Options     []optionView
	}

	formData struct {
		page
		FormTitle string
		SubmitURL safehtml.URL
		BackURL   safehtml.URL
		Fields    []fieldView
	}
)

type pages struct {
	conf *core.Config
	reg  *screen.Registry
}

func registerPages(app *echo.Echo, conf *core.Config, reg *screen.Registry) {
	p := pages{conf: conf, reg: reg}

	app.GET("/session", p.session)

	auth := []echo.MiddlewareFunc{
		middleware.JWTWithConfig(jwtConfig(conf, "cookie:"+tokenCookie)),
		userMiddleware(),
		middleware.CSRFWithConfig(middleware.CSRFConfig{TokenLookup: "form:" + csrfField, CookiePath: "/"}),
	}
	app.GET("/", p.index, auth...)

	scr := app.Group("/screens/:screen", append(auth, screenMiddleware(reg))...)
	scr.GET("", p.screen)
	scr.POST("/events", p.event)
	scr.POST("/import", p.upload)
	scr.GET("/export", p.export)
	scr.GET("/form", p.form)
	scr.POST("/form", p.submit)
}

func screenPath(name string) string {
	return "/screens/" + url.PathEscape(name)
}

func withQuery(path string, values url.Values) string {
	if q := values.Encode(); q != "" {
		return path + "?" + q
	}
	return path
}

func (p pages) page(ctx echo.Context, title string) (page, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return page{}, err
	}
	csrf, _ := ctx.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return page{
		AppName:  p.conf.AppName,
		Title:    title,
		UserName: usr.Name,
		HomeURL:  safehtml.URLSanitized("/"),
		Alert:    ctx.QueryParam(alertParam),
		Notice:   ctx.QueryParam(noticeParam),
		CSRF:     csrf,
	}, nil
}

// session stores the token given in the query string in a cookie, for the pages.
func (p pages) session(ctx echo.Context) error {
	claims, err := ParseToken(ctx.QueryParam(tokenCookie), p.conf)
	if err != nil {
		return err
	}
	ctx.SetCookie(sessionCookie(ctx.QueryParam(tokenCookie), time.Unix(claims.ExpiresAt, 0)))
	return ctx.Redirect(http.StatusSeeOther, "/")
}

func (p pages) index(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	pg, err := p.page(ctx, "Home")
	if err != nil {
		return err
	}
	data := indexData{page: pg}
	for _, s := range p.reg.List(usr) {
		data.Screens = append(data.Screens, screenLink{Title: s.Title, URL: safehtml.URLSanitized(screenPath(s.Name))})
	}
	return ctx.Render(http.StatusOK, indexPage, data)
}

func (p pages) screen(ctx echo.Context) error {
	scr, usr, err := getContextScreen(ctx)
	if err != nil {
		return err
	}
	g, frame, err := scr.Grid(ctx.Request().Context(), usr, bindState(ctx))
	if err != nil {
		return err
	}
	st := frame.Outcome().State
	view := g.Render()

	pg, err := p.page(ctx, scr.Definition().Title)
	if err != nil {
		return err
	}
	path := screenPath(scr.Definition().Name)
	data := screenData{
		page:      pg,
		EventURL:  safehtml.URLSanitized(withQuery(path+"/events", st.Values())),
		ImportURL: safehtml.URLSanitized(withQuery(path+"/import", st.Values())),
		Filters:   filterViews(view.Filters),
		Toolbar:   controlViews(view.Toolbar),
		Empty:     view.Empty,
		EmptyText: view.EmptyText,
		Warnings:  view.Warnings,
	}
	if view.Search != nil {
		data.HasSearch = true
		data.SearchText, data.SearchPlaceholder = view.Search.Text, view.Search.Placeholder
	}
	for _, h := range view.Headers {
		data.Headers = append(data.Headers, h.Label)
	}
	for _, r := range view.Rows {
		data.Rows = append(data.Rows, newRowView(r))
	}
	if data.Sliders, err = p.sliders(ctx, scr, st); err != nil {
		return err
	}
	return ctx.Render(http.StatusOK, screenPage, data)
}

// sliders returns one card slider per hierarchy level whose parent is selected.
func (p pages) sliders(ctx echo.Context, scr *screen.Screen, st screen.State) ([]sliderView, error) {
	chain := scr.Chain()
	sel := make(hierarchy.Selection, len(chain))
	for _, k := range chain {
		sel[k] = st.Filters[string(k)]
	}

	var views []sliderView
	for _, kind := range chain {
		if !chain.Ready(sel, kind) {
			break
		}
		sl, err := levelSlider(ctx, p.reg, kind, chain.ParentValue(sel, kind), sel[kind])
		if err != nil {
			return nil, err
		}
		cards := sl.Visible()
		sv := sliderView{Label: kind.Label()}
		for _, c := range cards {
			cv := cardView{
				Key:   string(kind),
				Value: slider.New(cards, sl.Selected(), nil).Click(c.ID),
				Name:  c.Name,
				Class: "card",
			}
			if c.ID == sl.Selected() {
				cv.Class = "card selected"
			}
			if img := imageURL(c.Image); img != "" {
				cv.HasImage, cv.Image = true, safehtml.URLSanitized(img)
			}
			sv.Cards = append(sv.Cards, cv)
		}
		views = append(views, sv)
	}
	return views, nil
}

func filterViews(filters []grid.FilterView) []filterView {
	views := make([]filterView, 0, len(filters))
	for _, f := range filters {
		fv := filterView{Key: f.Key, Label: f.Label, Disabled: f.Disabled}
		for _, o := range f.Options {
			label := o.Label
			if o.Count != nil {
				label = fmt.Sprintf("%s (%d)", label, *o.Count)
			}
			fv.Options = append(fv.Options, optionView{Value: o.Value, Label: label, Selected: o.Selected})
		}
		views = append(views, fv)
	}
	return views
}

func controlViews(controls []grid.Control) []controlView {
	views := make([]controlView, 0, len(controls))
	for _, c := range controls {
		views = append(views, controlView{
			Event:  string(c.Event),
			Value:  c.Value,
			Label:  c.Label,
			RowID:  c.RowID,
			Upload: c.Event == grid.EventImport,
		})
	}
	return views
}

// newRowView renders the first data cell of clickable rows as the row's open button.
func newRowView(r grid.RowView) rowView {
	rv := rowView{}
	if r.Selected {
		rv.Class = "selected"
	}
	opened := false
	for _, c := range r.Cells {
		cv := cellView{Text: c.Text, RowID: r.ID}
		switch {
		case c.Kind == grid.KindActions:
			cv.Controls = controlViews(c.Controls)
		case r.Clickable && !opened:
			cv.Open, opened = true, true
		case c.Kind == grid.KindPill && !c.Empty:
			cv.Class = "pill pill-" + string(c.Pill)
		}
		rv.Cells = append(rv.Cells, cv)
	}
	return rv
}

// clientMessage returns the message of errors the user can fix from the page.
func clientMessage(err error) (string, bool) {
	code, msg, ok := requestError(err)
	if !ok || code == http.StatusForbidden {
		return "", false
	}
	return msg, true
}

// next returns where the browser goes after out.
func next(name string, out screen.Outcome) string {
	values := out.State.Values()
	switch {
	case out.Navigate != nil:
		return withQuery(screenPath(out.Navigate.Screen), out.Navigate.State.Values())
	case out.Form != nil:
		values.Set(modeParam, string(out.Form.Mode))
		if out.Form.ID != "" {
			values.Set(idParam, out.Form.ID)
		}
		return withQuery(screenPath(name)+"/form", values)
	case out.Export != "":
		values.Set(formatParam, out.Export)
		return withQuery(screenPath(name)+"/export", values)
	}
	if out.Alert != "" {
		values.Set(alertParam, out.Alert)
	}
	if out.Notice != "" {
		values.Set(noticeParam, out.Notice)
	}
	return withQuery(screenPath(name), values)
}

// back redirects to the screen of st with an alert.
func back(ctx echo.Context, name string, st screen.State, alert string) error {
	return ctx.Redirect(http.StatusSeeOther, next(name, screen.Outcome{State: st, Alert: alert}))
}

func (p pages) event(ctx echo.Context) error {
	scr, usr, err := getContextScreen(ctx)
	if err != nil {
		return err
	}
	st := bindState(ctx)
	out, err := scr.Handle(ctx.Request().Context(), usr, st, bindEvent(ctx))
	if err != nil {
		if msg, ok := clientMessage(err); ok {
			return back(ctx, scr.Definition().Name, st, msg)
		}
		return err
	}
	return ctx.Redirect(http.StatusSeeOther, next(scr.Definition().Name, out))
}

func (p pages) upload(ctx echo.Context) error {
	scr, usr, err := getContextScreen(ctx)
	if err != nil {
		return err
	}
	st := bindState(ctx)
	out, err := importFile(ctx, scr, usr, st)
	if err != nil {
		if err == errMissingFile {
			return back(ctx, scr.Definition().Name, st, "Choose a file to import.")
		}
		if msg, ok := clientMessage(err); ok {
			return back(ctx, scr.Definition().Name, st, msg)
		}
		return err
	}
	return ctx.Redirect(http.StatusSeeOther, next(scr.Definition().Name, out))
}

func (p pages) export(ctx echo.Context) error {
	scr, usr, err := getContextScreen(ctx)
	if err != nil {
		return err
	}
	return writeExport(ctx, scr, usr, bindState(ctx), ctx.QueryParam(formatParam))
}

func (p pages) form(ctx echo.Context) error {
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
	return p.renderForm(ctx, http.StatusOK, scr, frm, nil, nil, "")
}

func (p pages) submit(ctx echo.Context) error {
	scr, usr, err := getContextScreen(ctx)
	if err != nil {
		return err
	}
	mode, id, err := bindMode(ctx)
	if err != nil {
		return err
	}
	if _, err = ctx.FormParams(); err != nil {
		return errors.Wrap(err, "parsing form")
	}
	input := bindFields(ctx.Request().PostForm)
	st := bindState(ctx)

	out, err := scr.Submit(ctx.Request().Context(), usr, st, mode, id, input)
	if err != nil {
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		if !ok {
			return err
		}
		frm, fErr := scr.Form(ctx.Request().Context(), usr, st, mode, id)
		if fErr != nil {
			return fErr
		}
		return p.renderForm(ctx, http.StatusBadRequest, scr, frm, input, vErr.Fields, "")
	}
	if out.Alert != "" {
		frm, fErr := scr.Form(ctx.Request().Context(), usr, st, mode, id)
		if fErr != nil {
			return fErr
		}
		return p.renderForm(ctx, http.StatusConflict, scr, frm, input, nil, out.Alert)
	}
	return ctx.Redirect(http.StatusSeeOther, next(scr.Definition().Name, out))
}

// renderForm renders frm, showing input instead of the form values when given.
func (p pages) renderForm(ctx echo.Context, code int, scr *screen.Screen, frm form.Form, input map[string]any, fieldErrs []core.FieldError, alert string) error {
	pg, err := p.page(ctx, frm.Title)
	if err != nil {
		return err
	}
	if alert != "" {
		pg.Alert = alert
	}
	st := bindState(ctx)
	path := screenPath(scr.Definition().Name)

	submit := st.Values()
	submit.Set(modeParam, string(frm.Mode))
	if frm.ID != "" {
		submit.Set(idParam, frm.ID)
	}
	data := formData{
		page:      pg,
		FormTitle: frm.Title,
		SubmitURL: safehtml.URLSanitized(withQuery(path+"/form", submit)),
		BackURL:   safehtml.URLSanitized(withQuery(path, st.Values())),
	}

	errs := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs[fe.Field] = fe.Error
	}
	values := map[string]any(frm.Values)
	if input != nil {
		values = input
	}
	for _, f := range frm.Fields {
		if f.Kind == form.KindGroup {
			continue
		}
		data.Fields = append(data.Fields, newFieldView(f, values[f.Name], errs[f.Name]))
	}
	return ctx.Render(code, formPage, data)
}

func newFieldView(f form.Field, value any, fieldErr string) fieldView {
	fv := fieldView{
		ID:          safehtml.IdentifierFromConstantPrefix(fieldPrefix, f.Name),
		Label:       f.Label,
		Placeholder: f.Placeholder,
		Error:       fieldErr,
	}
	switch f.Kind {
	case form.KindTextarea:
		fv.Textarea = true
	case form.KindSelect:
		fv.Select = true
	case form.KindMultiSelect:
		fv.Multi = true
	case form.KindNumber:
		fv.Number = true
	case form.KindDate:
		fv.Date = true
	}

	selected := valueTexts(value)
	if len(selected) > 0 {
		fv.Value = selected[0]
	}
	for _, o := range f.Options {
		fv.Options = append(fv.Options, optionView{Value: o.Value, Label: o.Label, Selected: containsText(selected, o.Value)})
	}
	return fv
}

// valueTexts returns the texts of a form value, as inputs show them.
func valueTexts(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case float64:
		return []string{grid.Format(v)}
	case *float64:
		if v == nil {
			return nil
		}
		return []string{grid.Format(*v)}
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return []string{v.Format(form.DateLayout)}
	}
	return []string{strings.TrimSpace(fmt.Sprint(value))}
}

func containsText(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
