package echoapi

import (
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core/form"
	"github.com/trezcool/shule/core/grid"
	"github.com/trezcool/shule/core/screen"
)

const (
	modeParam   = "mode"
	idParam     = "id"
	formatParam = "format"
	alertParam  = "alert"
	noticeParam = "notice"

	// form field inputs are named fieldPrefix + "-" + field name
	fieldPrefix = "field"
	csrfField   = "_csrf"
)

// eventRequest is the body of an event posted to the API.
type eventRequest struct {
	State screen.State `json:"state"`
	Event grid.Event   `json:"event"`
}

func (req *eventRequest) Bind(ctx echo.Context) error {
	if err := ctx.Bind(req); err != nil {
		return err
	}
	if req.State.Filters == nil {
		req.State.Filters = make(map[string]string)
	}
	return nil
}

// bindState reads the screen state from the query string.
func bindState(ctx echo.Context) screen.State {
	return screen.ParseState(ctx.QueryParams())
}

// bindEvent reads an event posted by a page form.
func bindEvent(ctx echo.Context) grid.Event {
	return grid.Event{
		Kind:  grid.EventKind(ctx.FormValue("event")),
		RowID: ctx.FormValue("row_id"),
		Key:   ctx.FormValue("key"),
		Value: ctx.FormValue("value"),
	}
}

func bindMode(ctx echo.Context) (form.Mode, string, error) {
	mode := form.Mode(ctx.QueryParam(modeParam))
	switch mode {
	case form.ModeCreate:
		return mode, "", nil
	case form.ModeEdit:
		id := ctx.QueryParam(idParam)
		if id == "" {
			return "", "", errBadFormMode
		}
		return mode, id, nil
	}
	return "", "", errBadFormMode
}

// bindFields reads the inputs of a submitted page form, named after fieldInputName.
func bindFields(values url.Values) map[string]any {
	fields := make(url.Values, len(values))
	for key, vals := range values {
		if name := strings.TrimPrefix(key, fieldPrefix+"-"); name != key {
			fields[name] = vals
		}
	}
	return form.FromURLValues(fields)
}
