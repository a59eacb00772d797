package echoapi

import (
	"io"

	"github.com/google/safehtml/template"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	appfs "github.com/trezcool/shule/fs"
)

const (
	indexPage  = "index.html"
	screenPage = "screen.html"
	formPage   = "form.html"

	layoutTemplate = appfs.WebTemplatesDir + "/layout.html"
)

// renderer renders the pages from the embedded web templates. Every page is parsed
// along with the layout.
type renderer struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = (*renderer)(nil)

func newRenderer() (*renderer, error) {
	trustedFS := template.TrustedFSFromEmbed(appfs.FS)

	index, err := template.New(indexPage).ParseFS(trustedFS, layoutTemplate, appfs.WebTemplatesDir+"/"+indexPage)
	if err != nil {
		return nil, errors.Wrap(err, "parsing index page")
	}
	scr, err := template.New(screenPage).ParseFS(trustedFS, layoutTemplate, appfs.WebTemplatesDir+"/"+screenPage)
	if err != nil {
		return nil, errors.Wrap(err, "parsing screen page")
	}
	frm, err := template.New(formPage).ParseFS(trustedFS, layoutTemplate, appfs.WebTemplatesDir+"/"+formPage)
	if err != nil {
		return nil, errors.Wrap(err, "parsing form page")
	}

	return &renderer{pages: map[string]*template.Template{
		indexPage:  index,
		screenPage: scr,
		formPage:   frm,
	}}, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("unknown page %q", name)
	}
	return tmpl.Execute(w, data)
}
