package echoapi_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/hierarchy"
	testutil "github.com/trezcool/shule/tests"
)

const csrfToken = "csrf-token-for-tests"

// newPageRequest builds a browser request carrying the session and CSRF cookies.
// form, when not nil, is posted with the CSRF token added.
func newPageRequest(method, path, token string, form url.Values) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if form != nil {
		form.Set("_csrf", csrfToken)
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
	}
	req.AddCookie(&http.Cookie{Name: "_csrf", Value: csrfToken})
	return req, httptest.NewRecorder()
}

func TestPages_session(t *testing.T) {
	app, env := setup(t)
	token := getToken(t, env, testutil.Admin)

	req, rec := newRequest(http.MethodGet, "/session?token="+url.QueryEscape(token))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/", rec.Header().Get("Location"))

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	req, rec = newRequest(http.MethodGet, "/session?token=nope")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPages_index(t *testing.T) {
	app, env := setup(t)

	t.Run("no session", func(t *testing.T) {
		req, rec := newPageRequest(http.MethodGet, "/", "", nil)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("student", func(t *testing.T) {
		req, rec := newPageRequest(http.MethodGet, "/", getToken(t, env, testutil.Student), nil)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := rec.Body.String()
		assert.Contains(t, body, "Sam Student")
		assert.Contains(t, body, `href="/screens/institutions"`)
		assert.NotContains(t, body, `href="/screens/marks"`)
	})
}

func TestPages_screen(t *testing.T) {
	app, env := setup(t)
	token := getToken(t, env, testutil.Admin)
	nodes := testutil.SeedChain(t, env.Academy, hierarchy.Chain{hierarchy.Institution, hierarchy.Course}, "One")
	testutil.CreateNode(t, env.Academy, hierarchy.Level, nodes[hierarchy.Course].ID, "Level One")

	path := "/screens/levels?f.institution=" + nodes[hierarchy.Institution].ID + "&f.course=" + nodes[hierarchy.Course].ID
	req, rec := newPageRequest(http.MethodGet, path, token, nil)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.String()
	assert.Contains(t, body, "Level One")
	assert.Contains(t, body, "Institution One")
	assert.Contains(t, body, "Course One")
	assert.Contains(t, body, `class="card selected"`)
}

func TestPages_event(t *testing.T) {
	app, env := setup(t)
	token := getToken(t, env, testutil.Admin)
	inst := testutil.CreateNode(t, env.Academy, hierarchy.Institution, "", "Greenfield")

	t.Run("row click", func(t *testing.T) {
		form := url.Values{"event": {"row_click"}, "row_id": {inst.ID}}
		req, rec := newPageRequest(http.MethodPost, "/screens/institutions/events", token, form)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
		assert.Equal(t, "/screens/courses?f.institution="+url.QueryEscape(inst.ID), rec.Header().Get("Location"))
	})

	t.Run("client error goes back with an alert", func(t *testing.T) {
		form := url.Values{"event": {"row_click"}, "row_id": {"nope"}}
		req, rec := newPageRequest(http.MethodPost, "/screens/institutions/events", token, form)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
		assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/screens/institutions?alert="))
	})

	t.Run("csrf mismatch", func(t *testing.T) {
		req, rec := newPageRequest(http.MethodPost, "/screens/institutions/events", token, url.Values{"event": {"search"}})
		req.Header.Del("Cookie")
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
		req.AddCookie(&http.Cookie{Name: "_csrf", Value: "another-token"})
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestPages_form(t *testing.T) {
	app, env := setup(t)
	token := getToken(t, env, testutil.Admin)
	inst := testutil.CreateNode(t, env.Academy, hierarchy.Institution, "", "Greenfield")
	path := "/screens/courses/form?f.institution=" + url.QueryEscape(inst.ID) + "&mode=create"

	t.Run("render", func(t *testing.T) {
		req, rec := newPageRequest(http.MethodGet, path, token, nil)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "New Course")
		assert.Contains(t, rec.Body.String(), `name="field-name"`)
	})

	t.Run("invalid input", func(t *testing.T) {
		req, rec := newPageRequest(http.MethodPost, path, token, url.Values{"field-code": {"a-b"}})
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `class="error"`)
		assert.Contains(t, rec.Body.String(), `value="a-b"`)
	})

	t.Run("create", func(t *testing.T) {
		req, rec := newPageRequest(http.MethodPost, path, token, url.Values{"field-name": {"Science"}})
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

		loc := rec.Header().Get("Location")
		assert.True(t, strings.HasPrefix(loc, "/screens/courses?"))
		assert.Contains(t, loc, "notice=Course+created.")
	})
}
