package handlers

// handlers are the gin endpoints in front of the page router: the login
// round trip, history traversal, the search API and the catch-all that
// renders views through the visitor's navigator.

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tunefeed/controller"
	"tunefeed/models"
	"tunefeed/pages"
	"tunefeed/sentryhelper"
	"tunefeed/session"
)

var titles = map[string]string{
	"/":          "",
	"/dashboard": "Dashboard",
	"/editor":    "Profile URL",
	"/u/:id":     "Profile",
	"/p/:code":   "Playlist",
	"/search":    "Search",
	"/privacy":   "Privacy Policy",
}

type Manager struct {
	Controller *controller.Controller
	Cookie     session.CookieOptions
	Hints      *Hints
	logger     *log.Entry
}

func NewManager(ctrl *controller.Controller, cookie session.CookieOptions) *Manager {
	return &Manager{
		Controller: ctrl,
		Cookie:     cookie,
		Hints:      NewHints(),
		logger:     log.WithFields(log.Fields{"module": "handlers"}),
	}
}

// Register mounts every endpoint on engine. Paths without an explicit
// handler fall through to the page router.
func (m *Manager) Register(engine *gin.Engine) {
	engine.GET("/healthz", m.Health)

	pagesGroup := engine.Group("/")
	pagesGroup.Use(session.Middleware(m.Controller.Sessions, m.Cookie), TagSession())
	pagesGroup.GET("/login", m.Login)
	pagesGroup.GET("/callback", m.Callback)
	pagesGroup.POST("/logout", session.RequireLogin(), m.Logout)
	pagesGroup.GET("/nav/back", m.Back)
	pagesGroup.GET("/nav/forward", m.Forward)
	pagesGroup.GET("/api/search", m.SearchAPI)

	engine.NoRoute(session.Middleware(m.Controller.Sessions, m.Cookie), TagSession(), m.Page)
}

func (m *Manager) Health(c *gin.Context) {
	if err := m.Controller.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": m.Controller.Sessions.Len(),
	})
}

func mustSession(c *gin.Context) (*session.Session, bool) {
	s, err := session.FromContext(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return s, true
}

// Page renders any other path through the visitor's navigator. Reloading
// the current entry re-renders it instead of pushing a duplicate. Paths
// without a view and HEAD requests render without touching the history.
func (m *Manager) Page(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	s, ok := mustSession(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	target := c.Request.URL.RequestURI()
	route, _ := m.Controller.Views.Match(c.Request.URL.Path)

	var body string
	switch {
	case route == nil || c.Request.Method == http.MethodHead || !localPath(target):
		body = m.Controller.Views.Resolve(ctx, target)
	case target == s.Navigator.Current():
		body = s.Navigator.HandleRoute(ctx)
	default:
		body = s.Navigator.Navigate(ctx, target)
	}

	if route == nil {
		m.render(c, s, http.StatusNotFound, "Not Found", body)
		return
	}
	m.render(c, s, http.StatusOK, titles[route.Pattern], body)
}

// localPath reports whether p stays on this site when used as a Location.
func localPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

func (m *Manager) render(c *gin.Context, s *session.Session, status int, title, body string) {
	hint, _ := m.Hints.ShouldShowHint(s.Token)

	page := pages.Layout(pages.LayoutData{
		Title:        title,
		Body:         body,
		UserID:       s.UserID(),
		CanGoBack:    s.Navigator.CanGoBack(),
		CanGoForward: s.Navigator.CanGoForward(),
		Hint:         hint,
	})
	c.Data(status, "text/html; charset=utf-8", []byte(pages.Minify(page)))
}

func (m *Manager) Login(c *gin.Context) {
	s, ok := mustSession(c)
	if !ok {
		return
	}
	customURL := strings.TrimSpace(c.Query("custom_url"))
	authURL, err := m.Controller.BeginLogin(s, customURL)
	if errors.Is(err, controller.ErrInvalidCustomURL) {
		c.Redirect(http.StatusSeeOther, "/editor?url="+url.QueryEscape(customURL))
		return
	}
	if err != nil {
		m.renderError(c, s, http.StatusInternalServerError, err, "Couldn't start the login.")
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

func (m *Manager) Callback(c *gin.Context) {
	s, ok := mustSession(c)
	if !ok {
		return
	}
	if reason := c.Query("error"); reason != "" {
		m.logger.Infof("Spotify authorization declined: %s", reason)
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	code := c.Query("code")
	if code == "" {
		m.renderError(c, s, http.StatusBadRequest, nil, "The login link is missing its code.")
		return
	}

	fresh, err := m.Controller.Login(c.Request.Context(), s, code, c.Query("state"))
	if errors.Is(err, controller.ErrStateMismatch) {
		m.renderError(c, s, http.StatusBadRequest, nil, "This login link has expired. Please try again.")
		return
	}
	if err != nil {
		m.renderError(c, s, http.StatusBadGateway, err, "We couldn't finish logging you in.")
		return
	}

	m.Cookie.Set(c, fresh.Token)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (m *Manager) Logout(c *gin.Context) {
	s, ok := mustSession(c)
	if !ok {
		return
	}
	if err := m.Controller.Logout(c.Request.Context(), s); err != nil {
		m.logger.Errorf("Logout failed: %v", err)
	}
	m.Cookie.Clear(c)
	c.Redirect(http.StatusSeeOther, "/")
}

// Back moves the visitor's history one entry back and sends the browser
// to it. Page sees the current entry and renders it there, once.
func (m *Manager) Back(c *gin.Context) {
	m.step(c, -1)
}

func (m *Manager) Forward(c *gin.Context) {
	m.step(c, 1)
}

func (m *Manager) step(c *gin.Context, delta int) {
	s, ok := mustSession(c)
	if !ok {
		return
	}
	s.Navigator.Step(delta)
	location := s.Navigator.Current()
	if !localPath(location) {
		m.logger.Warnf("Refusing to redirect to %q", location)
		location = "/"
	}
	c.Redirect(http.StatusSeeOther, location)
}

type searchResponse struct {
	Results  []models.UserSummary `json:"results"`
	Redirect string               `json:"redirect,omitempty"`
}

// SearchAPI backs search-as-you-type.
func (m *Manager) SearchAPI(c *gin.Context) {
	query := c.Query("query")
	if id, ok := controller.ProfileFromQuery(query); ok {
		c.JSON(http.StatusOK, searchResponse{Results: []models.UserSummary{}, Redirect: "/u/" + id})
		return
	}

	results, err := m.Controller.Search(c.Request.Context(), query)
	if err != nil {
		m.logger.Errorf("Search failed: %v", err)
		sentryhelper.CaptureException(c.Request.Context(), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "search is unavailable"})
		return
	}
	c.JSON(http.StatusOK, searchResponse{Results: results})
}

func (m *Manager) renderError(c *gin.Context, s *session.Session, status int, err error, message string) {
	if err != nil {
		m.logger.Errorf("%s: %v", message, err)
		sentryhelper.CaptureException(c.Request.Context(), err)
	}
	m.render(c, s, status, "Error", pages.ErrorPlaceholder(message))
}
