package controller

import (
	"context"
	"errors"
	"sort"
	"strings"

	"tunefeed/backend"
	"tunefeed/models"
	"tunefeed/pages"
	"tunefeed/router"
	"tunefeed/sentryhelper"
	"tunefeed/session"
)

func (c *Controller) registerViews() {
	c.Views.AddRoute("/", c.homeView)
	c.Views.AddRoute("/dashboard", c.dashboardView)
	c.Views.AddRoute("/editor", c.editorView)
	c.Views.AddRoute("/u/:id", c.profileView)
	c.Views.AddRoute("/p/:code", c.playlistView)
	c.Views.AddRoute("/search", c.searchView)
	c.Views.AddRoute("/privacy", func(router.Request) string { return pages.Privacy() })
}

func currentUser(ctx context.Context) string {
	s, err := session.FromContext(ctx)
	if err != nil {
		return ""
	}
	return s.UserID()
}

func (c *Controller) notFoundView(req router.Request) string {
	return pages.NotFound(req.Path)
}

func (c *Controller) homeView(req router.Request) string {
	userID := currentUser(req.Context)
	return pages.Home(pages.HomeData{LoggedIn: userID != "", Slug: userID})
}

func (c *Controller) dashboardView(req router.Request) string {
	userID := currentUser(req.Context)
	if userID == "" {
		return pages.ErrorPlaceholder("Log in to see your dashboard.") + pages.Home(pages.HomeData{})
	}
	activity, err := c.LoadActivity(req.Context, userID)
	if err != nil {
		c.reportViewError(req, err)
		return pages.ErrorPlaceholder("Couldn't load your dashboard right now.")
	}
	c.noteStale(req, activity)
	return pages.Dashboard(activity)
}

// profileView shows an inline error when the lookup fails and the
// not-found page when the user does not exist. It never sends the visitor
// to the login flow.
func (c *Controller) profileView(req router.Request) string {
	return c.renderProfile(req, req.Params.Get("id"))
}

func (c *Controller) renderProfile(req router.Request, id string) string {
	activity, err := c.LoadActivity(req.Context, id)
	if errors.Is(err, backend.ErrNotFound) {
		return pages.NotFound(req.Path)
	}
	if err != nil {
		c.reportViewError(req, err)
		return pages.ErrorPlaceholder("Couldn't load this profile right now.")
	}

	c.noteStale(req, activity)
	viewer := currentUser(req.Context)
	own := viewer != "" && (strings.EqualFold(viewer, activity.User.Slug()) || strings.EqualFold(viewer, activity.User.ID))
	return pages.Profile(pages.ActivityData{Activity: activity, Own: own})
}

func (c *Controller) playlistView(req router.Request) string {
	detail, err := c.SharedPlaylist(req.Context, req.Params.Get("code"))
	if errors.Is(err, backend.ErrNotFound) {
		return pages.NotFound(req.Path)
	}
	if err != nil {
		c.reportViewError(req, err)
		return pages.ErrorPlaceholder("Couldn't load this playlist right now.")
	}
	return pages.SharedPlaylist(*detail)
}

func (c *Controller) editorView(req router.Request) string {
	data := pages.EditorData{
		Candidate: strings.TrimSpace(req.Query.Get("url")),
		LoggedIn:  currentUser(req.Context) != "",
	}
	if data.Candidate == "" {
		return pages.Editor(data)
	}
	availability, err := c.CheckURL(req.Context, data.Candidate)
	if err != nil {
		c.reportViewError(req, err)
		data.Err = "Couldn't check that URL right now."
		return pages.Editor(data)
	}
	data.Availability = availability
	return pages.Editor(data)
}

// searchView lists matching users. A pasted Spotify profile link goes
// straight to that profile.
func (c *Controller) searchView(req router.Request) string {
	query := strings.TrimSpace(req.Query.Get("query"))
	if id, ok := ProfileFromQuery(query); ok {
		return c.renderProfile(req, id)
	}

	data := pages.SearchData{Query: query}
	results, err := c.Search(req.Context, query)
	if err != nil {
		c.reportViewError(req, err)
		data.Err = "Search is unavailable right now."
		return pages.Search(data)
	}
	data.Results = results
	return pages.Search(data)
}

func (c *Controller) reportViewError(req router.Request, err error) {
	c.logger.WithField("path", req.Path).Errorf("View failed: %v", err)
	sentryhelper.CaptureException(req.Context, err)
}

// noteStale records sections that fell back to cached copies.
func (c *Controller) noteStale(req router.Request, activity models.Activity) {
	if len(activity.Stale) == 0 {
		return
	}
	sections := make([]string, 0, len(activity.Stale))
	for section := range activity.Stale {
		sections = append(sections, section)
	}
	sort.Strings(sections)
	c.logger.WithField("user", activity.User.ID).Warnf("Serving stale sections: %s", strings.Join(sections, ", "))
	sentryhelper.CaptureMessage(req.Context, "stale activity served for "+req.Path)
}
