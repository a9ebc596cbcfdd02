// Package pages renders every screen of the site to markup strings. Render
// functions are pure: they take the data for one screen and never fetch or
// mutate anything.
package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	log "github.com/sirupsen/logrus"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	minhtml "github.com/tdewolff/minify/v2/html"

	"tunefeed/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates *template.Template

// Parsed in init because placeholder renders through templates itself.
func init() {
	templates = template.Must(template.New("pages").
		Funcs(sprig.HtmlFuncMap()).
		Funcs(template.FuncMap{
			"sectionError": sectionError,
			"isStale":      isStale,
			"placeholder":  placeholder,
			"playedAt":     formatPlayedAt,
			"duration":     formatDuration,
		}).
		ParseFS(templateFS, "templates/*.html"))
}

var minifier = func() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &minhtml.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return m
}()

// Minify compacts a full page before it is sent. Markup that fails to
// minify is returned unchanged.
func Minify(markup string) string {
	out, err := minifier.String("text/html", markup)
	if err != nil {
		log.WithFields(log.Fields{"module": "pages"}).Warnf("Failed to minify page: %v", err)
		return markup
	}
	return out
}

// Section keys shared by Activity.Errors and Activity.Stale.
const (
	SectionNowPlaying   = "now-playing"
	SectionRecentTracks = "recent-tracks"
	SectionTopTracks    = "top-tracks"
	SectionTopArtists   = "top-artists"
	SectionPlaylists    = "playlists"
)

type LayoutData struct {
	Title        string
	Body         string
	UserID       string
	CanGoBack    bool
	CanGoForward bool
	Hint         string
}

type HomeData struct {
	LoggedIn bool
	Slug     string
}

type ActivityData struct {
	Activity models.Activity
	Own      bool
}

type EditorData struct {
	Candidate    string
	Availability *models.URLAvailability
	Err          string
	LoggedIn     bool
}

type SearchData struct {
	Query   string
	Results []models.UserSummary
	Err     string
}

func render(name string, data any) string {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.WithFields(log.Fields{"module": "pages", "template": name}).Errorf("Failed to render: %v", err)
		return ErrorPlaceholder("Something went wrong rendering this page.")
	}
	return buf.String()
}

// Layout wraps a rendered body in the full document, including the root
// container the navigator swaps views into.
func Layout(data LayoutData) string {
	return render("layout", struct {
		LayoutData
		Body template.HTML
	}{
		LayoutData: data,
		Body:       template.HTML(data.Body),
	})
}

func Home(data HomeData) string {
	return render("home", data)
}

func Dashboard(activity models.Activity) string {
	return render("dashboard", ActivityData{Activity: activity, Own: true})
}

func Profile(data ActivityData) string {
	return render("profile", data)
}

func Editor(data EditorData) string {
	return render("editor", data)
}

func SharedPlaylist(detail models.PlaylistDetail) string {
	return render("playlist", detail)
}

func Search(data SearchData) string {
	return render("search", data)
}

func Privacy() string {
	return render("privacy", nil)
}

func NotFound(path string) string {
	return render("notfound", path)
}

// ErrorPlaceholder is shown in place of content that failed to load.
func ErrorPlaceholder(message string) string {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "placeholder", message); err != nil {
		return `<div class="error-placeholder" role="alert">Something went wrong.</div>`
	}
	return buf.String()
}

func placeholder(message any) template.HTML {
	switch m := message.(type) {
	case error:
		return template.HTML(ErrorPlaceholder(friendlyError(m)))
	case string:
		return template.HTML(ErrorPlaceholder(m))
	default:
		return template.HTML(ErrorPlaceholder(fmt.Sprint(m)))
	}
}

func friendlyError(err error) string {
	if err == nil {
		return ""
	}
	return "Couldn't load this right now. Try again in a moment."
}

func sectionError(errs map[string]error, section string) error {
	if errs == nil {
		return nil
	}
	return errs[section]
}

func isStale(stale map[string]bool, section string) bool {
	return stale[section]
}

func formatPlayedAt(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Local().Format("Jan 2, 15:04")
}

// formatDuration turns milliseconds into m:ss.
func formatDuration(ms int) string {
	if ms <= 0 {
		return "0:00"
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
