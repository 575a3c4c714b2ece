package routes

import (
	"html/template"
	"io/fs"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"nepse_dashboard/controllers"
	"nepse_dashboard/middleware"
	"nepse_dashboard/models"
	"nepse_dashboard/templates"
)

// SetupRoutes sets up the dashboard routes
func SetupRoutes(router *gin.Engine, dc *controllers.DashboardController, refreshLimiter *middleware.RateLimiter) {
	router.GET("/", dc.Dashboard)
	router.GET("/latest", dc.Latest)
	router.GET("/status", dc.Status)
	router.GET("/ws", dc.Stream)
	router.POST("/refresh", middleware.RateLimit(refreshLimiter), dc.Refresh)

	// Liveness probe - always returns OK if server is running
	router.GET("/health", dc.Health)
}

// templateFuncs returns custom template functions
func templateFuncs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.In(loc).Format("Mon 02 Jan 15:04 MST")
		},
		"statusClass": func(s models.Status) string {
			return strings.ToLower(string(s))
		},
		"join": strings.Join,
	}
}

// LoadTemplates loads HTML templates from the embedded filesystem. Pages
// that define "content" are parsed together with layout.html. Times are
// rendered in loc.
func LoadTemplates(router *gin.Engine, loc *time.Location) error {
	tmpl, err := parseTemplates(templates.TemplateFS, loc)
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)
	return nil
}

func parseTemplates(tmplFS fs.FS, loc *time.Location) (*template.Template, error) {
	// Read layout template first
	layoutContent, err := fs.ReadFile(tmplFS, "layout.html")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read layout.html")
	}

	// Create master template with custom functions
	masterTmpl := template.New("").Funcs(templateFuncs(loc))

	paths, err := fs.Glob(tmplFS, "*.html")
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if path == "layout.html" {
			continue
		}
		content, err := fs.ReadFile(tmplFS, path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read template %s", path)
		}

		// The layout calls {{ template "content" . }}, so a page defining
		// "content" has to live in the same template tree as the layout.
		src := string(content)
		if strings.Contains(src, `{{ define "content" }}`) {
			src = string(layoutContent) + "\n" + src
		}
		if _, err := masterTmpl.New(path).Parse(src); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", path)
		}
	}
	return masterTmpl, nil
}
