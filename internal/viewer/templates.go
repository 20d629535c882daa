package viewer

import (
	"embed"
	"html/template"

	"github.com/glefebvre/housou/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = template.FuncMap{
	"episodes":    EpisodeLabel,
	"detailsPath": DetailsPath,
}

// Template names rendered by the HTTP server
const (
	PageTemplate    = "page.tmpl"
	DetailsTemplate = "details.tmpl"
	ErrorTemplate   = "error.tmpl"
)

// DetailsPage wraps Details with the page chrome. Suggestion names the closest
// known title when Details was not found.
type DetailsPage struct {
	Details    Details
	Back       string
	Suggestion string
	Footer     Footer
}

// ErrorPage is the full-page error shown when the configuration cannot be loaded
type ErrorPage struct {
	Message string
	Footer  Footer
}

// NewErrorPage builds the error page for err
func NewErrorPage(message string, cfg *models.Config, opts Options) ErrorPage {
	return ErrorPage{Message: message, Footer: BuildFooter(cfg, opts.now())}
}

// Templates parses the embedded HTML templates
func Templates() (*template.Template, error) {
	return template.New("housou").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
}
