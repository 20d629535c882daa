package api

import "github.com/glefebvre/housou/internal/models"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SelectionsResponse is the stored selection of a client together with the
// choices it was resolved against
type SelectionsResponse struct {
	Year    string   `json:"year"`
	Season  string   `json:"season"`
	Site    string   `json:"site"`
	Years   []int    `json:"years"`
	Seasons []string `json:"seasons"`
}

// UpdateSelectionsRequest represents a selection change. Omitted fields are kept.
type UpdateSelectionsRequest struct {
	Year   *string `json:"year,omitempty"`
	Season *string `json:"season,omitempty"`
	Site   *string `json:"site,omitempty"`
}

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Metadata string `json:"metadata,omitempty"`
	// MetadataFailures counts consecutive failed metadata lookups
	MetadataFailures uint   `json:"metadata_failures"`
	Sessions         int    `json:"sessions"`
	Error            string `json:"error,omitempty"`
}

func newSelectionsResponse(sel models.Selections, cfg *models.Config) SelectionsResponse {
	resp := SelectionsResponse{
		Year:   sel.Year,
		Season: sel.Season,
		Site:   sel.Site,
		Years:  []int{},
	}
	if cfg != nil {
		resp.Years = append(resp.Years, cfg.Years...)
	}
	for _, s := range models.Seasons {
		resp.Seasons = append(resp.Seasons, string(s))
	}
	return resp
}
