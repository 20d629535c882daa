package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/glefebvre/housou/internal/circuitbreaker"
	"github.com/glefebvre/housou/internal/database"
	apperrors "github.com/glefebvre/housou/internal/errors"
	"github.com/glefebvre/housou/internal/items"
	"github.com/glefebvre/housou/internal/metadata"
	"github.com/glefebvre/housou/internal/models"
	"github.com/glefebvre/housou/internal/schedule"
	"github.com/glefebvre/housou/internal/selection"
	"github.com/glefebvre/housou/internal/viewer"
)

const viewportWidthHeader = "Sec-CH-Viewport-Width"

func (s *Server) healthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		Database: "ok",
		Sessions: s.sessions.len(),
	}
	if b, ok := s.backend.(interface {
		Breaker() *circuitbreaker.CircuitBreaker
	}); ok {
		resp.Metadata = b.Breaker().State().String()
		resp.MetadataFailures = b.Breaker().Failures()
	}

	if err := database.Ping(s.db); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "unavailable"
		resp.Error = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	if s.draining() {
		resp.Status = "draining"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// session returns the client's session and a release func to call once the
// request is served. Clients without a cookie get a session that is not kept.
func (s *Server) session(c *gin.Context) (*session, func()) {
	clientID := c.GetString(clientIDKey)
	if c.GetBool(newClientKey) {
		sess := s.sessions.transient(clientID)
		return sess, sess.close
	}
	return s.sessions.get(clientID), func() {}
}

// viewOptions applies the request's width and tz parameters to the configured display options
func (s *Server) viewOptions(c *gin.Context) viewer.Options {
	opts := s.display
	opts.Now = s.now()

	if w, err := strconv.Atoi(c.Query("width")); err == nil && w > 0 {
		opts.Width = w
	} else if w, err := strconv.Atoi(c.GetHeader(viewportWidthHeader)); err == nil && w > 0 {
		opts.Width = w
	}

	if tz := c.Query("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{"tz": tz}).
				WarnContext(c.Request.Context(), "Ignoring unknown timezone")
		} else {
			opts.Location = loc
		}
	}
	return opts
}

// selections loads the client's stored selections resolved against cfg and
// applies any year, season or site given in the query
func (s *Server) selections(c *gin.Context, sess *session, cfg *models.Config) models.Selections {
	ctx := c.Request.Context()

	sel, err := sess.store.LoadResolved(ctx, cfg, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load selections", err)
		sel = selection.Resolve(selection.Defaults, cfg, s.now())
	}

	change := selection.Change{
		Year:   c.Query("year"),
		Season: c.Query("season"),
		Site:   c.Query("site"),
	}
	if change.IsEmpty() {
		return sel
	}

	next, err := sess.store.Update(ctx, sel, change, cfg)
	if err != nil {
		if apperrors.IsValidationError(err) {
			s.logger.WithFields(map[string]interface{}{
				"year":   change.Year,
				"season": change.Season,
			}).WarnContext(ctx, "Ignoring invalid selection change")
			return sel
		}
		s.logger.ErrorContext(ctx, "Failed to save selections", err)
	}
	return next
}

// loadItems requests the items of sel and waits for them up to the backend timeout.
// A state still loading after that is rendered as such.
func (s *Server) loadItems(ctx context.Context, sess *session, sel models.Selections) items.State {
	sess.tracker.Request(ctx, sel.Year, sel.Season)

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.APITimeout())
	defer cancel()

	state, err := sess.tracker.Wait(waitCtx)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{"code": string(apperrors.GetErrorCode(err))}).
			DebugContext(ctx, "Rendering before items arrived")
	}
	return state
}

// prefetchWindow resolves the metadata of the cards in the first rows of the active tab
func (s *Server) prefetchWindow(ctx context.Context, sess *session, in viewer.PageInput) {
	window := metadata.Window(viewer.LayoutFor(in).Columns, s.cfg.Display.PrefetchRows)
	if len(window) == 0 {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.APITimeout())
	defer cancel()

	if err := sess.prefetcher.Prefetch(pctx, window, s.cfg.Display.PrefetchConcurrency); err != nil {
		s.logger.WithFields(map[string]interface{}{"cards": len(window)}).
			DebugContext(ctx, "Metadata prefetch cut short")
	}
}

func tabParam(c *gin.Context, name string) int {
	if day, ok := schedule.ParseDay(c.Query(name)); ok {
		return day
	}
	return -1
}

func (s *Server) renderConfigError(c *gin.Context, err error, opts viewer.Options) {
	s.logger.ErrorContext(c.Request.Context(), "Config fetch failed", err)
	c.HTML(http.StatusBadGateway, viewer.ErrorTemplate, viewer.NewErrorPage(apperrors.UserMessage(err), nil, opts))
}

func (s *Server) schedulePage(c *gin.Context) {
	ctx := c.Request.Context()
	opts := s.viewOptions(c)
	c.Header("Accept-CH", viewportWidthHeader)

	cfg, err := s.configs.get(ctx)
	if err != nil {
		s.renderConfigError(c, err, opts)
		return
	}

	sess, release := s.session(c)
	defer release()
	sel := s.selections(c, sess, cfg)
	state := s.loadItems(ctx, sess, sel)

	in := viewer.PageInput{
		Config:     cfg,
		Selections: sel,
		Items:      state.Items,
		Loading:    state.Loading,
		Err:        state.Err,
		Query:      strings.TrimSpace(c.Query("q")),
		Tab:        tabParam(c, "tab"),
		PrevTab:    tabParam(c, "prev"),
		Options:    opts,
	}
	s.prefetchWindow(ctx, sess, in)
	in.Metadata = func(title string) *models.UnifiedMetadata {
		md, _ := sess.prefetcher.Get(title)
		return md
	}

	c.HTML(http.StatusOK, viewer.PageTemplate, viewer.BuildPage(in))
}

func (s *Server) detailsPage(c *gin.Context) {
	ctx := c.Request.Context()
	opts := s.viewOptions(c)

	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		err := apperrors.ValidationError("title is required")
		c.HTML(http.StatusBadRequest, viewer.ErrorTemplate, viewer.NewErrorPage(apperrors.UserMessage(err), nil, opts))
		return
	}

	cfg, err := s.configs.get(ctx)
	if err != nil {
		s.renderConfigError(c, err, opts)
		return
	}

	sess, release := s.session(c)
	defer release()
	sel := s.selections(c, sess, cfg)
	state := s.loadItems(ctx, sess, sel)

	page := viewer.DetailsPage{Back: "/", Footer: viewer.BuildFooter(cfg, opts.Now)}
	status := http.StatusOK

	item, found := models.FindItem(state.Items, title)
	var md *models.UnifiedMetadata
	if found {
		fctx, cancel := context.WithTimeout(ctx, s.cfg.APITimeout())
		md = sess.prefetcher.Fetch(fctx, item)
		cancel()
	} else {
		status = http.StatusNotFound
		page.Suggestion, _ = schedule.ClosestTitle(state.Items, title)
		s.logger.WithFields(map[string]interface{}{
			"code":       string(apperrors.CodeNotFound),
			"suggestion": page.Suggestion,
		}).DebugContext(ctx, apperrors.NotFoundError("broadcast", title).Message)
	}

	page.Details = viewer.BuildDetails(title, state.Items, cfg.SiteMeta, md, opts)
	c.HTML(status, viewer.DetailsTemplate, page)
}

func (s *Server) configErrorJSON(c *gin.Context, err error) {
	s.logger.ErrorContext(c.Request.Context(), "Config fetch failed", err)
	c.JSON(http.StatusBadGateway, ErrorResponse{
		Error:   string(apperrors.GetErrorCode(err)),
		Message: apperrors.UserMessage(err),
	})
}

func (s *Server) getSelections(c *gin.Context) {
	cfg, err := s.configs.get(c.Request.Context())
	if err != nil {
		s.configErrorJSON(c, err)
		return
	}

	sess, release := s.session(c)
	defer release()
	sel, err := sess.store.LoadResolved(c.Request.Context(), cfg, s.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   string(apperrors.GetErrorCode(err)),
			Message: "failed to load selections",
		})
		return
	}

	c.JSON(http.StatusOK, newSelectionsResponse(sel, cfg))
}

func (s *Server) putSelections(c *gin.Context) {
	var req UpdateSelectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	cfg, err := s.configs.get(ctx)
	if err != nil {
		s.configErrorJSON(c, err)
		return
	}

	sess, release := s.session(c)
	defer release()
	current, err := sess.store.LoadResolved(ctx, cfg, s.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   string(apperrors.GetErrorCode(err)),
			Message: "failed to load selections",
		})
		return
	}

	var change selection.Change
	if req.Year != nil {
		change.Year = *req.Year
	}
	if req.Season != nil {
		change.Season = *req.Season
	}
	if req.Site != nil {
		change.Site = *req.Site
	}

	next, err := sess.store.Update(ctx, current, change, cfg)
	if err != nil {
		status := http.StatusInternalServerError
		message := "failed to save selections"
		if apperrors.IsValidationError(err) {
			status = http.StatusBadRequest
			message = apperrors.UserMessage(err)
		}
		c.JSON(status, ErrorResponse{
			Error:   string(apperrors.GetErrorCode(err)),
			Message: message,
		})
		return
	}

	c.JSON(http.StatusOK, newSelectionsResponse(next, cfg))
}
