// Package httpapi exposes the family tree service over HTTP using gin.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"familytree/internal/core"
	"familytree/pkg/domain"

	"github.com/gin-gonic/gin"
)

// Handler serves the family tree routes for one service.
type Handler struct {
	svc     *core.Service
	logger  core.Logger
	metrics http.Handler
}

// Option customises a Handler.
type Option func(*Handler)

// WithLogger logs failed requests.
func WithLogger(l core.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler returns a handler over svc.
func NewHandler(svc *core.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, logger: nopLogger{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter builds a gin engine with recovery and every route registered.
func NewRouter(svc *core.Service, opts ...Option) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	NewHandler(svc, opts...).Register(r)
	return r
}

// Register mounts the routes on r:
//
//	GET    /people              list, ?sort=id|name
//	POST   /people              add
//	GET    /people/:id          details with relatives
//	PATCH  /people/:id          edit scalar fields
//	DELETE /people/:id          remove
//	POST   /people/:id/parents  link a parent {"parent_id": n}
//	DELETE /people/:id/parents/:other
//	POST   /people/:id/spouses  link a spouse {"spouse_id": n}
//	DELETE /people/:id/spouses/:other
//	GET    /search?q=
//	GET    /tree                text rendering, ?root=id for a subtree
//	GET    /check
//	POST   /save
//	GET    /backups, POST /backups, POST /backups/restore {"key": k}
//	GET    /metrics             when a metrics handler is configured
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/people", h.listPeople)
	r.POST("/people", h.addPerson)
	r.GET("/people/:id", h.showPerson)
	r.PATCH("/people/:id", h.editPerson)
	r.DELETE("/people/:id", h.removePerson)
	r.POST("/people/:id/parents", h.linkParent)
	r.DELETE("/people/:id/parents/:other", h.unlinkParent)
	r.POST("/people/:id/spouses", h.linkSpouse)
	r.DELETE("/people/:id/spouses/:other", h.unlinkSpouse)
	r.GET("/search", h.search)
	r.GET("/tree", h.tree)
	r.GET("/check", h.check)
	r.POST("/save", h.save)
	r.GET("/backups", h.listBackups)
	r.POST("/backups", h.backup)
	r.POST("/backups/restore", h.restore)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// statusFor maps domain errors onto HTTP statuses. Persistence failures are
// matched first: they wrap the decode or rule error that made a stored
// snapshot unusable, which is not the client's fault.
func statusFor(err error) (int, string) {
	switch {
	case domain.IsPersistence(err):
		return http.StatusInternalServerError, "PERSISTENCE"
	case domain.IsValidation(err):
		return http.StatusBadRequest, "INVALID_INPUT"
	case domain.IsNotFound(err):
		return http.StatusNotFound, "NOT_FOUND"
	case domain.IsRuleViolation(err):
		return http.StatusConflict, "RULE_VIOLATION"
	case errors.Is(err, core.ErrNoSnapshotStore), errors.Is(err, core.ErrNoBlobStore):
		return http.StatusServiceUnavailable, "NOT_CONFIGURED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}
	var verr domain.ValidationError
	if code == "INVALID_INPUT" && errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, resp)
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "INVALID_REQUEST"})
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
