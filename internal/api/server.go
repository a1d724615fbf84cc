package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/glbopt/internal/logger"
	"github.com/samcharles93/glbopt/internal/optimize"
	"github.com/samcharles93/glbopt/internal/version"
)

const (
	HeaderRequestID   = "X-Glbopt-Request-Id"
	HeaderImages      = "X-Glbopt-Images"
	HeaderInputBytes  = "X-Glbopt-Input-Bytes"
	HeaderOutputBytes = "X-Glbopt-Output-Bytes"

	MIMEModelGLB = "model/gltf-binary"

	DefaultMaxBodyBytes = 256 << 20
)

type Config struct {
	// Defaults apply to every request; query parameters override them.
	Defaults     optimize.Options
	MaxBodyBytes int64
	MaxReports   int
	Logger       logger.Logger
}

type Server struct {
	defaults optimize.Options
	maxBody  int64
	store    *ReportStore
	log      logger.Logger
	clock    func() time.Time
	newID    func() string
}

func NewServer(cfg Config) *Server {
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	cfg.Defaults.Standalone = false
	return &Server{
		defaults: cfg.Defaults,
		maxBody:  cfg.MaxBodyBytes,
		store:    NewReportStore(cfg.MaxReports),
		log:      cfg.Logger.With("component", "api"),
		clock:    time.Now,
		newID:    uuid.NewString,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.POST("/v1/optimize", s.handleOptimize)
	e.POST("/v1/inspect", s.handleInspect)
	e.GET("/v1/reports/:id", s.handleGetReport)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: version.Resolve()})
}

func (s *Server) handleOptimize(c *echo.Context) error {
	id := s.newID()
	c.Response().Header().Set(HeaderRequestID, id)

	opts, err := optionsFromQuery(c, s.defaults)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	body, err := readBody(c, s.maxBody)
	if err != nil {
		return writePipelineError(c, err)
	}

	ctx := logger.WithContext(c.Request().Context(), s.log.With("request_id", id))
	out, rep, err := optimize.Bytes(ctx, body, opts)
	if err != nil {
		s.log.Warn("optimize rejected", "request_id", id, "err", err)
		return writePipelineError(c, err)
	}
	s.store.Put(id, rep, s.clock())
	s.log.Info("optimized",
		"request_id", id,
		"images", len(rep.Images),
		"bytes_in", rep.InputBytes,
		"bytes_out", rep.OutputBytes,
	)

	h := c.Response().Header()
	h.Set(HeaderImages, strconv.Itoa(countTransformed(rep)))
	h.Set(HeaderInputBytes, strconv.FormatInt(rep.InputBytes, 10))
	h.Set(HeaderOutputBytes, strconv.FormatInt(rep.OutputBytes, 10))
	return c.Blob(http.StatusOK, MIMEModelGLB, out)
}

func (s *Server) handleInspect(c *echo.Context) error {
	body, err := readBody(c, s.maxBody)
	if err != nil {
		return writePipelineError(c, err)
	}
	ins, err := optimize.Inspect(body)
	if err != nil {
		return writePipelineError(c, err)
	}
	return c.JSON(http.StatusOK, InspectResponse{Object: "glb.inspection", Inspection: ins})
}

func (s *Server) handleGetReport(c *echo.Context) error {
	id := c.Param("id")
	resp, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "report not found")
	}
	return c.JSON(http.StatusOK, resp)
}
