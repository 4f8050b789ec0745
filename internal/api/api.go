// Package api exposes the controller operations over HTTP with gin.
//
// Every registry entry of the controller Engine becomes one route.
// Collection routes answer with and without a trailing slash.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/signalsfoundry/rocketflight/internal/controller"
	"github.com/signalsfoundry/rocketflight/internal/logging"
	"github.com/signalsfoundry/rocketflight/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// GzipMinSize is the smallest response body worth compressing.
const GzipMinSize = 1000

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	Engine      *controller.Engine
	Logger      logging.Logger
	Collector   *observability.Collector
	Health      Pinger
	ServiceName string
}

// NewRouter builds the gin engine serving every operation of opts.Engine.
func NewRouter(opts Options) *gin.Engine {
	if opts.ServiceName == "" {
		opts.ServiceName = "rocketflight-api"
	}
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(
		otelgin.Middleware(opts.ServiceName),
		RequestLogger(opts.Logger),
		Recovery(),
		opts.Collector.GinMiddleware(),
	)

	router.GET("/health", health(opts.Health))
	for _, op := range opts.Engine.Operations() {
		h := handle(op)
		router.Handle(op.Method, op.Path, h)
		if !strings.Contains(op.Path, ":") {
			router.Handle(op.Method, op.Path+"/", h)
		}
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})
	return router
}

// Handler wraps router with gzip compression of large, non-binary bodies.
func Handler(router http.Handler) (http.Handler, error) {
	wrap, err := gzhttp.NewWrapper(
		gzhttp.MinSize(GzipMinSize),
		gzhttp.ExceptContentTypes([]string{"application/octet-stream"}),
	)
	if err != nil {
		return nil, fmt.Errorf("gzip wrapper: %w", err)
	}
	return wrap(router), nil
}

func handle(op controller.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := controller.Request{ID: c.Param("id"), Query: c.Request.URL.Query()}
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				writeError(c, &controller.HTTPError{Status: http.StatusBadRequest, Detail: "unreadable request body", Err: err})
				return
			}
			req.Body = body
		}

		resp, err := op.Handle(c.Request.Context(), req)
		if err != nil {
			writeError(c, controller.Translate(c.Request.Context(), err))
			return
		}
		write(c, resp)
	}
}

func write(c *gin.Context, resp controller.Response) {
	switch {
	case resp.Blob != nil:
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resp.Filename))
		c.Data(resp.Status, "application/octet-stream", resp.Blob)
	case resp.Status == http.StatusNoContent || resp.Body == nil:
		c.Status(resp.Status)
	default:
		c.JSON(resp.Status, resp.Body)
	}
}

func writeError(c *gin.Context, err *controller.HTTPError) {
	c.AbortWithStatusJSON(err.Status, gin.H{"detail": err.Detail})
}

func health(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			if err := p.Ping(c.Request.Context()); err != nil {
				ctx := c.Request.Context()
				logging.FromContext(ctx).Warn(ctx, "health check failed", logging.Err(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
