// Package server exposes the latest site ranking of a running monitor over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/requestid"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"

	"github.com/leptonai/edgeprobe/pkg/log"
	pkgmetrics "github.com/leptonai/edgeprobe/pkg/metrics"
	"github.com/leptonai/edgeprobe/pkg/nettest"
)

const (
	URLPathHealthz = "/healthz"
	URLPathV1      = "/v1"
	URLPathSites   = "/sites"
	URLPathMetrics = "/metrics"
)

// SitesSource provides the current ranking, e.g. a *nettest.Tester.
type SitesSource interface {
	Ranked() []*nettest.Site
}

type Server struct {
	srv *http.Server
	ln  net.Listener

	errc chan error
}

// New binds addr and serves the status routes in the background.
func New(addr string, src SitesSource) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &Server{
		srv: &http.Server{
			Handler:           newRouter(src),
			ReadHeaderTimeout: 10 * time.Second,
		},
		ln:   ln,
		errc: make(chan error, 1),
	}

	go func() {
		log.Logger.Infow("serving status", "address", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Logger.Errorw("status server stopped", "error", err)
			s.errc <- err
		}
		close(s.errc)
	}()
	return s, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Stop shuts the server down, waiting for in-flight requests.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		log.Logger.Warnw("failed to shut down status server", "error", err)
	}
	<-s.errc
}

func newRouter(src SitesSource) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	zl := log.Logger.Desugar()
	router.Use(
		requestid.New(),
		ginzap.Ginzap(zl, time.RFC3339, true),
		ginzap.RecoveryWithZap(zl, true),
	)

	router.GET(URLPathHealthz, createHealthzHandler())

	promHandler := pkgmetrics.Handler()
	router.GET(URLPathMetrics, func(c *gin.Context) {
		promHandler.ServeHTTP(c.Writer, c.Request)
	})

	v1 := router.Group(URLPathV1)
	// compresses responses when the request sets "Accept-Encoding: gzip"
	v1.Use(gzip.Gzip(gzip.DefaultCompression))
	v1.GET(URLPathSites, createSitesHandler(src))

	return router
}
