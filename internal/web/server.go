package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	mayus "github.com/CarlosCaoLopez/Redes-Practica3"
)

// SessionSource is what the API reads session state from. *mayus.Server
// implements it.
type SessionSource interface {
	Sessions() []mayus.SessionRecord
	History() []mayus.SessionRecord
}

type Server struct {
	e    *echo.Echo
	addr string
	src  SessionSource
	l    *zap.SugaredLogger
}

func NewEchoServer() *echo.Echo {
	e := echo.New()
	e.HidePort = true
	e.HideBanner = true
	return e
}

// NewServer builds the metrics and session API server. snmp nil exports
// mayus.DefaultSnmp.
func NewServer(port int, src SessionSource, snmp *mayus.Snmp) (*Server, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(mayus.NewSnmpCollector(snmp)); err != nil {
		return nil, errors.WithStack(err)
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		e:    NewEchoServer(),
		addr: fmt.Sprintf("0.0.0.0:%d", port),
		src:  src,
		l:    zap.S().Named("web"),
	}
	s.e.Use(NginxLogMiddleware(s.l))
	s.e.GET("/healthz", s.healthz)
	s.e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := s.e.Group("/api/v1")
	api.GET("/sessions", s.sessions)
	api.GET("/history", s.history)
	return s, nil
}

// ServeHTTP lets tests drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.l.Infof("start web server at http://%s", s.addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.e.Start(s.addr)
	}()
	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.WithStack(err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.WithStack(s.e.Shutdown(shutdownCtx))
	}
}
