package web

import (
	"net/http"

	"github.com/labstack/echo/v4"

	mayus "github.com/CarlosCaoLopez/Redes-Practica3"
)

type sessionsResp struct {
	Count    int                   `json:"count"`
	Sessions []mayus.SessionRecord `json:"sessions"`
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": mayus.Version})
}

func (s *Server) sessions(c echo.Context) error {
	recs := s.src.Sessions()
	return c.JSON(http.StatusOK, sessionsResp{Count: len(recs), Sessions: recs})
}

func (s *Server) history(c echo.Context) error {
	recs := s.src.History()
	return c.JSON(http.StatusOK, sessionsResp{Count: len(recs), Sessions: recs})
}
