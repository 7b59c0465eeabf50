package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mayus "github.com/CarlosCaoLopez/Redes-Practica3"
)

type fakeSource struct {
	active, ended []mayus.SessionRecord
}

func (f *fakeSource) Sessions() []mayus.SessionRecord { return f.active }
func (f *fakeSource) History() []mayus.SessionRecord  { return f.ended }

func newTestServer(t *testing.T) (*Server, *fakeSource) {
	src := &fakeSource{
		active: []mayus.SessionRecord{{Peer: "127.0.0.1:8000", Phase: "streaming", InputName: "a.txt", Lines: 3}},
		ended: []mayus.SessionRecord{
			{Peer: "127.0.0.1:8001", EndReason: mayus.EndTerminated, Ended: time.Now()},
			{Peer: "127.0.0.1:8002", EndReason: mayus.EndExpired, Ended: time.Now()},
		},
	}
	snmp := &mayus.Snmp{}
	snmp.LinesFolded.Add(5)
	s, err := NewServer(0, src, snmp)
	require.NoError(t, err)
	return s, src
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSessionsAPI(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/v1/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp sessionsResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "a.txt", resp.Sessions[0].InputName)

	rec = get(t, s, "/api/v1/history")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, mayus.EndExpired, resp.Sessions[1].EndReason)
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "mayus_snmp_LinesFolded 5"), body)
	assert.Contains(t, body, "go_goroutines")
}

func TestNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/nope").Code)
}
