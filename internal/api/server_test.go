package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_UnavailableWithoutDBClient(t *testing.T) {
	s := &Server{}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.healthHandler(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFederationHealthHandler_UnavailableWhenNotConfigured(t *testing.T) {
	s := &Server{}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/federation/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.federationHealthHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}

func newTestContext(method, target string) *echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestRegisterAgentHandler_UnavailableWithoutStore(t *testing.T) {
	s := &Server{}
	c := newTestContext(http.MethodPost, "/api/v1/agents")

	err := s.registerAgentHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}

func TestSendMessageHandler_UnavailableWithoutRouter(t *testing.T) {
	s := &Server{}
	c := newTestContext(http.MethodPost, "/api/v1/a2a/messages")

	err := s.sendMessageHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}

func TestDeliverContractHandler_UnavailableWithoutContractEngine(t *testing.T) {
	s := &Server{}
	c := newTestContext(http.MethodPost, "/api/v1/contracts/c1/deliver")
	c.SetParamNames("id")
	c.SetParamValues("c1")

	err := s.deliverContractHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}

func TestCreatePlanHandler_UnavailableWithoutOrchestrator(t *testing.T) {
	s := &Server{}
	c := newTestContext(http.MethodPost, "/api/v1/orchestrator/plans")

	err := s.createPlanHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}

func TestFederationInboxHandler_UnavailableWithoutBridge(t *testing.T) {
	s := &Server{}
	c := newTestContext(http.MethodPost, "/federation/inbox")

	err := s.federationInboxHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}

func TestWsAgentHandler_UnavailableWithoutPresence(t *testing.T) {
	s := &Server{}
	c := newTestContext(http.MethodGet, "/ws/agent/a1")
	c.SetParamNames("id")
	c.SetParamValues("a1")

	err := s.wsAgentHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)
}
