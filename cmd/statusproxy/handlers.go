package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/nimbushost/statusproxy/statuspage"

	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "statusproxy"})
}

// proxyRead is the shared read path: cached payloads are returned verbatim, and
// upstream failures are mapped to the JSON error envelope. Detail (by-ID) reads pass
// the upstream status code through, so a provider 404 stays a 404.
func (srv *Server) proxyRead(c echo.Context, endpoint string, detail bool) error {
	payload, err := srv.status.Fetch(c.Request().Context(), endpoint, nil)
	if err != nil {
		return srv.readError(c, err, detail)
	}
	return c.JSONBlob(http.StatusOK, payload)
}

func (srv *Server) readError(c echo.Context, err error, detail bool) error {
	if errors.Is(err, statuspage.ErrAPIKeyMissing) {
		return c.JSON(http.StatusInternalServerError, GenericError{
			Error: "API key not configured",
		})
	}
	var ae *statuspage.APIError
	if errors.As(err, &ae) {
		status := http.StatusInternalServerError
		name := "UpstreamError"
		if detail && ae.StatusCode > 0 {
			status = ae.StatusCode
		}
		if ae.StatusCode == http.StatusNotFound {
			name = "NotFound"
		}
		return c.JSON(status, GenericError{
			Error:   name,
			Message: err.Error(),
		})
	}
	// transport failure or malformed upstream body
	return c.JSON(http.StatusInternalServerError, GenericError{
		Error:   "UpstreamUnavailable",
		Message: err.Error(),
	})
}

// resourceID sanity-checks a by-ID path parameter before it is spliced in to a
// provider endpoint path.
func resourceID(c echo.Context) (string, bool) {
	id := c.Param("id")
	if id == "" || strings.ContainsAny(id, "/?#") {
		return "", false
	}
	return id, true
}

func (srv *Server) ListComponents(c echo.Context) error {
	return srv.proxyRead(c, "components", false)
}

func (srv *Server) GetComponent(c echo.Context) error {
	id, ok := resourceID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, GenericError{Error: "BadRequest", Message: "invalid component id"})
	}
	return srv.proxyRead(c, "components/"+id, true)
}

func (srv *Server) ListIncidents(c echo.Context) error {
	return srv.proxyRead(c, "incidents", false)
}

func (srv *Server) GetIncident(c echo.Context) error {
	id, ok := resourceID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, GenericError{Error: "BadRequest", Message: "invalid incident id"})
	}
	return srv.proxyRead(c, "incidents/"+id, true)
}

func (srv *Server) ListMaintenances(c echo.Context) error {
	return srv.proxyRead(c, "maintenances", false)
}

func (srv *Server) GetMaintenance(c echo.Context) error {
	id, ok := resourceID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, GenericError{Error: "BadRequest", Message: "invalid maintenance id"})
	}
	return srv.proxyRead(c, "maintenances/"+id, true)
}

// WidgetIndicator backs the site-wide status pill. Any failure (config, upstream,
// transport) is swallowed in to the fallback payload; the dashboard never renders an
// error state.
func (srv *Server) WidgetIndicator(c echo.Context) error {
	payload, err := srv.status.Fetch(c.Request().Context(), "status", nil)
	if err != nil {
		widgetFallbacksServed.WithLabelValues("indicator").Inc()
		srv.logger.Warn("serving widget fallback", "widget", "indicator", "err", err)
		return c.JSONBlob(http.StatusOK, fallbackIndicator)
	}
	return c.JSONBlob(http.StatusOK, payload)
}

// WidgetIncidents backs the dashboard incident feed, with the same swallow-in-to-
// fallback behavior as WidgetIndicator.
func (srv *Server) WidgetIncidents(c echo.Context) error {
	payload, err := srv.status.Fetch(c.Request().Context(), "incidents", nil)
	if err != nil {
		widgetFallbacksServed.WithLabelValues("incidents").Inc()
		srv.logger.Warn("serving widget fallback", "widget", "incidents", "err", err)
		return c.JSONBlob(http.StatusOK, fallbackIncidents)
	}
	return c.JSONBlob(http.StatusOK, payload)
}

// GET /api/status/rss/*
func (srv *Server) Feed(c echo.Context) error {
	path := c.Param("*")
	if path == "" {
		return c.JSON(http.StatusBadRequest, GenericError{Error: "BadRequest", Message: "empty feed path"})
	}
	data, err := srv.status.FetchFeed(c.Request().Context(), path)
	if err != nil {
		return srv.readError(c, err, false)
	}
	return c.Blob(http.StatusOK, "application/rss+xml", data)
}

type subscribeRequest struct {
	Type              string   `json:"type"`
	Value             string   `json:"value"`
	NotifyAllServices bool     `json:"notifyAllServices"`
	Services          []string `json:"services,omitempty"`
}

type subscribeResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func validEndpointURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// POST /api/status/subscribe
//
// Invalid input is rejected before any provider call is made. Valid input is
// translated to the provider's subscriber payload and POSTed uncached, once per
// request.
func (srv *Server) Subscribe(c echo.Context) error {
	var body subscribeRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "BadRequest",
			Message: err.Error(),
		})
	}

	switch body.Type {
	case "email":
		if !emailPattern.MatchString(body.Value) {
			subscribeRequests.WithLabelValues(body.Type, "invalid").Inc()
			return c.JSON(http.StatusBadRequest, GenericError{Error: "invalid email address"})
		}
	case "webhook", "discord", "slack":
		if !validEndpointURL(body.Value) {
			subscribeRequests.WithLabelValues(body.Type, "invalid").Inc()
			return c.JSON(http.StatusBadRequest, GenericError{Error: "invalid " + body.Type + " URL"})
		}
	default:
		subscribeRequests.WithLabelValues("unknown", "invalid").Inc()
		return c.JSON(http.StatusBadRequest, GenericError{Error: "unsupported subscription type: " + body.Type})
	}

	payload := map[string]any{
		"delivery": body.Type,
	}
	if body.Type == "email" {
		payload["email"] = body.Value
	} else {
		payload["endpoint"] = body.Value
	}
	if !body.NotifyAllServices && len(body.Services) > 0 {
		payload["componentIds"] = body.Services
	}

	data, err := srv.writer.Post(c.Request().Context(), "subscribers", payload)
	if err != nil {
		subscribeRequests.WithLabelValues(body.Type, "error").Inc()
		if errors.Is(err, statuspage.ErrAPIKeyMissing) {
			return c.JSON(http.StatusInternalServerError, GenericError{
				Error: "API key not configured",
			})
		}
		return c.JSON(http.StatusInternalServerError, GenericError{
			Error:   "SubscriptionFailed",
			Message: err.Error(),
		})
	}

	subscribeRequests.WithLabelValues(body.Type, "created").Inc()
	return c.JSON(http.StatusOK, subscribeResponse{
		Success: true,
		Message: "subscription created",
		Data:    data,
	})
}
