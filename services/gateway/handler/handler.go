// Package handler implements the Gateway Shell (C13): a thin Gin layer that
// translates HTTP requests into RPC calls against Create, Lookup, and Stats,
// and maps their closed error-kind taxonomy onto HTTP status codes.
package handler

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go-micro.dev/v5/client"

	"github.com/go-url-platform/shortener/internal/pkgerr"
	"github.com/go-url-platform/shortener/internal/rpcjson"
)

const (
	createService = "create-svc"
	lookupService = "lookup-svc"
	statsService  = "stats-svc"
)

// GatewayHandler routes HTTP requests to the platform's internal RPC services.
type GatewayHandler struct {
	client client.Client
	log    *logrus.Logger
}

func NewGatewayHandler(c client.Client, log *logrus.Logger) *GatewayHandler {
	return &GatewayHandler{client: c, log: log}
}

// ErrorResponse is the body returned for every non-2xx response.
type ErrorResponse struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

func (h *GatewayHandler) respondError(c *gin.Context, err error) {
	kind := pkgerr.ParseKind(err.Error())
	h.log.WithError(err).WithField("kind", kind).Warn("upstream rpc call failed")
	c.JSON(kind.HTTPStatus(), ErrorResponse{ErrorCode: string(kind), Message: err.Error()})
}

// shortenRequest is the REST body for POST /api/v1/create/shorten.
type shortenRequest struct {
	OriginalURL string `json:"original_url" binding:"required"`
	BaseURL     string `json:"base_url"`
}

type shortenResponse struct {
	OriginalURL string `json:"original_url"`
	ShortURL    string `json:"short_url"`
	ShortCode   string `json:"short_code"`
	Success     bool   `json:"success"`
}

// ShortenURL handles POST /api/v1/create/shorten.
//
//	@Summary		Create a short URL
//	@Description	Create a short URL for the given original URL, deduplicating on repeat submissions
//	@Tags			Create
//	@Accept			json
//	@Produce		json
//	@Param			request	body		shortenRequest	true	"create request"
//	@Success		201		{object}	shortenResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/create/shorten [post]
func (h *GatewayHandler) ShortenURL(c *gin.Context) {
	var req shortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorCode: string(pkgerr.KindInvalidInput), Message: err.Error()})
		return
	}

	if req.BaseURL == "" {
		req.BaseURL = synthesizeBaseURL(c.Request)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	rsp, err := rpcjson.Call[shortenResponse](ctx, h.client, createService, "Create.Create", req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rsp)
}

type qrResponse struct {
	PNG []byte `json:"png"`
}

// GetQRCode handles GET /api/v1/create/qr.
//
//	@Summary		Render a QR code for a short URL
//	@Tags			Create
//	@Produce		png
//	@Param			shortUrl	query	string	true	"short url to encode"
//	@Success		200			{file}	binary
//	@Failure		500			{object}	ErrorResponse
//	@Router			/create/qr [get]
func (h *GatewayHandler) GetQRCode(c *gin.Context) {
	shortURL := c.Query("shortUrl")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	rsp, err := rpcjson.Call[qrResponse](ctx, h.client, createService, "Create.QR", map[string]string{"short_url": shortURL})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", rsp.PNG)
}

type resolveResponse struct {
	OriginalURL string `json:"original_url"`
	Found       bool   `json:"found"`
}

// RedirectURL handles GET /:code, the canonical short-link redirect path.
func (h *GatewayHandler) RedirectURL(c *gin.Context) {
	code := c.Param("code")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	req := map[string]string{
		"short_code": code,
		"client_ip":  c.ClientIP(),
		"user_agent": c.GetHeader("User-Agent"),
		"referrer":   c.GetHeader("Referer"),
	}

	rsp, err := rpcjson.Call[resolveResponse](ctx, h.client, lookupService, "Lookup.Resolve", req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Redirect(http.StatusFound, rsp.OriginalURL)
}

// GetURLStatistics handles GET /api/v1/stats/url/:code.
//
//	@Summary		Per-URL statistics
//	@Tags			Stats
//	@Produce		json
//	@Param			code	path	string	true	"short code"
//	@Success		200		{object}	map[string]interface{}
//	@Router			/stats/url/{code} [get]
func (h *GatewayHandler) GetURLStatistics(c *gin.Context) {
	code := c.Param("code")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	rsp, err := rpcjson.Call[map[string]interface{}](ctx, h.client, statsService, "Stats.URLStatistics", map[string]string{"short_code": code})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rsp)
}

// GetPlatformStatistics handles GET /api/v1/stats/platform.
//
//	@Summary		Platform-wide statistics
//	@Tags			Stats
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Router			/stats/platform [get]
func (h *GatewayHandler) GetPlatformStatistics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	rsp, err := rpcjson.Call[map[string]interface{}](ctx, h.client, statsService, "Stats.PlatformStatistics", struct{}{})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rsp)
}

// synthesizeBaseURL derives a default base_url from the incoming request's
// scheme and host when the caller didn't supply one, stripping a default
// port (80 for http, 443 for https) so the synthesized base matches what a
// caller would have typed by hand.
func synthesizeBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}

	host := r.Host
	if h, port, err := net.SplitHostPort(host); err == nil {
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			host = h
		}
	}

	return scheme + "://" + host
}

// ServiceHealth pings one backend service's registry entry and reports
// whether any node is currently registered.
func (h *GatewayHandler) ServiceHealth(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		services, err := h.client.Options().Registry.GetService(serviceName)
		if err != nil || len(services) == 0 {
			c.String(http.StatusServiceUnavailable, "%s: unavailable", serviceName)
			return
		}
		c.String(http.StatusOK, "%s: ok", serviceName)
	}
}
