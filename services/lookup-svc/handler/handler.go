package handler

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/go-url-platform/shortener/internal/pkgerr"
	"github.com/go-url-platform/shortener/services/lookup-svc/domain"
)

// ResolveRequest is the RPC request for resolving a short code.
type ResolveRequest struct {
	ShortCode string `json:"short_code"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent"`
	Referrer  string `json:"referrer"`
}

// ResolveResponse is the RPC response carrying the resolved URL. Failures
// are returned as the RPC error, not in this struct.
type ResolveResponse struct {
	OriginalURL string `json:"original_url"`
	Found       bool   `json:"found"`
}

// RedirectHandler exposes the Lookup Service (C7) over go-micro's JSON RPC codec.
type RedirectHandler struct {
	service *domain.Service
	log     *logrus.Logger
}

func NewRedirectHandler(service *domain.Service, log *logrus.Logger) *RedirectHandler {
	return &RedirectHandler{service: service, log: log}
}

// Resolve handles the Lookup.Resolve RPC method.
func (h *RedirectHandler) Resolve(ctx context.Context, req *ResolveRequest, rsp *ResolveResponse) error {
	original, err := h.service.Resolve(ctx, req.ShortCode, domain.ClientInfo{
		ClientIP:  req.ClientIP,
		UserAgent: req.UserAgent,
		Referrer:  req.Referrer,
	})
	if err != nil {
		h.log.WithError(err).WithField("kind", pkgerr.KindOf(err)).Debug("resolve failed")
		return err
	}

	rsp.OriginalURL = original
	rsp.Found = true
	return nil
}
