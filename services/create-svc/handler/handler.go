package handler

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/go-url-platform/shortener/internal/pkgerr"
	"github.com/go-url-platform/shortener/services/create-svc/domain"
)

// URLHandler exposes the Create Service (C6) over go-micro's JSON RPC codec.
type URLHandler struct {
	service *domain.Service
	log     *logrus.Logger
}

func NewURLHandler(service *domain.Service, log *logrus.Logger) *URLHandler {
	return &URLHandler{service: service, log: log}
}

// Create handles the Create.Create RPC method.
func (h *URLHandler) Create(ctx context.Context, req *domain.CreateRequest, rsp *domain.CreateResponse) error {
	h.log.WithField("original_url", req.OriginalURL).Info("processing create request")

	resp, err := h.service.Create(ctx, req)
	if err != nil {
		h.log.WithError(err).WithField("kind", pkgerr.KindOf(err)).Warn("create failed")
		return err
	}

	*rsp = *resp
	return nil
}

// QR handles the Create.QR RPC method.
func (h *URLHandler) QR(ctx context.Context, req *domain.QRRequest, rsp *domain.QRResponse) error {
	resp, err := h.service.QR(ctx, req)
	if err != nil {
		h.log.WithError(err).Warn("qr rendering failed")
		return err
	}

	*rsp = *resp
	return nil
}
