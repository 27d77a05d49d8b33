package handler

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/go-url-platform/shortener/internal/pkgerr"
	"github.com/go-url-platform/shortener/services/stats-svc/domain"
	"github.com/go-url-platform/shortener/services/stats-svc/query"
)

// URLStatisticsRequest asks for the rollup and breakdown for one short code.
type URLStatisticsRequest struct {
	ShortCode string `json:"short_code"`
}

// PlatformStatisticsRequest has no fields; it exists for symmetry with the
// other RPC methods registered on this handler.
type PlatformStatisticsRequest struct{}

// StatsHandler exposes the Stats Query API (C12) over go-micro's JSON RPC codec.
type StatsHandler struct {
	query *query.Service
	log   *logrus.Logger
}

func NewStatsHandler(q *query.Service, log *logrus.Logger) *StatsHandler {
	return &StatsHandler{query: q, log: log}
}

// URLStatistics handles the Stats.URLStatistics RPC method.
func (h *StatsHandler) URLStatistics(ctx context.Context, req *URLStatisticsRequest, rsp *domain.UrlStatisticsResponse) error {
	resp, err := h.query.URLStatistics(ctx, req.ShortCode)
	if err != nil {
		h.log.WithError(err).WithField("kind", pkgerr.KindOf(err)).Warn("url statistics query failed")
		return err
	}
	*rsp = *resp
	return nil
}

// PlatformStatistics handles the Stats.PlatformStatistics RPC method.
func (h *StatsHandler) PlatformStatistics(ctx context.Context, req *PlatformStatisticsRequest, rsp *domain.PlatformStatisticsResponse) error {
	resp, err := h.query.PlatformStatistics(ctx)
	if err != nil {
		h.log.WithError(err).Warn("platform statistics query failed")
		return err
	}
	*rsp = *resp
	return nil
}
