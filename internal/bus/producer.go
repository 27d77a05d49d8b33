// Package bus implements the Event Bus Producer (C9) and Consumer/Batcher
// (C10) over go-micro's NATS broker plugin.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go-micro.dev/v5/broker"

	"github.com/go-url-platform/shortener/internal/obs"
)

// DeviceType is the closed set of device categories a click event classifies into.
type DeviceType string

const (
	DeviceMobile  DeviceType = "MOBILE"
	DeviceTablet  DeviceType = "TABLET"
	DeviceDesktop DeviceType = "DESKTOP"
	DeviceUnknown DeviceType = "UNKNOWN"
)

// ClickEvent is the transient record published to the bus and later
// bulk-inserted into the raw events table by the Consumer/Batcher.
type ClickEvent struct {
	ShortCode  string     `json:"short_code"`
	IPAddress  string     `json:"ip_address"`
	UserAgent  string     `json:"user_agent"`
	Referrer   string     `json:"referrer,omitempty"`
	Country    string     `json:"country,omitempty"`
	City       string     `json:"city,omitempty"`
	DeviceType DeviceType `json:"device_type"`
	Timestamp  int64      `json:"timestamp"` // ms since epoch
}

// Topic is the bus subject click events are published and consumed on.
const Topic = "url-click-events"

// Producer publishes click events fire-and-log: loss is acceptable, the
// redirect itself is the canonical contract.
type Producer struct {
	broker broker.Broker
	topic  string
	geo    GeoResolver
	tracer *obs.Tracer
}

func NewProducer(b broker.Broker, topic string, geo GeoResolver, tracer *obs.Tracer) *Producer {
	if geo == nil {
		geo = NewSyntheticGeoResolver()
	}
	if tracer == nil {
		tracer = obs.NewTracer("lookup-svc")
	}
	return &Producer{broker: b, topic: topic, geo: geo, tracer: tracer}
}

// Publish sends the event to the producer's single topic, tagging the
// message with a short_code header and a fresh message_id header. Errors are
// logged, never returned to the caller's critical path.
func (p *Producer) Publish(event ClickEvent) {
	_, span := obs.TraceClickEvent(context.Background(), p.tracer, event.ShortCode)
	defer span.End()

	if event.Country == "" {
		event.Country, event.City = p.geo.Resolve(event.IPAddress)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		obs.RecordError(span, err)
		logrus.WithError(err).Error("bus: failed to marshal click event")
		return
	}

	msg := &broker.Message{
		Header: map[string]string{
			"short_code": event.ShortCode,
			"message_id": uuid.NewString(),
		},
		Body: payload,
	}

	if err := p.broker.Publish(p.topic, msg); err != nil {
		obs.RecordError(span, err)
		logrus.WithError(err).WithField("short_code", event.ShortCode).Warn("bus: publish failed, event dropped")
		return
	}

	obs.RecordSuccess(span)
	obs.RecordNATSMessagePublished("lookup-svc", p.topic)
}

// NewClickEvent builds a ClickEvent stamped with the current time.
func NewClickEvent(shortCode, ip, userAgent, referrer string, device DeviceType) ClickEvent {
	return ClickEvent{
		ShortCode:  shortCode,
		IPAddress:  ip,
		UserAgent:  userAgent,
		Referrer:   referrer,
		DeviceType: device,
		Timestamp:  time.Now().UnixMilli(),
	}
}
