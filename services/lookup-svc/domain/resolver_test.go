package domain

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/ua-parser/uap-go/uaparser"

	"github.com/go-url-platform/shortener/internal/bus"
	"github.com/go-url-platform/shortener/internal/obs"
)

func newTestService() *Service {
	return &Service{log: logrus.New(), uaParser: uaparser.NewFromSaved(), tracer: obs.NewTracer(serviceName)}
}

func TestClassifyDeviceReturnsUnknownForEmptyUserAgent(t *testing.T) {
	svc := newTestService()
	assert.Equal(t, bus.DeviceUnknown, svc.classifyDevice(""))
}

func TestClassifyDeviceDetectsMobile(t *testing.T) {
	svc := newTestService()
	ua := "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 Mobile Safari/537.36"
	assert.Equal(t, bus.DeviceMobile, svc.classifyDevice(ua))
}

func TestClassifyDeviceDetectsTablet(t *testing.T) {
	svc := newTestService()
	ua := "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15"
	assert.Equal(t, bus.DeviceTablet, svc.classifyDevice(ua))
}

func TestClassifyDeviceDefaultsToDesktop(t *testing.T) {
	svc := newTestService()
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/115.0 Safari/537.36"
	assert.Equal(t, bus.DeviceDesktop, svc.classifyDevice(ua))
}

func TestResolveRejectsBlankCode(t *testing.T) {
	svc := newTestService()
	_, err := svc.Resolve(context.Background(), "   ", ClientInfo{})
	assert.Error(t, err)
}
