package domain

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-url-platform/shortener/internal/pkgerr"
	"github.com/go-url-platform/shortener/internal/store"
)

func TestValidateOriginalURLRejectsMissingScheme(t *testing.T) {
	err := validateOriginalURL("example.com/path")
	require.Error(t, err)
	pe, ok := pkgerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pkgerr.KindInvalidInput, pe.Kind)
}

func TestValidateOriginalURLRejectsEmpty(t *testing.T) {
	err := validateOriginalURL("")
	require.Error(t, err)
}

func TestValidateOriginalURLAcceptsHTTPS(t *testing.T) {
	assert.NoError(t, validateOriginalURL("https://example.com/path"))
}

func TestValidateOriginalURLRejectsOverLength(t *testing.T) {
	long := "https://example.com/"
	for len(long) <= MaxOriginalURLLength {
		long += "x"
	}
	err := validateOriginalURL(long)
	require.Error(t, err)
}

func TestToResponseJoinsBaseURLAndShortCode(t *testing.T) {
	svc := &Service{log: logrus.New()}
	mapping := &store.UrlMapping{OriginalURL: "https://example.com", ShortCode: "abc123"}

	resp := svc.toResponse(&CreateRequest{BaseURL: "https://sho.rt/"}, mapping)
	assert.Equal(t, "https://sho.rt/abc123", resp.ShortURL)
	assert.True(t, resp.Success)
}

func TestValidateBaseURLRejectsEmpty(t *testing.T) {
	err := validateBaseURL("")
	require.Error(t, err)
	assert.Equal(t, pkgerr.KindInvalidInput, pkgerr.KindOf(err))
}

func TestValidateBaseURLRejectsMissingScheme(t *testing.T) {
	err := validateBaseURL("sho.rt")
	require.Error(t, err)
}

func TestValidateBaseURLAcceptsHTTPS(t *testing.T) {
	assert.NoError(t, validateBaseURL("https://sho.rt"))
}

func TestCreateRejectsMissingBaseURL(t *testing.T) {
	svc := &Service{log: logrus.New()}
	_, err := svc.Create(context.Background(), &CreateRequest{OriginalURL: "https://example.com"})
	require.Error(t, err)
	assert.Equal(t, pkgerr.KindInvalidInput, pkgerr.KindOf(err))
}

func TestQRRejectsEmptyShortURL(t *testing.T) {
	svc := &Service{log: logrus.New()}
	_, err := svc.QR(context.Background(), &QRRequest{})
	require.Error(t, err)
	assert.Equal(t, pkgerr.KindInvalidInput, pkgerr.KindOf(err))
}

func TestQRRendersPNGForValidShortURL(t *testing.T) {
	svc := &Service{log: logrus.New()}
	resp, err := svc.QR(context.Background(), &QRRequest{ShortURL: "https://sho.rt/abc123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.PNG)
}
