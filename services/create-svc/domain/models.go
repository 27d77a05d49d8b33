// Package domain implements the Create Service (C6): validate, dedupe,
// persist and return a short URL.
package domain

import "time"

// CreateRequest is the RPC request for creating a short URL.
type CreateRequest struct {
	OriginalURL string `json:"original_url"`
	BaseURL     string `json:"base_url,omitempty"`
}

// CreateResponse is the RPC response returned by Create.
type CreateResponse struct {
	OriginalURL string `json:"original_url"`
	ShortURL    string `json:"short_url"`
	ShortCode   string `json:"short_code"`
	Success     bool   `json:"success"`
}

// QRRequest asks for a PNG QR code rendering of a short URL.
type QRRequest struct {
	ShortURL string `json:"short_url"`
}

// QRResponse carries the rendered PNG. go-micro's JSON codec base64-encodes
// []byte fields automatically.
type QRResponse struct {
	PNG []byte `json:"png"`
}

// ExpiryHorizon is the default lifetime of a freshly created mapping.
const ExpiryHorizon = 365 * 24 * time.Hour

// MaxOriginalURLLength bounds the accepted length of original_url.
const MaxOriginalURLLength = 5000

// MaxCodeRegenerationAttempts bounds the write-path retry on a short_code
// unique-violation race.
const MaxCodeRegenerationAttempts = 3
