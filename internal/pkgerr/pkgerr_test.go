package pkgerr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapsEveryKind(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:       http.StatusNotFound,
		KindExpired:        http.StatusNotFound,
		KindInvalidInput:   http.StatusBadRequest,
		KindGenerationFail: http.StatusInternalServerError,
		KindInternal:       http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.HTTPStatus())
	}
}

func TestErrorFormatsWithAndWithoutCause(t *testing.T) {
	bare := New(KindInvalidInput, "bad url")
	assert.Equal(t, "INVALID_INPUT: bad url", bare.Error())

	wrapped := Wrap(KindInternal, "store failure", errors.New("connection refused"))
	assert.Equal(t, "INTERNAL_SERVER_ERROR: store failure: connection refused", wrapped.Error())
	assert.Equal(t, "connection refused", errors.Unwrap(wrapped).Error())
}

func TestKindOfFallsBackToInternalForPlainErrors(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindNotFound, KindOf(New(KindNotFound, "gone")))
}

func TestParseKindRecoversKindFromRPCErrorText(t *testing.T) {
	original := New(KindExpired, "short code expired")
	assert.Equal(t, KindExpired, ParseKind(original.Error()))
}

func TestParseKindDefaultsToInternalForUnrecognizedText(t *testing.T) {
	assert.Equal(t, KindInternal, ParseKind("rpcjson: call lookup-svc.Lookup.Resolve: context deadline exceeded"))
}
