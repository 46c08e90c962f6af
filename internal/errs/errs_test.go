package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfUnwrapsWrappedError(t *testing.T) {
	base := New(KindNotFound, "store.Get", nil)
	wrapped := errors.Join(errors.New("context"), base)

	require.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestKindOfDefaultsToInternalForPlainErrors(t *testing.T) {
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestStatusCodeMapping(t *testing.T) {
	cases := map[Kind]int{
		KindUnauthorized:    http.StatusUnauthorized,
		KindNotFound:        http.StatusNotFound,
		KindPayloadTooLarge: http.StatusRequestEntityTooLarge,
		KindRateLimited:     http.StatusTooManyRequests,
		KindBadRequest:      http.StatusBadRequest,
		KindInternal:        http.StatusInternalServerError,
	}
	for kind, status := range cases {
		require.Equal(t, status, StatusCode(kind))
	}
}
