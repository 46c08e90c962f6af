package authfilter

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthenticateAcceptsBearerHeader(t *testing.T) {
	f := New("s3cr3t")

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer s3cr3t")

	require.True(t, f.Authenticate(req))
}

func TestAuthenticateAcceptsQueryParam(t *testing.T) {
	f := New("s3cr3t")

	req := httptest.NewRequest("GET", "/?token=s3cr3t", nil)

	require.True(t, f.Authenticate(req))
}

func TestAuthenticateRejectsWrongToken(t *testing.T) {
	f := New("s3cr3t")

	req := httptest.NewRequest("GET", "/?token=wrong", nil)

	require.False(t, f.Authenticate(req))
}

func TestAuthenticateRejectsMissingCredential(t *testing.T) {
	f := New("s3cr3t")

	req := httptest.NewRequest("GET", "/", nil)

	require.False(t, f.Authenticate(req))
}
