package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func TestSignVerify(t *testing.T) {
	token, err := Sign(secret, "operator", time.Hour)
	require.NoError(t, err)

	claims, err := Verify(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.Equal(t, "admin", claims.Scope)
}

func TestVerifyErrors(t *testing.T) {
	valid, err := Sign(secret, "operator", time.Hour)
	require.NoError(t, err)

	expired, err := Sign(secret, "operator", -time.Hour)
	require.NoError(t, err)

	other := []byte("fedcba9876543210fedcba9876543210")

	_, err = Verify(secret, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Verify(secret, "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Verify(other, valid)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = Verify(secret, expired)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestWeakSecret(t *testing.T) {
	_, err := Sign([]byte("short"), "operator", time.Hour)
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestRequire(t *testing.T) {
	token, err := Sign(secret, "operator", time.Hour)
	require.NoError(t, err)

	h := Require(secret, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	var tests = []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Basic Zm9vOmJhcg==", http.StatusUnauthorized},
		{"Bearer garbage", http.StatusUnauthorized},
		{"Bearer " + token, http.StatusNoContent},
	}

	for _, test := range tests {
		req := httptest.NewRequest("GET", "/admin/shard", nil)
		if test.header != "" {
			req.Header.Set("Authorization", test.header)
		}
		rec := httptest.NewRecorder()
		h(rec, req)
		assert.Equal(t, test.status, rec.Code, test.header)
	}
}
