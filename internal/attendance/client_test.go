package attendance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrscan/pkg/platform/sentinel"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewClient(server.URL+"/api/", append([]ClientOption{WithHTTPClient(server.Client())}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestClient_Validate(t *testing.T) {
	var gotAuth, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"valido":true,"estudiante":{"DNI":"12345678","NOMBRES":"Ana","APELLIDOS":"Quispe"}}`))
	}, WithToken("opaque-token"))

	v, err := c.Validate(context.Background(), "12345678")

	require.NoError(t, err)
	assert.True(t, v.Valid)
	require.NotNil(t, v.Student)
	assert.Equal(t, "Ana Quispe", v.Student.FullName())
	assert.Equal(t, "/api/estudiantes/validar-qr/12345678", gotPath)
	assert.Equal(t, "Bearer opaque-token", gotAuth)
}

func TestClient_ValidateNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Validate(context.Background(), "12345678")

	assert.ErrorIs(t, err, ErrStudentNotFound)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestClient_ValidateServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Validate(context.Background(), "12345678")

	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestClient_Register(t *testing.T) {
	var body map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/asistencias/qr", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"mensaje":"ok","asistencia":{"ID":7,"DNI":"12345678","FECHA_HORA":"2026-03-02T08:00:00Z"}}`))
	})

	reg, err := c.Register(context.Background(), "12345678")

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"dni": "12345678"}, body)
	require.NotNil(t, reg.Attendance)
	assert.Equal(t, int64(7), reg.Attendance.ID)
}

func TestClient_RegisterRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Asistencia ya registrada hoy"}`))
	})

	_, err := c.Register(context.Background(), "12345678")

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Asistencia ya registrada hoy", rejected.Message)
}

func TestClient_ExpiredTokenNotSent(t *testing.T) {
	called := false
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	token, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, WithToken(token))

	_, err = c.Validate(context.Background(), "12345678")

	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.False(t, called)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)

	_, err = NewClient("not a url")
	assert.Error(t, err)
}
