// AngelaMos | 2026
// client_test.go

package instagram_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/socialsync/internal/config"
	"github.com/carterperez-dev/socialsync/internal/instagram"
)

func newClient(t *testing.T, handler http.HandlerFunc) *instagram.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return instagram.NewClient(config.InstagramConfig{
		GraphBaseURL: srv.URL + "/",
		APIVersion:   "v21.0",
		Timeout:      time.Second,
	})
}

func TestSendText(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v21.0/me/messages", r.URL.Path)
		assert.Equal(t, "Bearer page-token", r.Header.Get("Authorization"))

		var body map[string]map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "123", body["recipient"]["id"])
		assert.Equal(t, "linked", body["message"]["text"])

		_, _ = w.Write([]byte(`{"recipient_id":"123","message_id":"m_1"}`))
	})

	res, err := c.SendText(t.Context(), "page-token", "123", "linked")
	require.NoError(t, err)
	assert.Equal(t, "m_1", res.MessageID)
}

func TestSendTextGraphError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`))
	})

	_, err := c.SendText(t.Context(), "bad", "123", "hi")
	require.ErrorContains(t, err, "code=190")
}

func TestSendTextRequiresToken(t *testing.T) {
	c := newClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.SendText(t.Context(), "", "123", "hi")
	require.ErrorIs(t, err, instagram.ErrNoAccessToken)
}
