package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	require.NoError(t, w.Write("status", "typing"))
	require.NoError(t, w.WriteJSON("message", map[string]string{"content": "hi"}))
	require.NoError(t, w.Close())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		"event: status\ndata: typing\n\n"+
			"event: message\ndata: {\"content\":\"hi\"}\n\n"+
			"data: [DONE]\n\n",
		rec.Body.String())
}

func TestNewHTTPClientTimeout(t *testing.T) {
	assert.Equal(t, DefaultHTTPTimeout, NewHTTPClient(0).Timeout)
	assert.Equal(t, 5*time.Second, NewHTTPClient(5*time.Second).Timeout)
}
