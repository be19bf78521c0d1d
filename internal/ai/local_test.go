package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pyxmodel "pyx-backend/internal/model"
	"pyx-backend/internal/pagectx"
)

func TestLocalAnswerTable(t *testing.T) {
	cases := []struct {
		name  string
		req   Request
		index int
	}{
		{"create keyword", Request{Input: "Can I create my own bot?", Page: pagectx.Home}, 0},
		{"build wins over marketplace page", Request{Input: "BUILD something", Page: pagectx.Marketplace}, 0},
		{"marketplace page", Request{Input: "what is popular?", Page: pagectx.Marketplace}, 1},
		{"generic", Request{Input: "hello", Page: pagectx.Pricing}, 2},
		{"empty input", Request{}, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := localAnswer(&tc.req)
			assert.Equal(t, cannedAnswers[tc.index].content, c.Content)
			assert.Equal(t, cannedAnswers[tc.index].suggestions, c.Suggestions)
		})
	}
}

func TestLocalProviderNeverFails(t *testing.T) {
	p := NewLocalProvider(0)

	c, err := p.Generate(context.Background(), &Request{Input: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, c.Content)
	assert.Len(t, c.Suggestions, 4)
}

func TestLocalProviderDelayHonoursContext(t *testing.T) {
	p := NewLocalProvider(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	c, err := p.Generate(ctx, &Request{Input: "hi"})

	require.NoError(t, err)
	assert.NotEmpty(t, c.Content)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLocalSuggestionsAreCopies(t *testing.T) {
	c := localAnswer(&Request{Input: "hello"})
	c.Suggestions[0] = "mutated"
	assert.NotEqual(t, "mutated", cannedAnswers[2].suggestions[0])
}

func TestSynthesizeSuggestions(t *testing.T) {
	assert.Equal(t,
		[]string{"Show me how to create an agent", "Show API documentation"},
		SynthesizeSuggestions("You can BUILD it with our api."))

	assert.Equal(t,
		[]string{"Show me how to create an agent", "Show API documentation", "Show me an example", "Start a tutorial"},
		SynthesizeSuggestions("create an endpoint, see the demo, then learn more"))

	assert.Equal(t, DefaultSuggestions, SynthesizeSuggestions("Sure thing."))
}

// refusingTransport fails every request and counts the attempts.
type refusingTransport struct {
	calls int32
}

func (rt *refusingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	atomic.AddInt32(&rt.calls, 1)
	return nil, errors.New("network disabled in test")
}

func TestLocalAndKeylessProvidersStayOffline(t *testing.T) {
	transport := &refusingTransport{}
	previous := http.DefaultTransport
	http.DefaultTransport = transport
	t.Cleanup(func() { http.DefaultTransport = previous })

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cases := []struct {
		provider string
		reason   Reason
	}{
		{pyxmodel.ProviderLocal, ""},
		{pyxmodel.ProviderOpenAI, ReasonMissingKey},
		{pyxmodel.ProviderAnthropic, ReasonMissingKey},
		{pyxmodel.ProviderDoubao, ReasonMissingKey},
		{pyxmodel.ProviderQwen, ReasonMissingKey},
		{pyxmodel.ProviderGemini, ReasonMissingKey},
	}
	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			s := Settings{Provider: tc.provider, BaseURL: server.URL, Model: "m", Timeout: time.Second}
			g := NewGenerator(context.Background(), s, nil)

			resp := g.Generate(context.Background(), &Request{SessionID: "s", Input: "how do I build an agent?"})
			assert.Equal(t, pyxmodel.ProviderLocal, resp.Source)
			assert.NotEmpty(t, resp.Content)
			if tc.reason == "" {
				assert.Nil(t, resp.Fallback)
			} else {
				require.NotNil(t, resp.Fallback)
				assert.Equal(t, tc.reason, resp.Fallback.Reason)
			}
		})
	}

	assert.Zero(t, atomic.LoadInt32(&hits))
	assert.Zero(t, atomic.LoadInt32(&transport.calls))
}
