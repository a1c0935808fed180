package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, reply string, got *api.ChatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ChatResponse{
			Model:   got.Model,
			Message: api.Message{Role: "assistant", Content: reply},
			Done:    true,
		})
	}))
}

func TestQueryImagesRequestsJSON(t *testing.T) {
	var got api.ChatRequest
	srv := chatServer(t, `[{"id":0,"name":"배추김치"}]`, &got)
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	require.NoError(t, err)

	imgs := []string{
		base64.StdEncoding.EncodeToString([]byte("crop-0")),
		base64.StdEncoding.EncodeToString([]byte("crop-1")),
	}
	reply, err := c.QueryImages(context.Background(), "llava", "name these", imgs)

	require.NoError(t, err)
	assert.Equal(t, `[{"id":0,"name":"배추김치"}]`, reply)
	assert.Equal(t, "llava", got.Model)
	assert.JSONEq(t, `"json"`, string(got.Format))
	assert.InDelta(t, DefaultTemperature, got.Options["temperature"], 1e-9)
	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Images, 2)
	assert.Equal(t, []byte("crop-1"), []byte(got.Messages[0].Images[1]))
}

func TestSimpleQueryHasNoFormat(t *testing.T) {
	var got api.ChatRequest
	srv := chatServer(t, "a lunch tray", &got)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	reply, err := c.SimpleQuery(context.Background(), "llava", "describe", base64.StdEncoding.EncodeToString([]byte("img")))

	require.NoError(t, err)
	assert.Equal(t, "a lunch tray", reply)
	assert.Empty(t, got.Format)
}

func TestQueryImagesBadBase64(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:11434")
	require.NoError(t, err)

	_, err = c.QueryImages(context.Background(), "llava", "p", []string{"%%%"})
	assert.ErrorContains(t, err, "decode base64")
}

func TestNewClientRejectsBareHost(t *testing.T) {
	_, err := NewClient("localhost")
	assert.Error(t, err)
}
