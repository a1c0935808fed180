package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryImagesSendsEveryImage(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"[{\"id\":0,\"name\":\"쌀밥\"}]"}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)

	reply, err := c.QueryImages(context.Background(), "qwen2.5-vl", "name these", []string{"AAAA", "BBBB"})

	require.NoError(t, err)
	assert.Equal(t, `[{"id":0,"name":"쌀밥"}]`, reply)
	assert.Equal(t, "qwen2.5-vl", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)

	require.Len(t, got.Messages, 1)
	parts, ok := got.Messages[0].Content.([]interface{})
	require.True(t, ok)
	require.Len(t, parts, 3)
	first := parts[0].(map[string]interface{})
	assert.Equal(t, "name these", first["text"])
	second := parts[1].(map[string]interface{})
	assert.Equal(t, "data:image/jpeg;base64,AAAA", second["image_url"].(map[string]interface{})["url"])
}

func TestQueryImagesRejectsEmptyBatch(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.QueryImages(context.Background(), "m", "p", nil)
	assert.Error(t, err)
}

func TestSimpleQueryArrayContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"a tray of food"}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	reply, err := c.SimpleQuery(context.Background(), "m", "what is this?", "AAAA")

	require.NoError(t, err)
	assert.Equal(t, "a tray of food", reply)
}

func TestServerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.SimpleQuery(context.Background(), "m", "p", "AAAA")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.QueryImages(context.Background(), "m", "p", []string{"AAAA"})
	assert.ErrorContains(t, err, "no choices")
}
