package line

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	sig := Sign("secret", body)

	assert.True(t, VerifySignature("secret", body, sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("secret", []byte(`{"events":[{}]}`), sig))
	assert.False(t, VerifySignature("secret", body, ""))
}

func TestVerifySignatureEmptySecret(t *testing.T) {
	body := []byte(`{"events":[]}`)
	assert.True(t, VerifySignature("", body, Sign("", body)))
	assert.False(t, VerifySignature("", body, Sign("secret", body)))
}

func TestClientReplyAndPush(t *testing.T) {
	type call struct {
		path string
		auth string
		body map[string]interface{}
	}
	var calls []call

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		calls = append(calls, call{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body})
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "token")
	require.NoError(t, c.Reply(context.Background(), "reply-token", "hello"))
	require.NoError(t, c.Push(context.Background(), "U123", "welcome"))

	require.Len(t, calls, 2)
	assert.Equal(t, replyPath, calls[0].path)
	assert.Equal(t, "Bearer token", calls[0].auth)
	assert.Equal(t, "reply-token", calls[0].body["replyToken"])

	assert.Equal(t, pushPath, calls[1].path)
	assert.Equal(t, "U123", calls[1].body["to"])
	msgs := calls[1].body["messages"].([]interface{})
	assert.Equal(t, "welcome", msgs[0].(map[string]interface{})["text"])
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Invalid reply token"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "token").Reply(context.Background(), "bad", "hi")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Invalid reply token")
}
