package websocketPkg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ImageLabelViewer/internal/entity"
	"ImageLabelViewer/pkg/labeler"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newModelServer(t *testing.T, reply func(frame []byte) (string, bool)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			mt, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			msg, ok := reply(frame)
			if !ok {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func openDetector(t *testing.T, url string) labeler.Detector {
	t.Helper()
	f, err := NewFactory(Config{URL: url, ReadTimeout: 5 * time.Second})
	require.NoError(t, err)

	d, err := f.Open(context.Background())
	require.NoError(t, err)
	return d
}

func TestDetectOverWebSocket(t *testing.T) {
	var got []byte
	url := newModelServer(t, func(frame []byte) (string, bool) {
		got = frame
		return `{"labels":[{"text":"Cat","confidence":0.91,"entity_id":"/m/01yrx"}]}`, true
	})

	d := openDetector(t, url)
	defer func() { assert.NoError(t, d.Close()) }()

	labels, err := d.Detect(context.Background(), labeler.Image{Data: []byte("jpeg-bytes")})
	require.NoError(t, err)

	assert.Equal(t, []entity.Label{{Text: "Cat", Confidence: 0.91, EntityID: "/m/01yrx"}}, labels)
	assert.Equal(t, []byte("jpeg-bytes"), got)
}

func TestDetectRemoteError(t *testing.T) {
	url := newModelServer(t, func([]byte) (string, bool) {
		return `{"labels":[],"error":"model not loaded"}`, true
	})

	d := openDetector(t, url)
	defer d.Close()

	_, err := d.Detect(context.Background(), labeler.Image{Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestDetectCancelled(t *testing.T) {
	url := newModelServer(t, func([]byte) (string, bool) {
		return "", false
	})

	d := openDetector(t, url)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := d.Detect(ctx, labeler.Image{Data: []byte("x")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenUnreachable(t *testing.T) {
	f, err := NewFactory(Config{URL: "ws://127.0.0.1:1/nothing", DialTimeout: time.Second})
	require.NoError(t, err)

	_, err = f.Open(context.Background())
	assert.Error(t, err)
}
