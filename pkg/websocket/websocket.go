package websocketPkg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"ImageLabelViewer/internal/entity"
	"ImageLabelViewer/pkg/labeler"

	"github.com/gorilla/websocket"
)

// Config points at a self-hosted labeling model that speaks a simple
// protocol: one binary frame with the encoded image in, one JSON text frame
// with the labels out.
type Config struct {
	URL          string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

func ConfigFromEnv() Config {
	url := os.Getenv("LABELER_REMOTE_URL")
	if url == "" {
		url = "ws://localhost:8000/api/v1/labels/ws"
	}
	return Config{
		URL:          url,
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		ReadTimeout:  30 * time.Second,
	}
}

type labelResponse struct {
	Labels []struct {
		Text       string  `json:"text"`
		Confidence float32 `json:"confidence"`
		EntityID   string  `json:"entity_id"`
	} `json:"labels"`
	Error string `json:"error,omitempty"`
}

type factory struct {
	cfg Config
}

func NewFactory(cfg Config) (labeler.Factory, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote labeler URL not configured")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	return &factory{cfg: cfg}, nil
}

func (f *factory) Name() string { return "remote" }

func (f *factory) Open(ctx context.Context) (labeler.Detector, error) {
	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.DialTimeout}

	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", f.cfg.URL, err)
	}

	return &webSocketClient{conn: conn, cfg: f.cfg}, nil
}

type webSocketClient struct {
	conn *websocket.Conn
	cfg  Config
}

func (c *webSocketClient) Detect(ctx context.Context, img labeler.Image) ([]entity.Label, error) {
	// a cancelled request unblocks the read by closing the connection
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.Close()
	})
	defer stop()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return nil, err
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, img.Data); err != nil {
		return nil, ctxErrOr(ctx, fmt.Errorf("error sending image frame: %w", err))
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		return nil, err
	}
	_, message, err := c.conn.ReadMessage()
	if err != nil {
		return nil, ctxErrOr(ctx, fmt.Errorf("error reading label message: %w", err))
	}

	var resp labelResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return nil, fmt.Errorf("error unmarshaling label response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("remote labeler: %s", resp.Error)
	}

	labels := make([]entity.Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labels = append(labels, entity.Label{Text: l.Text, Confidence: l.Confidence, EntityID: l.EntityID})
	}

	return labels, nil
}

func (c *webSocketClient) Close() error {
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	err := c.conn.Close()
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func ctxErrOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
