package embed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	// The service may compute a whole batch before answering, so batch
	// calls get a higher ceiling than single ones.
	defaultBatchTimeout  = 60 * time.Second
	defaultSingleTimeout = 30 * time.Second
)

var (
	// ErrTimeout indicates no terminal frame arrived within the call's deadline.
	ErrTimeout = errors.New("embedding socket: timed out")

	// ErrProtocol indicates the terminal frame was malformed or misaligned.
	ErrProtocol = errors.New("embedding socket: protocol error")
)

// ServiceError is an error frame reported by the inference service itself.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return "embedding service: " + e.Message
}

// Client talks to the embedding daemon over its unix socket using
// newline-delimited JSON. Each call opens one connection, writes one
// request and reads frames until the terminal response; the connection
// is never reused, so a wedged request cannot block unrelated ones.
type Client struct {
	socketPath    string
	batchTimeout  time.Duration
	singleTimeout time.Duration
}

// NewClient creates a client for the embedding socket at the given path.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath:    socketPath,
		batchTimeout:  defaultBatchTimeout,
		singleTimeout: defaultSingleTimeout,
	}
}

// frame is any newline-delimited message the service can send.
type frame struct {
	Status     string      `json:"status"`
	Error      string      `json:"error"`
	Embedding  []float32   `json:"embedding"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates a vector embedding for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req := struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: "embed", Text: text}

	resp, err := c.roundTrip(ctx, req, c.singleTimeout)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("embed: %w: missing embedding field", ErrProtocol)
	}
	return resp.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts in one call. The
// result is positionally aligned with texts; a response of any other
// length is rejected rather than risking misattributed vectors.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := struct {
		Texts []string `json:"texts"`
	}{Texts: texts}

	resp, err := c.roundTrip(ctx, req, c.batchTimeout)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if resp.Embeddings == nil {
		return nil, fmt.Errorf("embed batch: %w: missing embeddings field", ErrProtocol)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed batch: %w: got %d embeddings for %d texts",
			ErrProtocol, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// roundTrip performs one request/response exchange: dial, write one
// newline-terminated request, then read frames until the first
// non-heartbeat frame. The service emits {"status":"processing"}
// keep-alives while a batch is computing; those are skipped.
func (c *Client) roundTrip(ctx context.Context, payload any, timeout time.Duration) (*frame, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := conn.Write(append(body, '\n')); err != nil {
		return nil, wrapTimeout(fmt.Errorf("write request: %w", err))
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return nil, wrapTimeout(fmt.Errorf("read frame: %w", err))
		}

		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		if f.Status == "processing" {
			continue
		}
		if f.Error != "" {
			return nil, &ServiceError{Message: f.Error}
		}
		return &f, nil
	}
}

// wrapTimeout rewrites network deadline errors as ErrTimeout so callers
// can classify them without inspecting net internals.
func wrapTimeout(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
