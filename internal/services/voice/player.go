package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// StreamPlayer is the default PreviewPlayer. It streams the preview sample
// over HTTP for the duration of playback; the UI shell consuming this
// service pipes the bytes to the operator's speaker. Stop cancels the
// in-flight stream.
type StreamPlayer struct {
	client *http.Client

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewStreamPlayer creates a preview player backed by plain HTTP streaming.
func NewStreamPlayer() *StreamPlayer {
	return &StreamPlayer{
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Start begins streaming the sample. done fires exactly once when the
// stream ends, is cancelled, or fails.
func (p *StreamPlayer) Start(url string, done func(err error)) error {
	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create preview request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to fetch preview sample: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("preview sample fetch failed with status %d", resp.StatusCode)
	}

	go func() {
		defer resp.Body.Close()
		defer cancel()
		_, copyErr := io.Copy(io.Discard, resp.Body)
		if ctx.Err() != nil {
			// Stopped on purpose; not an error.
			done(nil)
			return
		}
		done(copyErr)
	}()

	return nil
}

// Stop cancels the current stream, if any.
func (p *StreamPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
