package usecase

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"ergovoice/internal/ports"
)

const defaultChunkSize = 4096

// audioPump feeds one capture into one provider stream.
type audioPump struct {
	src   ports.AudioSession
	dst   ports.StreamingSession
	chunk int
	onErr func(error)

	sent atomic.Int64
	done chan struct{}
}

func newAudioPump(src ports.AudioSession, dst ports.StreamingSession, chunk int, onErr func(error)) *audioPump {
	if chunk < 256 {
		chunk = defaultChunkSize
	}
	return &audioPump{src: src, dst: dst, chunk: chunk, onErr: onErr, done: make(chan struct{})}
}

// run copies until the capture is stopped. A closed capture is a clean end;
// any other read error, or a send error, goes to onErr.
func (p *audioPump) run() {
	defer close(p.done)
	if err := p.copy(); err != nil {
		p.onErr(err)
	}
}

func (p *audioPump) copy() error {
	buf := make([]byte, p.chunk)
	for {
		n, readErr := p.src.Read(buf)
		if n > 0 {
			if err := p.dst.SendAudio(buf[:n]); err != nil {
				return fmt.Errorf("stream audio: %w", err)
			}
			p.sent.Add(int64(n))
		}
		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrClosedPipe):
			return nil
		default:
			return fmt.Errorf("audio capture: %w", readErr)
		}
	}
}

// wait blocks until run returns and reports the bytes sent.
func (p *audioPump) wait() int64 {
	<-p.done
	return p.sent.Load()
}

// drainStream waits for the provider to close the stream after CloseSend.
// Past grace the stream is closed from our side.
func drainStream(stream ports.StreamingSession, grace time.Duration) error {
	result := make(chan error, 1)
	go func() { result <- stream.Wait() }()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case err := <-result:
		return err
	case <-timer.C:
		_ = stream.Close()
		return <-result
	}
}
