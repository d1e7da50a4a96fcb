package deepgram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ergovoice/internal/ports"
)

var errSessionClosed = errors.New("deepgram session closed")

// streamingSession pumps audio out and transcript messages in over one
// websocket. The events channel closes once both directions finished.
type streamingSession struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	events chan ports.TranscriptEvent
	audio  chan []byte
	done   chan struct{}
	wg     sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func newStreamingSession(ctx context.Context, conn *websocket.Conn, logger zerolog.Logger) *streamingSession {
	s := &streamingSession{
		conn:   conn,
		logger: logger,
		events: make(chan ports.TranscriptEvent, 64),
		audio:  make(chan []byte, 32),
		done:   make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s
}

func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errSessionClosed
	}

	select {
	case s.audio <- append([]byte(nil), chunk...):
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errSessionClosed
	}
}

// CloseSend asks Deepgram to flush its last results and close the stream.
func (s *streamingSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *streamingSession) Events() <-chan ports.TranscriptEvent {
	return s.events
}

func (s *streamingSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		// Closing the socket first unblocks a SendAudio waiting on a full
		// queue, which CloseSend would otherwise wait for.
		_ = s.conn.Close()
		_ = s.CloseSend()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// setErr records the first failure. Orderly websocket closes are not
// failures.
func (s *streamingSession) setErr(err error) {
	if err == nil || websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *streamingSession) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("send audio: %w", err))
			return
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, closeStreamMessage); err != nil {
		s.setErr(fmt.Errorf("close stream: %w", err))
	}
}

func (s *streamingSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("read deepgram message: %w", err))
			return
		}

		msg, err := decodeMessage(payload)
		if err != nil {
			s.logger.Debug().Err(err).Msg("undecodable message skipped")
			continue
		}

		switch msg.Type {
		case messageError:
			s.setErr(msg.err())
			return
		case messageUtteranceEnd:
			s.emit(ports.TranscriptEvent{SpeechFinal: true})
		case messageResults, "":
			text := msg.transcript()
			if text == "" && !msg.SpeechFinal {
				continue
			}
			s.emit(ports.TranscriptEvent{
				Text:        text,
				IsFinal:     msg.IsFinal || msg.SpeechFinal,
				SpeechFinal: msg.SpeechFinal,
			})
		}
	}
}

// emit drops the event when nobody keeps up with the stream.
func (s *streamingSession) emit(event ports.TranscriptEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn().Str("text", event.Text).Msg("transcript event dropped")
	}
}
