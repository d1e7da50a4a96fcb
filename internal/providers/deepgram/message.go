package deepgram

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	messageResults      = "Results"
	messageUtteranceEnd = "UtteranceEnd"
	messageError        = "Error"
)

var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

type alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// message is the subset of Deepgram's live response the recognizer uses.
type message struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`
}

func decodeMessage(payload []byte) (message, error) {
	var msg message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return message{}, err
	}
	return msg, nil
}

// transcript returns the first alternative; the others are ignored.
func (m message) transcript() string {
	if len(m.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(m.Channel.Alternatives[0].Transcript)
}

func (m message) err() error {
	for _, text := range []string{m.Description, m.Message} {
		if text = strings.TrimSpace(text); text != "" {
			return errors.New("deepgram: " + text)
		}
	}
	return errors.New("deepgram returned an unknown error")
}
