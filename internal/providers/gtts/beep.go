package gtts

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

// beepOutput plays through the shared beep speaker, initialized with the
// sample rate of the first stream; later streams are resampled to it.
type beepOutput struct {
	initOnce sync.Once
	initErr  error
	rate     beep.SampleRate
}

func (o *beepOutput) Play(r io.Reader, speed float32, done func()) (func(), error) {
	streamer, format, err := mp3.Decode(io.NopCloser(r))
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	o.initOnce.Do(func() {
		o.rate = format.SampleRate
		o.initErr = speaker.Init(o.rate, o.rate.N(time.Second/10))
	})
	if o.initErr != nil {
		_ = streamer.Close()
		return nil, fmt.Errorf("init speaker: %w", o.initErr)
	}

	var playback beep.Streamer = streamer
	if format.SampleRate != o.rate {
		playback = beep.Resample(4, format.SampleRate, o.rate, playback)
	}
	if speed != 1 {
		playback = beep.ResampleRatio(3, float64(speed), playback)
	}

	ctrl := &beep.Ctrl{Streamer: beep.Seq(playback, beep.Callback(func() {
		_ = streamer.Close()
		go done()
	}))}
	speaker.Play(ctrl)

	return func() {
		speaker.Lock()
		ctrl.Streamer = nil
		speaker.Unlock()
		_ = streamer.Close()
	}, nil
}
