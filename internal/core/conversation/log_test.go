package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-voicebot/internal/core/ingestion"
	"github.com/jinford/doc-voicebot/internal/core/speech"
)

type stubSynthesizer struct {
	err   error
	empty bool
	texts []string
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text string) (speech.Audio, error) {
	s.texts = append(s.texts, text)
	if s.err != nil {
		return speech.Audio{}, s.err
	}
	if s.empty {
		return speech.Audio{Format: speech.FormatMP3}, nil
	}
	return speech.Audio{Data: []byte("ID3" + text), Format: speech.FormatMP3}, nil
}

func newTestLog(synth speech.Synthesizer, opts ...LogOption) *Log {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLog(synth, append([]LogOption{WithLogLogger(logger)}, opts...)...)
}

func TestLog_AppendKeepsInsertionOrder(t *testing.T) {
	synth := &stubSynthesizer{}
	meta := ingestion.NewFileMeta("guide.pdf", 4096)
	log := newTestLog(synth)

	first, err := log.Append(context.Background(), "q1", "a1", meta)
	require.NoError(t, err)
	second, err := log.Append(context.Background(), "q2", "a2", meta)
	require.NoError(t, err)

	records := log.All()
	require.Len(t, records, 2)
	assert.Equal(t, first.ID, records[0].ID)
	assert.Equal(t, second.ID, records[1].ID)
	assert.Equal(t, "q1", records[0].Query)
	assert.Equal(t, "a2", records[1].Answer)
	for _, r := range records {
		assert.NotEmpty(t, r.Audio.Data)
		assert.Equal(t, meta, r.Document)
	}
	assert.Equal(t, []string{"a1", "a2"}, synth.texts)
}

func TestLog_SynthesisFailureIsPropagatedAndNothingAppended(t *testing.T) {
	synthErr := errors.New("tts unavailable")
	log := newTestLog(&stubSynthesizer{err: synthErr})

	record, err := log.Append(context.Background(), "q", "a", ingestion.FileMeta{})
	require.Error(t, err)
	assert.ErrorIs(t, err, synthErr)
	assert.Nil(t, record)
	assert.Equal(t, 0, log.Len())
}

func TestLog_EmptyAudioIsRejected(t *testing.T) {
	log := newTestLog(&stubSynthesizer{empty: true})

	_, err := log.Append(context.Background(), "q", "a", ingestion.FileMeta{})
	assert.ErrorIs(t, err, speech.ErrEmptyAudio)
	assert.Equal(t, 0, log.Len())
}

func TestLog_MaxTurnsEvictsOldest(t *testing.T) {
	log := newTestLog(&stubSynthesizer{}, WithMaxTurns(2))

	for i := 1; i <= 3; i++ {
		_, err := log.Append(context.Background(), fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), ingestion.FileMeta{})
		require.NoError(t, err)
	}

	records := log.All()
	require.Len(t, records, 2)
	assert.Equal(t, "q2", records[0].Query)
	assert.Equal(t, "q3", records[1].Query)
}

func TestLog_UnboundedByDefault(t *testing.T) {
	log := newTestLog(&stubSynthesizer{})
	assert.Equal(t, 0, log.MaxTurns())

	for i := 0; i < 50; i++ {
		_, err := log.Append(context.Background(), "q", "a", ingestion.FileMeta{})
		require.NoError(t, err)
	}
	assert.Equal(t, 50, log.Len())
}

func TestLog_AllReturnsCopyAndClear(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	log := newTestLog(&stubSynthesizer{}, WithClock(func() time.Time { return fixed }))

	_, err := log.Append(context.Background(), "q", "a", ingestion.FileMeta{})
	require.NoError(t, err)

	records := log.All()
	assert.Equal(t, fixed, records[0].CreatedAt)
	records[0].Query = "mutated"
	assert.Equal(t, "q", log.All()[0].Query)

	log.Clear()
	assert.Equal(t, 0, log.Len())
}
