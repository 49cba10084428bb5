package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAudio(t *testing.T) {
	assert.True(t, Audio{}.IsEmpty())
	assert.False(t, Audio{Data: []byte{0xff}, Format: FormatMP3}.IsEmpty())
	assert.Equal(t, "audio/mpeg", Audio{Format: FormatMP3}.MIMEType())
	assert.Equal(t, "application/octet-stream", MIMEType("flac2"))
}
