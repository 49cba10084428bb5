package chunk

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDocument は段落・行・文を含み、単語が全て一意なテキストを生成する
func buildDocument() (string, []string) {
	var sb strings.Builder
	var words []string
	n := 0
	nextWord := func() string {
		w := fmt.Sprintf("w%d", n)
		n++
		words = append(words, w)
		return w
	}

	for p := 0; p < 6; p++ {
		if p > 0 {
			sb.WriteString("\n\n")
		}
		for s := 0; s < 5; s++ {
			if s > 0 {
				if p%2 == 0 {
					sb.WriteString(" ")
				} else {
					sb.WriteString("\n")
				}
			}
			for w := 0; w < 12; w++ {
				if w > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(nextWord())
			}
			sb.WriteString(".")
		}
	}
	return sb.String(), words
}

// sharedOverlap は prev の末尾と next の先頭が一致する最長の長さ（rune数）を返す
func sharedOverlap(prev, next string) int {
	p := []rune(prev)
	n := []rune(next)
	longest := 0
	for k := 1; k <= len(p) && k <= len(n); k++ {
		if string(p[len(p)-k:]) == string(n[:k]) {
			longest = k
		}
	}
	return longest
}

func TestNewRecursiveSplitter_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecursiveSplitter(tt.size, tt.overlap)
			assert.Error(t, err)
		})
	}
}

func TestRecursiveSplitter_ShortTextIsSingleChunk(t *testing.T) {
	s, err := NewRecursiveSplitter(300, 40)
	require.NoError(t, err)

	chunks := s.SplitText("  The capital of France is Paris.  ")
	require.Len(t, chunks, 1)
	assert.Equal(t, "The capital of France is Paris.", chunks[0])
}

func TestRecursiveSplitter_EmptyText(t *testing.T) {
	s, err := NewRecursiveSplitter(300, 40)
	require.NoError(t, err)

	assert.Empty(t, s.SplitText(""))
	assert.Empty(t, s.SplitText("\n\n  \n"))
}

func TestRecursiveSplitter_ChunkLengthAndOverlapBounds(t *testing.T) {
	text, words := buildDocument()

	s, err := NewRecursiveSplitter(300, 40)
	require.NoError(t, err)

	chunks := s.SplitText(text)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 300, "chunk %d too long", i)
		assert.NotEmpty(t, c)
		if i > 0 {
			assert.LessOrEqual(t, sharedOverlap(chunks[i-1], c), 40, "overlap between %d and %d", i-1, i)
		}
	}

	// 全ての単語がいずれかのチャンクに含まれる
	joined := " " + strings.Join(chunks, " ") + " "
	for _, w := range words {
		assert.True(t,
			strings.Contains(joined, " "+w+" ") || strings.Contains(joined, " "+w+".") || strings.Contains(joined, "\n"+w+" "),
			"word %s missing", w)
	}
}

func TestRecursiveSplitter_PrefersParagraphBoundaries(t *testing.T) {
	s, err := NewRecursiveSplitter(20, 0)
	require.NoError(t, err)

	chunks := s.SplitText("aaaa bbbb cccc.\n\ndddd eeee ffff.")
	assert.Equal(t, []string{"aaaa bbbb cccc.", "dddd eeee ffff."}, chunks)
}

func TestRecursiveSplitter_HardCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("abcdefghij", 100)

	s, err := NewRecursiveSplitter(300, 40)
	require.NoError(t, err)

	chunks := s.SplitText(text)
	require.Len(t, chunks, 4)
	assert.Equal(t, text[0:300], chunks[0])
	assert.Equal(t, text[260:560], chunks[1])
	assert.Equal(t, text[520:820], chunks[2])
	assert.Equal(t, text[780:1000], chunks[3])
}

func TestRecursiveSplitter_MultibyteLengthCountsRunes(t *testing.T) {
	text := strings.Repeat("東京は日本の首都です", 70)

	s, err := NewRecursiveSplitter(300, 40)
	require.NoError(t, err)

	chunks := s.SplitText(text)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 300)
	}
}

func TestRecursiveSplitter_CustomSeparatorsFallBackToCharacters(t *testing.T) {
	s, err := NewRecursiveSplitter(10, 2, WithSeparators("\n\n"), WithKeepSeparator(false))
	require.NoError(t, err)

	chunks := s.SplitText("abcdefghijklmnopqrstuvwxyz")
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
}
