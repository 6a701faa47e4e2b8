package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenRec struct {
	field string
	eol   bool
}

func tokenize(t *testing.T, stream string, chunkSize int) []tokenRec {
	t.Helper()
	var got []tokenRec
	tok := NewTokenizer(func(field []byte, eol bool) error {
		got = append(got, tokenRec{string(field), eol})
		return nil
	})
	for i := 0; i < len(stream); i += chunkSize {
		end := i + chunkSize
		if end > len(stream) {
			end = len(stream)
		}
		require.NoError(t, tok.Feed([]byte(stream[i:end])))
	}
	return got
}

func TestFeedSplitsFields(t *testing.T) {
	got := tokenize(t, "|switch|p1a|Pikachu, L50, M|100/100\n", len("anything")*100)
	assert.Equal(t, []tokenRec{
		{"", false},
		{"switch", false},
		{"p1a", false},
		{"Pikachu, L50, M", false},
		{"100/100", true},
	}, got)
}

// Chunk boundaries must not be observable: byte-by-byte feeding yields the
// same field sequence as feeding the whole stream at once.
func TestFeedIsResumable(t *testing.T) {
	stream := "|gametype|doubles\n|gen|8\n|switch|p1a|Pikachu, L50, M|100/100\nsideupdate\n|turn|3\n"
	whole := tokenize(t, stream, len(stream))
	for _, size := range []int{1, 2, 3, 7, 16} {
		assert.Equal(t, whole, tokenize(t, stream, size), "chunk size %d", size)
	}
}

func TestCarriageReturnTolerated(t *testing.T) {
	got := tokenize(t, "|turn|3\r\n", 1)
	assert.Equal(t, []tokenRec{{"", false}, {"turn", false}, {"3", true}}, got)
}

func TestReadLineDeliversPipesOpaque(t *testing.T) {
	var got []tokenRec
	var tok *Tokenizer
	tok = NewTokenizer(func(field []byte, eol bool) error {
		got = append(got, tokenRec{string(field), eol})
		if string(field) == "request" {
			tok.ReadLine()
		}
		return nil
	})
	stream := "|request|{\"side\":{\"name\":\"a|b\"}}\n|turn|1\n"
	for i := 0; i < len(stream); i++ {
		require.NoError(t, tok.Feed([]byte{stream[i]}))
	}
	assert.Equal(t, []tokenRec{
		{"", false},
		{"request", false},
		{"{\"side\":{\"name\":\"a|b\"}}", true},
		{"", false},
		{"turn", false},
		{"1", true},
	}, got)
}

func TestSkipLineDiscards(t *testing.T) {
	var got []tokenRec
	var tok *Tokenizer
	tok = NewTokenizer(func(field []byte, eol bool) error {
		got = append(got, tokenRec{string(field), eol})
		if string(field) == "c" {
			tok.SkipLine()
		}
		return nil
	})
	require.NoError(t, tok.Feed([]byte("|c|someone|hi|there\n|turn|2\n")))
	assert.Equal(t, []tokenRec{
		{"", false},
		{"c", false},
		{"", false},
		{"turn", false},
		{"2", true},
	}, got)
}

func TestPending(t *testing.T) {
	tok := NewTokenizer(func([]byte, bool) error { return nil })
	require.NoError(t, tok.Feed([]byte("|tur")))
	assert.True(t, tok.Pending())
	require.NoError(t, tok.Feed([]byte("n|1\n")))
	assert.False(t, tok.Pending())
}
