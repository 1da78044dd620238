package cli

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubTerminal(t *testing.T, tty bool, password string) {
	t.Helper()
	origRead, origIs := readPassword, isTerminal
	readPassword = func(int) ([]byte, error) { return []byte(password), nil }
	isTerminal = func(int) bool { return tty }
	t.Cleanup(func() { readPassword, isTerminal = origRead, origIs })
}

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("hello world\n"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	got, err := GetSimpleText(in, "Name?", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(in, "Name?", io.Discard)
	require.ErrorIs(t, err, io.EOF)
}

func TestGetSecret_Terminal(t *testing.T) {
	stubTerminal(t, true, "hidden words")
	in := bufio.NewReader(strings.NewReader("should not be read\n"))

	got, err := GetSecret(in, "Phrase", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "hidden words", string(got))
}

func TestGetSecret_Pipe(t *testing.T) {
	stubTerminal(t, false, "")
	in := bufio.NewReader(strings.NewReader("  piped words \n"))

	got, err := GetSecret(in, "Phrase", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "piped words", string(got))
}

func TestConfirm(t *testing.T) {
	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "sure\n": false} {
		got, err := Confirm(bufio.NewReader(strings.NewReader(input)), "ok?", io.Discard)
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", input)
	}
}
