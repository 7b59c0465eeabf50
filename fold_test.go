package mayus

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldUTF8(t *testing.T) {
	f := MustNewFolder("", "")
	for in, want := range map[string]string{
		"Hello world\n": "HELLO WORLD\n",
		"Résumé\n":      "RÉSUMÉ\n",
		"ñandú 123\n":   "ÑANDÚ 123\n",
		"\n":            "\n",
		"no newline":    "NO NEWLINE",
		"ΑΒΓ αβγ\n":     "ΑΒΓ ΑΒΓ\n",
	} {
		got, err := f.FoldString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestFoldIdempotent(t *testing.T) {
	f := MustNewFolder("", "")
	for _, in := range []string{"abc\n", "Straße\n", "Résumé", "ǆ ǉ ǌ\n"} {
		once, err := f.FoldString(in)
		require.NoError(t, err)
		twice, err := f.FoldString(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, in)
	}
}

func TestFoldCountChanged(t *testing.T) {
	f := MustNewFolder("de", "")
	out, err := f.Fold([]byte("Straße\n"))
	require.NoError(t, err)
	assert.Equal(t, "STRASSE\n", string(out.Text))
	assert.Equal(t, 7, out.InRunes)
	assert.Equal(t, 8, out.OutRunes)
	assert.True(t, out.CountChanged())

	out, err = f.Fold([]byte("strasse\n"))
	require.NoError(t, err)
	assert.False(t, out.CountChanged())
}

func TestFoldTurkish(t *testing.T) {
	got, err := MustNewFolder("tr", "").FoldString("istanbul")
	require.NoError(t, err)
	assert.Equal(t, "İSTANBUL", got)

	got, err = MustNewFolder("", "").FoldString("istanbul")
	require.NoError(t, err)
	assert.Equal(t, "ISTANBUL", got)
}

func TestFoldInvalidUTF8(t *testing.T) {
	_, err := MustNewFolder("", "").Fold([]byte("ab\xffcd\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))
	assert.Contains(t, err.Error(), "byte 2")
	assert.True(t, lineFailure(err))
}

func TestFoldLatin1(t *testing.T) {
	f := MustNewFolder("", "iso-8859-1")
	assert.Equal(t, "windows-1252", f.Charset())

	// "résumé\n" in latin1
	out, err := f.Fold([]byte{'r', 0xe9, 's', 'u', 'm', 0xe9, '\n'})
	require.NoError(t, err)
	assert.Equal(t, []byte{'R', 0xc9, 'S', 'U', 'M', 0xc9, '\n'}, out.Text)

	// µ uppercases to Greek capital mu, which latin1 cannot hold
	_, err = f.Fold([]byte{0xb5, '\n'})
	assert.True(t, errors.Is(err, ErrEncode))
}

func TestNewFolderErrors(t *testing.T) {
	_, err := NewFolder("not a tag!", "")
	assert.Error(t, err)
	_, err = NewFolder("", "klingon-8")
	assert.Error(t, err)
	assert.Panics(t, func() { MustNewFolder("", "klingon-8") })
}

func TestOutputName(t *testing.T) {
	f := MustNewFolder("", "")
	assert.Equal(t, "NOTES.TXT", f.OutputName("notes.txt"))
	assert.Equal(t, "NOTES.TXT", f.OutputName("/tmp/dir/notes.txt"))
	assert.Equal(t, "RÉSUMÉ.MD", f.OutputName("résumé.md"))
	assert.Equal(t, "README.UPPER", f.OutputName("README"))
	assert.Equal(t, "123.UPPER", f.OutputName("123"))
}
