package mayus

import (
	"path/filepath"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/language"
)

const (
	defaultCharset = "utf-8"

	// 输出文件名与输入相同时追加的后缀
	sameNameSuffix = ".UPPER"
)

// Folder maps text lines to their uppercase form under a language and a
// charset. Folding works on codepoints, never on raw bytes, so multi-byte
// characters fold correctly.
//
// Malformed input fails with ErrDecode, characters that cannot be encoded
// back into the charset fail with ErrEncode. Both only affect the line being
// folded.
type Folder struct {
	tag     language.Tag
	charset string
	enc     encoding.Encoding
	utf8    bool
}

// Folded is the result of folding one line.
type Folded struct {
	Text     []byte
	InRunes  int
	OutRunes int
}

// CountChanged reports whether the uppercase mapping changed the number of
// characters (e.g. German ß becomes SS).
func (f Folded) CountChanged() bool {
	return f.InRunes != f.OutRunes
}

// NewFolder creates a Folder. lang is a BCP 47 tag ("" means undetermined),
// charset is a WHATWG encoding label ("" means utf-8).
func NewFolder(lang, charset string) (*Folder, error) {
	tag := language.Und
	if lang != "" {
		t, err := language.Parse(lang)
		if err != nil {
			return nil, errors.Wrapf(err, "parse language %q", lang)
		}
		tag = t
	}
	if charset == "" {
		charset = defaultCharset
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown charset %q", charset)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Folder{tag: tag, charset: name, enc: enc, utf8: name == defaultCharset}, nil
}

// MustNewFolder is like NewFolder but panics on error.
func MustNewFolder(lang, charset string) *Folder {
	f, err := NewFolder(lang, charset)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Folder) Lang() string    { return f.tag.String() }
func (f *Folder) Charset() string { return f.charset }

// Fold uppercases line. The trailing newline, if any, is kept verbatim.
func (f *Folder) Fold(line []byte) (Folded, error) {
	text, err := f.decode(line)
	if err != nil {
		return Folded{}, err
	}
	// cases.Caser有状态，不能在goroutine间共享
	upper := cases.Upper(f.tag).Bytes(text)
	out := Folded{
		InRunes:  utf8.RuneCount(text),
		OutRunes: utf8.RuneCount(upper),
	}
	if out.Text, err = f.encode(upper); err != nil {
		return Folded{}, err
	}
	return out, nil
}

// FoldString is Fold for strings.
func (f *Folder) FoldString(s string) (string, error) {
	out, err := f.Fold([]byte(s))
	if err != nil {
		return "", err
	}
	return string(out.Text), nil
}

// OutputName chooses the output file name for an input file name: the
// uppercased base name, or the base name plus ".UPPER" when uppercasing does
// not change it. File names are always UTF-8.
func (f *Folder) OutputName(input string) string {
	base := filepath.Base(input)
	name := cases.Upper(f.tag).String(base)
	if name == base {
		name += sameNameSuffix
	}
	return name
}

func (f *Folder) decode(b []byte) ([]byte, error) {
	if f.utf8 {
		for off := 0; off < len(b); {
			r, size := utf8.DecodeRune(b[off:])
			if r == utf8.RuneError && size == 1 {
				return nil, errors.Wrapf(ErrDecode, "invalid utf-8 at byte %d", off)
			}
			off += size
		}
		return b, nil
	}
	text, err := f.enc.NewDecoder().Bytes(b)
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "%s: %v", f.charset, err)
	}
	return text, nil
}

func (f *Folder) encode(b []byte) ([]byte, error) {
	if f.utf8 {
		return b, nil
	}
	out, err := f.enc.NewEncoder().Bytes(b)
	if err != nil {
		return nil, errors.Wrapf(ErrEncode, "%s: %v", f.charset, err)
	}
	return out, nil
}
