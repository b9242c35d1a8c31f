package fetch

import (
	"bufio"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffSize is how much of a stream is inspected to guess its charset
const sniffSize = 64 * 1024

// UTF8Reader returns a reader yielding r as UTF-8. Input whose head looks like UTF-8 is
// read as UTF-8, with any invalid bytes further on replaced by U+FFFD. Anything else is
// decoded from the charset chardet guesses.
func UTF8Reader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	head, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if validUTF8Prefix(head) {
		return transform.NewReader(br, unicode.UTF8.NewDecoder()), nil
	}

	result, err := chardet.NewTextDetector().DetectBest(head)
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}
	enc, err := htmlindex.Get(result.Charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %s: %w", result.Charset, err)
	}
	return transform.NewReader(br, enc.NewDecoder()), nil
}

// validUTF8Prefix reports whether b is UTF-8, allowing a rune cut off at the end
func validUTF8Prefix(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			return !utf8.FullRune(b)
		}
		b = b[size:]
	}
	return true
}
