package cowcache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
	"unsafe"
)

var ErrInvalidText = errors.New("invalid UTF-8 text")

// Text is a copy-on-write string. It is a Cow[byte] whose bytes are valid
// UTF-8 for as long as the Text exists.
//
// Only NewBorrowedText and NewOwnedText check that. The other constructors
// trust the caller: handing them bytes that are not UTF-8 breaks every
// string-level guarantee of the resulting Text.
type Text struct {
	b Cow[byte]
}

// BorrowText returns a Text reading the bytes of s in place.
func BorrowText(s string) Text {
	return Text{Borrow(unsafe.Slice(unsafe.StringData(s), len(s)))}
}

// BorrowTextBytes returns a Text reading b in place. b must be valid UTF-8
// and must not change while the Text is in use.
func BorrowTextBytes(b []byte) Text {
	return Text{Borrow(b)}
}

// OwnText returns a Text that takes over buf. buf must be valid UTF-8.
func OwnText(buf []byte) Text {
	return Text{Own(buf)}
}

// NewBorrowedText is BorrowTextBytes for bytes of unknown encoding.
func NewBorrowedText(b []byte) (Text, error) {
	if err := validateText(b); err != nil {
		return Text{}, err
	}
	return BorrowTextBytes(b), nil
}

// NewOwnedText is OwnText for bytes of unknown encoding. On error buf is
// left with the caller.
func NewOwnedText(buf []byte) (Text, error) {
	if err := validateText(buf); err != nil {
		return Text{}, err
	}
	return OwnText(buf), nil
}

func validateText(b []byte) error {
	if utf8.Valid(b) {
		return nil
	}
	for off := 0; off < len(b); {
		r, size := utf8.DecodeRune(b[off:])
		if r == utf8.RuneError && size == 1 {
			return fmt.Errorf("%w at byte %d", ErrInvalidText, off)
		}
		off += size
	}
	return ErrInvalidText
}

// String returns the text without copying. The string shares t's memory, so
// it must not outlive a borrowed source, and it must not be kept once the
// buffer returned by IntoOwned or TryOwned is written to.
func (t Text) String() string {
	b := t.b.data
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// Bytes returns the read-only bytes of t.
func (t Text) Bytes() []byte {
	return t.b.Slice()
}

func (t Text) Len() int {
	return t.b.Len()
}

func (t Text) Mode() Mode {
	return t.b.Mode()
}

func (t Text) IsOwned() bool {
	return t.b.IsOwned()
}

// IntoOwned ends t and returns its bytes as a buffer the caller owns,
// copying only if t was borrowed.
func (t *Text) IntoOwned() []byte {
	return t.b.IntoOwned()
}

// IntoString ends t and returns an owned string. An owned buffer becomes the
// string's memory without a copy.
func (t *Text) IntoString() string {
	view := t.b.data
	if buf, ok := t.b.release(true); ok {
		if len(buf) == 0 {
			return ""
		}
		return unsafe.String(&buf[0], len(buf))
	}
	return string(view)
}

// TryOwned returns the owned bytes of t and ends it, or reports false and
// leaves a borrowed t as it is.
func (t *Text) TryOwned() ([]byte, bool) {
	return t.b.TryOwned()
}

// Drop ends t, passing an owned buffer to free.
func (t *Text) Drop(free func([]byte)) {
	t.b.Drop(free)
}

func (t Text) Clone() Text {
	return Text{t.b.Clone()}
}

// Equal reports whether t and o spell the same text, whatever their modes.
func (t Text) Equal(o Text) bool {
	return t.String() == o.String()
}

func (t Text) EqualString(s string) bool {
	return t.String() == s
}

func (t Text) Compare(o Text) int {
	return strings.Compare(t.String(), o.String())
}

func (t Text) GoString() string {
	return strconv.Quote(t.String())
}

// Format prints t exactly as the plain string would be printed.
func (t Text) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('#') {
		fmt.Fprint(f, t.GoString())
		return
	}
	fmt.Fprintf(f, fmt.FormatString(f, verb), t.String())
}
