package protocol

import "fmt"

// tokMode says what the tokenizer does with the next byte. It is the
// explicit-state rendering of a "current continuation": together with the
// partially accumulated field it is all the state carried between feeds.
type tokMode int

const (
	// modeField accumulates a field up to the next '|' or '\n'.
	modeField tokMode = iota
	// modeLine accumulates everything up to '\n' as one opaque field,
	// pipes included. Used for request payloads.
	modeLine
	// modeSkip discards everything up to and including the next '\n'.
	modeSkip
)

// FieldFunc receives one tokenized field. eol is set when the field was
// terminated by a newline rather than a pipe.
type FieldFunc func(field []byte, eol bool) error

// Tokenizer splits a byte stream into pipe/newline-delimited fields. It is
// resumable: chunks may be cut anywhere, including mid-field, and the next
// Feed continues exactly where the previous one stopped. It only moves
// forward; there is no rewinding, only feeding more bytes.
type Tokenizer struct {
	emit FieldFunc
	buf  []byte
	mode tokMode
}

// NewTokenizer returns a tokenizer delivering fields to emit. The field
// slice passed to emit is reused between calls; the receiver must copy what
// it keeps.
func NewTokenizer(emit FieldFunc) *Tokenizer {
	return &Tokenizer{emit: emit, buf: make([]byte, 0, 256)}
}

// ReadLine switches the tokenizer to opaque-line mode: the rest of the
// current line is delivered as a single field. The receiver calls this from
// inside its FieldFunc after seeing a header whose payload may contain
// pipes.
func (t *Tokenizer) ReadLine() { t.mode = modeLine }

// SkipLine discards the rest of the current line without emitting it.
func (t *Tokenizer) SkipLine() { t.mode = modeSkip }

// Feed consumes one chunk. Errors returned by the FieldFunc propagate
// unchanged and leave the tokenizer unusable for further feeding.
func (t *Tokenizer) Feed(chunk []byte) error {
	for _, b := range chunk {
		switch t.mode {
		case modeField:
			switch b {
			case '|':
				if err := t.flush(false); err != nil {
					return err
				}
			case '\n':
				if err := t.flush(true); err != nil {
					return err
				}
			case '\r':
				// Tolerated before '\n'; a bare CR inside a field would be
				// wrong anyway.
			default:
				t.buf = append(t.buf, b)
			}
		case modeLine:
			if b == '\n' {
				t.mode = modeField
				if err := t.flush(true); err != nil {
					return err
				}
			} else if b != '\r' {
				t.buf = append(t.buf, b)
			}
		case modeSkip:
			if b == '\n' {
				t.mode = modeField
				t.buf = t.buf[:0]
			}
		default:
			return fmt.Errorf("%w: tokenizer in impossible mode %d", ErrProtocolSyntax, t.mode)
		}
	}
	return nil
}

// Pending reports whether a partially accumulated field is buffered, i.e.
// the stream stopped mid-line.
func (t *Tokenizer) Pending() bool { return len(t.buf) > 0 || t.mode != modeField }

func (t *Tokenizer) flush(eol bool) error {
	field := t.buf
	t.buf = t.buf[:0]
	return t.emit(field, eol)
}
