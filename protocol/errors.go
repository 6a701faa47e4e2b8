// Package protocol turns the simulator's pipe-delimited byte stream into
// mutations of per-player battle states. It contains the resumable field
// tokenizer, the record interpreter and the position translator.
package protocol

import (
	"errors"

	"showdown-engine/battle"
)

// All parser and interpreter errors are fatal to the connection they occur
// on: once the record shape disagrees with what was sent, the session's
// parse state cannot be trusted and there is no safe way to resynchronize
// mid-stream.
var (
	// ErrProtocolSyntax marks a malformed record shape: an unexpected or
	// missing field, or a line that ended too early or too late.
	ErrProtocolSyntax = errors.New("protocol syntax error")

	// ErrUnknownHeader marks a record whose header is not in the vocabulary.
	ErrUnknownHeader = errors.New("unknown record header")

	// ErrUnknownFormat marks an unrecognized gametype value.
	ErrUnknownFormat = errors.New("unknown battle format")

	// ErrInvalidGeneration marks a gen record outside the supported range.
	ErrInvalidGeneration = errors.New("invalid generation")

	// ErrInvalidPosition marks a slot label with no translation for the
	// battle's category and viewing player.
	ErrInvalidPosition = errors.New("invalid position label")

	// ErrNotImplemented marks a deliberately unhandled protocol feature
	// (team preview records, free-for-all positions). It is fatal and never
	// silently swallowed, so coverage gaps stay loud.
	ErrNotImplemented = battle.ErrNotImplemented
)
