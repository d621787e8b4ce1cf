package io

import (
	"strings"
)

// SecurityID is the composite identity of a tradable instrument:
// an exchange-local code plus the board (venue section) it trades on.
// e.g. Code="SBER", Board="TQBR" -> "SBER@TQBR".
type SecurityID struct {
	Code  string
	Board string
}

func NewSecurityID(code, board string) SecurityID {
	return SecurityID{Code: code, Board: board}
}

// ParseSecurityID parses the "CODE@BOARD" form. A missing board is allowed.
func ParseSecurityID(s string) SecurityID {
	split := strings.SplitN(s, "@", 2)
	if len(split) < 2 {
		return SecurityID{Code: split[0]}
	}
	return SecurityID{Code: split[0], Board: split[1]}
}

func (id SecurityID) String() string {
	if id.Board == "" {
		return id.Code
	}
	return id.Code + "@" + id.Board
}

// IsEmpty reports whether the identity is the unset value.
func (id SecurityID) IsEmpty() bool {
	return id.Code == "" && id.Board == ""
}

// EqualFold compares two identities ignoring case on both components.
func (id SecurityID) EqualFold(other SecurityID) bool {
	return strings.EqualFold(id.Code, other.Code) &&
		strings.EqualFold(id.Board, other.Board)
}
