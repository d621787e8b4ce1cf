package storage

import (
	"fmt"

	"github.com/quantarc/tickstore/utils/io"
)

type MismatchedInstrumentError string

func (msg MismatchedInstrumentError) Error() string {
	return errReport("%s: record instrument does not match the storage's instrument", string(msg))
}

type InvalidTimestampError string

func (msg InvalidTimestampError) Error() string {
	return errReport("%s: record timestamp is unset", string(msg))
}

type NilCodecError string

func (msg NilCodecError) Error() string {
	return errReport("%s: storage requires a record codec", string(msg))
}

type NilStoreError string

func (msg NilStoreError) Error() string {
	return errReport("%s: storage requires a partition store", string(msg))
}

type EmptySecurityIDError string

func (msg EmptySecurityIDError) Error() string {
	return errReport("%s: storage security id must not be empty", string(msg))
}

func errReport(base, msg string) string {
	base = io.GetCallerFileContext(2) + ":" + base
	return fmt.Sprintf(base, msg)
}
