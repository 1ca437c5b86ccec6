// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"fmt"
	"os"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/perms"
	"golang.org/x/crypto/blake2b"

	formatter "github.com/onsi/ginkgo/v2/formatter"
)

// ToID returns the blake2b-256 digest of the concatenation of [parts].
// Header, fragment, pool and proposal identifiers are all computed this way.
func ToID(parts ...[]byte) ids.ID {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only fails when a key longer than 64 bytes is provided.
		panic(err)
	}
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	var id ids.ID
	copy(id[:], h.Sum(nil))
	return id
}

// SaveBytes writes [b] to [filename] with owner-only permissions.
func SaveBytes(filename string, b []byte) error {
	return os.WriteFile(filename, b, perms.ReadWrite)
}

// LoadBytes reads [filename]. If [expectedSize] is not -1, the file must
// contain exactly that many bytes.
func LoadBytes(filename string, expectedSize int) ([]byte, error) {
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if expectedSize != -1 && len(bytes) != expectedSize {
		return nil, fmt.Errorf("%w: expected %d got %d", ErrInvalidSize, expectedSize, len(bytes))
	}
	return bytes, nil
}

// Outf outputs to stdout.
//
// e.g.,
//
//	Outf("{{green}}{{bold}}hi there %q{{/}}", "aa")
//	Outf("{{magenta}}{{bold}}hi therea{{/}} {{cyan}}{{underline}}b{{/}}")
//
// ref.
// https://github.com/onsi/ginkgo/blob/v2.0.0/formatter/formatter.go#L52-L73
func Outf(format string, args ...interface{}) {
	s := formatter.F(format, args...)
	fmt.Fprint(formatter.ColorableStdOut, s)
}
