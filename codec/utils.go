// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import "github.com/ava-labs/praos/consts"

// BytesLen is the packed size of [msg] written with PackBytes.
func BytesLen(msg []byte) int {
	return consts.Uint16Len + len(msg)
}
