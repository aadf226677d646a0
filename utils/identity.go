package utils

import (
	"crypto/md5"
	"strings"

	"github.com/google/uuid"
)

// NormalizeUserID maps an authenticated principal to a stable user UUID.
// UUID strings are returned as parsed; any other value becomes a name-based
// version 3 UUID over its UTF-8 bytes, without a namespace.
func NormalizeUserID(principal string) (uuid.UUID, bool) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return uuid.Nil, false
	}
	if id, err := uuid.Parse(principal); err == nil {
		return id, true
	}

	sum := md5.Sum([]byte(principal))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80

	id, err := uuid.FromBytes(sum[:])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
