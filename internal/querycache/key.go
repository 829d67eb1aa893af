package querycache

import (
	"fmt"
	"strings"
)

// Key is an ordered list of segments, resource kind first:
//
//	NewKey("events", "cursor=", "limit=10")
//
// A key matches a prefix segment by segment, so ("event", "1") is not
// under ("event", "12").
type Key []string

func NewKey(segments ...any) Key {
	key := make(Key, len(segments))
	for i, seg := range segments {
		key[i] = fmt.Sprint(seg)
	}
	return key
}

// Kind is the first segment.
func (k Key) Kind() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	return "(" + strings.Join(k, ", ") + ")"
}

// id is the map key. Segments are joined with a byte that cannot appear
// in fmt output of the values we use.
func (k Key) id() string {
	return strings.Join(k, "\x00")
}
