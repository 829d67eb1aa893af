// Package sniffer identifies image formats from their leading bytes so
// an upload's declared Content-Type can be checked before it is sent.
package sniffer

import (
	"bytes"
	"errors"
	"strings"
)

var ErrUnknownType = errors.New("unknown media type")

// HeadSize is how many leading bytes DetectHead looks at.
const HeadSize = 512

var signatures = []struct {
	mime  string
	match func([]byte) bool
}{
	{"image/jpeg", isJPEG},
	{"image/png", isPNG},
	{"image/gif", isGIF},
	{"image/webp", isWEBP},
}

// DetectHead returns the MIME type of the image whose first bytes are head.
func DetectHead(head []byte) (string, error) {
	if len(head) > HeadSize {
		head = head[:HeadSize]
	}
	for _, sig := range signatures {
		if sig.match(head) {
			return sig.mime, nil
		}
	}
	return "", ErrUnknownType
}

// Matches reports whether content is really of the declared type.
func Matches(declared string, content []byte) bool {
	detected, err := DetectHead(content)
	if err != nil {
		return false
	}
	return detected == Normalize(declared)
}

// Normalize strips parameters and case from a Content-Type value.
func Normalize(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "image/jpg" {
		return "image/jpeg"
	}
	return contentType
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isGIF(head []byte) bool {
	return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}
