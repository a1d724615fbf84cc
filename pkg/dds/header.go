package dds

import "encoding/binary"

func encodeHeader(dst []byte, h Header) bool {
	if len(dst) < HeaderSize {
		return false
	}
	clear(dst[:HeaderSize])
	copy(dst[0:4], Magic)
	le := binary.LittleEndian
	le.PutUint32(dst[4:], headerStructSize)
	le.PutUint32(dst[8:], h.Flags)
	le.PutUint32(dst[12:], h.Height)
	le.PutUint32(dst[16:], h.Width)
	le.PutUint32(dst[20:], h.LinearSize)
	le.PutUint32(dst[28:], h.MipCount)
	le.PutUint32(dst[76:], pixelFormatStructSize)
	le.PutUint32(dst[80:], h.PFFlags)
	copy(dst[84:88], h.FourCC[:])
	le.PutUint32(dst[108:], h.Caps)
	return true
}

func decodeHeader(src []byte) (Header, bool) {
	if len(src) < HeaderSize || string(src[0:4]) != Magic {
		return Header{}, false
	}
	le := binary.LittleEndian
	if le.Uint32(src[4:]) != headerStructSize || le.Uint32(src[76:]) != pixelFormatStructSize {
		return Header{}, false
	}
	var h Header
	h.Flags = le.Uint32(src[8:])
	h.Height = le.Uint32(src[12:])
	h.Width = le.Uint32(src[16:])
	h.LinearSize = le.Uint32(src[20:])
	h.MipCount = le.Uint32(src[28:])
	h.PFFlags = le.Uint32(src[80:])
	copy(h.FourCC[:], src[84:88])
	h.Caps = le.Uint32(src[108:])
	return h, true
}

// IsDDS reports whether data starts with the DDS signature.
func IsDDS(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == Magic
}
