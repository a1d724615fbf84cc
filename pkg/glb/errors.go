package glb

import "errors"

var (
	// ErrContainerFormat reports a bad magic or version, a truncated header or
	// chunk, an unexpected chunk type, or a length field that disagrees with the data.
	ErrContainerFormat = errors.New("glb: invalid container")

	// ErrMissingBuffer reports a reference to a buffer view or byte range that
	// does not exist.
	ErrMissingBuffer = errors.New("glb: missing buffer view")
)
