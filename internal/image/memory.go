package image

import (
	"fmt"
	"unsafe"
)

// Open parses the headers of the image mapped at base in the current
// process. base must be a module handle obtained from the loader.
func Open(base uintptr) (*Image, error) {
	if base == 0 {
		return nil, fmt.Errorf("%w: nil base address", ErrBadImage)
	}
	return Parse(base, view(base, HeaderSpan))
}

// Bytes returns the whole mapped image as a byte slice aliasing process
// memory. Reading it is only valid while the module stays loaded.
func (i *Image) Bytes() []byte {
	return view(i.Base, i.Size)
}

func view(addr, n uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}
