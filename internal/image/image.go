// Package image reads the loader headers of a mapped executable image to find
// its base, size and identity.
package image

import (
	"errors"
	"fmt"
)

// ErrBadImage means the headers at a base address do not describe a valid
// loaded image, or a requested range falls outside of it.
var ErrBadImage = errors.New("invalid image")

// HeaderSpan is the number of bytes read from the base address before the
// headers are parsed. The first page of a mapped image always holds them.
const HeaderSpan = 0x1000

// Image describes a loaded module.
type Image struct {
	Base      uintptr
	Size      uintptr // SizeOfImage: headers, code and data as mapped
	Timestamp uint32
	Machine   uint16
	Is64      bool

	// export directory, zero when the image exports nothing
	exportRVA, exportSize uint32
}

// Parse decodes the headers of an image mapped at base. headers must hold at
// least the DOS, NT and optional headers.
func Parse(base uintptr, headers []byte) (*Image, error) {
	var lastErr error
	for _, try := range formats {
		img, err := try(base, headers)
		if err == nil {
			return img, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

var formats = []func(uintptr, []byte) (*Image, error){
	parsePE,
}

// End returns the first address past the image.
func (i *Image) End() uintptr {
	return i.Base + i.Size
}

// Contains reports whether [addr, addr+n) lies inside the image.
func (i *Image) Contains(addr, n uintptr) bool {
	if addr < i.Base || n > i.Size {
		return false
	}
	return addr-i.Base <= i.Size-n
}

// Check returns an error wrapping ErrBadImage if [addr, addr+n) leaves the
// image.
func (i *Image) Check(addr, n uintptr) error {
	if !i.Contains(addr, n) {
		return fmt.Errorf("%w: range 0x%X+%d outside 0x%X-0x%X", ErrBadImage, addr, n, i.Base, i.End())
	}
	return nil
}
