package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// IMAGE_EXPORT_DIRECTORY field offsets
const (
	expNumberOfFunctions = 20
	expNumberOfNames     = 24
	expAddressOfFuncs    = 28
	expAddressOfNames    = 32
	expAddressOfOrdinals = 36
	expDirSize           = 40
)

// Exports returns the absolute address of every function the image exports
// by name. Forwarded exports are skipped.
func (i *Image) Exports() (map[string]uintptr, error) {
	rvas, err := exports(i.Bytes(), i.exportRVA, i.exportSize)
	if err != nil {
		return nil, err
	}
	out := make(map[string]uintptr, len(rvas))
	for name, rva := range rvas {
		out[name] = i.Base + uintptr(rva)
	}
	return out, nil
}

// Export returns the address of one exported function.
func (i *Image) Export(name string) (uintptr, error) {
	syms, err := i.Exports()
	if err != nil {
		return 0, err
	}
	addr, ok := syms[name]
	if !ok {
		return 0, fmt.Errorf("%w: no export %q", ErrBadImage, name)
	}
	return addr, nil
}

// exports walks the export directory of a mapped image and returns RVAs.
func exports(img []byte, dirRVA, dirSize uint32) (map[string]uint32, error) {
	out := make(map[string]uint32)
	if dirRVA == 0 || dirSize == 0 {
		return out, nil
	}
	u32 := func(off uint32) (uint32, error) {
		if uint64(off)+4 > uint64(len(img)) {
			return 0, fmt.Errorf("%w: export table offset 0x%X out of range", ErrBadImage, off)
		}
		return binary.LittleEndian.Uint32(img[off:]), nil
	}
	if uint64(dirRVA)+expDirSize > uint64(len(img)) {
		return nil, fmt.Errorf("%w: export directory out of range", ErrBadImage)
	}
	dir := img[dirRVA:]
	nfuncs := binary.LittleEndian.Uint32(dir[expNumberOfFunctions:])
	nnames := binary.LittleEndian.Uint32(dir[expNumberOfNames:])
	funcs := binary.LittleEndian.Uint32(dir[expAddressOfFuncs:])
	names := binary.LittleEndian.Uint32(dir[expAddressOfNames:])
	ords := binary.LittleEndian.Uint32(dir[expAddressOfOrdinals:])

	for n := uint32(0); n < nnames; n++ {
		nameRVA, err := u32(names + 4*n)
		if err != nil {
			return nil, err
		}
		if uint64(ords)+2*uint64(n)+2 > uint64(len(img)) || uint64(nameRVA) >= uint64(len(img)) {
			return nil, fmt.Errorf("%w: export name %d out of range", ErrBadImage, n)
		}
		ord := uint32(binary.LittleEndian.Uint16(img[ords+2*n:]))
		if ord >= nfuncs {
			continue
		}
		fn, err := u32(funcs + 4*ord)
		if err != nil {
			return nil, err
		}
		// an RVA inside the directory is a forwarder string
		if fn >= dirRVA && fn < dirRVA+dirSize {
			continue
		}
		name := img[nameRVA:]
		if end := bytes.IndexByte(name, 0); end >= 0 {
			name = name[:end]
		}
		out[string(name)] = fn
	}
	return out, nil
}
