package image

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
)

const (
	dosMagic     = 0x5A4D // MZ
	lfanewOffset = 0x3C
	// offset of PointerToSymbolTable inside IMAGE_FILE_HEADER
	symtabOffset = 8
)

func parsePE(base uintptr, headers []byte) (*Image, error) {
	if len(headers) < lfanewOffset+4 {
		return nil, fmt.Errorf("%w: header too short", ErrBadImage)
	}
	if binary.LittleEndian.Uint16(headers) != dosMagic {
		return nil, fmt.Errorf("%w: missing MZ signature", ErrBadImage)
	}
	lfanew := int(binary.LittleEndian.Uint32(headers[lfanewOffset:]))
	if lfanew <= 0 || lfanew+4+20 > len(headers) {
		return nil, fmt.Errorf("%w: e_lfanew 0x%X out of range", ErrBadImage, lfanew)
	}

	// The COFF symbol table is never mapped, so debug/pe must not chase it.
	hdr := make([]byte, len(headers))
	copy(hdr, headers)
	fh := hdr[lfanew+4:]
	binary.LittleEndian.PutUint32(fh[symtabOffset:], 0)
	binary.LittleEndian.PutUint32(fh[symtabOffset+4:], 0)

	f, err := pe.NewFile(bytes.NewReader(hdr))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	defer f.Close()

	img := &Image{
		Base:      base,
		Timestamp: f.FileHeader.TimeDateStamp,
		Machine:   f.FileHeader.Machine,
	}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		img.Size = uintptr(oh.SizeOfImage)
		img.Is64 = true
		if oh.NumberOfRvaAndSizes > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
			dir := oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT]
			img.exportRVA, img.exportSize = dir.VirtualAddress, dir.Size
		}
	case *pe.OptionalHeader32:
		img.Size = uintptr(oh.SizeOfImage)
		if oh.NumberOfRvaAndSizes > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
			dir := oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT]
			img.exportRVA, img.exportSize = dir.VirtualAddress, dir.Size
		}
	default:
		return nil, fmt.Errorf("%w: no optional header", ErrBadImage)
	}
	if img.Size == 0 {
		return nil, fmt.Errorf("%w: SizeOfImage is zero", ErrBadImage)
	}
	return img, nil
}
