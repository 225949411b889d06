package ipameta

// Mach-O inspection. Parsing is done by go-macho; the raw load-command
// walker below only locates the code signature so it can be blanked first.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/blacktop/go-macho"
	"github.com/blacktop/go-macho/types"
)

// Architecture is the CPU family of an executable
type Architecture string

const (
	ArchARM     Architecture = "ARM"
	ArchARM64   Architecture = "ARM64"
	ArchUnknown Architecture = "UNKNOWN"
)

// Mach-O magic numbers from <mach-o/loader.h> and <mach-o/fat.h>
const (
	MH_MAGIC    = 0xfeedface
	MH_MAGIC_64 = 0xfeedfacf
	FAT_MAGIC   = 0xcafebabe
)

// BinaryInfo is what the inspector reports about an executable
type BinaryInfo struct {
	Arch      Architecture
	Encrypted bool
	Slices    int
}

// FindExecutable returns the archive entry holding the bundle's executable.
// The direct child of the bundle is preferred; otherwise the first entry
// ending in "/<execName>" wins. Returns "" when nothing matches.
func FindExecutable(names []string, bundleDir, execName string) string {
	if execName == "" || execName == NotFound {
		return ""
	}

	direct := bundleDir + execName
	suffix := "/" + execName
	first := ""
	for _, name := range names {
		if name == direct {
			return name
		}
		if first == "" && strings.HasSuffix(name, suffix) {
			first = name
		}
	}
	return first
}

// InspectBinary reports the architecture and encryption state of a thin or
// universal Mach-O. For universal binaries ARM64 wins if any slice has it,
// and the binary counts as encrypted if any slice is.
func InspectBinary(data []byte) (BinaryInfo, error) {
	if len(data) >= 8 && binary.BigEndian.Uint32(data[:4]) == FAT_MAGIC {
		return inspectFat(data)
	}

	info, err := inspectThin(data)
	if err != nil {
		return BinaryInfo{}, err
	}
	info.Slices = 1
	return info, nil
}

func inspectFat(data []byte) (BinaryInfo, error) {
	nfat := binary.BigEndian.Uint32(data[4:8])
	if nfat == 0 || 8+uint64(nfat)*20 > uint64(len(data)) {
		return BinaryInfo{}, fmt.Errorf("invalid fat header: %d architectures", nfat)
	}

	var result BinaryInfo
	for i := uint32(0); i < nfat; i++ {
		base := 8 + i*20
		offset := binary.BigEndian.Uint32(data[base+8:])
		size := binary.BigEndian.Uint32(data[base+12:])
		if uint64(offset)+uint64(size) > uint64(len(data)) {
			return BinaryInfo{}, fmt.Errorf("arch %d extends beyond file", i)
		}

		slice, err := inspectThin(data[offset : offset+size])
		if err != nil {
			return BinaryInfo{}, fmt.Errorf("failed to parse arch %d: %w", i, err)
		}

		if i == 0 || slice.Arch == ArchARM64 {
			result.Arch = slice.Arch
		}
		result.Encrypted = result.Encrypted || slice.Encrypted
		result.Slices++
	}

	return result, nil
}

func inspectThin(data []byte) (BinaryInfo, error) {
	// go-macho chokes on some signature formats; blank the blob first
	m, err := macho.NewFile(bytes.NewReader(scrubCodeSignature(data)))
	if err != nil {
		return BinaryInfo{}, fmt.Errorf("failed to parse Mach-O: %w", err)
	}
	defer m.Close()

	info := BinaryInfo{Arch: archFromCPU(m.CPU)}
	for _, load := range m.Loads {
		switch l := load.(type) {
		case *macho.EncryptionInfo:
			if l.CryptID == 1 {
				info.Encrypted = true
			}
		case *macho.EncryptionInfo64:
			if l.CryptID == 1 {
				info.Encrypted = true
			}
		}
	}

	return info, nil
}

func archFromCPU(cpu types.CPU) Architecture {
	switch cpu {
	case types.CPUArm:
		return ArchARM
	case types.CPUArm64:
		return ArchARM64
	default:
		return ArchUnknown
	}
}

// scrubCodeSignature returns a copy of data with the LC_CODE_SIGNATURE blob
// zeroed. The data length is kept intact.
func scrubCodeSignature(data []byte) []byte {
	sigOffset, sigSize, found := findCodeSignatureOffset(data)
	if !found || sigOffset == 0 || sigOffset >= uint32(len(data)) {
		return data
	}

	scrubbed := make([]byte, len(data))
	copy(scrubbed, data)
	end := uint64(sigOffset) + uint64(sigSize)
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	for i := uint64(sigOffset); i < end; i++ {
		scrubbed[i] = 0
	}
	return scrubbed
}

// findCodeSignatureOffset finds the LC_CODE_SIGNATURE offset and size without full parsing
func findCodeSignatureOffset(data []byte) (offset, size uint32, found bool) {
	cmdOffset, ok := findLoadCommand(data, uint32(types.LC_CODE_SIGNATURE), 16)
	if !ok {
		return 0, 0, false
	}
	offset = binary.LittleEndian.Uint32(data[cmdOffset+8:])
	size = binary.LittleEndian.Uint32(data[cmdOffset+12:])
	return offset, size, true
}

// findLoadCommand walks the load commands of a thin little-endian Mach-O and
// returns the file offset of the first command of the given type whose size
// is at least minSize.
func findLoadCommand(data []byte, want, minSize uint32) (uint32, bool) {
	if len(data) < 32 {
		return 0, false
	}

	var headerSize uint32
	switch binary.LittleEndian.Uint32(data[:4]) {
	case MH_MAGIC_64:
		headerSize = 32
	case MH_MAGIC:
		headerSize = 28
	default:
		return 0, false
	}

	ncmds := binary.LittleEndian.Uint32(data[16:20])
	sizeofcmds := binary.LittleEndian.Uint32(data[20:24])

	// Make sure we have enough data
	end := uint64(headerSize) + uint64(sizeofcmds)
	if uint64(len(data)) < end {
		return 0, false
	}

	cmdOffset := uint64(headerSize)
	for i := uint32(0); i < ncmds; i++ {
		if cmdOffset+8 > end {
			break
		}
		cmd := binary.LittleEndian.Uint32(data[cmdOffset:])
		cmdSize := binary.LittleEndian.Uint32(data[cmdOffset+4:])
		if cmdSize < 8 {
			break
		}

		if cmd == want && cmdSize >= minSize && cmdOffset+uint64(minSize) <= end {
			return uint32(cmdOffset), true
		}
		cmdOffset += uint64(cmdSize)
	}

	return 0, false
}
