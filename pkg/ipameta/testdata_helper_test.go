package ipameta

import (
	"archive/zip"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blacktop/go-macho/types"
	"go.mozilla.org/pkcs7"
	"howett.net/plist"
)

// Mach-O CPU types used by the fixtures
const (
	cpuArm    = 0x0000000c
	cpuArm64  = 0x0100000c
	cpuX86_64 = 0x01000007
)

type zipEntry struct {
	Name string
	Data []byte
}

// dirEntry is a directory record; its Data is ignored
func dirEntry(name string) zipEntry {
	return zipEntry{Name: name}
}

// writeZip writes entries in order to dir/name and returns the path
func writeZip(t *testing.T, dir, name string, entries []zipEntry) string {
	t.Helper()

	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("Failed to create zip: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, e := range entries {
		fw, err := w.Create(e.Name)
		if err != nil {
			t.Fatalf("Failed to add %s: %v", e.Name, err)
		}
		if len(e.Data) > 0 {
			if _, err := fw.Write(e.Data); err != nil {
				t.Fatalf("Failed to write %s: %v", e.Name, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finish zip: %v", err)
	}
	return p
}

// infoPlist encodes an Info.plist in the given plist format
func infoPlist(t *testing.T, info map[string]interface{}, format int) []byte {
	t.Helper()

	data, err := plist.Marshal(info, format)
	if err != nil {
		t.Fatalf("Failed to marshal Info.plist: %v", err)
	}
	return data
}

// machO64 assembles a minimal little-endian 64-bit Mach-O executable
func machO64(cpu uint32, cmds ...[]byte) []byte {
	return machO(MH_MAGIC_64, 32, cpu, cmds)
}

// machO32 assembles a minimal little-endian 32-bit Mach-O executable
func machO32(cpu uint32, cmds ...[]byte) []byte {
	return machO(MH_MAGIC, 28, cpu, cmds)
}

func machO(magic uint32, headerSize int, cpu uint32, cmds [][]byte) []byte {
	var body []byte
	for _, c := range cmds {
		body = append(body, c...)
	}

	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:], magic)
	binary.LittleEndian.PutUint32(hdr[4:], cpu)
	binary.LittleEndian.PutUint32(hdr[8:], 0)
	binary.LittleEndian.PutUint32(hdr[12:], 2) // MH_EXECUTE
	binary.LittleEndian.PutUint32(hdr[16:], uint32(len(cmds)))
	binary.LittleEndian.PutUint32(hdr[20:], uint32(len(body)))

	out := append(hdr, body...)
	// padding so the encrypted range in the fixtures points inside the file
	return append(out, make([]byte, 64)...)
}

// encryptionInfo builds an LC_ENCRYPTION_INFO command
func encryptionInfo(cryptID uint32) []byte {
	b := make([]byte, 20)
	binary.LittleEndian.PutUint32(b[0:], uint32(types.LC_ENCRYPTION_INFO))
	binary.LittleEndian.PutUint32(b[4:], 20)
	binary.LittleEndian.PutUint32(b[8:], 0)
	binary.LittleEndian.PutUint32(b[12:], 0)
	binary.LittleEndian.PutUint32(b[16:], cryptID)
	return b
}

// encryptionInfo64 builds an LC_ENCRYPTION_INFO_64 command
func encryptionInfo64(cryptID uint32) []byte {
	b := make([]byte, 24)
	binary.LittleEndian.PutUint32(b[0:], uint32(types.LC_ENCRYPTION_INFO_64))
	binary.LittleEndian.PutUint32(b[4:], 24)
	binary.LittleEndian.PutUint32(b[8:], 0)
	binary.LittleEndian.PutUint32(b[12:], 0)
	binary.LittleEndian.PutUint32(b[16:], cryptID)
	binary.LittleEndian.PutUint32(b[20:], 0)
	return b
}

// codeSignature builds an LC_CODE_SIGNATURE command
func codeSignature(offset, size uint32) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:], uint32(types.LC_CODE_SIGNATURE))
	binary.LittleEndian.PutUint32(b[4:], 16)
	binary.LittleEndian.PutUint32(b[8:], offset)
	binary.LittleEndian.PutUint32(b[12:], size)
	return b
}

// fatBinary wraps thin slices in a universal binary
func fatBinary(slices ...[]byte) []byte {
	const align = 0x1000
	header := 8 + 20*len(slices)

	offsets := make([]int, len(slices))
	cur := header
	for i, s := range slices {
		cur = (cur + align - 1) / align * align
		offsets[i] = cur
		cur += len(s)
	}

	out := make([]byte, cur)
	binary.BigEndian.PutUint32(out[0:], FAT_MAGIC)
	binary.BigEndian.PutUint32(out[4:], uint32(len(slices)))
	for i, s := range slices {
		base := 8 + 20*i
		binary.BigEndian.PutUint32(out[base:], binary.LittleEndian.Uint32(s[4:8]))
		binary.BigEndian.PutUint32(out[base+4:], 0)
		binary.BigEndian.PutUint32(out[base+8:], uint32(offsets[i]))
		binary.BigEndian.PutUint32(out[base+12:], uint32(len(s)))
		binary.BigEndian.PutUint32(out[base+16:], 12)
		copy(out[offsets[i]:], s)
	}
	return out
}

// signedProfile wraps a profile plist in a PKCS#7 container signed with a
// throwaway self-signed certificate
func signedProfile(t *testing.T, profile map[string]interface{}) []byte {
	t.Helper()

	content, err := plist.Marshal(profile, plist.XMLFormat)
	if err != nil {
		t.Fatalf("Failed to marshal profile: %v", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "iPhone Distribution: Test", OrganizationalUnit: []string{"ABCDE12345"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}

	sd, err := pkcs7.NewSignedData(content)
	if err != nil {
		t.Fatalf("Failed to create signed data: %v", err)
	}
	if err := sd.AddSigner(cert, key, pkcs7.SignerInfoConfig{}); err != nil {
		t.Fatalf("Failed to add signer: %v", err)
	}
	signed, err := sd.Finish()
	if err != nil {
		t.Fatalf("Failed to finish signed data: %v", err)
	}
	return signed
}

// sampleIPA is the standard fixture: one bundle with Info.plist, an ARM64
// executable, two app icons and an unrelated png
func sampleIPA(t *testing.T, dir, name string, info map[string]interface{}, exe []byte) string {
	t.Helper()

	return writeZip(t, dir, name, []zipEntry{
		dirEntry("Payload/"),
		dirEntry("Payload/Demo.app/"),
		{Name: "Payload/Demo.app/Info.plist", Data: infoPlist(t, info, plist.XMLFormat)},
		{Name: "Payload/Demo.app/Demo", Data: exe},
		{Name: "Payload/Demo.app/AppIcon60x60@2x.png", Data: []byte("icon-60")},
		{Name: "Payload/Demo.app/AppIcon76x76.png", Data: []byte("icon-76")},
		{Name: "Payload/Demo.app/LaunchImage.png", Data: []byte("launch")},
	})
}

func demoInfo() map[string]interface{} {
	return map[string]interface{}{
		"CFBundleIdentifier":         "com.example.demo",
		"CFBundleShortVersionString": "2.4.1",
		"MinimumOSVersion":           "13.0",
		"CFBundleExecutable":         "Demo",
	}
}
