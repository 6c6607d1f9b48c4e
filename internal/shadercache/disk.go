package shadercache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"
)

// Disk entry layout, little-endian:
//
//	[0:4]   magic "UAVS"
//	[4]     format version
//	[5]     codec
//	[6:8]   reserved
//	[8:12]  uncompressed length
//	[12:20] xxh3-64 of the uncompressed code
//	[20:]   payload
const (
	entryHeaderSize = 20
	entryVersion    = 1
	entryExt        = ".spv.cache"
)

var entryMagic = [4]byte{'U', 'A', 'V', 'S'}

// errCorrupt marks an entry that must be treated as a miss.
var errCorrupt = errors.New("shadercache: corrupt entry")

func entryPath(dir string, k Key) string {
	return filepath.Join(dir, k.String()+entryExt)
}

func encodeEntry(codec Codec, code []byte) ([]byte, error) {
	payload, err := codec.encode(code)
	if err != nil {
		return nil, fmt.Errorf("shadercache: encode %s: %w", codec, err)
	}
	out := make([]byte, entryHeaderSize, entryHeaderSize+len(payload))
	copy(out[0:4], entryMagic[:])
	out[4] = entryVersion
	out[5] = byte(codec)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(code)))
	binary.LittleEndian.PutUint64(out[12:20], xxh3.Hash(code))
	return append(out, payload...), nil
}

func decodeEntry(b []byte) ([]byte, error) {
	if len(b) < entryHeaderSize || [4]byte(b[0:4]) != entryMagic || b[4] != entryVersion {
		return nil, errCorrupt
	}
	codec := Codec(b[5])
	size := binary.LittleEndian.Uint32(b[8:12])
	sum := binary.LittleEndian.Uint64(b[12:20])

	code, err := codec.decode(b[entryHeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errCorrupt, err)
	}
	if uint32(len(code)) != size || xxh3.Hash(code) != sum {
		return nil, errCorrupt
	}
	return code, nil
}

// readEntry loads k from dir. A missing file returns os.ErrNotExist.
func readEntry(dir string, k Key) ([]byte, error) {
	b, err := os.ReadFile(entryPath(dir, k))
	if err != nil {
		return nil, err
	}
	return decodeEntry(b)
}

// writeEntry stores code for k atomically via a temp file and rename.
func writeEntry(dir string, k Key, codec Codec, code []byte) error {
	b, err := encodeEntry(codec, code)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, k.String()+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), entryPath(dir, k))
}
