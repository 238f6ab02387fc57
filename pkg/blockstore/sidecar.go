package blockstore

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/klauspost/compress/flate"
)

// NameSidecar holds the digest-key -> metric-name mapping for one block, so
// debugging commands (dump, dump-name-block) can recover names from a
// block that otherwise only stores Keys. Written as a deflate-compressed
// stream of length-prefixed name strings in key order, the Go analog of
// the original implementation's compact name-list sidecar file.
type NameSidecar struct {
	Names []string
}

// SidecarPath returns the sidecar path for a given block path.
func SidecarPath(blockPath string) string {
	return blockPath + ".names"
}

// WriteSidecar writes names (already ordered to match the block's key
// order) to path, compressed with DEFLATE (klauspost/compress/flate).
func WriteSidecar(path string, names []string) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
		}
	}()

	fw, err := flate.NewWriter(f, flate.DefaultCompression)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(fw)
	var lenBuf [4]byte
	for _, name := range names {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(name)))
		if _, err = bw.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err = bw.WriteString(name); err != nil {
			return err
		}
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = fw.Close(); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadSidecar reads back the names written by WriteSidecar, in order.
func ReadSidecar(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fr := flate.NewReader(f)
	defer fr.Close()
	br := bufio.NewReader(fr)

	var names []string
	var lenBuf [4]byte
	for {
		_, err := io.ReadFull(br, lenBuf[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, err
		}
		names = append(names, string(buf))
	}
	return names, nil
}
