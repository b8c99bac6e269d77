package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	payloadFile  = "payload.json"
	manifestFile = "manifest.json"
	tmpPrefix    = ".tmp-"
)

type manifest struct {
	Prefix       string    `json:"prefix"`
	CapturedAt   time.Time `json:"captured_at"`
	PayloadFile  string    `json:"payload_file"`
	PayloadBytes int64     `json:"payload_bytes"`
	CRC32        uint32    `json:"crc32"`
}

// writeSnapshot stages payload and manifest in a hidden directory under root
// and renames it to name. An existing name is never replaced.
func writeSnapshot(root, prefix, name string, capturedAt time.Time, payload any) error {
	final := filepath.Join(root, name)
	if _, err := os.Lstat(final); err == nil {
		return fmt.Errorf("%s: %w", name, fs.ErrExist)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	tmp, err := os.MkdirTemp(root, tmpPrefix+name+"-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := writeFileSync(filepath.Join(tmp, payloadFile), data); err != nil {
		return err
	}

	m := manifest{
		Prefix:       prefix,
		CapturedAt:   capturedAt,
		PayloadFile:  payloadFile,
		PayloadBytes: int64(len(data)),
		CRC32:        crc32.ChecksumIEEE(data),
	}
	mdata, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeFileSync(filepath.Join(tmp, manifestFile), mdata); err != nil {
		return err
	}

	// os.Rename replaces empty directories on some platforms; check again right before.
	if _, err := os.Lstat(final); err == nil {
		return fmt.Errorf("%s: %w", name, fs.ErrExist)
	}
	if err := os.Rename(tmp, final); err != nil {
		if errors.Is(err, fs.ErrExist) || errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", name, fs.ErrExist)
		}
		return fmt.Errorf("commit snapshot: %w", err)
	}
	committed = true
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// readSnapshot loads and verifies the payload stored in dir.
// Every failure wraps ErrCorruptSnapshot.
func readSnapshot(dir, prefix string, out any) (manifest, error) {
	var m manifest
	mdata, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return m, fmt.Errorf("%w: read manifest: %v", ErrCorruptSnapshot, err)
	}
	if err := json.Unmarshal(mdata, &m); err != nil {
		return m, fmt.Errorf("%w: decode manifest: %v", ErrCorruptSnapshot, err)
	}
	if m.Prefix != prefix {
		return m, fmt.Errorf("%w: manifest prefix %q, want %q", ErrCorruptSnapshot, m.Prefix, prefix)
	}
	if m.PayloadFile == "" || filepath.Base(m.PayloadFile) != m.PayloadFile {
		return m, fmt.Errorf("%w: bad payload file %q", ErrCorruptSnapshot, m.PayloadFile)
	}

	data, err := os.ReadFile(filepath.Join(dir, m.PayloadFile))
	if err != nil {
		return m, fmt.Errorf("%w: read payload: %v", ErrCorruptSnapshot, err)
	}
	if int64(len(data)) != m.PayloadBytes {
		return m, fmt.Errorf("%w: payload is %d bytes, manifest says %d", ErrCorruptSnapshot, len(data), m.PayloadBytes)
	}
	if sum := crc32.ChecksumIEEE(data); sum != m.CRC32 {
		return m, fmt.Errorf("%w: checksum %08x, manifest says %08x", ErrCorruptSnapshot, sum, m.CRC32)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return m, fmt.Errorf("%w: decode payload: %v", ErrCorruptSnapshot, err)
	}
	return m, nil
}
