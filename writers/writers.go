package writers

// Functions for writing to a file, or to the buffer that becomes one.

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"d2sedit/errors"
)

func need(data []byte, offset, size int) error {
	if offset < 0 || offset+size > len(data) {
		return errors.NewTooShort(offset+size, len(data))
	}
	return nil
}

func PutUint8(data []byte, offset int, v uint8) error {
	if err := need(data, offset, 1); err != nil {
		return err
	}
	data[offset] = v
	return nil
}

func PutUint32(data []byte, offset int, v uint32) error {
	if err := need(data, offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(data[offset:], v)
	return nil
}

// WriteFileAtomic writes data to path via a temp file in the same directory, so the
// destination either keeps its old contents or gets all of the new ones.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	// Cleanup on failure
	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", tempPath, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tempPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tempPath, err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tempPath, path, err)
	}

	success = true
	return nil
}

// BackupName returns <file>.<ULID>.bak.  ULIDs sort by time, so the newest backup sorts last.
func BackupName(path string, now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0))
	return path + "." + id.String() + ".bak"
}

// Backup copies path to a fresh backup file and returns the backup's name.
// Since this is a tool capable of completely trashing savefiles, that's probably a good idea.
func Backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	name := BackupName(path, time.Now())
	if err := WriteFileAtomic(name, data, 0644); err != nil {
		return "", err
	}
	return name, nil
}

// IsBackup reports whether name looks like something Backup produced.
func IsBackup(name string) bool {
	if !strings.HasSuffix(name, ".bak") {
		return false
	}
	trimmed := strings.TrimSuffix(name, ".bak")
	dot := strings.LastIndex(trimmed, ".")
	if dot < 0 {
		return false
	}
	_, err := ulid.ParseStrict(trimmed[dot+1:])
	return err == nil
}
