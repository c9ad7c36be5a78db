package stash

// An editing session outlives a single command: "load" stashes the file, every "set"
// retrieves, edits and stashes again, and "save" finally writes it back.
//
// The stash is a gob stream, zstd-compressed.  It remembers a fingerprint of the file as it
// was loaded, so a save can refuse to clobber a file the game has rewritten in the meantime.

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"d2sedit/errors"
	"d2sedit/types"
	"d2sedit/writers"
)

// Session is what lives in the stash file.
type Session struct {
	Filename    string
	Fingerprint uint64 // of the file as loaded
	Original    []byte // the file as loaded, for diffing at save time
	Data        []byte // current, committed bytes
}

// Fingerprint hashes file contents.
func Fingerprint(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// New starts a session for a freshly loaded file.
func New(filename string, sd *types.Savedata) *Session {
	return &Session{
		Filename:    filename,
		Fingerprint: Fingerprint(sd.Data),
		Original:    bytes.Clone(sd.Data),
		Data:        bytes.Clone(sd.Data),
	}
}

// Savedata parses the session's current bytes.
func (s *Session) Savedata() (*types.Savedata, error) {
	return types.Parse(bytes.Clone(s.Data))
}

// OriginalSavedata parses the bytes the session started from.
func (s *Session) OriginalSavedata() (*types.Savedata, error) {
	return types.Parse(bytes.Clone(s.Original))
}

// Update commits sd's pending edits and makes its bytes the session's current state.
func (s *Session) Update(sd *types.Savedata) error {
	if err := sd.Commit(); err != nil {
		return err
	}
	s.Data = bytes.Clone(sd.Data)
	return nil
}

// CheckFresh makes sure the file on disk is still the one that was loaded.
func (s *Session) CheckFresh() error {
	data, err := os.ReadFile(s.Filename)
	if err != nil {
		return err
	}
	if Fingerprint(data) != s.Fingerprint {
		return errors.NewStale(s.Filename)
	}
	return nil
}

// Write stores the session at path.
func Write(path string, s *Session) error {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(enc).Encode(s); err != nil {
		enc.Close()
		return fmt.Errorf("failed to encode stash: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to compress stash: %w", err)
	}
	return writers.WriteFileAtomic(path, buf.Bytes(), 0600)
}

// Read loads the session stored at path.
func Read(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	s := &Session{}
	if err := gob.NewDecoder(dec).Decode(s); err != nil {
		return nil, fmt.Errorf("failed to decode stash %s: %w", path, err)
	}
	return s, nil
}

// Remove deletes the stash.  A stash that is already gone is not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
