package flatfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// fileWrite is one pending change to a table file. A replace swaps the whole
// file; an append writes Data at Offset, the file size seen when it was planned.
type fileWrite struct {
	Name   string `json:"name"`
	Append bool   `json:"append"`
	Offset int64  `json:"offset"`
	Data   []byte `json:"data"`
}

type journal struct {
	Writes []fileWrite `json:"writes"`
}

// ErrPendingJournal means an earlier commit has not been finished yet.
var ErrPendingJournal = errors.New("an unfinished journal is pending")

// commit records the writes in the journal, applies them and drops the journal.
// Once the journal is renamed into place the writes are durable: a commit that
// fails or crashes before the journal is removed is finished by replay, either
// on the next open or before the next read or write of the store.
// A journal still on disk is never overwritten.
func commit(dir string, writes ...fileWrite) error {
	if _, err := os.Stat(filepath.Join(dir, JournalFile)); err == nil {
		return ErrPendingJournal
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	data, err := json.Marshal(journal{Writes: writes})
	if err != nil {
		return err
	}
	if err := replaceFile(filepath.Join(dir, JournalFile), data); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return apply(dir, writes)
}

// replay finishes a journal left behind by an interrupted commit.
func replay(dir string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, JournalFile))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var j journal
	if err := json.Unmarshal(data, &j); err != nil {
		// The journal never finished writing, so none of its writes started.
		return false, os.Remove(filepath.Join(dir, JournalFile))
	}
	return true, apply(dir, j.Writes)
}

func apply(dir string, writes []fileWrite) error {
	for _, w := range writes {
		path := filepath.Join(dir, w.Name)
		var err error
		if w.Append {
			err = appendAt(path, w.Offset, w.Data)
		} else {
			err = replaceFile(path, w.Data)
		}
		if err != nil {
			return fmt.Errorf("apply %s: %w", w.Name, err)
		}
	}
	return os.Remove(filepath.Join(dir, JournalFile))
}

// replaceFile writes to path+".tmp" and renames it over path.
func replaceFile(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// appendAt is idempotent: a file that already ends with data at offset is
// left alone, anything past offset is cut before writing.
func appendAt(path string, offset int64, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == offset+int64(len(data)) {
		tail := make([]byte, len(data))
		if _, err := f.ReadAt(tail, offset); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if bytes.Equal(tail, data) {
			return nil
		}
	}
	if info.Size() != offset {
		if err := f.Truncate(offset); err != nil {
			return err
		}
	}
	if _, err := f.WriteAt(data, offset); err != nil {
		return err
	}
	return f.Sync()
}
