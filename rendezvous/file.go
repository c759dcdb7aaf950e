package rendezvous

import (
	"bytes"
	"encoding/gob"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
)

const filePollInterval = 100 * time.Millisecond

// File keeps the whole rendezvous map as one gob file on storage shared by
// all members (e.g. NFS). Writers take a flock on a sibling lock file so
// concurrent members don't clobber each other's registrations; readers poll.
type File struct {
	filepath    string
	flock       *flock.Flock
	waitTimeout time.Duration
}

func NewFileStore(filepath string, waitTimeout time.Duration) *File {
	return &File{
		filepath:    filepath,
		flock:       flock.New(filepath + ".lock"),
		waitTimeout: waitTimeout,
	}
}

func (f *File) Set(key string, value []byte) error {
	if err := f.flock.Lock(); err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		_ = f.flock.Unlock()
	}()

	data, err := f.load()
	if err != nil {
		return err
	}
	data[key] = value

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return errors.WithStack(err)
	}
	return atomic.WriteFile(f.filepath, &buf)
}

func (f *File) Get(key string) ([]byte, error) {
	deadline := time.Now().Add(f.waitTimeout)
	for {
		data, err := f.load()
		if err != nil {
			return nil, err
		}
		if value, ok := data[key]; ok {
			return value, nil
		}
		if !time.Now().Before(deadline) {
			return nil, errors.Errorf(
				"Timeout waiting for rendezvous key: %v.", key)
		}
		time.Sleep(filePollInterval)
	}
}

func (f *File) load() (map[string][]byte, error) {
	data := make(map[string][]byte)
	file, err := os.Open(f.filepath)
	if os.IsNotExist(err) {
		return data, nil
	} else if err != nil {
		return nil, errors.WithStack(err)
	}
	defer file.Close()
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}
