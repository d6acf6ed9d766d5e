package executor

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Metadata is the per-pipe build record persisted alongside a pipe's cache
// directory: when it was last built, how long the build took, and which
// commit of the calling project produced it.
type Metadata struct {
	PipeName      string
	LastBuildTime time.Time
	TimeElapsed   time.Duration
	GitCommitHash string
}

var metadataHeader = []string{"pipe_name", "last_build_time", "time_elapsed_seconds", "git_commit_hash"}

// WriteMetadata persists m as a single-row CSV at path, overwriting any
// existing record and creating the parent directory if needed.
func WriteMetadata(path string, m Metadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating metadata file %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(metadataHeader); err != nil {
		return err
	}
	row := []string{
		m.PipeName,
		strconv.FormatInt(m.LastBuildTime.Unix(), 10),
		strconv.FormatFloat(m.TimeElapsed.Seconds(), 'f', -1, 64),
		m.GitCommitHash,
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// ReadMetadata reads a single-row metadata CSV written by WriteMetadata. If
// path does not exist, it returns a zero Metadata and a nil error -- the
// caller is expected to treat a zero-value LastBuildTime as "never built".
func ReadMetadata(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, nil
		}
		return Metadata{}, errors.Wrapf(err, "opening metadata file %s", path)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return Metadata{}, errors.Wrapf(err, "parsing metadata file %s", path)
	}
	if len(records) < 2 {
		return Metadata{}, errors.Errorf("metadata file %s has no data row", path)
	}
	row := records[1]

	sec, err := strconv.ParseInt(row[1], 10, 64)
	if err != nil {
		return Metadata{}, errors.Wrapf(err, "parsing last_build_time in %s", path)
	}
	elapsedSec, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return Metadata{}, errors.Wrapf(err, "parsing time_elapsed_seconds in %s", path)
	}

	return Metadata{
		PipeName:      row[0],
		LastBuildTime: time.Unix(sec, 0),
		TimeElapsed:   time.Duration(elapsedSec * float64(time.Second)),
		GitCommitHash: row[3],
	}, nil
}
