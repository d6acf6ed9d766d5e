// Package session manages the WARP cache directory on disk: the home
// directory shared by every session, and the per-session subdirectories
// that hold session-local products, build metadata and parameter
// snapshots.
package session

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

const (
	// DefaultDirName is the cache directory created under the user's home
	// directory when no explicit home path is configured.
	DefaultDirName = ".warp"

	staticProductsDirName = "static_products"
	productsDirName       = "products"
	metadataFileName      = "metadata.csv"
	parameterFileName     = "parameters.yml"
	sourceFileName        = "source.txt"
	// metaFileName records which session id was last active, so a bare
	// Resume can pick up where the previous process left off.
	metaFileName      = "meta.warp"
	timestampFileName = "timestamp.warp"
)

// DefaultHomeDir resolves the cache directory WARP uses when the caller
// does not supply one explicitly: $WARP_HOME_DIR/.warp if WARP_HOME_DIR is
// set, else ~/.warp.
func DefaultHomeDir() (string, error) {
	if dir := os.Getenv("WARP_HOME_DIR"); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", errors.Wrapf(err, "resolving WARP_HOME_DIR %s", dir)
		}
		return filepath.Join(abs, DefaultDirName), nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "resolving user home directory")
	}
	return filepath.Join(home, DefaultDirName), nil
}

// Home owns the WARP cache directory and the currently active session
// beneath it. All filesystem access is routed through a billy.Filesystem
// rooted at the home path, so the cache layer can later be pointed at a
// chroot, an in-memory fs for tests, or any other billy backend without
// touching the rest of this package.
type Home struct {
	fs        billy.Filesystem
	path      string
	sessionID string
}

// Option configures a Home at construction time.
type Option func(*Home)

// WithSessionID pins the session to load or create, instead of minting a
// fresh one from the current time.
func WithSessionID(id string) Option {
	return func(h *Home) { h.sessionID = id }
}

// Open creates or loads the WARP cache directory rooted at path.
func Open(path string, opts ...Option) (*Home, error) {
	fs := osfs.New(path)
	h := &Home{fs: fs, path: path}
	for _, opt := range opts {
		opt(h)
	}

	if err := fs.MkdirAll(".", 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating home directory %s", path)
	}

	if h.sessionID == "" {
		if id, err := h.readMeta(); err == nil && id != "" {
			h.sessionID = id
		} else {
			h.sessionID = newSessionID()
		}
	}

	return h, nil
}

func newSessionID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// Path returns the home directory's root path on disk.
func (h *Home) Path() string { return h.path }

// SessionID returns the currently active session identifier.
func (h *Home) SessionID() string { return h.sessionID }

// IsValidSessionID reports whether id names a session directory that
// already exists beneath this home.
func (h *Home) IsValidSessionID(id string) bool {
	info, err := h.fs.Stat(id)
	return err == nil && info.IsDir()
}

// SessionDir returns (creating if necessary) the directory for the active
// session, stamping its last-opened timestamp and recording it as the most
// recently active session for future Resume calls.
func (h *Home) SessionDir() (string, error) {
	if err := h.fs.MkdirAll(filepath.Join(h.sessionID, productsDirName), 0o755); err != nil {
		return "", errors.Wrapf(err, "creating session directory %s", h.sessionID)
	}

	if err := h.writeFile(
		filepath.Join(h.sessionID, timestampFileName),
		[]byte(strconv.FormatInt(time.Now().Unix(), 10)),
	); err != nil {
		return "", errors.Wrap(err, "stamping session timestamp")
	}

	if err := h.writeMeta(h.sessionID); err != nil {
		return "", err
	}

	return filepath.Join(h.path, h.sessionID), nil
}

// ProductsDir returns the session-local directory build actions persist
// non-static products beneath.
func (h *Home) ProductsDir() (string, error) {
	dir, err := h.SessionDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, productsDirName), nil
}

// StaticProductsDir returns (creating if necessary) the shared directory
// static products persist to, independent of any one session.
func (h *Home) StaticProductsDir() (string, error) {
	if err := h.fs.MkdirAll(staticProductsDirName, 0o755); err != nil {
		return "", errors.Wrap(err, "creating static products directory")
	}
	return filepath.Join(h.path, staticProductsDirName), nil
}

// PipeCacheDir returns (creating if necessary) the per-pipe metadata
// directory within the active session, keyed by a content hash of the
// pipe's name so that pipe names with path separators or other unsafe
// characters still map to a single filesystem-safe directory.
func (h *Home) PipeCacheDir(pipeName string) (string, error) {
	if err := h.fs.MkdirAll(filepath.Join(h.sessionID, productsDirName), 0o755); err != nil {
		return "", errors.Wrapf(err, "creating session directory %s", h.sessionID)
	}
	rel := filepath.Join(h.sessionID, HashPath(pipeName))
	if err := h.fs.MkdirAll(rel, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating pipe cache directory for %s", pipeName)
	}
	return filepath.Join(h.path, rel), nil
}

// MetadataPath returns the build-metadata CSV path for a pipe's cache
// directory.
func MetadataPath(pipeCacheDir string) string {
	return filepath.Join(pipeCacheDir, metadataFileName)
}

// ParameterSnapshotPath returns the parameter-snapshot YAML path for a
// pipe's cache directory.
func ParameterSnapshotPath(pipeCacheDir string) string {
	return filepath.Join(pipeCacheDir, parameterFileName)
}

// SourceSnapshotPath returns the path a pipe's source listing is recorded
// to, for provenance display only -- never compared when computing
// staleness.
func SourceSnapshotPath(pipeCacheDir string) string {
	return filepath.Join(pipeCacheDir, sourceFileName)
}

func (h *Home) writeFile(relpath string, data []byte) error {
	f, err := h.fs.Create(relpath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

func (h *Home) readFile(relpath string) ([]byte, error) {
	f, err := h.fs.Open(relpath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *Home) readMeta() (string, error) {
	data, err := h.readFile(metaFileName)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (h *Home) writeMeta(sessionID string) error {
	if err := h.writeFile(metaFileName, []byte(sessionID)); err != nil {
		return errors.Wrap(err, "recording active session id")
	}
	return nil
}

// SwitchSession changes the active session to id, creating its directory if
// it does not already exist, and records it as the most recently active
// session for a later Resume.
func (h *Home) SwitchSession(id string) error {
	h.sessionID = id
	_, err := h.SessionDir()
	return err
}

// LastActiveSession returns the session id a previous process last left
// active, for Resume to switch back to.
func (h *Home) LastActiveSession() (string, error) {
	return h.readMeta()
}

// Sessions lists every session id that currently has a directory under the
// home path.
func (h *Home) Sessions() ([]string, error) {
	entries, err := h.fs.ReadDir(".")
	if err != nil {
		return nil, errors.Wrapf(err, "listing sessions under %s", h.path)
	}

	var sessions []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != staticProductsDirName {
			sessions = append(sessions, e.Name())
		}
	}
	return sessions, nil
}

// SessionTimestamp returns the wall-clock time a session was last opened.
func (h *Home) SessionTimestamp(id string) (time.Time, error) {
	data, err := h.readFile(filepath.Join(id, timestampFileName))
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "reading timestamp for session %s", id)
	}
	sec, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing timestamp for session %s", id)
	}
	return time.Unix(sec, 0), nil
}

// ClearSession removes a single session's directory, leaving other
// sessions and the shared static products area untouched.
func (h *Home) ClearSession(id string) error {
	if err := removeAll(h.fs, id); err != nil {
		return errors.Wrapf(err, "clearing session %s", id)
	}
	return nil
}

// ClearAll wipes every session beneath the home directory along with the
// shared static products area, then mints a fresh active session id.
func (h *Home) ClearAll() error {
	entries, err := h.fs.ReadDir(".")
	if err != nil {
		return errors.Wrapf(err, "listing %s", h.path)
	}
	for _, e := range entries {
		if err := removeAll(h.fs, e.Name()); err != nil {
			return errors.Wrapf(err, "clearing %s", e.Name())
		}
	}
	h.sessionID = newSessionID()
	return nil
}

// removeAll recursively removes relpath from fs. billy.Filesystem's Remove
// only deletes empty directories, so non-leaf directories are walked first.
func removeAll(fs billy.Filesystem, relpath string) error {
	info, err := fs.Stat(relpath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		entries, err := fs.ReadDir(relpath)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := removeAll(fs, filepath.Join(relpath, e.Name())); err != nil {
				return err
			}
		}
	}
	return fs.Remove(relpath)
}

// HashPath returns the hex SHA-1 digest of path, used to derive a
// filesystem-safe cache directory name from an arbitrary pipe name.
func HashPath(path string) string {
	sum := sha1.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}
