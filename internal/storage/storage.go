package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Tiliavir/shift-clock/internal/model"
)

// Keys of the persisted values. Each key is stored in its own file under
// the base directory.
const (
	KeyRecords   = "records.json"
	KeyStatus    = "status"
	KeyShiftID   = "shift_id"
	KeyUser      = "user"
	KeyAutoShare = "auto_share"
	KeyUnread    = "unread"
)

var allKeys = []string{KeyRecords, KeyStatus, KeyShiftID, KeyUser, KeyAutoShare, KeyUnread}

// ParseError reports a persisted value that could not be decoded. The
// value has been moved aside to Backup and replaced by its default.
type ParseError struct {
	Key    string
	Backup string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("corrupt value for %s (backed up to %s): %v", e.Key, e.Backup, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Data is everything the store holds.
type Data struct {
	State   model.TrackerState
	Records []model.ShiftRecord
}

// Store is a file-per-key store rooted at a directory.
type Store struct {
	base string
}

// BaseDir returns the root data directory: $CLK_HOME if set, else ~/.clk.
func BaseDir() (string, error) {
	if dir := os.Getenv("CLK_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".clk"), nil
}

// Open returns a Store rooted at base. The directory is created on first write.
func Open(base string) *Store {
	return &Store{base: base}
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string { return s.base }

// Path returns the file backing key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.base, key)
}

// readKey returns the raw value of key, or ok=false if it was never written.
func (s *Store) readKey(key string) (data []byte, ok bool, err error) {
	path := s.Path(key)
	data, err = os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage error reading %s: %w", path, err)
	}
	return data, true, nil
}

// corrupt backs up an undecodable key and builds the ParseError.
func (s *Store) corrupt(key string, cause error) error {
	path := s.Path(key)
	backupPath := path + ".corrupt"
	_ = os.Rename(path, backupPath)
	return &ParseError{Key: key, Backup: backupPath, Err: cause}
}

// writeKey atomically replaces the value of key.
func (s *Store) writeKey(key string, data []byte) error {
	if err := os.MkdirAll(s.base, 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}
	path := s.Path(key)

	// Atomic write: write to temp file then rename.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

func (s *Store) removeKey(key string) error {
	err := os.Remove(s.Path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage error removing %s: %w", key, err)
	}
	return nil
}

// ReadRecords loads the record collection, newest first. A missing key
// yields an empty list.
func (s *Store) ReadRecords() ([]model.ShiftRecord, error) {
	data, ok, err := s.readKey(KeyRecords)
	if err != nil || !ok {
		return []model.ShiftRecord{}, err
	}
	var records []model.ShiftRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return []model.ShiftRecord{}, s.corrupt(KeyRecords, err)
	}
	if records == nil {
		records = []model.ShiftRecord{}
	}
	return records, nil
}

// WriteRecords persists the record collection.
func (s *Store) WriteRecords(records []model.ShiftRecord) error {
	if records == nil {
		records = []model.ShiftRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}
	return s.writeKey(KeyRecords, data)
}

// ReadStatus returns the persisted status, StatusOut if absent.
func (s *Store) ReadStatus() (model.Status, error) {
	data, ok, err := s.readKey(KeyStatus)
	if err != nil || !ok {
		return model.StatusOut, err
	}
	st := model.Status(strings.TrimSpace(string(data)))
	if !st.Valid() {
		return model.StatusOut, s.corrupt(KeyStatus, fmt.Errorf("unknown status %q", st))
	}
	return st, nil
}

// WriteStatus persists st.
func (s *Store) WriteStatus(st model.Status) error {
	return s.writeKey(KeyStatus, []byte(st))
}

// ReadShiftID returns the active shift id, "" if absent.
func (s *Store) ReadShiftID() (string, error) {
	data, _, err := s.readKey(KeyShiftID)
	return strings.TrimSpace(string(data)), err
}

// WriteShiftID persists id. An empty id removes the key.
func (s *Store) WriteShiftID(id string) error {
	if id == "" {
		return s.removeKey(KeyShiftID)
	}
	return s.writeKey(KeyShiftID, []byte(id))
}

// ReadUser returns the stored user name, "" if absent.
func (s *Store) ReadUser() (string, error) {
	data, _, err := s.readKey(KeyUser)
	return string(data), err
}

// WriteUser persists the user name as typed.
func (s *Store) WriteUser(name string) error {
	return s.writeKey(KeyUser, []byte(name))
}

// ReadAutoShare returns the auto-share flag, false if absent.
func (s *Store) ReadAutoShare() (bool, error) {
	data, ok, err := s.readKey(KeyAutoShare)
	if err != nil || !ok {
		return false, err
	}
	v, perr := strconv.ParseBool(strings.TrimSpace(string(data)))
	if perr != nil {
		return false, s.corrupt(KeyAutoShare, perr)
	}
	return v, nil
}

// WriteAutoShare persists the auto-share flag.
func (s *Store) WriteAutoShare(v bool) error {
	return s.writeKey(KeyAutoShare, []byte(strconv.FormatBool(v)))
}

// ReadUnread returns the unread notification counter, 0 if absent.
func (s *Store) ReadUnread() (int, error) {
	data, ok, err := s.readKey(KeyUnread)
	if err != nil || !ok {
		return 0, err
	}
	n, perr := strconv.Atoi(strings.TrimSpace(string(data)))
	if perr != nil || n < 0 {
		if perr == nil {
			perr = fmt.Errorf("negative counter %d", n)
		}
		return 0, s.corrupt(KeyUnread, perr)
	}
	return n, nil
}

// WriteUnread persists the unread notification counter.
func (s *Store) WriteUnread(n int) error {
	return s.writeKey(KeyUnread, []byte(strconv.Itoa(n)))
}

// Load reads every key. Corrupt keys fall back to their defaults and are
// reported as *ParseError values joined into the returned error; any other
// error means the store could not be read at all.
func (s *Store) Load() (Data, error) {
	var (
		d    Data
		errs []error
		err  error
	)
	collect := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}

	d.Records, err = s.ReadRecords()
	collect(err)
	d.State.Status, err = s.ReadStatus()
	collect(err)
	d.State.ActiveShiftID, err = s.ReadShiftID()
	collect(err)
	d.State.UserName, err = s.ReadUser()
	collect(err)
	d.State.AutoShare, err = s.ReadAutoShare()
	collect(err)
	d.State.Unread, err = s.ReadUnread()
	collect(err)

	// An active status without a shift id cannot be resumed, and an out
	// status never carries one.
	if d.State.Status != model.StatusOut && d.State.ActiveShiftID == "" {
		d.State.Status = model.StatusOut
	}
	if d.State.Status == model.StatusOut {
		d.State.ActiveShiftID = ""
	}
	return d, errors.Join(errs...)
}

// Save writes every key. Writes are synchronous so a reload right after
// observes the new state.
func (s *Store) Save(d Data) error {
	if err := s.WriteRecords(d.Records); err != nil {
		return err
	}
	if err := s.WriteStatus(d.State.Status); err != nil {
		return err
	}
	if err := s.WriteShiftID(d.State.ActiveShiftID); err != nil {
		return err
	}
	if err := s.WriteUser(d.State.UserName); err != nil {
		return err
	}
	if err := s.WriteAutoShare(d.State.AutoShare); err != nil {
		return err
	}
	return s.WriteUnread(d.State.Unread)
}

// Clear removes every key, returning the store to its defaults.
func (s *Store) Clear() error {
	for _, key := range allKeys {
		if err := s.removeKey(key); err != nil {
			return err
		}
	}
	return nil
}

// BackupJSON writes the full record collection as an indented JSON document.
func BackupJSON(w io.Writer, records []model.ShiftRecord) error {
	if records == nil {
		records = []model.ShiftRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// IsParseError reports whether err only carries corrupt-value reports, so
// the caller can warn and continue with defaults.
func IsParseError(err error) bool {
	if err == nil {
		return false
	}
	var pe *ParseError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !errors.As(e, &pe) {
				return false
			}
		}
		return true
	}
	return errors.As(err, &pe)
}
