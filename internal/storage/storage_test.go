package storage_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/storage"
)

func TestLoadEmptyDefaults(t *testing.T) {
	s := storage.Open(t.TempDir())
	d, err := s.Load()
	if err != nil {
		t.Fatalf("Load on empty dir: %v", err)
	}
	if len(d.Records) != 0 {
		t.Errorf("Records = %d, want 0", len(d.Records))
	}
	if d.State.Status != model.StatusOut {
		t.Errorf("Status = %q, want %q", d.State.Status, model.StatusOut)
	}
	if d.State.ActiveShiftID != "" || d.State.UserName != "" || d.State.AutoShare || d.State.Unread != 0 {
		t.Errorf("State = %+v, want zero defaults", d.State)
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := storage.Open(t.TempDir())
	in := time.Date(2026, 2, 27, 8, 0, 0, 0, time.UTC)
	d := storage.Data{
		State: model.TrackerState{
			Status:        model.StatusIn,
			ActiveShiftID: "r1",
			UserName:      "Dana",
			AutoShare:     true,
			Unread:        3,
		},
		Records: []model.ShiftRecord{
			{ID: "r1", Kind: model.KindWork, OccurredOn: in, ClockIn: &in},
		},
	}
	if err := s.Save(d); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	if loaded.State != d.State {
		t.Errorf("State = %+v, want %+v", loaded.State, d.State)
	}
	if len(loaded.Records) != 1 || loaded.Records[0].ID != "r1" {
		t.Fatalf("Records = %+v", loaded.Records)
	}
	if loaded.Records[0].ClockIn == nil || !loaded.Records[0].ClockIn.Equal(in) {
		t.Errorf("ClockIn = %v, want %v", loaded.Records[0].ClockIn, in)
	}
}

func TestSaveRemovesShiftIDWhenOut(t *testing.T) {
	base := t.TempDir()
	s := storage.Open(base)
	if err := s.WriteShiftID("r1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(storage.Data{State: model.TrackerState{Status: model.StatusOut}}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(base, storage.KeyShiftID)); !os.IsNotExist(err) {
		t.Errorf("shift_id still present after clearing: %v", err)
	}
}

func TestCorruptRecordsFallBackToEmpty(t *testing.T) {
	base := t.TempDir()
	s := storage.Open(base)
	path := filepath.Join(base, storage.KeyRecords)
	if err := os.WriteFile(path, []byte("{bad json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteUser("Dana"); err != nil {
		t.Fatal(err)
	}

	d, err := s.Load()
	if err == nil {
		t.Fatal("expected parse error for corrupt records")
	}
	var pe *storage.ParseError
	if !errors.As(err, &pe) || pe.Key != storage.KeyRecords {
		t.Fatalf("err = %v, want *ParseError for %s", err, storage.KeyRecords)
	}
	if !storage.IsParseError(err) {
		t.Error("IsParseError = false for parse-only error")
	}
	if len(d.Records) != 0 {
		t.Errorf("Records = %d, want 0 after corrupt load", len(d.Records))
	}
	if d.State.UserName != "Dana" {
		t.Errorf("UserName = %q, other keys should still load", d.State.UserName)
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Errorf("expected backup file: %v", err)
	}
}

func TestUnknownStatusIsCorrupt(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, storage.KeyStatus), []byte("lunch"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := storage.Open(base).ReadStatus()
	if st != model.StatusOut {
		t.Errorf("status = %q, want out", st)
	}
	if !storage.IsParseError(err) {
		t.Errorf("err = %v, want ParseError", err)
	}
}

func TestActiveStatusWithoutShiftIDResetsToOut(t *testing.T) {
	s := storage.Open(t.TempDir())
	if err := s.WriteStatus(model.StatusIn); err != nil {
		t.Fatal(err)
	}
	d, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if d.State.Status != model.StatusOut {
		t.Errorf("Status = %q, want out", d.State.Status)
	}
}

func TestCorruptStatusDropsShiftID(t *testing.T) {
	base := t.TempDir()
	s := storage.Open(base)
	if err := s.WriteShiftID("r1"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, storage.KeyStatus), []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	d, err := s.Load()
	if !storage.IsParseError(err) {
		t.Fatalf("err = %v, want ParseError", err)
	}
	if d.State.Status != model.StatusOut {
		t.Errorf("Status = %q, want out", d.State.Status)
	}
	if d.State.ActiveShiftID != "" {
		t.Errorf("ActiveShiftID = %q, want empty while out", d.State.ActiveShiftID)
	}
}

func TestClear(t *testing.T) {
	base := t.TempDir()
	s := storage.Open(base)
	if err := s.Save(storage.Data{
		State:   model.TrackerState{Status: model.StatusOut, UserName: "Dana", Unread: 2},
		Records: []model.ShiftRecord{{ID: "x", Kind: model.KindPaidOff, DurationMinutes: 480}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	d, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Records) != 0 || d.State.UserName != "" || d.State.Unread != 0 {
		t.Errorf("after Clear: %+v", d)
	}
}

func TestBackupJSON(t *testing.T) {
	var buf bytes.Buffer
	records := []model.ShiftRecord{{ID: "a", Kind: model.KindPaidOff, DurationMinutes: 480}}
	if err := storage.BackupJSON(&buf, records); err != nil {
		t.Fatal(err)
	}
	var back []model.ShiftRecord
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("backup is not JSON: %v", err)
	}
	if len(back) != 1 || back[0].Kind != model.KindPaidOff {
		t.Errorf("backup = %+v", back)
	}

	buf.Reset()
	if err := storage.BackupJSON(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if got := bytes.TrimSpace(buf.Bytes()); string(got) != "[]" {
		t.Errorf("empty backup = %q, want []", got)
	}
}
