package runlog

import (
	"io"
	"testing"
	"time"
)

func TestJournal_AppendAndRead(t *testing.T) {
	dir := t.TempDir()

	journal, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	type commandData struct {
		Command string `json:"command"`
	}

	if err := journal.Append(EntryTaskStarted, "web1.example.com", "deploy", nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := journal.Append(EntryCommand, "web1.example.com", "deploy", commandData{Command: "mkdir -p /srv/app"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := journal.Append(EntryTaskCompleted, "web1.example.com", "deploy", nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reader, err := NewReader(journal.Path())
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer reader.Close()

	var entries []*Entry
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		entries = append(entries, entry)
	}

	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Type != EntryTaskStarted || entries[0].Sequence != 1 {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Type != EntryCommand || entries[1].Host != "web1.example.com" {
		t.Errorf("second entry = %+v", entries[1])
	}
	if entries[2].Sequence != 3 {
		t.Errorf("sequence = %d, want 3", entries[2].Sequence)
	}
}

func TestJournal_AppendError(t *testing.T) {
	dir := t.TempDir()

	journal, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	failure := io.ErrUnexpectedEOF
	if err := journal.AppendError(EntryTaskFailed, "web1.example.com", "deploy", nil, failure); err != nil {
		t.Fatalf("AppendError() error = %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reader, err := NewReader(journal.Path())
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer reader.Close()

	entry, err := reader.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if entry.Error != failure.Error() {
		t.Errorf("error = %q, want %q", entry.Error, failure.Error())
	}
}

func TestReplay(t *testing.T) {
	dir := t.TempDir()

	journal, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := journal.Append(EntryProvisioned, "", "provision", nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := journal.Append(EntryTerminated, "", "terminate", nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var replayed []EntryType
	err = Replay(dir, time.Now().Add(-time.Minute), func(entry *Entry) error {
		replayed = append(replayed, entry.Type)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if len(replayed) != 2 {
		t.Fatalf("replayed = %v", replayed)
	}

	// nothing after a future cutoff
	replayed = nil
	err = Replay(dir, time.Now().Add(time.Minute), func(entry *Entry) error {
		replayed = append(replayed, entry.Type)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if len(replayed) != 0 {
		t.Errorf("replayed after future cutoff = %v", replayed)
	}
}
