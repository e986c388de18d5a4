// Package overdue tracks published slots until their end time passes, so that
// missed ones can be flagged in the calendar.
package overdue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const tableFile = "pending_slots.json"

type Entry struct {
	SlotID    string    `json:"slot_id"`
	SubtaskID string    `json:"subtask_id"`
	EventID   string    `json:"event_id"`
	Summary   string    `json:"summary"`
	End       time.Time `json:"end"`
}

type Table struct {
	Entries map[string]Entry `json:"entries"`
	Path    string           `json:"-"`
	dirty   bool
}

func NewTable(dir string) (*Table, error) {
	t := &Table{
		Path:    filepath.Join(dir, tableFile),
		Entries: make(map[string]Entry),
	}

	if _, err := os.Stat(t.Path); err == nil {
		if err := t.Load(); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (t *Table) Load() error {
	f, err := os.Open(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(t)
}

func (t *Table) Save() error {
	if !t.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.Path), 0700); err != nil {
		return err
	}

	f, err := os.Create(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(t)
	if err == nil {
		t.dirty = false
	}
	return err
}

// Update tracks e under its slot id. Entries without an end time are dropped.
func (t *Table) Update(e Entry) {
	if e.End.IsZero() {
		t.Remove(e.SlotID)
		return
	}
	if old, exists := t.Entries[e.SlotID]; !exists || old != e {
		t.Entries[e.SlotID] = e
		t.dirty = true
	}
}

func (t *Table) Remove(slotID string) {
	if _, exists := t.Entries[slotID]; exists {
		delete(t.Entries, slotID)
		t.dirty = true
	}
}

// Sweep returns entries whose slot ended before now and removes them.
func (t *Table) Sweep(now time.Time) []Entry {
	var swept []Entry
	for id, entry := range t.Entries {
		if entry.End.Before(now) {
			swept = append(swept, entry)
			delete(t.Entries, id)
			t.dirty = true
		}
	}
	return swept
}
