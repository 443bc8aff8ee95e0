package health

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultSummaryCap bounds the per-day summary ring buffer: 24 hours
	// of one-minute ticks.
	DefaultSummaryCap = 1440

	eventsDirName    = "events"
	summariesDirName = "summaries"
	dayLayout        = "2006-01-02"

	journalDirPerm  = 0o750
	journalFilePerm = 0o600
)

// Journal persists health events and status summaries under a base
// directory:
//
//	{dir}/events/{deviceId}/{YYYY-MM-DD}.jsonl   append-only, one JSON event per line
//	{dir}/summaries/{YYYY-MM-DD}.json            ring buffer of StatusSummary
//
// All writes are serialized by a single mutex; journal throughput is one
// small record per status transition plus one per tick, so contention is
// not a concern at this cardinality.
type Journal struct {
	dir        string
	summaryCap int
	mu         sync.Mutex
}

// NewJournal opens (creating if needed) a journal rooted at dir.
// summaryCap bounds each day's summary ring; non-positive values use
// DefaultSummaryCap.
func NewJournal(dir string, summaryCap int) (*Journal, error) {
	if summaryCap <= 0 {
		summaryCap = DefaultSummaryCap
	}

	for _, sub := range []string{eventsDirName, summariesDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), journalDirPerm); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	return &Journal{dir: dir, summaryCap: summaryCap}, nil
}

// AppendEvent appends ev to the device's journal file for the event's
// UTC day. The file is opened append-only so concurrent process restarts
// never truncate history.
func (j *Journal) AppendEvent(ev Event) error {
	if ev.DeviceID == "" {
		return errors.New("health: event missing device id")
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	deviceDir := filepath.Join(j.dir, eventsDirName, ev.DeviceID)
	path := filepath.Join(deviceDir, ev.Timestamp.UTC().Format(dayLayout)+".jsonl")

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(deviceDir, journalDirPerm); err != nil {
		return fmt.Errorf("creating device journal directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, journalFilePerm)
	if err != nil {
		return fmt.Errorf("opening journal file: %w", err)
	}
	defer f.Close() //nolint:errcheck // Write errors surface below

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return f.Sync()
}

// EventsForDevice reads back the device's events for the given UTC day,
// oldest first. A day with no journal file yields an empty slice.
func (j *Journal) EventsForDevice(deviceID string, day time.Time) ([]Event, error) {
	path := filepath.Join(j.dir, eventsDirName, deviceID,
		day.UTC().Format(dayLayout)+".jsonl")

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("opening journal file: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only handle

	events := []Event{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			// A torn trailing line from a crash mid-append is skipped,
			// not fatal: everything before it is intact.
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading journal file: %w", err)
	}
	return events, nil
}

// AppendSummary appends s to its UTC day's ring buffer, evicting the
// oldest entries past the cap. The file is rewritten atomically via a
// temp file and rename.
func (j *Journal) AppendSummary(s StatusSummary) error {
	day := s.Timestamp.UTC().Format(dayLayout)
	path := filepath.Join(j.dir, summariesDirName, day+".json")

	j.mu.Lock()
	defer j.mu.Unlock()

	summaries, err := j.readSummariesLocked(path)
	if err != nil {
		return err
	}

	summaries = append(summaries, s)
	if len(summaries) > j.summaryCap {
		summaries = summaries[len(summaries)-j.summaryCap:]
	}

	data, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("marshaling summaries: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, journalFilePerm); err != nil {
		return fmt.Errorf("writing summary file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing summary file: %w", err)
	}
	return nil
}

// SummariesForDay reads back the ring buffer for the given UTC day,
// oldest first.
func (j *Journal) SummariesForDay(day time.Time) ([]StatusSummary, error) {
	path := filepath.Join(j.dir, summariesDirName,
		day.UTC().Format(dayLayout)+".json")

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.readSummariesLocked(path)
}

func (j *Journal) readSummariesLocked(path string) ([]StatusSummary, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is journal-internal
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []StatusSummary{}, nil
		}
		return nil, fmt.Errorf("reading summary file: %w", err)
	}

	var summaries []StatusSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, fmt.Errorf("parsing summary file: %w", err)
	}
	return summaries, nil
}

// Prune removes event and summary files for UTC days strictly before
// cutoff, returning the number of files removed. Device directories left
// empty are removed too.
func (j *Journal) Prune(cutoff time.Time) (int, error) {
	cutoffDay := cutoff.UTC().Format(dayLayout)

	j.mu.Lock()
	defer j.mu.Unlock()

	removed := 0

	eventsRoot := filepath.Join(j.dir, eventsDirName)
	deviceDirs, err := os.ReadDir(eventsRoot)
	if err != nil {
		return 0, fmt.Errorf("listing event directories: %w", err)
	}
	for _, dd := range deviceDirs {
		if !dd.IsDir() {
			continue
		}
		deviceDir := filepath.Join(eventsRoot, dd.Name())
		files, err := os.ReadDir(deviceDir)
		if err != nil {
			return removed, fmt.Errorf("listing device journal: %w", err)
		}
		remaining := len(files)
		for _, f := range files {
			day, ok := dayFromFilename(f.Name(), ".jsonl")
			if !ok || day >= cutoffDay {
				continue
			}
			if err := os.Remove(filepath.Join(deviceDir, f.Name())); err != nil {
				return removed, fmt.Errorf("removing journal file: %w", err)
			}
			removed++
			remaining--
		}
		if remaining == 0 {
			// Best effort: an empty directory may have gained a file since
			// the listing, in which case Remove fails and that is fine.
			_ = os.Remove(deviceDir) //nolint:errcheck
		}
	}

	summariesRoot := filepath.Join(j.dir, summariesDirName)
	files, err := os.ReadDir(summariesRoot)
	if err != nil {
		return removed, fmt.Errorf("listing summaries: %w", err)
	}
	for _, f := range files {
		day, ok := dayFromFilename(f.Name(), ".json")
		if !ok || day >= cutoffDay {
			continue
		}
		if err := os.Remove(filepath.Join(summariesRoot, f.Name())); err != nil {
			return removed, fmt.Errorf("removing summary file: %w", err)
		}
		removed++
	}

	return removed, nil
}

// dayFromFilename extracts and validates the YYYY-MM-DD stem of a journal
// filename. Lexical comparison on this format matches chronological order.
func dayFromFilename(name, ext string) (string, bool) {
	if filepath.Ext(name) != ext {
		return "", false
	}
	stem := name[:len(name)-len(ext)]
	if _, err := time.Parse(dayLayout, stem); err != nil {
		return "", false
	}
	return stem, true
}
