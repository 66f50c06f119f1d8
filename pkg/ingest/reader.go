// Package ingest reads session logs and yields normalized usage events.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/headroom/pkg/models"
)

// maxLineSize bounds a single JSONL record. Tool results can be large.
const maxLineSize = 10 * 1024 * 1024

// rawRecord is one line of a session log.
type rawRecord struct {
	Type              string      `json:"type"`
	Timestamp         string      `json:"timestamp"`
	RequestID         string      `json:"requestId"`
	IsAPIErrorMessage bool        `json:"isApiErrorMessage"`
	Message           *rawMessage `json:"message"`
}

type rawMessage struct {
	ID    string    `json:"id"`
	Model string    `json:"model"`
	Usage *rawUsage `json:"usage"`
}

type rawUsage struct {
	InputTokens              *int64 `json:"input_tokens"`
	OutputTokens             *int64 `json:"output_tokens"`
	CacheReadInputTokens     int64  `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int64  `json:"cache_creation_input_tokens"`
}

// Stats counts what a pass over the logs read and skipped.
type Stats struct {
	Files      int
	FileErrors int
	Lines      int
	Events     int
	Malformed  int
	Skipped    int
	Duplicates int
	// Latest is the newest event timestamp seen.
	Latest time.Time
}

// Reader turns session log files into usage events.
type Reader struct {
	logger zerolog.Logger
	// Dedupe drops repeated lines for the same message and request id.
	Dedupe bool

	stats Stats
	seen  map[string]struct{}
}

// NewReader creates a Reader that logs recovered errors to logger.
func NewReader(logger zerolog.Logger) *Reader {
	return &Reader{logger: logger, Dedupe: true}
}

// Stats returns the counters of the most recent pass.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Events returns a lazy sequence of usage events from paths. Files are opened
// one at a time and closed before the next is read. Counters are reset at the
// start of every iteration.
func (r *Reader) Events(paths []string) iter.Seq[models.UsageEvent] {
	return func(yield func(models.UsageEvent) bool) {
		r.stats = Stats{}
		r.seen = make(map[string]struct{})
		for _, p := range paths {
			if !r.readFile(p, yield) {
				return
			}
		}
	}
}

func (r *Reader) readFile(path string, yield func(models.UsageEvent) bool) bool {
	f, err := os.Open(path)
	if err != nil {
		r.stats.FileErrors++
		r.logger.Warn().Err(err).Str("file", path).Msg("skipping unreadable session log")
		return true
	}
	defer f.Close()
	r.stats.Files++

	br := bufio.NewReaderSize(f, 64*1024)
	var (
		line    []byte
		tooLong bool
		lineNo  int
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxLineSize {
				tooLong = true
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}

		if tooLong || len(line) > 0 {
			lineNo++
			if !r.handleLine(path, lineNo, bytes.TrimRight(line, "\r\n"), tooLong, yield) {
				return false
			}
		}
		line, tooLong = line[:0], false

		if err == io.EOF {
			return true
		}
		if err != nil {
			r.stats.FileErrors++
			r.logger.Warn().Err(err).Str("file", path).Int("line", lineNo+1).Msg("stopped reading session log")
			return true
		}
	}
}

// handleLine parses one line and yields its event. Lines over maxLineSize
// count as malformed and are dropped without affecting the rest of the file.
func (r *Reader) handleLine(path string, lineNo int, line []byte, tooLong bool, yield func(models.UsageEvent) bool) bool {
	if tooLong {
		r.stats.Lines++
		r.stats.Malformed++
		r.logger.Warn().Str("file", path).Int("line", lineNo).Int("max_bytes", maxLineSize).Msg("dropping oversized log line")
		return true
	}
	if len(line) == 0 {
		return true
	}
	r.stats.Lines++

	ev, ok := r.parseLine(path, lineNo, line)
	if !ok {
		return true
	}
	r.stats.Events++
	if ev.Timestamp.After(r.stats.Latest) {
		r.stats.Latest = ev.Timestamp
	}
	return yield(ev)
}

func (r *Reader) parseLine(path string, lineNo int, line []byte) (models.UsageEvent, bool) {
	var rec rawRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		r.stats.Malformed++
		r.logger.Debug().Err(err).Str("file", path).Int("line", lineNo).Msg("malformed log line")
		return models.UsageEvent{}, false
	}

	if rec.Type != "assistant" || rec.IsAPIErrorMessage {
		return models.UsageEvent{}, false
	}

	if rec.Message == nil || rec.Message.Usage == nil ||
		rec.Message.Usage.InputTokens == nil || rec.Message.Usage.OutputTokens == nil {
		r.skip(path, lineNo, "missing token usage")
		return models.UsageEvent{}, false
	}
	u := rec.Message.Usage
	if *u.InputTokens < 0 || *u.OutputTokens < 0 || u.CacheReadInputTokens < 0 || u.CacheCreationInputTokens < 0 {
		r.skip(path, lineNo, "negative token count")
		return models.UsageEvent{}, false
	}

	ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
	if err != nil {
		r.skip(path, lineNo, "missing or invalid timestamp")
		return models.UsageEvent{}, false
	}

	if r.Dedupe && rec.Message.ID != "" {
		key := rec.Message.ID + ":" + rec.RequestID
		if _, dup := r.seen[key]; dup {
			r.stats.Duplicates++
			return models.UsageEvent{}, false
		}
		r.seen[key] = struct{}{}
	}

	return models.UsageEvent{
		Timestamp:           ts.UTC(),
		Model:               models.ResolveModel(rec.Message.Model),
		RawModel:            rec.Message.Model,
		InputTokens:         *u.InputTokens,
		OutputTokens:        *u.OutputTokens,
		CacheReadTokens:     u.CacheReadInputTokens,
		CacheCreationTokens: u.CacheCreationInputTokens,
	}, true
}

func (r *Reader) skip(path string, lineNo int, reason string) {
	r.stats.Skipped++
	r.logger.Debug().Str("file", path).Int("line", lineNo).Str("reason", reason).Msg("skipped assistant record")
}

// Discover returns all *.jsonl files below dirs, sorted. Directories that do
// not exist or cannot be read contribute nothing.
func Discover(dirs []string) []string {
	var files []string
	for _, dir := range dirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && filepath.Ext(path) == ".jsonl" {
				files = append(files, path)
			}
			return nil
		})
	}
	sort.Strings(files)
	return files
}
