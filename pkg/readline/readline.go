// Package readline provides line editing and persistent command history
// for celoxgo-repl's interactive session: reading a line at a time from
// stdin, echoing a (possibly dynamic, per spec.md 6's interactive driver)
// prompt, and keeping a bounded, file-backed log of every command a user
// has typed so /history can list it, or filter it by a search query.
package readline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Reader reads one command line at a time from an interactive session,
// tracking a bounded, optionally file-backed history of everything read.
type Reader struct {
	input       io.Reader
	output      io.Writer
	prompt      string
	history     []string
	historyFile string
	maxHistory  int
	scanner     *bufio.Scanner
}

// Config holds readline configuration
type Config struct {
	Prompt      string
	HistoryFile string
	MaxHistory  int
	Input       io.Reader
	Output      io.Writer
}

// NewReader creates a Reader against config.Input (stdin if nil), loading
// any existing history file immediately so /history (with or without a
// query) has prior-session content from its first use.
func NewReader(config *Config) *Reader {
	if config.Input == nil {
		config.Input = os.Stdin
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.MaxHistory == 0 {
		config.MaxHistory = 1000
	}

	r := &Reader{
		input:       config.Input,
		output:      config.Output,
		prompt:      config.Prompt,
		historyFile: config.HistoryFile,
		maxHistory:  config.MaxHistory,
		scanner:     bufio.NewScanner(config.Input),
	}

	if config.HistoryFile != "" {
		r.loadHistory()
	}

	return r
}

// ReadLine prints the current prompt, reads one line, and records it in
// history (skipping a blank line or an exact repeat of the line just
// before it, so re-running the same command doesn't pad the log).
// TODO: drive this over golang.org/x/term's raw mode for arrow-key
// history navigation instead of bufio.Scanner's line-at-a-time read.
func (r *Reader) ReadLine() (string, error) {
	fmt.Fprint(r.output, r.prompt)

	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	line := r.scanner.Text()
	if line != "" && (len(r.history) == 0 || r.history[len(r.history)-1] != line) {
		r.AddHistory(line)
	}

	return line, nil
}

// AddHistory appends line to history, trimming to maxHistory and
// persisting to historyFile if one is configured.
func (r *Reader) AddHistory(line string) {
	r.history = append(r.history, line)
	if len(r.history) > r.maxHistory {
		r.history = r.history[len(r.history)-r.maxHistory:]
	}
	if r.historyFile != "" {
		r.saveHistory()
	}
}

// GetHistory returns every recorded line, oldest first.
func (r *Reader) GetHistory() []string {
	return r.history
}

// ClearHistory empties history in memory and removes the backing file,
// if one is configured.
func (r *Reader) ClearHistory() {
	r.history = nil
	if r.historyFile != "" {
		os.Remove(r.historyFile)
	}
}

// SetPrompt changes the prompt shown before the next ReadLine, letting a
// caller reflect live state (e.g. simulated time) in it between commands.
func (r *Reader) SetPrompt(prompt string) {
	r.prompt = prompt
}

func (r *Reader) loadHistory() error {
	dir := filepath.Dir(r.historyFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := os.ReadFile(r.historyFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			r.history = append(r.history, line)
		}
	}
	if len(r.history) > r.maxHistory {
		r.history = r.history[len(r.history)-r.maxHistory:]
	}
	return nil
}

func (r *Reader) saveHistory() error {
	dir := filepath.Dir(r.historyFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data := strings.Join(r.history, "\n")
	return os.WriteFile(r.historyFile, []byte(data), 0644)
}

// SearchHistory returns every history line containing query, case-insensitive.
func (r *Reader) SearchHistory(query string) []string {
	var results []string
	query = strings.ToLower(query)
	for _, line := range r.history {
		if strings.Contains(strings.ToLower(line), query) {
			results = append(results, line)
		}
	}
	return results
}

