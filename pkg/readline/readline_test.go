package readline

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func newTestReader(t *testing.T, input, historyFile string) *Reader {
	t.Helper()
	return NewReader(&Config{
		Prompt:      "test> ",
		HistoryFile: historyFile,
		Input:       strings.NewReader(input),
		Output:      &bytes.Buffer{},
	})
}

func TestReadLineReturnsEachLineInOrder(t *testing.T) {
	r := newTestReader(t, "/step\n/get count\n", "")

	line, err := r.ReadLine()
	if err != nil || line != "/step" {
		t.Fatalf("ReadLine() = (%q, %v), want (\"/step\", nil)", line, err)
	}
	line, err = r.ReadLine()
	if err != nil || line != "/get count" {
		t.Fatalf("ReadLine() = (%q, %v), want (\"/get count\", nil)", line, err)
	}
	if _, err := r.ReadLine(); err == nil {
		t.Fatal("expected EOF reading past the last line")
	}
}

func TestReadLineRecordsHistorySkippingConsecutiveDuplicates(t *testing.T) {
	r := newTestReader(t, "/time\n/time\n/step\n", "")
	for i := 0; i < 3; i++ {
		if _, err := r.ReadLine(); err != nil {
			t.Fatalf("ReadLine #%d: %v", i, err)
		}
	}
	got := r.GetHistory()
	want := []string{"/time", "/step"}
	if len(got) != len(want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReadLineSkipsBlankLines(t *testing.T) {
	r := newTestReader(t, "\n/step\n", "")
	if _, err := r.ReadLine(); err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if len(r.GetHistory()) != 0 {
		t.Errorf("history = %v, want empty after a blank line", r.GetHistory())
	}
}

func TestAddHistoryTrimsToMaxHistory(t *testing.T) {
	r := NewReader(&Config{Input: strings.NewReader(""), Output: &bytes.Buffer{}, MaxHistory: 2})
	r.AddHistory("a")
	r.AddHistory("b")
	r.AddHistory("c")
	got := r.GetHistory()
	want := []string{"b", "c"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("history = %v, want %v", got, want)
	}
}

func TestSearchHistoryIsCaseInsensitiveSubstring(t *testing.T) {
	r := NewReader(&Config{Input: strings.NewReader(""), Output: &bytes.Buffer{}})
	r.AddHistory("/set rst 1")
	r.AddHistory("/get count")
	r.AddHistory("/SET count 5")

	got := r.SearchHistory("set")
	if len(got) != 2 {
		t.Fatalf("SearchHistory(\"set\") = %v, want 2 matches", got)
	}
}

func TestClearHistoryEmptiesInMemoryLog(t *testing.T) {
	r := NewReader(&Config{Input: strings.NewReader(""), Output: &bytes.Buffer{}})
	r.AddHistory("/step")
	r.ClearHistory()
	if got := r.GetHistory(); len(got) != 0 {
		t.Errorf("history = %v, want empty after ClearHistory", got)
	}
}

func TestHistoryPersistsAcrossReaders(t *testing.T) {
	histFile := filepath.Join(t.TempDir(), "history")

	first := newTestReader(t, "/one\n/two\n", histFile)
	for i := 0; i < 2; i++ {
		if _, err := first.ReadLine(); err != nil {
			t.Fatalf("ReadLine #%d: %v", i, err)
		}
	}

	second := newTestReader(t, "", histFile)
	got := second.GetHistory()
	if len(got) != 2 || got[0] != "/one" || got[1] != "/two" {
		t.Fatalf("reloaded history = %v, want [/one /two]", got)
	}
}

func TestSetPromptChangesPromptOutput(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewReader(&Config{Input: strings.NewReader("/step\n"), Output: out})
	r.SetPrompt("counter@10> ")
	if _, err := r.ReadLine(); err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if !strings.HasPrefix(out.String(), "counter@10> ") {
		t.Errorf("output = %q, want it to start with the prompt set via SetPrompt", out.String())
	}
}
