// Package transcript reads and writes recorded command transcripts.
//
// A transcript is line oriented. Each line is one invocation:
//
//	uniaxialMaterial Elastic 1 2e+08 0.0
//	element zeroLength 4 1 2 -mat 1 -dir 1
//
// The first word is the engine procedure, the rest are tokens as rendered by
// command.FormatToken. Lines starting with '#' are comments and blank lines
// are skipped, so a transcript may carry a header.
package transcript

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/o3go/o3go/pkg/command"
)

// maxLine bounds a single transcript line; long packets can be large.
const maxLine = 4 * 1024 * 1024

// Format renders an invocation as one line without a trailing newline.
func Format(inv command.Invocation) string {
	return inv.Line()
}

// Parse parses one line. It returns ok=false for blank and comment lines.
func Parse(line string) (inv command.Invocation, ok bool, err error) {
	words, err := split(line)
	if err != nil {
		return command.Invocation{}, false, err
	}
	if len(words) == 0 {
		return command.Invocation{}, false, nil
	}
	if words[0].quoted {
		return command.Invocation{}, false, fmt.Errorf("command name must not be quoted")
	}

	tokens := make([]command.Token, 0, len(words)-1)
	for _, w := range words[1:] {
		if w.quoted {
			tokens = append(tokens, command.Str(w.text))
			continue
		}
		t, err := command.ParseToken(w.text)
		if err != nil {
			return command.Invocation{}, false, err
		}
		tokens = append(tokens, t)
	}
	return command.Describe(words[0].text, tokens), true, nil
}

type word struct {
	text   string
	quoted bool
}

// split breaks a line into words. Double-quoted words use Go escapes. An
// unquoted word starting with '#' begins a comment.
func split(line string) ([]word, error) {
	var words []word
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '#':
			return words, nil
		case c == '"':
			end, err := quotedEnd(line, i)
			if err != nil {
				return nil, err
			}
			s, err := strconv.Unquote(line[i:end])
			if err != nil {
				return nil, fmt.Errorf("column %d: %w", i+1, err)
			}
			words = append(words, word{text: s, quoted: true})
			i = end
		default:
			start := i
			for i < len(line) && !strings.ContainsRune(" \t\r\n", rune(line[i])) {
				if line[i] == '"' {
					return nil, fmt.Errorf("column %d: quote inside bare word", i+1)
				}
				i++
			}
			words = append(words, word{text: line[start:i]})
		}
	}
	return words, nil
}

func quotedEnd(line string, start int) (int, error) {
	for i := start + 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("column %d: unterminated string", start+1)
}

// Reader reads invocations from a transcript.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	return &Reader{scanner: scanner}
}

// Next returns the next invocation, or io.EOF at the end.
func (r *Reader) Next() (command.Invocation, error) {
	for r.scanner.Scan() {
		r.line++
		inv, ok, err := Parse(r.scanner.Text())
		if err != nil {
			return command.Invocation{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		if ok {
			return inv, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return command.Invocation{}, fmt.Errorf("failed to read transcript: %w", err)
	}
	return command.Invocation{}, io.EOF
}

// Line returns the number of the line last read.
func (r *Reader) Line() int { return r.line }

// ReadAll reads every invocation.
func ReadAll(r io.Reader) ([]command.Invocation, error) {
	reader := NewReader(r)
	var out []command.Invocation
	for {
		inv, err := reader.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
}

// Writer writes invocations as transcript lines.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes one invocation and flushes, so a crash loses at most the
// line being written.
func (w *Writer) Write(inv command.Invocation) error {
	if _, err := w.w.WriteString(Format(inv) + "\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// Comment writes a comment line.
func (w *Writer) Comment(format string, args ...interface{}) error {
	text := fmt.Sprintf(format, args...)
	for _, line := range strings.Split(text, "\n") {
		if _, err := w.w.WriteString("# " + line + "\n"); err != nil {
			return err
		}
	}
	return w.w.Flush()
}

// Header writes the standard transcript header.
func (w *Writer) Header(session string, cfg command.ModelConfig) error {
	return w.Comment("o3 transcript\nsession: %s\nndm: %d ndf: %d precision: %s\nrecorded: %s",
		session, cfg.Dimensions, cfg.DOFPerNode, cfg.Precision, time.Now().UTC().Format(time.RFC3339))
}
