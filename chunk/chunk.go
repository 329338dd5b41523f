// Package chunk splits raw text into sections for ingestion.
package chunk

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Mode selects how text is split.
type Mode int

const (
	// Paragraphs splits on blank lines.
	Paragraphs Mode = iota
	// Pages splits on form feeds and "Page N:" markers.
	Pages
)

func (m Mode) String() string {
	switch m {
	case Paragraphs:
		return "paragraphs"
	case Pages:
		return "pages"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "paragraphs" or "pages".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "paragraph", "paragraphs", "txt":
		return Paragraphs, nil
	case "page", "pages", "pdf":
		return Pages, nil
	default:
		return 0, fmt.Errorf("chunk: unknown mode %q", s)
	}
}

// Chunk is one section of the input.
type Chunk struct {
	ID    string
	Index int
	Text  string
}

// Options configures Split.
type Options struct {
	Mode Mode

	// MinLength drops sections with this many characters or fewer. Default: 10.
	MinLength int

	// MaxLength splits longer sections at word boundaries. Zero disables it.
	MaxLength int

	// IDPrefix produces ids "<prefix>_doc_<n>". When empty, ids are name-based
	// UUIDs of Source and the section text, so re-ingesting the same text
	// from the same source yields the same ids.
	IDPrefix string

	// Source scopes content ids. The same text split with different sources
	// gets different ids.
	Source string
}

// DefaultOptions returns the default split options.
func DefaultOptions() Options {
	return Options{
		Mode:      Paragraphs,
		MinLength: 10,
	}
}

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)
	pageMarker     = regexp.MustCompile(`(?m)^\s*Page \d+:\s*$`)
)

// namespace scopes the name-based chunk ids.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hupe1980/embeddb/chunk"))

// Split divides text into chunks. Section numbering counts every section,
// including dropped short ones, so ids stay stable when neighbours change.
func Split(text string, optFns ...func(o *Options)) []Chunk {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")

	var sections []string
	switch opts.Mode {
	case Pages:
		for _, page := range strings.Split(text, "\f") {
			sections = append(sections, pageMarker.Split(page, -1)...)
		}
	default:
		sections = paragraphBreak.Split(text, -1)
	}

	var chunks []Chunk
	n := 0
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}

		for _, part := range splitLong(section, opts.MaxLength) {
			n++
			if utf8.RuneCountInString(part) <= opts.MinLength {
				continue
			}
			chunks = append(chunks, Chunk{
				ID:    chunkID(opts, n, part),
				Index: n,
				Text:  part,
			})
		}
	}
	return chunks
}

func chunkID(opts Options, n int, text string) string {
	if opts.IDPrefix != "" {
		return fmt.Sprintf("%s_doc_%d", opts.IDPrefix, n)
	}
	// NUL cannot appear in a path, so source and text never run together.
	return uuid.NewSHA1(namespace, []byte(opts.Source+"\x00"+text)).String()
}

// splitLong cuts s into pieces of at most max runes, breaking at whitespace
// where possible.
func splitLong(s string, max int) []string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return []string{s}
	}

	var parts []string
	var b strings.Builder
	size := 0

	flush := func() {
		if size > 0 {
			parts = append(parts, strings.TrimSpace(b.String()))
			b.Reset()
			size = 0
		}
	}

	for _, word := range strings.Fields(s) {
		wl := utf8.RuneCountInString(word)

		for wl > max {
			flush()
			r := []rune(word)
			parts = append(parts, string(r[:max]))
			word = string(r[max:])
			wl -= max
		}

		if size > 0 && size+1+wl > max {
			flush()
		}
		if size > 0 {
			b.WriteByte(' ')
			size++
		}
		b.WriteString(word)
		size += wl
	}
	flush()

	return parts
}
