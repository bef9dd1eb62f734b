// Package words supplies secret words per language.
//
// Lists are embedded so the service always has a bank to draw from;
// WORDS_DIR may point at a directory of <language>.txt files that replace them.
package words

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

//go:embed *.txt
var embedded embed.FS

// ErrUnsupportedLanguage is returned when no list exists for a language.
var ErrUnsupportedLanguage = errors.New("words: unsupported language")

// Rand is the random source used to draw words.
type Rand interface {
	Intn(n int) int
}

// Bank holds secret-word lists keyed by language code.
type Bank struct {
	mu    sync.RWMutex
	lists map[string][]string
}

// Default loads the embedded lists, overridden by WORDS_DIR when set.
func Default() (*Bank, error) {
	b := &Bank{lists: make(map[string][]string)}

	entries, err := embedded.ReadDir(".")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		f, err := embedded.Open(e.Name())
		if err != nil {
			return nil, err
		}
		words, err := readList(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", e.Name(), err)
		}
		b.lists[strings.TrimSuffix(e.Name(), ".txt")] = words
	}

	if dir := os.Getenv("WORDS_DIR"); dir != "" {
		if err := b.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// New builds a bank from in-memory lists.
func New(lists map[string][]string) *Bank {
	b := &Bank{lists: make(map[string][]string, len(lists))}
	for lang, words := range lists {
		b.lists[lang] = append([]string(nil), words...)
	}
	return b
}

// LoadDir replaces lists with every <language>.txt file in dir.
func (b *Bank) LoadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return err
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		words, err := readList(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
		b.mu.Lock()
		b.lists[strings.TrimSuffix(filepath.Base(p), ".txt")] = words
		b.mu.Unlock()
	}
	return nil
}

func readList(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, strings.ToLower(line))
	}
	return words, scanner.Err()
}

// Languages returns the supported language codes.
func (b *Bank) Languages() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.lists))
	for lang := range b.lists {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether the bank has words for language.
func (b *Bank) Supports(language string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lists[language]) > 0
}

// Draw picks a word for language, avoiding exclude when another word exists.
func (b *Bank) Draw(rng Rand, language, exclude string) (string, error) {
	b.mu.RLock()
	list := b.lists[language]
	b.mu.RUnlock()

	if len(list) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	if len(list) == 1 {
		return list[0], nil
	}

	candidates := list
	if exclude != "" {
		candidates = make([]string, 0, len(list))
		for _, w := range list {
			if w != exclude {
				candidates = append(candidates, w)
			}
		}
	}
	return candidates[rng.Intn(len(candidates))], nil
}
