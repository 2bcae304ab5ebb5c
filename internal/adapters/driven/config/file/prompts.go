package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves answer prompts from editable text files in a directory,
// one <name>.txt per prompt. Missing or unusable files fall back to the
// built-in templates. Nothing touches disk until the first Load.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.RWMutex
	cache map[string]string
}

//nolint:lll // prompt text reads better unwrapped
var builtinPrompts = map[string]string{
	driven.PromptSystem: `You are a helpful compliance assistant for small and medium-sized businesses.`,

	driven.PromptGroundedAnswer: `You are a compliance auditor reviewing a company's internal documents.

Answer the user's question strictly using the document excerpts provided below. Do not rely on prior knowledge.

If the excerpts do not mention the topic, say clearly:
"This document does not appear to contain information related to [topic]."

If the excerpts are relevant, summarise them with section references or quoted lines where appropriate.

Finish with a section headed "Recommended Improvements:" listing concrete, actionable steps as bullet points.

Document excerpts:
%s

User question:
"%s"

Answer:`,

	driven.PromptGeneralAnswer: `You are a compliance assistant. The user asked a question, but no relevant content was found in their uploaded documents. Answer using general compliance knowledge.

User question: "%s"

Start your response with: "General compliance guidance:"

Finish with a section headed "Recommended Improvements:" listing concrete, actionable steps as bullet points.`,
}

// placeholders is how many %s verbs each template must contain.
var placeholders = map[string]int{
	driven.PromptSystem:         0,
	driven.PromptGroundedAnswer: 2,
	driven.PromptGeneralAnswer:  1,
}

const promptReadme = `# Verity prompts

Each .txt file here is a prompt template used by "verity ask" and
"verity serve". Edit a file to change how answers are written; delete it to
get the built-in version back on the next run.

  system.txt           sent with every question, no placeholders
  grounded_answer.txt  two %s: the excerpts, then the question
  general_answer.txt   one %s: the question

A template with the wrong number of %s is ignored in favour of the built-in
one. Keep a "Recommended Improvements:" heading in the instructions, since
suggested tasks are read from the lines under it.
`

// NewPromptStore returns a store rooted at dir, or ~/.verity/prompts when
// dir is empty.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".verity", "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the named template. The first call seeds the directory with
// the built-in templates and a README, never overwriting existing files.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(s.seed)

	builtin, known := builtinPrompts[name]
	if s.seedErr != nil {
		if known {
			return builtin, nil
		}
		return "", fmt.Errorf("prompt directory unavailable: %w", s.seedErr)
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	prompt, err := s.read(name)
	switch {
	case err != nil && !known:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	case err != nil:
		prompt = builtin
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cache[name]; ok {
		return existing, nil
	}
	s.cache[name] = prompt
	return prompt, nil
}

// Reload drops cached templates so edits on disk are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	files := map[string]string{"README.md": promptReadme}
	for name, text := range builtinPrompts {
		files[name+".txt"] = text
	}
	for file, text := range files {
		if err := writeIfMissing(filepath.Join(s.dir, file), text); err != nil {
			s.seedErr = fmt.Errorf("seed %s: %w", file, err)
			return
		}
	}
}

// read loads a template from disk and checks its placeholder count.
func (s *PromptStore) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(string(data))

	if want, ok := placeholders[name]; ok {
		if got := strings.Count(prompt, "%s"); got != want {
			logger.Warn("prompt %s has %d %%s placeholders, want %d; using built-in", name, got, want)
			return "", errBadTemplate
		}
	}
	return prompt, nil
}

var errBadTemplate = errors.New("wrong number of placeholders")

func writeIfMissing(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
