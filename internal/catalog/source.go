package catalog

import (
	"context"
	"fmt"
	"os"

	"daily-quiz-bot/internal/domain"
	"gopkg.in/yaml.v3"
)

// StaticSource serves a fixed list of definitions (useful for tests/demos).
type StaticSource struct {
	defs []domain.QuizDefinition
}

func NewStaticSource(defs ...domain.QuizDefinition) *StaticSource {
	return &StaticSource{defs: defs}
}

func (s *StaticSource) LoadDefinitions(_ context.Context) ([]domain.QuizDefinition, error) {
	out := make([]domain.QuizDefinition, len(s.defs))
	copy(out, s.defs)
	return out, nil
}

// FileSource reads definitions from a YAML document of the form
//
//	quizzes:
//	  - period: "2025-12-25"
//	    valid_until: "2025-12-27"
//	    questions:
//	      - prompt: "..."
//	        options: ["a", "b"]
//	        correct: 1
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type catalogFile struct {
	Quizzes []domain.QuizDefinition `yaml:"quizzes"`
}

func (s *FileSource) LoadDefinitions(_ context.Context) ([]domain.QuizDefinition, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
	}
	return file.Quizzes, nil
}
