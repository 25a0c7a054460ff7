package catalog

import (
	"fmt"
	"time"

	"daily-quiz-bot/internal/domain"
)

// Validate checks that every definition is well formed and periods are unique.
func Validate(defs []domain.QuizDefinition) error {
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		start, err := time.Parse(domain.DateLayout, def.Period)
		if err != nil {
			return fmt.Errorf("%w: period %q: %v", domain.ErrInvalidCatalog, def.Period, err)
		}
		until, err := time.Parse(domain.DateLayout, def.ValidUntil)
		if err != nil {
			return fmt.Errorf("%w: period %s: valid_until %q: %v", domain.ErrInvalidCatalog, def.Period, def.ValidUntil, err)
		}
		if until.Before(start) {
			return fmt.Errorf("%w: period %s ends before it starts", domain.ErrInvalidCatalog, def.Period)
		}
		if _, dup := seen[def.Period]; dup {
			return fmt.Errorf("%w: duplicate period %s", domain.ErrInvalidCatalog, def.Period)
		}
		seen[def.Period] = struct{}{}

		if len(def.Questions) == 0 {
			return fmt.Errorf("%w: period %s has no questions", domain.ErrInvalidCatalog, def.Period)
		}
		for i, q := range def.Questions {
			if len(q.Options) < 2 {
				return fmt.Errorf("%w: period %s question %d needs at least two options", domain.ErrInvalidCatalog, def.Period, i+1)
			}
			if q.Correct < 0 || q.Correct >= len(q.Options) {
				return fmt.Errorf("%w: period %s question %d correct index %d out of range", domain.ErrInvalidCatalog, def.Period, i+1, q.Correct)
			}
		}
	}
	return nil
}
