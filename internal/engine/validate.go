package engine

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/lazypower/reverie/internal/memory"
)

// maxDescriptionChars caps a fact's description (~200 tokens at 4 chars each).
const maxDescriptionChars = 800

// ErrInvalidFact is returned for a fact missing its subject, predicate or object.
var ErrInvalidFact = errors.New("invalid fact")

// validateFact trims every field, requires the triple, defaults the
// description to "subject predicate object" and truncates long descriptions.
func validateFact(f memory.Fact) (memory.Fact, error) {
	f.Subject = strings.TrimSpace(f.Subject)
	f.Predicate = strings.TrimSpace(f.Predicate)
	f.Object = strings.TrimSpace(f.Object)
	f.Description = strings.TrimSpace(f.Description)

	switch {
	case f.Subject == "":
		return f, errors.Wrap(ErrInvalidFact, "empty subject")
	case f.Predicate == "":
		return f, errors.Wrap(ErrInvalidFact, "empty predicate")
	case f.Object == "":
		return f, errors.Wrap(ErrInvalidFact, "empty object")
	}

	if f.Description == "" {
		f.Description = f.Subject + " " + f.Predicate + " " + f.Object
	}
	if len(f.Description) > maxDescriptionChars {
		f.Description = truncateClean(f.Description, maxDescriptionChars)
	}
	return f, nil
}

// validateFacts validates a batch; the first bad fact rejects the whole batch.
func validateFacts(facts []memory.Fact) ([]memory.Fact, error) {
	out := make([]memory.Fact, 0, len(facts))
	for i, f := range facts {
		v, err := validateFact(f)
		if err != nil {
			return nil, errors.Wrapf(err, "fact %d", i)
		}
		out = append(out, v)
	}
	return out, nil
}

// truncateClean truncates a string to maxLen, cutting at the last word boundary
// to avoid mid-word breaks.
func truncateClean(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	// Back up to last space
	truncated := s[:maxLen]
	if idx := strings.LastIndexFunc(truncated, unicode.IsSpace); idx > 0 && idx > maxLen-200 {
		truncated = truncated[:idx]
	}
	return strings.TrimSpace(truncated)
}
