package labels

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyVocabulary = errors.New("vocabulary must contain at least one label")
	ErrDuplicateLabel  = errors.New("vocabulary labels must be unique")
	ErrBlankLabel      = errors.New("vocabulary labels must not be blank")
	ErrInvalidColor    = errors.New("invalid hex color")
	ErrEmptyPalette    = errors.New("palette must contain at least one color")
	ErrUnknownProfile  = errors.New("unknown label profile")
)

// Vocabulary is an ordered, immutable list of label names. The position of a
// label is its class index.
type Vocabulary struct {
	names []string
}

func NewVocabulary(names ...string) (Vocabulary, error) {
	if len(names) == 0 {
		return Vocabulary{}, ErrEmptyVocabulary
	}

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return Vocabulary{}, ErrBlankLabel
		}
		if _, dup := seen[name]; dup {
			return Vocabulary{}, fmt.Errorf("%w: %q", ErrDuplicateLabel, name)
		}
		seen[name] = struct{}{}
	}

	copied := make([]string, len(names))
	copy(copied, names)
	return Vocabulary{names: copied}, nil
}

func MustVocabulary(names ...string) Vocabulary {
	v, err := NewVocabulary(names...)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Vocabulary) Len() int {
	return len(v.names)
}

// Lookup returns the label for classIndex, or false when the index is outside
// the vocabulary.
func (v Vocabulary) Lookup(classIndex int) (string, bool) {
	if classIndex < 0 || classIndex >= len(v.names) {
		return "", false
	}
	return v.names[classIndex], true
}

// Names returns a copy of the labels in class-index order.
func (v Vocabulary) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}
