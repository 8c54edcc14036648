package doc

// PathSuggestion is offered to a caller that supplied a non-canonical path.
type PathSuggestion struct {
	Supplied  string
	Suggested string
	Problem   error // why Supplied was not accepted as is
}

// PathResolver picks the path to use when the supplied one is not canonical.
// It may return the suggestion or an explicit override; either way the result
// still has to pass the constraint gate.
type PathResolver interface {
	ResolvePath(s PathSuggestion) (string, error)
}

// PathResolverFunc adapts a function to PathResolver.
type PathResolverFunc func(s PathSuggestion) (string, error)

func (f PathResolverFunc) ResolvePath(s PathSuggestion) (string, error) { return f(s) }

// AcceptSuggestion is the non-interactive resolver: it always takes the
// suggested canonical path.
var AcceptSuggestion PathResolver = PathResolverFunc(func(s PathSuggestion) (string, error) {
	return s.Suggested, nil
})

// SuggestPath computes the canonical path for supplied. It returns nil when
// supplied already passes the gate for the given classifiers. The category
// comes from the type catalog when none is given.
func SuggestPath(supplied string, category Category, docType DocumentType) *PathSuggestion {
	if category == "" {
		category = CategoryFor(docType)
	}
	problem := ValidatePath(supplied, category, docType)
	if problem == nil {
		return nil
	}
	filename := baseName(supplied)
	if parts, err := ParsePath(supplied); err == nil {
		filename = parts.Filename
	}
	return &PathSuggestion{
		Supplied:  supplied,
		Suggested: ConstructPath(category, docType, filename),
		Problem:   problem,
	}
}
