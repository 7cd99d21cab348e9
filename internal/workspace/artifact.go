package workspace

// Kind classifies a generated file.
type Kind string

const (
	KindCode         Kind = "code"
	KindTest         Kind = "test"
	KindRequirements Kind = "requirements"
	KindOther        Kind = "other"
)

// Artifact is one generated file under management. Content already carries
// the "# <path>" header line.
type Artifact struct {
	Path    string
	Kind    Kind
	Content string
}

// Set holds at most one artifact per path, iterated in first-insertion order.
// It is not safe for concurrent use.
type Set struct {
	byPath map[string]*Artifact
	order  []string
}

func NewSet() *Set {
	return &Set{byPath: map[string]*Artifact{}}
}

// Upsert replaces the content and kind of an existing path in place or
// appends a new artifact.
func (s *Set) Upsert(path string, kind Kind, content string) {
	if a, ok := s.byPath[path]; ok {
		a.Kind = kind
		a.Content = content
		return
	}
	s.byPath[path] = &Artifact{Path: path, Kind: kind, Content: content}
	s.order = append(s.order, path)
}

// Prune drops every artifact that is not code or test.
func (s *Set) Prune() {
	kept := s.order[:0]
	for _, p := range s.order {
		a := s.byPath[p]
		if a.Kind == KindCode || a.Kind == KindTest {
			kept = append(kept, p)
			continue
		}
		delete(s.byPath, p)
	}
	s.order = kept
}

func (s *Set) Get(path string) (Artifact, bool) {
	a, ok := s.byPath[path]
	if !ok {
		return Artifact{}, false
	}
	return *a, true
}

func (s *Set) Len() int { return len(s.order) }

// All returns copies of every artifact in order.
func (s *Set) All() []Artifact {
	out := make([]Artifact, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, *s.byPath[p])
	}
	return out
}

// OfKind returns copies of the artifacts of kind k in order.
func (s *Set) OfKind(k Kind) []Artifact {
	var out []Artifact
	for _, p := range s.order {
		if a := s.byPath[p]; a.Kind == k {
			out = append(out, *a)
		}
	}
	return out
}

// Files returns the set as context files.
func (s *Set) Files() []File {
	out := make([]File, 0, len(s.order))
	for _, p := range s.order {
		a := s.byPath[p]
		out = append(out, File{Path: a.Path, Content: a.Content})
	}
	return out
}
