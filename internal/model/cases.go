// Package model holds the case and witness records shared by the import,
// reconciliation and detection stages.
package model

// OriginWitnessReference marks stubs synthesized from a witness sheet reference.
const OriginWitnessReference = "from witness reference"

// Case is either a RealCase (read from the case sheet) or a StubCase
// (synthesized by the reconciler). The set of implementations is closed.
type Case interface {
	Key() string
	Record() Processo
	NeedsCompletion() bool
	isCase()
}

type RealCase struct {
	Processo
}

func (c RealCase) Key() string           { return c.CNJDigits }
func (c RealCase) Record() Processo      { return c.Processo }
func (c RealCase) NeedsCompletion() bool { return false }
func (RealCase) isCase()                 {}

// StubCase is a placeholder for a case referenced by witnesses but absent
// from the case sheet. Jurisdiction and party fields are empty.
type StubCase struct {
	Processo
	Origin       string   `json:"origin"`
	ReferencedBy []string `json:"referenced_by"`
}

func (c StubCase) Key() string           { return c.CNJDigits }
func (c StubCase) Record() Processo      { return c.Processo }
func (c StubCase) NeedsCompletion() bool { return true }
func (StubCase) isCase()                 {}

// IsStub reports whether c was synthesized by the reconciler.
func IsStub(c Case) bool {
	switch c.(type) {
	case StubCase, *StubCase:
		return true
	default:
		return false
	}
}

// CaseSet is an insertion-ordered collection of cases unique by digits key.
type CaseSet struct {
	items []Case
	byKey map[string]int
}

func NewCaseSet(cases ...Case) *CaseSet {
	set := &CaseSet{byKey: make(map[string]int, len(cases))}
	for _, c := range cases {
		set.Add(c)
	}
	return set
}

// Add inserts c unless a case with the same key is already present.
func (s *CaseSet) Add(c Case) bool {
	if s.byKey == nil {
		s.byKey = make(map[string]int)
	}
	if _, exists := s.byKey[c.Key()]; exists {
		return false
	}
	s.byKey[c.Key()] = len(s.items)
	s.items = append(s.items, c)
	return true
}

func (s *CaseSet) Get(key string) (Case, bool) {
	idx, ok := s.byKey[key]
	if !ok {
		return nil, false
	}
	return s.items[idx], true
}

func (s *CaseSet) Has(key string) bool {
	_, ok := s.byKey[key]
	return ok
}

func (s *CaseSet) Len() int {
	return len(s.items)
}

func (s *CaseSet) All() []Case {
	out := make([]Case, len(s.items))
	copy(out, s.items)
	return out
}

// Records returns the plain case records in insertion order.
func (s *CaseSet) Records() []Processo {
	out := make([]Processo, 0, len(s.items))
	for _, c := range s.items {
		out = append(out, c.Record())
	}
	return out
}

// Stubs returns only the synthesized cases.
func (s *CaseSet) Stubs() []StubCase {
	var out []StubCase
	for _, c := range s.items {
		switch v := c.(type) {
		case StubCase:
			out = append(out, v)
		case *StubCase:
			out = append(out, *v)
		}
	}
	return out
}

// RealCases wraps plain records as RealCase values.
func RealCases(records []Processo) []Case {
	out := make([]Case, 0, len(records))
	for _, record := range records {
		out = append(out, RealCase{Processo: record})
	}
	return out
}
