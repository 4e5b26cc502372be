package keywords

// RawAnnotation is one entry returned by an Extractor. Index is local to the
// batch it was extracted from.
type RawAnnotation struct {
	Keyword    string
	Index      int
	Confidence float64
}

// Annotation pairs a normalized keyword with a global segment index.
type Annotation struct {
	Index      int
	Keyword    string
	Confidence float64
}

// Set maps global segment indices to their annotation.
type Set map[int]Annotation

// Get returns the annotation for segment index.
func (s Set) Get(index int) (Annotation, bool) {
	a, ok := s[index]
	return a, ok
}

// Len reports how many segments carry an annotation.
func (s Set) Len() int {
	return len(s)
}
