package directory

// Filters describe a structured lookup: every non-empty category must match,
// any value within a category may match. Nil availability flags are ignored.
type Filters struct {
	Locations []string
	Skills    []string
	Companies []string

	Hire   *bool
	Collab *bool
	Hiring *bool
}

// IsEmpty reports whether no category is set.
func (f Filters) IsEmpty() bool {
	return len(f.Locations) == 0 && len(f.Skills) == 0 && len(f.Companies) == 0 &&
		f.Hire == nil && f.Collab == nil && f.Hiring == nil
}

// AppliesTo reports whether records of kind can satisfy f. Projects carry no
// location or company, so filters on those exclude them.
func (f Filters) AppliesTo(kind Kind) bool {
	if kind == KindProject {
		return len(f.Locations) == 0 && len(f.Companies) == 0 && f.Hire == nil
	}
	return true
}
