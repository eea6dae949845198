package dataset

// ResultKind classifies the outcome of fetching one identifier.
type ResultKind int

const (
	// KindSuccess means the fetch returned at least one record.
	KindSuccess ResultKind = iota
	// KindEmpty means the fetch succeeded with no history.
	KindEmpty
	// KindFailure means the fetch returned an error.
	KindFailure
)

// String returns the label used in logs and metrics.
func (k ResultKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindEmpty:
		return "empty"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// FetchResult is the typed outcome of one fetch attempt.
type FetchResult struct {
	ID      Identifier
	Records []Record
	Err     error
}

// Success builds a result carrying the records fetched for id.
func Success(id Identifier, records []Record) FetchResult {
	return FetchResult{ID: id, Records: records}
}

// Failure builds a result carrying the reason the fetch for id failed.
func Failure(id Identifier, err error) FetchResult {
	return FetchResult{ID: id, Err: err}
}

// Kind reports which outcome the result represents.
func (r FetchResult) Kind() ResultKind {
	switch {
	case r.Err != nil:
		return KindFailure
	case len(r.Records) == 0:
		return KindEmpty
	default:
		return KindSuccess
	}
}
