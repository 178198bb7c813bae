package directory

// Sort orders available from the directory service.
const (
	SortRelevance = "relevance"
	SortLastName  = "lastName"
	SortFirstName = "firstName"
	SortClassYear = "classYear"
	SortLastLogin = "lastLogin"
)

// validSorts mirrors the service's accepted sortBy values.
var validSorts = map[string]bool{
	SortRelevance: true,
	SortLastName:  true,
	SortFirstName: true,
	SortClassYear: true,
	SortLastLogin: true,
}

// validPageSizes mirrors the service's accepted page limits.
var validPageSizes = map[int]bool{10: true, 25: true, 50: true}

// Query describes one directory search.
type Query struct {
	// Text is the keyword query. Required.
	Text string

	// PageSize is results per page: 10, 25 or 50. Out-of-range values
	// fall back to 50, matching the service's own default.
	PageSize int

	// SortBy orders the results. Unknown values fall back to lastName.
	SortBy string

	// ExcludeDeceased filters out deceased entries. The service exposes
	// this as a search facet.
	ExcludeDeceased bool
}

// normalized returns the query with page size and sort clamped to the
// values the service accepts.
func (q Query) normalized() Query {
	if !validPageSizes[q.PageSize] {
		q.PageSize = 50
	}
	if !validSorts[q.SortBy] {
		q.SortBy = SortLastName
	}
	return q
}
