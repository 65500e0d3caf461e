package githubapi

import (
	"strconv"
	"strings"
)

// ReleaseResponse is a single element of the GitHub releases listing.
type ReleaseResponse struct {
	ID      ReleaseID `json:"id"`
	TagName string    `json:"tag_name"`
	Body    string    `json:"body"`
}

// ReleaseID tolerates malformed id values in a release element. Anything
// that does not coerce to an integer decodes as zero, so the sanitizer
// rejects just that record and its siblings survive.
type ReleaseID int64

func (id *ReleaseID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*id = 0
		return nil
	}
	*id = ReleaseID(n)
	return nil
}
