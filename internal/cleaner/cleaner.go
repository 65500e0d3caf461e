// Package cleaner validates and normalizes scraped repository and release
// data before it reaches storage. Every function is pure and never fails;
// invalid records come back as rejections, not errors.
package cleaner

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxFieldLen caps every text column except the description.
	MaxFieldLen = 255
	// MaxUrlLen caps stored URL values.
	MaxUrlLen = 2048
	// MaxContentBytes is the storage-safe ceiling for release bodies,
	// leaving margin under the MySQL TEXT limit of 65535 bytes.
	MaxContentBytes = 65000
	// TruncationNotice is appended whenever a release body is cut.
	TruncationNotice = "\n[Content truncated due to length]"
)

var (
	// Control characters excluded from safe text storage.
	ctrlRe = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")

	detailsRe = regexp.MustCompile(`(?s)<details.*?>(.*?)</details>`)
	summaryRe = regexp.MustCompile(`(?s)<summary.*?>(.*?)</summary>`)
	blankRe   = regexp.MustCompile(`\n\s*\n\s*\n+`)

	httpRe = regexp.MustCompile(`^https?://`)
)

// Repo is the sanitizer's view of a repository record. Pointer fields are
// nil when the source value was absent or rejected.
type Repo struct {
	User        string
	Name        string
	FullName    string
	Description string
	Language    string
	AvatarUrl   *string
	RepoUrl     *string
	Rank        *int
	Stars       *int
}

// Release is a cleaned release ready for persistence.
type Release struct {
	ID      int64
	TagName string
	Body    string
}

// CleanRepo normalizes every field of a repository record. Text fields get
// control characters stripped, whitespace collapsed, and a length cap (the
// description stays unbounded here). URL fields must match an http(s)
// prefix or they become nil. It never rejects the record itself.
func CleanRepo(in Repo) Repo {
	out := Repo{
		User:        CleanText(in.User, MaxFieldLen),
		Name:        CleanText(in.Name, MaxFieldLen),
		FullName:    CleanText(in.FullName, MaxFieldLen),
		Description: CleanText(in.Description, 0),
		Language:    CleanText(in.Language, MaxFieldLen),
		AvatarUrl:   cleanUrl(in.AvatarUrl),
		RepoUrl:     cleanUrl(in.RepoUrl),
		Rank:        in.Rank,
		Stars:       in.Stars,
	}
	return out
}

// CleanText strips control characters and collapses whitespace runs to
// single spaces. maxLen of 0 means unbounded.
func CleanText(s string, maxLen int) string {
	s = ctrlRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if maxLen > 0 {
		s = cutAtRuneBoundary(s, maxLen)
	}
	return s
}

// cutAtRuneBoundary caps s at max bytes without splitting a rune, so every
// cap stays valid utf8mb4 for strict-mode storage.
func cutAtRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := []byte(s[:max])
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRune(cut)
		if r == utf8.RuneError && size == 1 {
			cut = cut[:len(cut)-1]
			continue
		}
		break
	}
	return string(cut)
}

func cleanUrl(u *string) *string {
	if u == nil {
		return nil
	}
	v := *u
	if !httpRe.MatchString(v) {
		return nil
	}
	v = cutAtRuneBoundary(v, MaxUrlLen)
	return &v
}

// CleanRelease validates one release. The id must be positive and the body
// must be non-empty after content cleaning, otherwise the release is
// rejected entirely.
func CleanRelease(id int64, tagName, body string) (Release, bool) {
	if id <= 0 {
		return Release{}, false
	}
	content := CleanReleaseContent(body)
	if content == "" {
		return Release{}, false
	}
	return Release{
		ID:      id,
		TagName: strings.TrimSpace(tagName),
		Body:    content,
	}, true
}

// CleanReleaseContent sanitizes a release body: collapsible-disclosure tags
// are unwrapped keeping their inner text, HTML entities decoded, control
// characters stripped, line endings normalized, runs of blank lines
// collapsed, and the result bounded to MaxContentBytes with the truncation
// notice appended when cut.
func CleanReleaseContent(content string) string {
	if content == "" {
		return ""
	}

	content = detailsRe.ReplaceAllString(content, "$1")
	content = summaryRe.ReplaceAllString(content, "$1")
	content = html.UnescapeString(content)
	content = ctrlRe.ReplaceAllString(content, "")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = blankRe.ReplaceAllString(content, "\n\n")
	content = strings.TrimSpace(content)

	if len(content) > MaxContentBytes {
		content = truncateContent(content)
	}
	return content
}

// truncateContent cuts the body so that body plus notice stays within
// MaxContentBytes. It prefers the last sentence or line boundary, but only
// when that boundary lands in the final 20% of the window; otherwise it
// hard-cuts at the byte budget.
func truncateContent(content string) string {
	budget := MaxContentBytes - len(TruncationNotice)
	s := cutAtRuneBoundary(content, budget)

	lastBreak := -1
	for _, sep := range []string{".", "\n", "!", "?"} {
		if idx := strings.LastIndex(s, sep); idx > lastBreak {
			lastBreak = idx
		}
	}
	if lastBreak > budget*8/10 {
		s = s[:lastBreak+1]
	}
	return strings.TrimSpace(s) + TruncationNotice
}
