// Package extractor turns raw ranking-site markup into repository records.
// It does no I/O; callers hand it a fetched page and get back the parsed
// items in document order, which on the ranking site equals rank order.
package extractor

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	// Placeholders used when a listing item carries no description/language.
	NoDescription = "No description available"
	NoLanguage    = "No language available"

	itemSelector = ".list-group-item.paginated_item"
)

// Avatar candidates are tried in order, first match wins.
var avatarSelectors = []string{"img.avatar_image_big", ".avatar_image_big img", "img"}

var rankRe = regexp.MustCompile(`^(\d+)\.`)

// RepoRecord is one parsed listing item.
type RepoRecord struct {
	Rank        int    `json:"rank"`
	User        string `json:"user"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Stars       int    `json:"stars"`
	Description string `json:"description"`
	Language    string `json:"language"`
	AvatarUrl   string `json:"avatar_url"`
	RepoUrl     string `json:"repo_url"`
}

// ParsePage extracts every repository item from a listing page. Items with
// no parsable rank or no link are dropped; all other missing fields fall
// back to defaults. baseUrl resolves relative hrefs.
func ParsePage(pageHtml string, baseUrl string) ([]RepoRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHtml))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(baseUrl)
	if err != nil {
		base = nil
	}

	records := make([]RepoRecord, 0)
	doc.Find(itemSelector).Each(func(_ int, item *goquery.Selection) {
		if rec, ok := parseItem(item, base); ok {
			records = append(records, rec)
		}
	})
	return records, nil
}

func parseItem(item *goquery.Selection, base *url.URL) (RepoRecord, bool) {
	var rec RepoRecord

	// Rank is the leading "N." text inside the name container.
	name := item.Find(".name").First()
	if name.Length() == 0 {
		return rec, false
	}
	rankText := firstText(name)
	m := rankRe.FindStringSubmatch(rankText)
	if m == nil {
		return rec, false
	}
	rank, err := strconv.Atoi(m[1])
	if err != nil {
		return rec, false
	}
	rec.Rank = rank

	// The item's primary link carries the "/user/repo" path.
	href, ok := item.Find("a").First().Attr("href")
	if !ok {
		return rec, false
	}
	rec.RepoUrl = resolveUrl(base, href)
	rec.FullName, rec.User, rec.Name = splitRepoPath(rec.RepoUrl)

	// Star count, 0 when absent or unparsable.
	stars := item.Find(".stargazers_count").Last()
	if stars.Length() > 0 {
		starText := strings.ReplaceAll(strings.TrimSpace(stars.Text()), ",", "")
		if n, err := strconv.Atoi(starText); err == nil {
			rec.Stars = n
		}
	}

	// Description prefers the title attribute over the visible text.
	rec.Description = NoDescription
	desc := item.Find(".repo-description").First()
	if desc.Length() > 0 {
		if title, ok := desc.Attr("title"); ok && title != "" {
			rec.Description = title
		} else if text := strings.TrimSpace(desc.Text()); text != "" {
			rec.Description = text
		}
	}

	rec.Language = NoLanguage
	if lang := strings.TrimSpace(item.Find(".repo-language span").First().Text()); lang != "" {
		rec.Language = lang
	}

	for _, sel := range avatarSelectors {
		if src, ok := item.Find(sel).First().Attr("src"); ok {
			rec.AvatarUrl = src
			break
		}
	}

	return rec, true
}

// firstText returns the first non-empty direct-or-nested text node, which on
// the ranking site is the rank label preceding the repository link.
func firstText(sel *goquery.Selection) string {
	for _, node := range sel.Nodes {
		if text := firstTextNode(node); text != "" {
			return text
		}
	}
	return ""
}

func firstTextNode(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if text := firstTextNode(c); text != "" {
			return text
		}
	}
	return ""
}

func resolveUrl(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// splitRepoPath derives owner and name from a repository URL path. A path
// that does not split into exactly two non-empty segments keeps the whole
// path as the name with an empty user; such items are still emitted.
func splitRepoPath(repoUrl string) (fullName, user, name string) {
	path := ""
	if u, err := url.Parse(repoUrl); err == nil {
		path = strings.Trim(u.Path, "/")
	} else {
		path = strings.Trim(repoUrl, "/")
	}

	parts := strings.Split(path, "/")
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return parts[0] + "/" + parts[1], parts[0], parts[1]
	}
	return path, "", path
}
