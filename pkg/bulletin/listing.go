package bulletin

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// UnknownYear groups bulletins whose link carries no year.
const UnknownYear = "unknown"

// ExtractURLs finds bulletin links in a listing page and returns them as
// absolute, properly escaped URLs, deduplicated and sorted.
func ExtractURLs(html string, link *regexp.Regexp, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = &url.URL{}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, m := range link.FindAllString(html, -1) {
		u, ok := absolute(base, m)
		if !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// absolute resolves ref against base and re-escapes its path so names with
// spaces or accents download correctly.
func absolute(base *url.URL, ref string) (string, bool) {
	raw := strings.ReplaceAll(ref, " ", "%20")
	r, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(r)
	// Setting Path alone makes String() escape it canonically
	p := u.Path
	u.RawPath = ""
	u.Path = p
	return u.String(), true
}

// YearOf extracts the bulletin year from a link.
func YearOf(link string, year *regexp.Regexp) string {
	if m := year.FindStringSubmatch(link); len(m) > 1 && m[1] != "" {
		return m[1]
	}
	return UnknownYear
}

// FileName returns the unescaped last path element of a link.
func FileName(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return path.Base(link)
	}
	return path.Base(u.Path)
}

// DisplayName is the file name without extension.
func DisplayName(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

// Layout places downloaded bulletins and their crops under a data directory:
// <data>/<year>/bulletins/<file> and <data>/<year>/crops/<file>.
type Layout struct {
	DataDir string
}

// BulletinPath is where the full bulletin image is stored.
func (l Layout) BulletinPath(year, file string) string {
	return filepath.Join(l.DataDir, year, "bulletins", file)
}

// CropPath is where the portrait crop is stored.
func (l Layout) CropPath(year, file string) string {
	return filepath.Join(l.DataDir, year, "crops", file)
}
