package resolver

import (
	"fmt"
	"strings"

	"defdoc/internal/config"
)

// URLs builds permalinks into the native repository and its documentation site.
type URLs struct {
	BlobURL   string // e.g. https://github.com/ruby/ruby/blob
	DocURL    string // e.g. https://ruby-doc.org
	HeaderDir string // e.g. include/ruby
}

// URLsFromConfig copies the URL settings out of cfg.
func URLsFromConfig(cfg *config.Config) URLs {
	return URLs{
		BlobURL:   cfg.Native.BlobURL,
		DocURL:    cfg.Native.DocURL,
		HeaderDir: cfg.Native.HeaderDir,
	}
}

// HeaderFile is the path of a public header inside the native tree.
func (u URLs) HeaderFile(header string) string {
	if u.HeaderDir == "" {
		return header
	}
	return strings.TrimSuffix(u.HeaderDir, "/") + "/" + header
}

// File links to path at tag. start and end are 1-based; zero omits the
// anchor, and end is only used together with start.
func (u URLs) File(tag, path string, start, end int) string {
	url := fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(u.BlobURL, "/"), tag, path)
	if start > 0 {
		url += fmt.Sprintf("#L%d", start)
		if end > 0 {
			url += fmt.Sprintf("-L%d", end)
		}
	}
	return url
}

// Doc links to the documentation page for a "::"-separated constant name.
func (u URLs) Doc(docVersion, namespaced string) string {
	path := strings.ReplaceAll(namespaced, "::", "/")
	return fmt.Sprintf("%s/core-%s/%s.html", strings.TrimSuffix(u.DocURL, "/"), docVersion, path)
}
