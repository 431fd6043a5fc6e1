package homepage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// ErrNoBookmarks is returned when a document holds no importable link.
var ErrNoBookmarks = errors.New("no valid bookmarks found in config")

// Import parses data as the given kind and maps it to a snapshot.
func Import(kind Kind, data []byte) ([]domain.ClientBookmark, error) {
	switch kind {
	case KindServices:
		config, err := ParseServices(data)
		if err != nil {
			return nil, err
		}
		return MapServices(config)
	case KindBookmarks, "":
		config, err := ParseBookmarks(data)
		if err != nil {
			return nil, err
		}
		return MapBookmarks(config)
	default:
		return nil, errors.New("unknown homepage document kind: " + string(kind))
	}
}

// MapBookmarks converts BookmarksConfig to client bookmarks. The category
// becomes the folder and the bookmark name the title.
//
// Entries carry no timestamp, so an import never overwrites a bookmark the
// user already synced from a browser.
func MapBookmarks(config BookmarksConfig) ([]domain.ClientBookmark, error) {
	var out []domain.ClientBookmark

	for _, category := range config {
		for _, categoryName := range sortedKeys(category) {
			for _, bookmarkMap := range category[categoryName] {
				for _, bookmarkName := range sortedKeys(bookmarkMap) {
					entryList := bookmarkMap[bookmarkName]
					// Each bookmark has a list with a single entry
					if len(entryList) == 0 {
						continue
					}
					entry := entryList[0]
					if !importable(entry.Href) {
						continue
					}

					title := bookmarkName
					if title == "" {
						title = entry.Abbr
					}

					out = append(out, domain.ClientBookmark{
						ClientID:   generateBookmarkID(entry.Href),
						URL:        entry.Href,
						Title:      title,
						FolderPath: "/" + categoryName,
					})
				}
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrNoBookmarks
	}
	return out, nil
}

// MapServices converts ServicesConfig to client bookmarks, one per service
// with an href, filed under its group.
func MapServices(config ServicesConfig) ([]domain.ClientBookmark, error) {
	var out []domain.ClientBookmark

	for _, groupMap := range config {
		for _, groupName := range sortedKeys(groupMap) {
			for _, serviceMap := range groupMap[groupName] {
				for _, serviceName := range sortedKeys(serviceMap) {
					props := serviceMap[serviceName]
					if !importable(props.Href) {
						continue
					}
					out = append(out, domain.ClientBookmark{
						ClientID:   generateBookmarkID(props.Href),
						URL:        props.Href,
						Title:      serviceName,
						FolderPath: "/" + groupName,
					})
				}
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrNoBookmarks
	}
	return out, nil
}

// importable keeps absolute urls only; stripped template variables leave
// empty or relative hrefs behind.
func importable(href string) bool {
	if href == "" {
		return false
	}
	u, err := url.Parse(href)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// generateBookmarkID creates a stable client id from a URL using SHA-256,
// so re-importing the same document maps onto the same ids.
func generateBookmarkID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return "homepage:" + hex.EncodeToString(hash[:])[:16]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
