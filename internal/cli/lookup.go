package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/devdash/internal/dashboard"
	"github.com/hitoshi/devdash/internal/model"
)

// minPrefixLen は一意なIDの前方一致を許す最小文字数。
const minPrefixLen = 4

var errAmbiguous = errors.New("ambiguous reference")

// findCategory はID、名前（大文字小文字を区別しない）、IDの前方一致の順にカテゴリを探す。
func findCategory(s *dashboard.Store, ref string) (*model.Category, error) {
	ref = strings.TrimSpace(ref)
	cats := s.Categories()
	for _, c := range cats {
		if c.ID == ref {
			return c, nil
		}
	}

	var byName []*model.Category
	for _, c := range cats {
		if strings.EqualFold(c.Name, ref) {
			byName = append(byName, c)
		}
	}
	switch len(byName) {
	case 1:
		return byName[0], nil
	case 0:
	default:
		return nil, fmt.Errorf("%w: %d categories are named %q", errAmbiguous, len(byName), ref)
	}

	if len(ref) >= minPrefixLen {
		var byPrefix []*model.Category
		for _, c := range cats {
			if strings.HasPrefix(c.ID, ref) {
				byPrefix = append(byPrefix, c)
			}
		}
		if len(byPrefix) == 1 {
			return byPrefix[0], nil
		}
		if len(byPrefix) > 1 {
			return nil, fmt.Errorf("%w: %q matches %d categories", errAmbiguous, ref, len(byPrefix))
		}
	}
	return nil, fmt.Errorf("%w: %s", dashboard.ErrCategoryNotFound, ref)
}

// findItem はカテゴリ内のアイテムをIDまたはIDの前方一致で探す。
func findItem(c *model.Category, ref string) (*model.Item, error) {
	ref = strings.TrimSpace(ref)
	var matches []*model.Item
	for _, it := range c.Items {
		if it.ID == ref {
			return it, nil
		}
		if len(ref) >= minPrefixLen && strings.HasPrefix(it.ID, ref) {
			matches = append(matches, it)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, fmt.Errorf("%w: %s", dashboard.ErrItemNotFound, ref)
	default:
		return nil, fmt.Errorf("%w: %q matches %d items", errAmbiguous, ref, len(matches))
	}
}
