package catalog

import "github.com/vyrodovalexey/catalog-api/internal/model"

// FindByID returns the position of the first item with the given id.
// Duplicate ids are not rejected; the earliest one wins.
func FindByID(items []model.Item, id int) (int, bool) {
	for idx := range items {
		if items[idx].ID == id {
			return idx, true
		}
	}
	return -1, false
}
