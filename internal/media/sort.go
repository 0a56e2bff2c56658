package media

import (
	"sort"
	"strings"

	"aimlib/internal/db/model"
)

const (
	SortName   = "name"
	SortLikes  = "likes"
	SortNewest = "newest"
)

func ValidSort(mode string) bool {
	switch mode {
	case SortName, SortLikes, SortNewest:
		return true
	}
	return false
}

// SortResources 纯展示排序；likes 相同时按名称。
func SortResources(items []model.ResourceWithLikes, mode string) {
	switch mode {
	case SortLikes:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Likes != items[j].Likes {
				return items[i].Likes > items[j].Likes
			}
			return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
		})
	case SortNewest:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
		})
	}
}
