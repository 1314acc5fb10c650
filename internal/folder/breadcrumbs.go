package folder

import "strings"

// BuildBreadcrumbs returns the breadcrumb trail from the gallery root down
// to path, resolving each segment's custom display name from its
// `_folder.md` (front-matter title or first heading) where present.
func (s *Scanner) BuildBreadcrumbs(path string) []Breadcrumb {
	crumbs := []Breadcrumb{{
		Name:        "Gallery",
		DisplayName: "Gallery",
		Path:        "",
		IsCurrent:   path == "",
	}}

	if path == "" {
		return crumbs
	}

	parts := strings.Split(path, "/")
	var current strings.Builder
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i > 0 {
			current.WriteByte('/')
		}
		current.WriteString(part)
		currentPath := current.String()

		displayName, _ := s.ReadFolderMetadata(currentPath)
		if displayName == "" {
			displayName = part
		}

		crumbs = append(crumbs, Breadcrumb{
			Name:        part,
			DisplayName: displayName,
			Path:        currentPath,
			IsCurrent:   i == len(parts)-1,
		})
	}
	return crumbs
}
