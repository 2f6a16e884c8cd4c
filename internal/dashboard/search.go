package dashboard

import (
	"strings"

	"github.com/xela07ax/sitesboard/internal/domain"
)

// Search отсекает сайты и группы, не содержащие term (уже в нижнем регистре).
// Группы обрабатываются снизу вверх: сначала фильтруются участники, затем решается
// судьба самой группы. Группа с подходящим названием остается даже пустой.
// Исходное дерево не меняется, возвращается новое.
func Search(tree domain.Tree, term string) domain.Tree {
	if term == "" {
		return tree
	}

	kept := make(domain.Tree, 0, len(tree))
	for _, e := range tree {
		switch v := e.(type) {
		case *domain.Group:
			members := searchSites(v.Members, term)
			if len(members) == 0 && !contains(v.Label, term) {
				continue
			}
			kept = append(kept, &domain.Group{
				Label:   v.Label,
				Metrics: v.Metrics, // пересчет не делаем: итоги группы до поиска
				Members: members,
			})
		case *domain.Site:
			if siteMatches(v, term) {
				kept = append(kept, v)
			}
		}
	}
	return kept
}

func searchSites(sites []*domain.Site, term string) []*domain.Site {
	kept := make([]*domain.Site, 0, len(sites))
	for _, s := range sites {
		if siteMatches(s, term) {
			kept = append(kept, s)
		}
	}
	return kept
}

func siteMatches(s *domain.Site, term string) bool {
	if contains(s.Label, term) {
		return true
	}
	return s.HasGroup() && contains(s.Group, term)
}

// contains — регистронезависимая проверка подстроки; label приводится к нижнему регистру
// при каждом сравнении.
func contains(label, term string) bool {
	return strings.Contains(strings.ToLower(label), term)
}
