package dashboard

import (
	"strings"

	"github.com/xela07ax/sitesboard/internal/domain"
)

// GroupSites раскладывает сайты по группам в порядке первого появления.
// Сайт без группы попадает на верхний уровень как есть; для новой группы создается
// синтетическая строка-агрегат в той позиции, где группа встретилась впервые.
// После раскладки метрики каждой группы пересчитываются как сумма участников.
func GroupSites(sites []*domain.Site) domain.Tree {
	tree := make(domain.Tree, 0, len(sites))
	groups := make(map[string]*domain.Group)
	order := make([]*domain.Group, 0)

	for _, site := range sites {
		if !site.HasGroup() {
			tree = append(tree, site)
			continue
		}

		name := strings.TrimSpace(site.Group)
		g, ok := groups[name]
		if !ok {
			g = &domain.Group{Label: name}
			groups[name] = g
			order = append(order, g)
			tree = append(tree, g)
		}
		g.Members = append(g.Members, site)
	}

	for _, g := range order {
		g.Recalculate()
	}

	return tree
}
