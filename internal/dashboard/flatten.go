package dashboard

import "github.com/xela07ax/sitesboard/internal/domain"

// Flatten разворачивает дерево в плоскую последовательность: заголовок группы,
// затем ее участники, затем следующий элемент верхнего уровня.
func Flatten(tree domain.Tree) []domain.Entry {
	flat := make([]domain.Entry, 0, tree.CountRecursive())
	for _, e := range tree {
		flat = append(flat, e)
		if g, ok := e.(*domain.Group); ok {
			for _, s := range g.Members {
				flat = append(flat, s)
			}
		}
	}
	return flat
}
