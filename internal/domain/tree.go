package domain

// Entry — элемент дерева результата: либо *Site, либо *Group.
// Интерфейс закрыт, других реализаций нет.
type Entry interface {
	entry()
	EntryLabel() string
}

func (*Site) entry()  {}
func (*Group) entry() {}

func (s *Site) EntryLabel() string  { return s.Label }
func (g *Group) EntryLabel() string { return g.Label }

// Group — синтетическая строка-агрегат для всех сайтов с одинаковой группой.
type Group struct {
	Label   string
	Metrics Metrics
	Members []*Site
}

// Recalculate пересчитывает метрики группы как сумму по текущим участникам.
func (g *Group) Recalculate() {
	var m Metrics
	for _, s := range g.Members {
		m.Add(s.Metrics)
	}
	m.RecomputeEvolution()
	g.Metrics = m
}

// Tree — результат группировки: сайты без группы и группы с вложенными сайтами.
type Tree []Entry

// CountRecursive считает видимые строки: заголовки групп вместе с их участниками.
func (t Tree) CountRecursive() int {
	n := 0
	for _, e := range t {
		n++
		if g, ok := e.(*Group); ok {
			n += len(g.Members)
		}
	}
	return n
}
