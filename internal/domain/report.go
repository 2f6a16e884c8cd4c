package domain

// RowKind различает строки плоского отчета.
type RowKind string

const (
	RowSite  RowKind = "site"
	RowGroup RowKind = "group"
)

// Row — строка отчета для табличного отображения (сайт или заголовок группы).
type Row struct {
	Kind    RowKind `json:"kind"`
	IsGroup bool    `json:"isGroup,omitempty"`
	IDSite  *int64  `json:"idsite,omitempty"` // есть только у сайтов
	Label   string  `json:"label"`
	Group   string  `json:"group,omitempty"`
	MainURL string  `json:"main_url,omitempty"`

	Visits             int64   `json:"nb_visits"`
	Pageviews          int64   `json:"nb_pageviews"`
	Revenue            string  `json:"revenue"`
	VisitsEvolution    float64 `json:"visits_evolution"`
	PageviewsEvolution float64 `json:"pageviews_evolution"`
	RevenueEvolution   float64 `json:"revenue_evolution"`
}

type Totals struct {
	Visits     int64  `json:"nb_visits"`
	Pageviews  int64  `json:"nb_pageviews"`
	Revenue    string `json:"revenue"`
	LastVisits int64  `json:"nb_visits_last"`
}

// Report — ответ дашборда "Все сайты".
type Report struct {
	NumSites int    `json:"numSites"`
	Totals   Totals `json:"totals"`
	Sites    []Row  `json:"sites"`
	LastDate string `json:"lastDate"`
}
