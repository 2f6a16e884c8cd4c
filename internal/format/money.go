package format

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money форматирует денежные значения с учетом локали и валюты.
// Безопасен для конкурентного использования: после создания только читается.
type Money struct {
	tag     language.Tag
	unit    currency.Unit
	symbol  string
	scale   int
	decimal string // десятичный разделитель локали
}

// NewMoney создает форматтер для локали (BCP 47, например "en", "de-DE") и ISO-кода валюты.
func NewMoney(locale, code string) (*Money, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("format: invalid locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("format: invalid currency %q: %w", code, err)
	}

	scale, _ := currency.Standard.Rounding(unit)
	p := message.NewPrinter(tag)

	return &Money{
		tag:     tag,
		unit:    unit,
		symbol:  p.Sprint(currency.Symbol(unit)),
		scale:   scale,
		decimal: decimalSeparator(p),
	}, nil
}

// decimalSeparator достает разделитель дробной части из образца локали.
func decimalSeparator(p *message.Printer) string {
	sep := strings.TrimFunc(p.Sprintf("%.1f", 1.5), unicode.IsDigit)
	if sep == "" {
		return "."
	}
	return sep
}

// Format возвращает строку вида "$ 1,234.50" (разделители зависят от локали).
// Значение не проходит через float: округление и цифры берутся из decimal.
func (m *Money) Format(amount decimal.Decimal) string {
	fixed := amount.StringFixed(int32(m.scale))
	neg := strings.HasPrefix(fixed, "-")
	intPart, frac, _ := strings.Cut(strings.TrimPrefix(fixed, "-"), ".")

	var b strings.Builder
	b.WriteString(m.symbol)
	b.WriteString(" ")
	if neg {
		b.WriteString("-")
	}
	b.WriteString(m.groupDigits(intPart))
	if frac != "" {
		b.WriteString(m.decimal)
		b.WriteString(frac)
	}
	return b.String()
}

func (m *Money) groupDigits(digits string) string {
	p := message.NewPrinter(m.tag)
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return p.Sprintf("%d", n)
	}

	// за пределами int64 группируем по три цифры разделителем локали
	sep := strings.TrimLeft(p.Sprintf("%d", 1000000), "0123456789")
	if i := strings.IndexAny(sep, "0123456789"); i >= 0 {
		sep = sep[:i]
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteString(sep)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Number форматирует целое с разделителями разрядов локали.
func (m *Money) Number(n int64) string {
	return message.NewPrinter(m.tag).Sprintf("%d", n)
}

func (m *Money) Currency() string {
	return m.unit.String()
}
