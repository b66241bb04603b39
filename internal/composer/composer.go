// Package composer turns a product and a sales template into the text of a
// WhatsApp broadcast.
package composer

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/foxzi/ofertabot/internal/models"
)

// ReferenceMarkup is applied to the current price to show a "was" price
const ReferenceMarkup = 1.3

// DiscountLabel matches ReferenceMarkup and fills {desconto}
const DiscountLabel = "30%"

// placeholder pattern: {name}, optionally preceded by a literal "R$ " that a
// price substitution absorbs so the currency symbol is not doubled
var placeholderPattern = regexp.MustCompile(`(?i)(R\$\s?)?\{([a-z_]+)\}`)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatPrice renders v as Brazilian currency, e.g. "R$ 1.234,50"
func FormatPrice(v float64) string {
	return "R$ " + brl.Sprintf("%v", number.Decimal(v, number.Scale(2)))
}

// ReferencePrice is the "was" price shown next to the current one
func ReferencePrice(price float64) float64 {
	return price * ReferenceMarkup
}

// Compose builds the message for p. A saved sales copy on the product is
// used verbatim; otherwise template placeholders are substituted. An empty
// template falls back to the built-in promotional format.
func Compose(p *models.Product, template string) string {
	if strings.TrimSpace(p.SalesCopy) != "" {
		return p.SalesCopy
	}
	if strings.TrimSpace(template) == "" {
		return defaultMessage(p)
	}
	return Render(template, Values(p))
}

// Values returns the placeholder values for p, keyed by lowercase name
func Values(p *models.Product) map[string]string {
	price := FormatPrice(p.Price)
	was := FormatPrice(ReferencePrice(p.Price))
	return map[string]string{
		"titulo":         p.Title,
		"nome":           p.Title,
		"preco":          price,
		"preco_antigo":   was,
		"preco_original": was,
		"link":           p.AffiliateLink,
		"plataforma":     string(p.Platform),
		"desconto":       DiscountLabel,
	}
}

// Render substitutes {placeholder} patterns. Unknown placeholders are kept
// as literal text.
func Render(template string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		currency, key := groups[1], strings.ToLower(groups[2])

		value, ok := values[key]
		if !ok {
			return match
		}
		if strings.HasPrefix(key, "preco") {
			return value
		}
		return currency + value
	})
}

func defaultMessage(p *models.Product) string {
	return fmt.Sprintf("🔥 OFERTA RELÂMPAGO! 🔥\n\n%s\n\n❌ De: ~%s~\n✅ AGORA POR APENAS: %s\n\n🚨 CORRA! Estoque LIMITADO!\n\n👉 GARANTA O SEU AQUI:\n%s\n\n⏰ Promoção por TEMPO LIMITADO!",
		p.Title, FormatPrice(ReferencePrice(p.Price)), FormatPrice(p.Price), p.AffiliateLink)
}
