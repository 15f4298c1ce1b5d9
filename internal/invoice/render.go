package invoice

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The English catalog entry of each key is the key itself.
const (
	msgTitle         = "Invoice - Your Order"
	msgClientCode    = "Client Code"
	msgOrderRef      = "Order Reference"
	msgDate          = "Date"
	msgItems         = "Items"
	msgQty           = "Qty"
	msgPrice         = "Price"
	msgTotal         = "Total"
	msgSubtotal      = "Subtotal"
	msgShipping      = "Shipping"
	msgFreeShipping  = "Free delivery!"
	msgPhone         = "Please confirm by calling 514 123 4567. Thank you!"
	msgOnlineOff     = "Online payment is currently unavailable."
	msgEmpty         = "Your cart is empty."
	msgPaymentMethod = "Payment"
	msgMethodOnline  = "online"
	msgMethodPhone   = "phone"
)

var french = map[string]string{
	msgTitle:         "Facture - Votre commande",
	msgClientCode:    "Code client",
	msgOrderRef:      "Référence commande",
	msgDate:          "Date",
	msgItems:         "Articles",
	msgQty:           "Qté",
	msgPrice:         "Prix",
	msgTotal:         "Total",
	msgSubtotal:      "Sous-total",
	msgShipping:      "Livraison",
	msgFreeShipping:  "Livraison gratuite !",
	msgPhone:         "Veuillez confirmer en appelant le 514 123 4567. Merci !",
	msgOnlineOff:     "Le paiement en ligne est actuellement indisponible.",
	msgEmpty:         "Votre panier est vide.",
	msgPaymentMethod: "Paiement",
	msgMethodOnline:  "en ligne",
	msgMethodPhone:   "par téléphone",
}

var dateLayouts = map[language.Tag]string{
	language.English: "2006-01-02",
	language.French:  "02/01/2006",
}

var (
	supported = []language.Tag{language.English, language.French}
	matcher   = language.NewMatcher(supported)
	messages  = buildCatalog()
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, key := range []string{
		msgTitle, msgClientCode, msgOrderRef, msgDate, msgItems, msgQty,
		msgPrice, msgTotal, msgSubtotal, msgShipping, msgFreeShipping,
		msgPhone, msgOnlineOff, msgEmpty, msgPaymentMethod, msgMethodOnline,
		msgMethodPhone,
	} {
		if err := b.SetString(language.English, key, key); err != nil {
			panic(err)
		}
		if err := b.SetString(language.French, key, french[key]); err != nil {
			panic(err)
		}
	}
	return b
}

// ParseLanguage maps a user-supplied language ("fr", "en-CA", "fr-BE")
// to a supported rendering language, defaulting to English.
func ParseLanguage(raw string) language.Tag {
	tag, _ := language.MatchStrings(matcher, raw)
	base, _ := tag.Base()
	for _, s := range supported {
		if b, _ := s.Base(); b == base {
			return s
		}
	}
	return language.English
}

// Render writes inv as localized text.
func Render(w io.Writer, inv Invoice, lang language.Tag) error {
	lang = ParseLanguage(lang.String())
	p := message.NewPrinter(lang, message.Catalog(messages))
	money := func(cents int64) string {
		return p.Sprintf("%.2f $", float64(cents)/100)
	}

	out := &errWriter{w: w}
	out.line(p.Sprintf(msgTitle))
	out.line(p.Sprintf(msgClientCode) + ": " + string(inv.ClientID))
	out.line(p.Sprintf(msgOrderRef) + ": " + inv.Ref)
	out.line(p.Sprintf(msgDate) + ": " + inv.IssuedAt.Format(dateLayouts[lang]))
	out.line("")
	out.line(p.Sprintf(msgItems) + ":")
	for _, l := range inv.Lines {
		out.line(fmt.Sprintf("  %s  %s: %s  %s: %s  %s: %s",
			l.Name,
			p.Sprintf(msgQty), p.Sprintf("%d", l.Quantity),
			p.Sprintf(msgPrice), money(l.UnitPrice.Cents()),
			p.Sprintf(msgTotal), money(l.LineTotal().Cents()),
		))
	}
	out.line("")
	out.line(p.Sprintf(msgSubtotal) + ": " + money(inv.Totals.Subtotal.Cents()))
	out.line(p.Sprintf(msgShipping) + ": " + money(inv.Totals.Shipping.Cents()))
	out.line(p.Sprintf(msgTotal) + ": " + money(inv.Totals.Total.Cents()))
	if inv.Totals.FreeShipping() {
		out.line(p.Sprintf(msgFreeShipping))
	}
	out.line("")

	method := p.Sprintf(msgMethodOnline)
	if inv.PaymentMethod == PaymentPhone {
		method = p.Sprintf(msgMethodPhone)
	}
	out.line(p.Sprintf(msgPaymentMethod) + ": " + method)
	if inv.PaymentMethod == PaymentPhone {
		out.line(p.Sprintf(msgPhone))
	}
	if !inv.OnlinePaymentAvailable {
		out.line(p.Sprintf(msgOnlineOff))
	}
	return out.err
}

// RenderEmpty writes the localized empty-cart notice.
func RenderEmpty(w io.Writer, lang language.Tag) error {
	p := message.NewPrinter(ParseLanguage(lang.String()), message.Catalog(messages))
	_, err := fmt.Fprintln(w, p.Sprintf(msgEmpty))
	return err
}

// errWriter keeps the first write error and skips later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) line(s string) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintln(e.w, s)
}
