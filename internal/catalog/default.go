package catalog

import "github.com/roach88/cartledger/internal/model"

var defaultProducts = []struct {
	id, name, price string
	stock           int
	tag, category   string
}{
	{"1", "Pommes (1 kg)", "2.50", 10, "vedette", "fruits"},
	{"2", "Carottes (1 kg)", "1.80", 15, "nouveau", "legumes"},
	{"3", "Oranges (1 kg)", "3.00", 12, "top", "fruits"},
	{"101", "Riz Basmati (1 kg)", "3.50", 15, "vedette", "pates"},
	{"102", "Pâtes Spaghetti (500g)", "1.80", 20, "top", "pates"},
	{"103", "Lentilles vertes (500g)", "2.20", 12, "nouveau", "cereales"},
}

// Default returns the built-in grocery catalog.
func Default() *Catalog {
	products := make([]model.Product, 0, len(defaultProducts))
	for _, d := range defaultProducts {
		p, err := model.NewProduct(model.ProductID(d.id), d.name, model.MustMoney(d.price), d.stock)
		if err != nil {
			panic(err)
		}
		products = append(products, p.WithTag(d.tag, d.category))
	}
	c, err := New(products...)
	if err != nil {
		panic(err)
	}
	return c
}
