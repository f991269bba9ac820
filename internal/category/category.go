// Package category assigns a storage category to inventory items from their
// name. Items the reconciliation engine creates get their category here.
package category

import (
	"strings"

	"golang.org/x/text/cases"
)

const Other = "Other"

// Categories in display order.
var Categories = []string{
	"Produce",
	"Dairy & Eggs",
	"Meat & Fish",
	"Bakery",
	"Pantry",
	"Frozen",
	"Drinks",
	"Snacks",
	"Cleaning",
	"Toiletries",
	Other,
}

// Categorize returns the category for name. Whole names are looked up first,
// then keywords are matched against whole words of the name, most specific
// keyword first. Unknown names fall back to Other.
func Categorize(name string) string {
	key := normalize(name)
	if key == "" {
		return Other
	}
	if cat, ok := names[key]; ok {
		return cat
	}

	padded := " " + key + " "
	for _, k := range keywords {
		if strings.Contains(padded, " "+k.word+" ") || strings.Contains(padded, " "+k.word+"s ") {
			return k.category
		}
	}
	return Other
}

// Func adapts Categorize to callers that take a categorizer.
type Func func(name string) string

// Default is the keyword categorizer.
var Default Func = Categorize

func normalize(name string) string {
	folded := cases.Fold().String(strings.TrimSpace(name))
	return strings.Join(strings.Fields(folded), " ")
}

type keyword struct {
	word     string
	category string
}

// names holds whole-name matches that keyword matching would get wrong.
var names = map[string]string{
	"peanut butter":  "Pantry",
	"butter beans":   "Pantry",
	"coconut milk":   "Pantry",
	"cream of wheat": "Pantry",
	"ice cream":      "Frozen",
	"ice":            "Frozen",
	"tomato sauce":   "Pantry",
	"tomato paste":   "Pantry",
	"hot dog buns":   "Bakery",
	"fish sauce":     "Pantry",
	"fish sticks":    "Frozen",
	"apple juice":    "Drinks",
	"orange juice":   "Drinks",
	"dish soap":      "Cleaning",
	"hand soap":      "Toiletries",
	"egg noodles":    "Pantry",
}

// keywords is ordered: multi-word phrases before the single words they
// contain.
var keywords = []keyword{
	{"frozen", "Frozen"},
	{"toilet paper", "Cleaning"},
	{"paper towel", "Cleaning"},
	{"trash bag", "Cleaning"},
	{"laundry", "Cleaning"},
	{"detergent", "Cleaning"},
	{"bleach", "Cleaning"},
	{"sponge", "Cleaning"},
	{"cleaner", "Cleaning"},
	{"foil", "Cleaning"},
	{"shampoo", "Toiletries"},
	{"conditioner", "Toiletries"},
	{"toothpaste", "Toiletries"},
	{"toothbrush", "Toiletries"},
	{"deodorant", "Toiletries"},
	{"floss", "Toiletries"},
	{"razor", "Toiletries"},
	{"soap", "Toiletries"},
	{"tissue", "Toiletries"},
	{"sunscreen", "Toiletries"},
	{"sparkling water", "Drinks"},
	{"juice", "Drinks"},
	{"coffee", "Drinks"},
	{"tea", "Drinks"},
	{"soda", "Drinks"},
	{"beer", "Drinks"},
	{"wine", "Drinks"},
	{"water", "Drinks"},
	{"chip", "Snacks"},
	{"cracker", "Snacks"},
	{"cookie", "Snacks"},
	{"popcorn", "Snacks"},
	{"pretzel", "Snacks"},
	{"chocolate", "Snacks"},
	{"candy", "Snacks"},
	{"ground beef", "Meat & Fish"},
	{"chicken", "Meat & Fish"},
	{"beef", "Meat & Fish"},
	{"pork", "Meat & Fish"},
	{"bacon", "Meat & Fish"},
	{"sausage", "Meat & Fish"},
	{"turkey", "Meat & Fish"},
	{"ham", "Meat & Fish"},
	{"steak", "Meat & Fish"},
	{"salmon", "Meat & Fish"},
	{"tuna", "Meat & Fish"},
	{"shrimp", "Meat & Fish"},
	{"fish", "Meat & Fish"},
	{"milk", "Dairy & Eggs"},
	{"egg", "Dairy & Eggs"},
	{"butter", "Dairy & Eggs"},
	{"cheese", "Dairy & Eggs"},
	{"yogurt", "Dairy & Eggs"},
	{"cream", "Dairy & Eggs"},
	{"bread", "Bakery"},
	{"bagel", "Bakery"},
	{"tortilla", "Bakery"},
	{"bun", "Bakery"},
	{"roll", "Bakery"},
	{"muffin", "Bakery"},
	{"croissant", "Bakery"},
	{"olive oil", "Pantry"},
	{"rice", "Pantry"},
	{"pasta", "Pantry"},
	{"spaghetti", "Pantry"},
	{"noodle", "Pantry"},
	{"flour", "Pantry"},
	{"sugar", "Pantry"},
	{"salt", "Pantry"},
	{"oil", "Pantry"},
	{"vinegar", "Pantry"},
	{"cereal", "Pantry"},
	{"oat", "Pantry"},
	{"bean", "Pantry"},
	{"lentil", "Pantry"},
	{"sauce", "Pantry"},
	{"soup", "Pantry"},
	{"broth", "Pantry"},
	{"honey", "Pantry"},
	{"spice", "Pantry"},
	{"canned", "Pantry"},
	{"apple", "Produce"},
	{"banana", "Produce"},
	{"orange", "Produce"},
	{"lemon", "Produce"},
	{"lime", "Produce"},
	{"avocado", "Produce"},
	{"tomato", "Produce"},
	{"tomatoe", "Produce"},
	{"potato", "Produce"},
	{"potatoe", "Produce"},
	{"onion", "Produce"},
	{"garlic", "Produce"},
	{"lettuce", "Produce"},
	{"spinach", "Produce"},
	{"carrot", "Produce"},
	{"pepper", "Produce"},
	{"cucumber", "Produce"},
	{"mushroom", "Produce"},
	{"grape", "Produce"},
	{"berry", "Produce"},
	{"berrie", "Produce"},
	{"herb", "Produce"},
}
