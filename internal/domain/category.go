package domain

import "strings"

// Category is a member of the closed spending-category vocabulary.
// Anything the models or parsers produce is funneled through ParseCategory,
// so an unrecognized label can only ever surface as CategoryOther.
type Category string

const (
	CategoryGroceries      Category = "groceries"
	CategoryDining         Category = "dining"
	CategoryTransportation Category = "transportation"
	CategoryTravel         Category = "travel"
	CategoryShopping       Category = "shopping"
	CategoryHealthcare     Category = "healthcare"
	CategoryUtilities      Category = "utilities"
	CategorySubscriptions  Category = "subscriptions"
	CategoryEntertainment  Category = "entertainment"
	CategoryServices       Category = "services"
	CategoryGas            Category = "gas"
	CategoryEducation      Category = "education"
	CategoryPersonal       Category = "personal"
	CategoryHome           Category = "home"
	CategoryGifts          Category = "gifts"
	CategoryFees           Category = "fees"
	CategoryCash           Category = "cash"
	CategoryTransfer       Category = "transfer"
	CategoryOther          Category = "other"
)

var validCategories = map[Category]bool{
	CategoryGroceries:      true,
	CategoryDining:         true,
	CategoryTransportation: true,
	CategoryTravel:         true,
	CategoryShopping:       true,
	CategoryHealthcare:     true,
	CategoryUtilities:      true,
	CategorySubscriptions:  true,
	CategoryEntertainment:  true,
	CategoryServices:       true,
	CategoryGas:            true,
	CategoryEducation:      true,
	CategoryPersonal:       true,
	CategoryHome:           true,
	CategoryGifts:          true,
	CategoryFees:           true,
	CategoryCash:           true,
	CategoryTransfer:       true,
	CategoryOther:          true,
}

// categoryAliases maps common model and statement spellings into the
// closed vocabulary.
var categoryAliases = map[string]Category{
	"food":          CategoryDining,
	"restaurant":    CategoryDining,
	"restaurants":   CategoryDining,
	"food & drink":  CategoryDining,
	"food & dining": CategoryDining,
	"grocery":       CategoryGroceries,
	"supermarket":   CategoryGroceries,
	"transport":     CategoryTransportation,
	"transit":       CategoryTransportation,
	"uber":          CategoryTransportation,
	"lyft":          CategoryTransportation,
	"subscription":  CategorySubscriptions,
	"streaming":     CategorySubscriptions,
	"netflix":       CategorySubscriptions,
	"spotify":       CategorySubscriptions,
	"retail":        CategoryShopping,
	"amazon":        CategoryShopping,
	"health":        CategoryHealthcare,
	"medical":       CategoryHealthcare,
	"pharmacy":      CategoryHealthcare,
	"hotel":         CategoryTravel,
	"flight":        CategoryTravel,
	"airline":       CategoryTravel,
	"fuel":          CategoryGas,
	"gasoline":      CategoryGas,
	"electric":      CategoryUtilities,
	"water":         CategoryUtilities,
	"internet":      CategoryUtilities,
	"phone":         CategoryUtilities,
	"atm":           CategoryCash,
	"withdrawal":    CategoryCash,
	"unknown":       CategoryOther,
	"uncategorized": CategoryOther,
}

// ParseCategory normalizes a raw category label into the closed vocabulary.
// It lower-cases, trims, resolves aliases, and falls back to CategoryOther.
// It never fails.
func ParseCategory(raw string) Category {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return CategoryOther
	}
	if alias, ok := categoryAliases[normalized]; ok {
		return alias
	}
	if validCategories[Category(normalized)] {
		return Category(normalized)
	}
	return CategoryOther
}

// Valid reports whether c is a member of the closed vocabulary.
func (c Category) Valid() bool {
	return validCategories[c]
}

// Categories returns the closed vocabulary in no particular order.
func Categories() []Category {
	out := make([]Category, 0, len(validCategories))
	for c := range validCategories {
		out = append(out, c)
	}
	return out
}
