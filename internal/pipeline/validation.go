package pipeline

// Category is one of the fixed expense categories.
type Category string

const (
	CategoryHousing        Category = "Housing"
	CategoryTransportation Category = "Transportation"
	CategoryFood           Category = "Food"
	CategoryUtilities      Category = "Utilities"
	CategoryInsurance      Category = "Insurance"
	CategoryMedical        Category = "Medical/Healthcare"
	CategorySavings        Category = "Savings"
	CategoryDebt           Category = "Debt"
	CategoryEducation      Category = "Education"
	CategoryEntertainment  Category = "Entertainment"
	CategoryOther          Category = "Other"
)

// Categories lists every valid category in prompt order.
var Categories = []Category{
	CategoryHousing,
	CategoryTransportation,
	CategoryFood,
	CategoryUtilities,
	CategoryInsurance,
	CategoryMedical,
	CategorySavings,
	CategoryDebt,
	CategoryEducation,
	CategoryEntertainment,
	CategoryOther,
}

var categoriesByName = func() map[string]Category {
	m := make(map[string]Category, len(Categories))
	for _, c := range Categories {
		m[string(c)] = c
	}
	return m
}()

// ParseCategory returns the category named exactly name.
func ParseCategory(name string) (Category, bool) {
	c, ok := categoriesByName[name]
	return c, ok
}

// CategoryNames returns the category names as strings.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}
