package engine

// =============================================================================
// CATEGORIES - Per-direction category sets
// =============================================================================

// CategoryOther is the fallback for any category that does not belong to
// the set valid for the record's direction.
const CategoryOther = "Other"

var inflowCategories = []string{
	"Sales",
	"Services",
	"Budgets",
	"Projects",
	"Loans",
	"Investments",
	CategoryOther,
}

var outflowCategories = []string{
	"Payroll",
	"Suppliers",
	"Materials",
	"Taxes",
	"Rent",
	"Utilities",
	"Services",
	CategoryOther,
}

// CategoriesFor returns the valid category set for a direction.
// The returned slice is shared; callers must not mutate it.
func CategoriesFor(dir Direction) []string {
	if dir == Inflow {
		return inflowCategories
	}
	return outflowCategories
}

// CoerceCategory validates a category against the direction's set and
// falls back to Other instead of rejecting.
func CoerceCategory(dir Direction, category string) string {
	for _, c := range CategoriesFor(dir) {
		if c == category {
			return category
		}
	}
	return CategoryOther
}
