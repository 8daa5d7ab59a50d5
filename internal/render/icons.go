package render

import "strings"

const defaultIngredientIcon = "🥗"

var ingredientIcons = map[string]string{
	"apple":   "🍎",
	"carrot":  "🥕",
	"bread":   "🍞",
	"chicken": "🍗",
}

// IngredientIcon returns the badge shown next to a detected ingredient.
func IngredientIcon(name string) string {
	if icon, ok := ingredientIcons[strings.ToLower(strings.TrimSpace(name))]; ok {
		return icon
	}
	return defaultIngredientIcon
}
