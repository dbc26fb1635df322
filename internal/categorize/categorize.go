// Package categorize suggests a pantry category from an item name.
package categorize

import "strings"

// Category names as seeded into the categories table.
const (
	Dairy       = "Dairy"
	Snacks      = "Snacks"
	Beverages   = "Beverages"
	Produce     = "Produce"
	CannedGoods = "Canned Goods"
	Condiments  = "Condiments & Sauces"
	DryGoods    = "Dry Goods"
	Proteins    = "Proteins"
	Baking      = "Baking Supplies"
	Breakfast   = "Breakfast Foods"
	Frozen      = "Frozen Foods"
	Spices      = "Spices & Seasonings"
	OilsFats    = "Oils & Fats"
	Prepared    = "Prepared Foods"
)

// All lists every category in seed order.
var All = []string{
	Dairy, Snacks, Beverages, Produce, CannedGoods, Condiments, DryGoods,
	Proteins, Baking, Breakfast, Frozen, Spices, OilsFats, Prepared,
}

// Suggest returns the category for the given item name, or "" when nothing
// matches. Matching is case-insensitive: exact names first, then keywords.
func Suggest(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return ""
	}

	if cat, ok := exactMatch[name]; ok {
		return cat
	}

	for _, entry := range keywordMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.category
		}
	}

	return ""
}

var exactMatch = map[string]string{
	"milk":      Dairy,
	"cheese":    Dairy,
	"yogurt":    Dairy,
	"cream":     Dairy,
	"kefir":     Dairy,
	"eggs":      Proteins,
	"egg":       Proteins,
	"chicken":   Proteins,
	"beef":      Proteins,
	"pork":      Proteins,
	"tofu":      Proteins,
	"tuna":      CannedGoods,
	"salmon":    Proteins,
	"bacon":     Proteins,
	"chips":     Snacks,
	"crackers":  Snacks,
	"popcorn":   Snacks,
	"pretzels":  Snacks,
	"cookies":   Snacks,
	"water":     Beverages,
	"coffee":    Beverages,
	"tea":       Beverages,
	"juice":     Beverages,
	"soda":      Beverages,
	"apples":    Produce,
	"bananas":   Produce,
	"onions":    Produce,
	"potatoes":  Produce,
	"garlic":    Produce,
	"lettuce":   Produce,
	"rice":      DryGoods,
	"pasta":     DryGoods,
	"lentils":   DryGoods,
	"quinoa":    DryGoods,
	"flour":     Baking,
	"sugar":     Baking,
	"yeast":     Baking,
	"cereal":    Breakfast,
	"oatmeal":   Breakfast,
	"oats":      Breakfast,
	"pancake mix": Breakfast,
	"salt":      Spices,
	"pepper":    Spices,
	"cinnamon":  Spices,
	"paprika":   Spices,
	"butter":    OilsFats,
	"margarine": OilsFats,
	"lard":      OilsFats,
	"ketchup":   Condiments,
	"mustard":   Condiments,
	"mayonnaise": Condiments,
	"salsa":     Condiments,
	"bread":     Baking,
	"ice cream": Frozen,
	"lasagna":   Prepared,
	"hummus":    Prepared,
}

type keywordEntry struct {
	keyword  string
	category string
}

// Ordered with longer or more specific keywords first.
var keywordMatches = []keywordEntry{
	{"frozen", Frozen},
	{"ice cream", Frozen},
	{"popsicle", Frozen},

	{"canned", CannedGoods},
	{"tinned", CannedGoods},
	{"can of", CannedGoods},

	{"peanut butter", Condiments},
	{"olive oil", OilsFats},
	{"coconut oil", OilsFats},
	{"cooking spray", OilsFats},
	{"shortening", OilsFats},
	{" oil", OilsFats},

	{"baking soda", Baking},
	{"baking powder", Baking},
	{"vanilla extract", Baking},
	{"chocolate chip", Baking},
	{"brown sugar", Baking},
	{"flour", Baking},

	{"almond milk", Beverages},
	{"oat milk", Beverages},
	{"sparkling water", Beverages},
	{"juice", Beverages},
	{"coffee", Beverages},
	{"soda", Beverages},
	{"tea", Beverages},
	{"drink", Beverages},

	{"cream cheese", Dairy},
	{"sour cream", Dairy},
	{"cottage cheese", Dairy},
	{"cheese", Dairy},
	{"yogurt", Dairy},
	{"milk", Dairy},

	{"ground beef", Proteins},
	{"chicken", Proteins},
	{"turkey", Proteins},
	{"sausage", Proteins},
	{"steak", Proteins},
	{"shrimp", Proteins},
	{"egg", Proteins},

	{"granola", Breakfast},
	{"cereal", Breakfast},
	{"waffle", Breakfast},
	{"syrup", Breakfast},
	{"oat", Breakfast},

	{"soy sauce", Condiments},
	{"hot sauce", Condiments},
	{"dressing", Condiments},
	{"vinegar", Condiments},
	{"sauce", Condiments},
	{"jam", Condiments},
	{"honey", Condiments},

	{"seasoning", Spices},
	{"spice", Spices},
	{"powder", Spices},
	{"cumin", Spices},
	{"oregano", Spices},

	{"leftover", Prepared},
	{"meal", Prepared},
	{"soup", Prepared},
	{"pizza", Prepared},

	{"chip", Snacks},
	{"cracker", Snacks},
	{"cookie", Snacks},
	{"candy", Snacks},
	{"chocolate", Snacks},
	{"nut", Snacks},
	{"snack", Snacks},

	{"rice", DryGoods},
	{"pasta", DryGoods},
	{"noodle", DryGoods},
	{"spaghetti", DryGoods},
	{"bean", DryGoods},
	{"lentil", DryGoods},

	{"lettuce", Produce},
	{"spinach", Produce},
	{"berr", Produce},
	{"apple", Produce},
	{"banana", Produce},
	{"tomato", Produce},
	{"potato", Produce},
	{"onion", Produce},
	{"carrot", Produce},
	{"fruit", Produce},
	{"bread", Baking},
}
