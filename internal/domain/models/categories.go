package models

// ExpenseCategory classifies an expense. The set is closed.
type ExpenseCategory string

const (
	ExpenseStockPurchase ExpenseCategory = "stock_purchase"
	ExpenseUberDelivery  ExpenseCategory = "uber_delivery"
	ExpenseSalary        ExpenseCategory = "salary"
	ExpenseMetaAds       ExpenseCategory = "meta_ads"
	ExpenseEquipment     ExpenseCategory = "equipment"
	ExpenseConsumables   ExpenseCategory = "consumables"
	ExpenseUtilities     ExpenseCategory = "utilities"
	ExpenseOther         ExpenseCategory = "other"
)

// ExpenseCategories lists every expense category in display order.
var ExpenseCategories = []ExpenseCategory{
	ExpenseStockPurchase,
	ExpenseUberDelivery,
	ExpenseSalary,
	ExpenseMetaAds,
	ExpenseEquipment,
	ExpenseConsumables,
	ExpenseUtilities,
	ExpenseOther,
}

var expenseCategoryLabels = map[ExpenseCategory]string{
	ExpenseStockPurchase: "Stock Purchase",
	ExpenseUberDelivery:  "Uber/Delivery",
	ExpenseSalary:        "Salaries",
	ExpenseMetaAds:       "Meta Ads",
	ExpenseEquipment:     "Equipment",
	ExpenseConsumables:   "Consumables",
	ExpenseUtilities:     "Utilities",
	ExpenseOther:         "Other",
}

// Valid reports whether c belongs to the closed set.
func (c ExpenseCategory) Valid() bool {
	_, ok := expenseCategoryLabels[c]
	return ok
}

// Label returns the human readable name, or the raw value for unknown categories.
func (c ExpenseCategory) Label() string {
	if label, ok := expenseCategoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// StockCategory classifies a stock item.
type StockCategory string

const (
	StockMeat      StockCategory = "meat"
	StockVegetable StockCategory = "vegetable"
	StockSpice     StockCategory = "spice"
	StockDairy     StockCategory = "dairy"
	StockGrocery   StockCategory = "grocery"
	StockBeverage  StockCategory = "beverage"
	StockOther     StockCategory = "other"
)

var StockCategories = []StockCategory{
	StockMeat,
	StockVegetable,
	StockSpice,
	StockDairy,
	StockGrocery,
	StockBeverage,
	StockOther,
}

var stockCategoryLabels = map[StockCategory]string{
	StockMeat:      "Meat",
	StockVegetable: "Vegetables",
	StockSpice:     "Spices",
	StockDairy:     "Dairy",
	StockGrocery:   "Grocery",
	StockBeverage:  "Beverages",
	StockOther:     "Other",
}

func (c StockCategory) Valid() bool {
	_, ok := stockCategoryLabels[c]
	return ok
}

func (c StockCategory) Label() string {
	if label, ok := stockCategoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// ConsumableCategory classifies a consumable item.
type ConsumableCategory string

const (
	ConsumablePackaging  ConsumableCategory = "packaging"
	ConsumableCleaning   ConsumableCategory = "cleaning"
	ConsumableStationery ConsumableCategory = "stationery"
	ConsumableOther      ConsumableCategory = "other"
)

var ConsumableCategories = []ConsumableCategory{
	ConsumablePackaging,
	ConsumableCleaning,
	ConsumableStationery,
	ConsumableOther,
}

var consumableCategoryLabels = map[ConsumableCategory]string{
	ConsumablePackaging:  "Packaging",
	ConsumableCleaning:   "Cleaning",
	ConsumableStationery: "Stationery",
	ConsumableOther:      "Other",
}

func (c ConsumableCategory) Valid() bool {
	_, ok := consumableCategoryLabels[c]
	return ok
}

func (c ConsumableCategory) Label() string {
	if label, ok := consumableCategoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// RevenueSource tells where a sale was collected.
type RevenueSource string

const (
	RevenueOnline RevenueSource = "online"
	RevenueCash   RevenueSource = "cash"
	RevenueOther  RevenueSource = "other"
)

var RevenueSources = []RevenueSource{RevenueOnline, RevenueCash, RevenueOther}

var revenueSourceLabels = map[RevenueSource]string{
	RevenueOnline: "Online",
	RevenueCash:   "Cash",
	RevenueOther:  "Other",
}

func (s RevenueSource) Valid() bool {
	_, ok := revenueSourceLabels[s]
	return ok
}

func (s RevenueSource) Label() string {
	if label, ok := revenueSourceLabels[s]; ok {
		return label
	}
	return string(s)
}

// CommonUnits are suggested units; Unit fields are not restricted to them.
var CommonUnits = []string{"kg", "g", "pcs", "ltr", "ml", "box", "pack", "bottle", "can", "dozen"}

// Category is implemented by every closed category enum.
type Category interface {
	~string
	Valid() bool
	Label() string
}
