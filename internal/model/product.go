package model

const (
	StatusInStock    = "In Stock"
	StatusOutOfStock = "Out of Stock"
)

type Product struct {
	BaseModel
	Name     string `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Unit     string `gorm:"type:varchar(50)" json:"unit"`
	Category string `gorm:"type:varchar(100);index" json:"category"`
	Brand    string `gorm:"type:varchar(100)" json:"brand"`
	Stock    int    `gorm:"not null;default:0" json:"stock"`
	Status   string `gorm:"type:varchar(50)" json:"status"`
	Image    string `gorm:"type:text" json:"image"`
}

// DefaultStatus is the label used whenever a caller does not supply one.
func DefaultStatus(stock int) string {
	if stock > 0 {
		return StatusInStock
	}
	return StatusOutOfStock
}

// StatusOrDefault trusts a caller-supplied status and derives one otherwise.
func StatusOrDefault(status string, stock int) string {
	if status != "" {
		return status
	}
	return DefaultStatus(stock)
}

// CSVHeader is the column order used by export and understood by import.
var CSVHeader = []string{"name", "unit", "category", "brand", "stock", "status", "image"}

// SampleProducts seeds an empty catalogue on first start.
var SampleProducts = []Product{
	{Name: "Apple", Unit: "kg", Category: "Fruits", Brand: "FreshFarm", Stock: 50, Status: StatusInStock},
	{Name: "Banana", Unit: "dozen", Category: "Fruits", Brand: "Tropics", Stock: 30, Status: StatusInStock},
	{Name: "Milk", Unit: "liter", Category: "Dairy", Brand: "DairyPure", Stock: 0, Status: StatusOutOfStock},
}
