package domain

type Category struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

type Skill struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	Name          string `json:"name" gorm:"not null;uniqueIndex:idx_skill_name_category"`
	CategoryID    uint   `json:"categoryId" gorm:"not null;uniqueIndex:idx_skill_name_category"`
	SearchCounter int64  `json:"searchCounter" gorm:"not null;default:0"`

	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

type Location struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	Address string `json:"address" gorm:"not null;uniqueIndex:idx_location_address"`
	ZipCode string `json:"zipCode" gorm:"not null;uniqueIndex:idx_location_address"`
	City    string `json:"city" gorm:"not null;uniqueIndex:idx_location_address"`
}

func (l *Location) FullAddress() string {
	return l.Address + ", " + l.ZipCode + ", " + l.City
}

// DefaultCategories seeds a fresh database.
var DefaultCategories = []string{
	"Informatique",
	"Langues",
	"Musique",
	"Cuisine",
	"Sport",
	"Arts",
	"Bricolage",
	"Sciences",
}
