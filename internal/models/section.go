package models

type Section struct {
	BaseModel
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
}

// SectionSubscription is the durable "user follows section" edge that the
// notification materializer reads when a new post lands in a section. It is
// unrelated to a live websocket subscription, which exists only in memory.
type SectionSubscription struct {
	BaseModel
	UserID    string `gorm:"not null;index;uniqueIndex:idx_section_sub_user_section"`
	SectionID string `gorm:"not null;index;uniqueIndex:idx_section_sub_user_section"`
}
