package models

// Translataire is a freight-forwarder company account.
type Translataire struct {
	Account      `bson:",inline"`
	CompanyName  string          `bson:"nomEntreprise" json:"nomEntreprise"`
	NINEA        string          `bson:"ninea" json:"ninea"`
	ServiceTypes ServiceTypeList `bson:"typeServices" json:"typeServices"`
	Address      string          `bson:"adresse,omitempty" json:"adresse,omitempty"`
	Description  string          `bson:"description,omitempty" json:"description,omitempty"`
	LogoPath     string          `bson:"logo,omitempty" json:"logo,omitempty"`
	AvgRating    float64         `bson:"avgRating" json:"avgRating"`
	RatingsCount int             `bson:"ratingsCount" json:"ratingsCount"`
}
