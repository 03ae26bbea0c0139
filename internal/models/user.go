package models

// User is a shipper ("client") account.
type User struct {
	Account    `bson:",inline"`
	FirstName  string `bson:"prenom" json:"prenom"`
	LastName   string `bson:"nom" json:"nom"`
	Company    string `bson:"entreprise,omitempty" json:"entreprise,omitempty"`
	Address    string `bson:"adresse,omitempty" json:"adresse,omitempty"`
	AvatarPath string `bson:"photo,omitempty" json:"photo,omitempty"`
}

func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
