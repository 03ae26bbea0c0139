package models

type Admin struct {
	Account `bson:",inline"`
	Name    string `bson:"nom" json:"nom"`
}
