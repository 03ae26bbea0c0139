package auth

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/models"
)

// Principal is the authenticated actor of a request. Exactly one of User,
// Translataire and Admin is set, matching Type.
type Principal struct {
	Type         models.AccountType
	User         *models.User
	Translataire *models.Translataire
	Admin        *models.Admin

	Token  string
	Claims *Claims
}

func (p *Principal) Account() *models.Account {
	switch {
	case p.User != nil:
		return &p.User.Account
	case p.Translataire != nil:
		return &p.Translataire.Account
	case p.Admin != nil:
		return &p.Admin.Account
	}
	return &models.Account{}
}

func (p *Principal) ID() primitive.ObjectID {
	return p.Account().ID
}

// Profile returns the concrete actor document for JSON rendering.
func (p *Principal) Profile() interface{} {
	switch p.Type {
	case models.AccountUser:
		return p.User
	case models.AccountTranslataire:
		return p.Translataire
	}
	return p.Admin
}

// DisplayName is the name used in notification texts.
func (p *Principal) DisplayName() string {
	switch {
	case p.User != nil:
		return p.User.FullName()
	case p.Translataire != nil:
		return p.Translataire.CompanyName
	case p.Admin != nil:
		return p.Admin.Name
	}
	return ""
}
