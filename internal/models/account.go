package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccountType selects the actor collection a principal lives in.
type AccountType string

const (
	AccountUser         AccountType = "user"
	AccountTranslataire AccountType = "translataire"
	AccountAdmin        AccountType = "admin"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountUser, AccountTranslataire, AccountAdmin:
		return true
	}
	return false
}

// Account holds the fields shared by the three actor collections.
// It is stored inline in User, Translataire and Admin documents.
type Account struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email                 string             `bson:"email" json:"email"`
	PasswordHash          string             `bson:"password,omitempty" json:"-"`
	Phone                 string             `bson:"telephone,omitempty" json:"telephone,omitempty"`
	GoogleID              string             `bson:"googleId,omitempty" json:"-"`
	IsVerified            bool               `bson:"isVerified" json:"isVerified"`
	IsApproved            bool               `bson:"isApproved" json:"isApproved"`
	IsBlocked             bool               `bson:"isBlocked" json:"isBlocked"`
	IsArchived            bool               `bson:"isArchived" json:"isArchived"`
	VerificationTokenHash string             `bson:"verificationToken,omitempty" json:"-"`
	ResetTokenHash        string             `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetTokenExpiresAt   *time.Time         `bson:"resetPasswordExpires,omitempty" json:"-"`
	CreatedAt             time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// AccountUpdate is a partial update; nil fields are left untouched.
// ClearResetToken removes the reset token and its expiry.
type AccountUpdate struct {
	PasswordHash          *string
	GoogleID              *string
	IsVerified            *bool
	IsApproved            *bool
	IsBlocked             *bool
	IsArchived            *bool
	VerificationTokenHash *string
	ResetTokenHash        *string
	ResetTokenExpiresAt   *time.Time
	ClearResetToken       bool
}

// AccountFilter narrows moderation listings.
type AccountFilter struct {
	Search   string
	Blocked  *bool
	Archived *bool
	Approved *bool
	Page     int64
	Limit    int64
}
