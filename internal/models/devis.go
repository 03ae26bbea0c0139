package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Statut is the lifecycle state of a Devis.
type Statut string

const (
	StatutEnAttente Statut = "en_attente"
	StatutAccepte   Statut = "accepte"
	StatutRefuse    Statut = "refuse"
	StatutAnnule    Statut = "annule"
	StatutArchive   Statut = "archive"
)

// OriginNouveauDevis tags quotes coming from the bulk intake form; no e-mail
// is sent to the forwarder for those.
const OriginNouveauDevis = "nouveau-devis"

var transitions = map[Statut][]Statut{
	StatutEnAttente: {StatutAccepte, StatutRefuse, StatutAnnule, StatutArchive},
	StatutAccepte:   {StatutArchive},
	StatutRefuse:    {StatutArchive},
	StatutAnnule:    {StatutArchive},
}

func (s Statut) Valid() bool {
	switch s {
	case StatutEnAttente, StatutAccepte, StatutRefuse, StatutAnnule, StatutArchive:
		return true
	}
	return false
}

// CanTransition reports whether a quote in state s may move to next.
func (s Statut) CanTransition(next Statut) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Shipment carries the optional physical description of the goods.
type Shipment struct {
	Weight       float64 `bson:"poids,omitempty" json:"poids,omitempty"`
	Length       float64 `bson:"longueur,omitempty" json:"longueur,omitempty"`
	Width        float64 `bson:"largeur,omitempty" json:"largeur,omitempty"`
	Height       float64 `bson:"hauteur,omitempty" json:"hauteur,omitempty"`
	Fragile      bool    `bson:"fragile,omitempty" json:"fragile,omitempty"`
	Dangerous    bool    `bson:"dangereux,omitempty" json:"dangereux,omitempty"`
	Refrigerated bool    `bson:"refrigere,omitempty" json:"refrigere,omitempty"`
}

func (s Shipment) IsZero() bool {
	return s == Shipment{}
}

// Devis is a quote request from a client to a forwarder and its response.
type Devis struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TranslataireID    primitive.ObjectID `bson:"translataire" json:"translataire"`
	ClientID          primitive.ObjectID `bson:"client" json:"client"`
	TypeService       string             `bson:"typeService" json:"typeService"`
	Description       string             `bson:"description" json:"description"`
	Origin            string             `bson:"origin,omitempty" json:"origin,omitempty"`
	Destination       string             `bson:"destination,omitempty" json:"destination,omitempty"`
	Shipment          *Shipment          `bson:"shipment,omitempty" json:"shipment,omitempty"`
	ClientFiles       []string           `bson:"fichiers" json:"fichiers"`
	TranslataireFiles []string           `bson:"fichiersTranslataire,omitempty" json:"fichiersTranslataire,omitempty"`
	Statut            Statut             `bson:"statut" json:"statut"`
	Montant           float64            `bson:"montant,omitempty" json:"montant,omitempty"`
	Reponse           string             `bson:"reponse,omitempty" json:"reponse,omitempty"`
	DevisOrigin       string             `bson:"devisOrigin,omitempty" json:"devisOrigin,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
	ExpiresAt         time.Time          `bson:"dateExpiration" json:"dateExpiration"`
	RespondedAt       *time.Time         `bson:"dateReponse,omitempty" json:"dateReponse,omitempty"`
	Version           int64              `bson:"version" json:"version"`
}

// UnmarshalBSON decodes a Devis, accepting legacy documents that only carry
// the old "status" field instead of "statut".
func (d *Devis) UnmarshalBSON(data []byte) error {
	type Fields Devis
	var doc struct {
		Fields       `bson:",inline"`
		LegacyStatus string `bson:"status,omitempty"`
	}
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}
	*d = Devis(doc.Fields)
	if d.Statut == "" && doc.LegacyStatus != "" {
		d.Statut = Statut(doc.LegacyStatus)
	}
	if d.Statut == "" {
		d.Statut = StatutEnAttente
	}
	return nil
}

// DevisFilter narrows admin and actor listings.
type DevisFilter struct {
	ClientID       *primitive.ObjectID
	TranslataireID *primitive.ObjectID
	Statut         Statut
	Page           int64
	Limit          int64
}
