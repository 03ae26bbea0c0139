package handlers

import (
	"senfret/internal/devis"
	"senfret/internal/models"
)

// Form keys of the quote forms.
const (
	fieldTranslataire = "translataire"
	fieldCompanyName  = "nomEntreprise"
	fieldTypeService  = "typeService"
	fieldDescription  = "description"
	fieldOrigin       = "origin"
	fieldDestination  = "destination"
	fieldExpiration   = "dateExpiration"
	fieldWeight       = "poids"
	fieldLength       = "longueur"
	fieldWidth        = "largeur"
	fieldHeight       = "hauteur"
	fieldFragile      = "fragile"
	fieldDangerous    = "dangereux"
	fieldRefrigerated = "refrigere"
	fieldDevisOrigin  = "devisOrigin"
	fieldStatut       = "statut"
	fieldMontant      = "montant"
	fieldReponse      = "reponse"
	attachmentsDir    = "devis"
	reviewAttachments = "reviews"
)

type shipmentFields struct {
	weight, length, width, height    *float64
	fragile, dangerous, refrigerated *bool
}

func readShipment(f *formValues) (shipmentFields, error) {
	var (
		s   shipmentFields
		err error
	)
	for key, dst := range map[string]**float64{
		fieldWeight: &s.weight,
		fieldLength: &s.length,
		fieldWidth:  &s.width,
		fieldHeight: &s.height,
	} {
		if *dst, err = f.float(key); err != nil {
			return s, err
		}
	}
	for key, dst := range map[string]**bool{
		fieldFragile:      &s.fragile,
		fieldDangerous:    &s.dangerous,
		fieldRefrigerated: &s.refrigerated,
	} {
		if *dst, err = f.bool(key); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (s shipmentFields) model() *models.Shipment {
	m := &models.Shipment{}
	deref := func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v
	}
	m.Weight, m.Length, m.Width, m.Height = deref(s.weight), deref(s.length), deref(s.width), deref(s.height)
	m.Fragile = s.fragile != nil && *s.fragile
	m.Dangerous = s.dangerous != nil && *s.dangerous
	m.Refrigerated = s.refrigerated != nil && *s.refrigerated
	if m.IsZero() {
		return nil
	}
	return m
}

// requestInput maps a quote request form. ref is the forwarder from the URL,
// when present.
func requestInput(f *formValues, ref string) (devis.RequestInput, error) {
	if ref == "" {
		ref = f.text(fieldTranslataire)
	}
	if ref == "" {
		ref = f.text(fieldCompanyName)
	}
	expiresAt, err := f.time(fieldExpiration)
	if err != nil {
		return devis.RequestInput{}, err
	}
	shipment, err := readShipment(f)
	if err != nil {
		return devis.RequestInput{}, err
	}
	return devis.RequestInput{
		Translataire: ref,
		TypeService:  f.text(fieldTypeService),
		Description:  f.text(fieldDescription),
		Origin:       f.text(fieldOrigin),
		Destination:  f.text(fieldDestination),
		ExpiresAt:    expiresAt,
		Shipment:     shipment.model(),
		DevisOrigin:  f.text(fieldDevisOrigin),
	}, nil
}

func updateInput(f *formValues) (devis.UpdateInput, error) {
	expiresAt, err := f.time(fieldExpiration)
	if err != nil {
		return devis.UpdateInput{}, err
	}
	shipment, err := readShipment(f)
	if err != nil {
		return devis.UpdateInput{}, err
	}
	return devis.UpdateInput{
		TypeService:  f.optionalText(fieldTypeService),
		Description:  f.optionalText(fieldDescription),
		Origin:       f.optionalText(fieldOrigin),
		Destination:  f.optionalText(fieldDestination),
		ExpiresAt:    expiresAt,
		Weight:       shipment.weight,
		Length:       shipment.length,
		Width:        shipment.width,
		Height:       shipment.height,
		Fragile:      shipment.fragile,
		Dangerous:    shipment.dangerous,
		Refrigerated: shipment.refrigerated,
	}, nil
}

func responseInput(f *formValues) (devis.ResponseInput, error) {
	montant, err := f.float(fieldMontant)
	if err != nil {
		return devis.ResponseInput{}, err
	}
	in := devis.ResponseInput{
		Statut:  models.Statut(f.text(fieldStatut)),
		Reponse: f.text(fieldReponse),
	}
	if montant != nil {
		in.Montant = *montant
	}
	return in, nil
}
