package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDevisDecodesLegacyStatus(t *testing.T) {
	data, err := bson.Marshal(bson.M{
		"_id":         primitive.NewObjectID(),
		"typeService": "maritime",
		"status":      "accepte",
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var d Devis
	if err := bson.Unmarshal(data, &d); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if d.Statut != StatutAccepte {
		t.Fatalf("expected statut accepte from legacy field, got %q", d.Statut)
	}
	if d.TypeService != "maritime" {
		t.Fatalf("expected typeService to be decoded, got %q", d.TypeService)
	}
}

func TestDevisPrefersCanonicalStatut(t *testing.T) {
	data, err := bson.Marshal(bson.M{
		"statut": "annule",
		"status": "en_attente",
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var d Devis
	if err := bson.Unmarshal(data, &d); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if d.Statut != StatutAnnule {
		t.Fatalf("expected statut annule, got %q", d.Statut)
	}
}

func TestDevisWithoutStatusDefaultsToPending(t *testing.T) {
	data, _ := bson.Marshal(bson.M{"description": "20 palettes"})

	var d Devis
	if err := bson.Unmarshal(data, &d); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if d.Statut != StatutEnAttente {
		t.Fatalf("expected en_attente, got %q", d.Statut)
	}
}

func TestDevisMarshalWritesOnlyStatut(t *testing.T) {
	data, err := bson.Marshal(Devis{Statut: StatutRefuse})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var raw bson.M
	if err := bson.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := raw["status"]; ok {
		t.Fatal("legacy status field must not be written")
	}
	if raw["statut"] != "refuse" {
		t.Fatalf("expected statut refuse, got %v", raw["statut"])
	}
}

func TestStatutTransitions(t *testing.T) {
	cases := []struct {
		from, to Statut
		ok       bool
	}{
		{StatutEnAttente, StatutAccepte, true},
		{StatutEnAttente, StatutRefuse, true},
		{StatutEnAttente, StatutAnnule, true},
		{StatutEnAttente, StatutArchive, true},
		{StatutAccepte, StatutArchive, true},
		{StatutAccepte, StatutAnnule, false},
		{StatutAnnule, StatutAccepte, false},
		{StatutRefuse, StatutEnAttente, false},
		{StatutArchive, StatutEnAttente, false},
		{StatutArchive, StatutArchive, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestServiceTypesDecodeLegacyString(t *testing.T) {
	data, _ := bson.Marshal(bson.M{"typeServices": " aerien, Maritime ,,AERIEN "})

	var tr Translataire
	if err := bson.Unmarshal(data, &tr); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(tr.ServiceTypes) != 2 || tr.ServiceTypes[0] != "aerien" || tr.ServiceTypes[1] != "Maritime" {
		t.Fatalf("expected [aerien Maritime], got %v", tr.ServiceTypes)
	}
}

func TestServiceTypesStoredAsUniqueArray(t *testing.T) {
	tr := Translataire{ServiceTypes: ServiceTypeList{"routier", " Routier", "", "maritime"}}
	data, err := bson.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var raw struct {
		ServiceTypes []string `bson:"typeServices"`
	}
	if err := bson.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(raw.ServiceTypes) != 2 || raw.ServiceTypes[0] != "routier" || raw.ServiceTypes[1] != "maritime" {
		t.Fatalf("expected [routier maritime], got %v", raw.ServiceTypes)
	}
}
