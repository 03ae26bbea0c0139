package models

// Statistics backs the admin dashboard.
type Statistics struct {
	Users                int64            `json:"users"`
	Translataires        int64            `json:"translataires"`
	PendingTranslataires int64            `json:"pendingTranslataires"`
	Admins               int64            `json:"admins"`
	Reviews              int64            `json:"reviews"`
	DevisTotal           int64            `json:"devisTotal"`
	DevisByStatut        map[Statut]int64 `json:"devisByStatut"`
}
