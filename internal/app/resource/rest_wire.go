package resource

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/dalemusser/promohub/internal/domain/models"
)

// Numeric status ids used by the HTTP API.
const (
	promoStatusPending  = 1
	promoStatusActive   = 2
	promoStatusArchived = 3

	identStatusPending  = 1
	identStatusAccepted = 2
	identStatusRejected = 3
)

var promoStatusByID = map[int]models.PromoStatus{
	promoStatusPending:  models.PromoPending,
	promoStatusActive:   models.PromoActive,
	promoStatusArchived: models.PromoArchived,
}

var promoStatusByLabel = map[string]models.PromoStatus{
	"en attente": models.PromoPending,
	"actif":      models.PromoActive,
	"archivé":    models.PromoArchived,
}

var identStatusByID = map[int]models.IdentificationStatus{
	identStatusPending:  models.IdentificationPending,
	identStatusAccepted: models.IdentificationAccepted,
	identStatusRejected: models.IdentificationRejected,
}

var identStatusByLabel = map[string]models.IdentificationStatus{
	"en attente": models.IdentificationPending,
	"accepté":    models.IdentificationAccepted,
	"refusé":     models.IdentificationRejected,
}

func promoStatusWire(s models.PromoStatus) wireStatus {
	switch s {
	case models.PromoActive:
		return wireStatus{ID: promoStatusActive, Label: "actif"}
	case models.PromoArchived:
		return wireStatus{ID: promoStatusArchived, Label: "archivé"}
	}
	return wireStatus{ID: promoStatusPending, Label: "en attente"}
}

func identStatusID(s models.IdentificationStatus) int {
	switch s {
	case models.IdentificationAccepted:
		return identStatusAccepted
	case models.IdentificationRejected:
		return identStatusRejected
	}
	return identStatusPending
}

// flexID accepts both JSON strings and numbers; the API is not consistent.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// wireDate reads "YYYY-MM-DD" or RFC 3339 and writes "YYYY-MM-DD".
type wireDate time.Time

const dateLayout = "2006-01-02"

func (d *wireDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		*d = wireDate{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = wireDate(t.UTC())
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	*d = wireDate(t)
	return nil
}

func (d wireDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(d).Format(dateLayout))
}

type wireStatus struct {
	ID    int    `json:"id"`
	Label string `json:"libelle,omitempty"`
}

type wireRef struct {
	ID flexID `json:"id"`
}

type wireIdentification struct {
	ID       flexID      `json:"id"`
	Status   *wireStatus `json:"statutIdentification,omitempty"`
	StatusID int         `json:"statutIdentificationId,omitempty"`
	Member   *wireRef    `json:"utilisateur,omitempty"`
	MemberID flexID      `json:"utilisateurId,omitempty"`
	Promo    *wireRef    `json:"promo,omitempty"`
	PromoID  flexID      `json:"promoId,omitempty"`
}

func (w wireIdentification) model(promoID string) models.Identification {
	ident := models.Identification{
		ID:       string(w.ID),
		MemberID: string(w.MemberID),
		PromoID:  string(w.PromoID),
	}
	if w.Member != nil && ident.MemberID == "" {
		ident.MemberID = string(w.Member.ID)
	}
	if w.Promo != nil && ident.PromoID == "" {
		ident.PromoID = string(w.Promo.ID)
	}
	if ident.PromoID == "" {
		ident.PromoID = promoID
	}
	ident.Status = models.IdentificationPending
	switch {
	case w.Status != nil && identStatusByID[w.Status.ID] != "":
		ident.Status = identStatusByID[w.Status.ID]
	case w.Status != nil && identStatusByLabel[strings.ToLower(w.Status.Label)] != "":
		ident.Status = identStatusByLabel[strings.ToLower(w.Status.Label)]
	case identStatusByID[w.StatusID] != "":
		ident.Status = identStatusByID[w.StatusID]
	}
	return ident
}

type wirePromo struct {
	ID              flexID               `json:"id"`
	Name            string               `json:"nom"`
	StartDate       wireDate             `json:"dateDebut"`
	EndDate         wireDate             `json:"dateFin"`
	ProgramID       flexID               `json:"formationId"`
	Program         *wireRef             `json:"formation,omitempty"`
	SiteID          flexID               `json:"campusId"`
	Site            *wireRef             `json:"campus,omitempty"`
	RoleID          *string              `json:"snowflake"`
	Status          *wireStatus          `json:"statutPromo,omitempty"`
	StatusAlt       *wireStatus          `json:"statut,omitempty"`
	StatusID        int                  `json:"statutPromoId,omitempty"`
	Identifications []wireIdentification `json:"identifications,omitempty"`
}

func (w wirePromo) model() models.Promo {
	p := models.Promo{
		ID:        string(w.ID),
		Name:      w.Name,
		StartDate: time.Time(w.StartDate),
		EndDate:   time.Time(w.EndDate),
		ProgramID: string(w.ProgramID),
		SiteID:    string(w.SiteID),
	}
	if p.ProgramID == "" && w.Program != nil {
		p.ProgramID = string(w.Program.ID)
	}
	if p.SiteID == "" && w.Site != nil {
		p.SiteID = string(w.Site.ID)
	}
	if w.RoleID != nil {
		p.RoleID = *w.RoleID
	}

	p.Status = models.PromoPending
	st := w.Status
	if st == nil {
		st = w.StatusAlt
	}
	switch {
	case st != nil && promoStatusByID[st.ID] != "":
		p.Status = promoStatusByID[st.ID]
	case st != nil && promoStatusByLabel[strings.ToLower(st.Label)] != "":
		p.Status = promoStatusByLabel[strings.ToLower(st.Label)]
	case promoStatusByID[w.StatusID] != "":
		p.Status = promoStatusByID[w.StatusID]
	}

	for _, wi := range w.Identifications {
		p.Identifications = append(p.Identifications, wi.model(p.ID))
	}
	return p
}

type wirePromoCreate struct {
	Name      string   `json:"nom"`
	StartDate wireDate `json:"dateDebut"`
	EndDate   wireDate `json:"dateFin"`
	ProgramID string   `json:"formationId"`
	SiteID    string   `json:"campusId"`
}

type wirePromoPatch struct {
	Name      *string     `json:"nom,omitempty"`
	StartDate *wireDate   `json:"dateDebut,omitempty"`
	EndDate   *wireDate   `json:"dateFin,omitempty"`
	RoleID    *string     `json:"snowflake,omitempty"`
	Status    *wireStatus `json:"statut,omitempty"`
}

func promoPatch(upd models.PromoUpdate) wirePromoPatch {
	patch := wirePromoPatch{Name: upd.Name, RoleID: upd.RoleID}
	if upd.StartDate != nil {
		d := wireDate(*upd.StartDate)
		patch.StartDate = &d
	}
	if upd.EndDate != nil {
		d := wireDate(*upd.EndDate)
		patch.EndDate = &d
	}
	if upd.Status != nil {
		st := promoStatusWire(*upd.Status)
		patch.Status = &st
	}
	return patch
}

type wireMember struct {
	ID        flexID `json:"id"`
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
}

type wireMemberCreate struct {
	ID        string   `json:"id"`
	LastName  string   `json:"nom"`
	FirstName string   `json:"prenom"`
	RoleIDs   []string `json:"rolesId,omitempty"`
}

type wireMemberPatch struct {
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
}

func (w wireMember) model() models.Member {
	return models.Member{
		ID:        string(w.ID),
		LastName:  w.LastName,
		FirstName: w.FirstName,
	}
}

type wireCatalogEntry struct {
	ID   flexID `json:"id"`
	Name string `json:"nom"`
}
