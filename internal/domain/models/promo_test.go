package models

import "testing"

func TestPromoStatus_CanTransitionTo(t *testing.T) {
	all := []PromoStatus{PromoPending, PromoActive, PromoArchived}
	allowed := map[[2]PromoStatus]bool{
		{PromoPending, PromoActive}:  true,
		{PromoActive, PromoArchived}: true,
	}

	for _, from := range all {
		for _, to := range all {
			got := from.CanTransitionTo(to)
			want := allowed[[2]PromoStatus{from, to}]
			if got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestPromoStatus_Valid(t *testing.T) {
	if PromoStatus("paused").Valid() {
		t.Error("expected unknown status to be invalid")
	}
	if !PromoArchived.Valid() {
		t.Error("expected archived to be valid")
	}
}

func TestPromo_MemberIDs(t *testing.T) {
	p := Promo{Identifications: []Identification{
		{MemberID: "m1", Status: IdentificationAccepted},
		{MemberID: "m2", Status: IdentificationPending},
		{MemberID: "m3", Status: IdentificationRejected},
		{MemberID: "m4", Status: IdentificationAccepted},
	}}

	accepted := p.AcceptedMemberIDs()
	if len(accepted) != 2 || accepted[0] != "m1" || accepted[1] != "m4" {
		t.Errorf("AcceptedMemberIDs: got %v", accepted)
	}
	if all := p.AllMemberIDs(); len(all) != 4 {
		t.Errorf("AllMemberIDs: got %v", all)
	}
}

func TestMember_DisplayName(t *testing.T) {
	m := Member{FirstName: " Ada ", LastName: "Lovelace"}
	if got := m.DisplayName(); got != "Ada Lovelace" {
		t.Errorf("DisplayName: got %q", got)
	}
	if got := DisplayName("", "Solo"); got != "Solo" {
		t.Errorf("DisplayName with empty first: got %q", got)
	}
}
