package customid

import (
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Action
		wantErr error
	}{
		{"kind only", "create_promo_btn", Action{Kind: CreatePromoButton}, nil},
		{"kind and ref", "accept_inscription:abc-123", Action{Kind: AcceptInscription, Ref: "abc-123"}, nil},
		{"ref with separator", "inscription_modal:a:b", Action{Kind: InscriptionModal, Ref: "a:b"}, nil},
		{"empty", "  ", Action{}, ErrEmpty},
		{"unknown", "delete_everything:1", Action{}, ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err: got %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	s, err := WithRef(RejectInscription, "id-1").Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if s != "reject_inscription:id-1" {
		t.Errorf("got %q", s)
	}

	back, err := Parse(s)
	if err != nil || back.Ref != "id-1" || back.Kind != RejectInscription {
		t.Errorf("Parse(%q) = %+v, %v", s, back, err)
	}

	if _, err := New("nope").Encode(); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind: got %v", err)
	}
	if _, err := WithRef(SelectPromo, strings.Repeat("x", MaxLen)).Encode(); !errors.Is(err, ErrTooLong) {
		t.Errorf("too long: got %v", err)
	}
}
