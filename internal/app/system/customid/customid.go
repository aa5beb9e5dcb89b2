// Package customid encodes the identifiers carried by interactive controls
// (buttons, selects, modals). An id is decoded once where the event enters
// the application; handlers only ever see an Action.
package customid

import (
	"errors"
	"strings"
)

// Kind names what an interactive control does.
type Kind string

const (
	IdentifyButton       Kind = "identify_btn"
	IdentifyModal        Kind = "identify_modal"
	UpdateIdentityButton Kind = "update_identity_btn"
	UpdateIdentityModal  Kind = "update_identity_modal"

	CreatePromoButton Kind = "create_promo_btn"
	SelectProgram     Kind = "select_program"
	SelectSite        Kind = "select_site"
	CreatePromoModal  Kind = "create_promo_modal"

	InscriptionButton Kind = "inscription_btn"
	SelectPromo       Kind = "select_promo"
	InscriptionModal  Kind = "inscription_modal"

	AcceptInscription Kind = "accept_inscription"
	RejectInscription Kind = "reject_inscription"
)

var known = map[Kind]bool{
	IdentifyButton: true, IdentifyModal: true,
	UpdateIdentityButton: true, UpdateIdentityModal: true,
	CreatePromoButton: true, SelectProgram: true, SelectSite: true, CreatePromoModal: true,
	InscriptionButton: true, SelectPromo: true, InscriptionModal: true,
	AcceptInscription: true, RejectInscription: true,
}

// MaxLen is the platform limit on a custom id.
const MaxLen = 100

const sep = ":"

var (
	ErrEmpty       = errors.New("customid: empty id")
	ErrUnknownKind = errors.New("customid: unknown kind")
	ErrTooLong     = errors.New("customid: id too long")
)

// Action is a decoded custom id. Ref is optional and identifies the record
// the control acts on (an identification id, a promo id).
type Action struct {
	Kind Kind
	Ref  string
}

// New builds an action without a reference.
func New(k Kind) Action { return Action{Kind: k} }

// WithRef builds an action bound to a record.
func WithRef(k Kind, ref string) Action { return Action{Kind: k, Ref: ref} }

// String encodes the action as "kind" or "kind:ref".
func (a Action) String() string {
	if a.Ref == "" {
		return string(a.Kind)
	}
	return string(a.Kind) + sep + a.Ref
}

// Encode validates and encodes the action.
func (a Action) Encode() (string, error) {
	if !known[a.Kind] {
		return "", ErrUnknownKind
	}
	s := a.String()
	if len(s) > MaxLen {
		return "", ErrTooLong
	}
	return s, nil
}

// Parse decodes a custom id. Only the first separator splits kind from ref,
// so refs may themselves contain ':'.
func Parse(id string) (Action, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Action{}, ErrEmpty
	}
	kind, ref, _ := strings.Cut(id, sep)
	a := Action{Kind: Kind(kind), Ref: ref}
	if !known[a.Kind] {
		return Action{}, ErrUnknownKind
	}
	return a, nil
}
