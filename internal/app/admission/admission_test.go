package admission_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/promohub/internal/app/admission"
	"github.com/dalemusser/promohub/internal/app/system/apperr"
	"github.com/dalemusser/promohub/internal/app/system/customid"
	"github.com/dalemusser/promohub/internal/app/workspace"
	"github.com/dalemusser/promohub/internal/domain/models"
	"github.com/dalemusser/promohub/internal/testutil"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type env struct {
	guild   *testutil.Guild
	rc      *testutil.Resources
	wf      *admission.Workflow
	opsID   string
	learner string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{guild: testutil.NewGuild()}
	e.rc = testutil.NewResources(clockwork.NewFakeClockAt(time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)))
	e.opsID = e.guild.AddTextChannel("gestion-inscriptions")
	e.learner = e.guild.AddRole("Apprenant")
	ws := workspace.New(e.guild, workspace.Config{}, zap.NewNop())
	e.wf = admission.New(e.rc, ws, e.guild, admission.Config{
		RequestsChannelID: e.opsID,
		LearnerRoleID:     e.learner,
	}, nil, zap.NewNop())
	return e
}

func (e *env) promo(status models.PromoStatus, roleID string) models.Promo {
	return e.rc.SeedPromo(models.Promo{
		Name:      "CDA-Paris-2025",
		Status:    status,
		RoleID:    roleID,
		StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	})
}

var marie = admission.Names{FirstName: "Marie", LastName: "Dupont"}

func TestSubmitAndAccept_ActivePromo(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	role := e.guild.AddRole("Promo CDA-Paris-2025")
	p := e.promo(models.PromoActive, role)

	sub, err := e.wf.Submit(ctx, admission.SubmitRequest{MemberID: "M1", PromoID: p.ID, Names: marie})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Identification.Status != models.IdentificationPending || !sub.Posted {
		t.Fatalf("submission = %+v", sub)
	}
	if _, ok := e.rc.Member("M1"); !ok {
		t.Error("member should be created")
	}

	threads := e.guild.Threads(e.opsID)
	if len(threads) != 1 || threads[0].Name != "Demande Dupont Marie" {
		t.Fatalf("threads = %+v", threads)
	}
	msgs := e.guild.Messages(threads[0].ID)
	if len(msgs) != 1 || len(msgs[0].Message.Components) != 1 {
		t.Fatalf("request message = %+v", msgs)
	}
	buttons := msgs[0].Message.Components[0].Buttons
	if len(buttons) != 2 {
		t.Fatalf("got %d buttons, want accept and reject", len(buttons))
	}
	acceptAction, err := customid.Parse(buttons[0].CustomID)
	if err != nil || acceptAction.Kind != customid.AcceptInscription || acceptAction.Ref != sub.Identification.ID {
		t.Errorf("accept button = %+v, %v", acceptAction, err)
	}

	d, err := e.wf.Decide(ctx, admission.DecideRequest{
		IdentificationID: acceptAction.Ref,
		Accept:           true,
		ActorID:          "staff",
		ThreadID:         threads[0].ID,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if len(d.SoftFailures) != 0 {
		t.Errorf("soft failures = %v", d.SoftFailures)
	}
	got, _ := e.rc.Identification(sub.Identification.ID)
	if got.Status != models.IdentificationAccepted {
		t.Errorf("status = %s, want accepted", got.Status)
	}
	if !d.Granted || !e.guild.MemberHasRole("M1", role) {
		t.Error("M1 should hold the promo role")
	}
	if !e.guild.MemberHasRole("M1", e.learner) {
		t.Error("M1 should hold the learner role")
	}
	if len(e.guild.Directs("M1")) != 1 {
		t.Error("M1 should be told the outcome")
	}
	if !e.guild.ThreadArchived(threads[0].ID) {
		t.Error("request thread should be closed")
	}
}

func TestAccept_PendingPromoSkipsGrant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.promo(models.PromoPending, "")
	ident := e.rc.SeedIdentification("M1", p.ID, models.IdentificationPending)

	d, err := e.wf.Decide(ctx, admission.DecideRequest{IdentificationID: ident.ID, Accept: true, ActorID: "staff"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Granted || !d.GrantSkipped {
		t.Errorf("decision = %+v, want grant skipped", d)
	}
	// Only the learner role is granted.
	if n := e.guild.Calls("AddMemberRole"); n != 1 {
		t.Errorf("AddMemberRole calls = %d, want 1", n)
	}
}

func TestReject(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	role := e.guild.AddRole("Promo X")
	p := e.promo(models.PromoActive, role)
	sub, err := e.wf.Submit(ctx, admission.SubmitRequest{MemberID: "M1", PromoID: p.ID, Names: marie})
	if err != nil {
		t.Fatal(err)
	}

	d, err := e.wf.Decide(ctx, admission.DecideRequest{
		IdentificationID: sub.Identification.ID,
		ActorID:          "staff",
		ThreadID:         sub.ThreadID,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Identification.Status != models.IdentificationRejected {
		t.Errorf("status = %s, want rejected", d.Identification.Status)
	}
	if e.guild.Calls("AddMemberRole") != 0 {
		t.Error("reject must not grant anything")
	}
	if len(e.guild.Directs("M1")) != 1 || !e.guild.ThreadArchived(sub.ThreadID) {
		t.Error("member should be notified and the thread closed")
	}

	// A rejected member may ask again.
	if _, err := e.wf.Submit(ctx, admission.SubmitRequest{MemberID: "M1", PromoID: p.ID, Names: marie}); err != nil {
		t.Errorf("resubmit after reject: %v", err)
	}
}

func TestDecide_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.promo(models.PromoPending, "")
	ident := e.rc.SeedIdentification("M1", p.ID, models.IdentificationAccepted)

	if _, err := e.wf.Decide(ctx, admission.DecideRequest{IdentificationID: ident.ID, Accept: false}); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("decided twice: err = %v, want conflict", err)
	}
	if _, err := e.wf.Decide(ctx, admission.DecideRequest{IdentificationID: "nope"}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("unknown: err = %v, want not found", err)
	}
	if got, _ := e.rc.Identification(ident.ID); got.Status != models.IdentificationAccepted {
		t.Error("a decided identification must not change")
	}
}

func TestDecide_ConcurrentDecisionsApplyOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	role := e.guild.AddRole("Promo CDA-Paris-2025")
	p := e.promo(models.PromoActive, role)
	ident := e.rc.SeedIdentification("M1", p.ID, models.IdentificationPending)
	// The first writer stalls between its read and its write.
	e.rc.Before("UpdateIdentificationStatus", func() { time.Sleep(20 * time.Millisecond) })

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, accept := range []bool{true, false} {
		wg.Add(1)
		go func(i int, accept bool) {
			defer wg.Done()
			if !accept {
				time.Sleep(5 * time.Millisecond)
			}
			_, errs[i] = e.wf.Decide(ctx, admission.DecideRequest{IdentificationID: ident.ID, Accept: accept, ActorID: "op"})
		}(i, accept)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if apperr.KindOf(err) != apperr.KindConflict {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("decisions applied = %d, want 1 (errs=%v)", winners, errs)
	}

	got, _ := e.rc.Identification(ident.ID)
	accepted := got.Status == models.IdentificationAccepted
	if got.Status != models.IdentificationAccepted && got.Status != models.IdentificationRejected {
		t.Fatalf("status = %q", got.Status)
	}
	if e.guild.MemberHasRole("M1", role) != accepted {
		t.Errorf("member holds promo role = %v with status %q", !accepted, got.Status)
	}
	if n := len(e.guild.Directs("M1")); n != 1 {
		t.Errorf("member received %d decision messages, want 1", n)
	}
}

func TestDecide_DecidedElsewhereHasNoSideEffects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	role := e.guild.AddRole("Promo CDA-Paris-2025")
	p := e.promo(models.PromoActive, role)
	ident := e.rc.SeedIdentification("M1", p.ID, models.IdentificationPending)
	// Another instance rejects the request after this one read it.
	e.rc.Before("UpdateIdentificationStatus", func() {
		e.rc.SetIdentificationStatus(ident.ID, models.IdentificationRejected)
	})

	_, err := e.wf.Decide(ctx, admission.DecideRequest{IdentificationID: ident.ID, Accept: true, ActorID: "op"})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
	if e.guild.MemberHasRole("M1", role) {
		t.Error("role granted by a decision that lost")
	}
	if n := len(e.guild.Directs("M1")); n != 0 {
		t.Errorf("member received %d messages from a decision that lost", n)
	}
	if got, _ := e.rc.Identification(ident.ID); got.Status != models.IdentificationRejected {
		t.Errorf("status = %q, want rejected", got.Status)
	}
}

func TestDecide_SoftFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	role := e.guild.AddRole("Promo X")
	p := e.promo(models.PromoActive, role)
	ident := e.rc.SeedIdentification("M1", p.ID, models.IdentificationPending)
	e.guild.FailOn("SendDirect", errors.New("DMs closed"))
	e.guild.FailOnArg("AddMemberRole", "M1", errors.New("left the guild"))

	d, err := e.wf.Decide(ctx, admission.DecideRequest{IdentificationID: ident.ID, Accept: true, ThreadID: "gone"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	want := map[string]bool{
		admission.SoftGrant: true, admission.SoftLearnerRole: true,
		admission.SoftNotify: true, admission.SoftThread: true,
	}
	if len(d.SoftFailures) != len(want) {
		t.Fatalf("soft failures = %v", d.SoftFailures)
	}
	for _, f := range d.SoftFailures {
		if !want[f] {
			t.Errorf("unexpected soft failure %q", f)
		}
	}
	if got, _ := e.rc.Identification(ident.ID); got.Status != models.IdentificationAccepted {
		t.Error("status change must stand despite follow-up failures")
	}
}

func TestSubmit_Refusals(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	archived := e.rc.SeedPromo(models.Promo{Name: "Old", Status: models.PromoArchived})
	open := e.promo(models.PromoPending, "")
	e.rc.SeedIdentification("M2", open.ID, models.IdentificationPending)

	tests := []struct {
		name string
		req  admission.SubmitRequest
		kind apperr.Kind
	}{
		{"archived", admission.SubmitRequest{MemberID: "M1", PromoID: archived.ID, Names: marie}, apperr.KindTransition},
		{"unknown", admission.SubmitRequest{MemberID: "M1", PromoID: "nope", Names: marie}, apperr.KindNotFound},
		{"duplicate", admission.SubmitRequest{MemberID: "M2", PromoID: open.ID, Names: marie}, apperr.KindConflict},
		{"no names", admission.SubmitRequest{MemberID: "M1", PromoID: open.ID}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.wf.Submit(ctx, tt.req); apperr.KindOf(err) != tt.kind {
				t.Errorf("err = %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestSubmit_ExistingMemberAndPostFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.promo(models.PromoPending, "")
	if _, err := e.rc.CreateMember(ctx, models.Member{ID: "M1", FirstName: "Marie", LastName: "Dupont"}); err != nil {
		t.Fatal(err)
	}
	e.guild.FailOn("StartThread", errors.New("missing access"))

	sub, err := e.wf.Submit(ctx, admission.SubmitRequest{MemberID: "M1", PromoID: p.ID, Names: marie})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Posted {
		t.Error("Posted should be false when the thread could not be opened")
	}
	if _, ok := e.rc.Identification(sub.Identification.ID); !ok {
		t.Error("identification should be stored anyway")
	}
}

func TestIdentify(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m, err := e.wf.Identify(ctx, "U1", admission.Names{FirstName: " Marie ", LastName: "<i>Dupont</i>"})
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if m.FirstName != "Marie" || m.LastName != "Dupont" {
		t.Errorf("member = %+v", m)
	}
	if got := e.guild.Nickname("U1"); got != "Marie Dupont" {
		t.Errorf("nickname = %q", got)
	}
	if !e.guild.MemberHasRole("U1", e.learner) {
		t.Error("identified member should hold the learner role")
	}

	if _, err := e.wf.Identify(ctx, "U1", marie); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("second Identify: err = %v, want conflict", err)
	}
}

func TestIdentify_NicknameFailureIsBestEffort(t *testing.T) {
	e := newEnv(t)
	e.guild.FailOn("SetNickname", errors.New("owner cannot be renamed"))

	if _, err := e.wf.Identify(context.Background(), "U1", marie); err != nil {
		t.Fatalf("Identify: %v", err)
	}
}

func TestUpdateIdentity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.wf.UpdateIdentity(ctx, "U1", marie); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("unknown member: err = %v, want not found", err)
	}
	if _, err := e.wf.Identify(ctx, "U1", marie); err != nil {
		t.Fatal(err)
	}
	m, err := e.wf.UpdateIdentity(ctx, "U1", admission.Names{FirstName: "Marie-Anne", LastName: "Dupont"})
	if err != nil {
		t.Fatalf("UpdateIdentity: %v", err)
	}
	if m.FirstName != "Marie-Anne" || e.guild.Nickname("U1") != "Marie-Anne Dupont" {
		t.Errorf("member = %+v, nickname = %q", m, e.guild.Nickname("U1"))
	}
}

func TestOpenPromos_ListsPendingOnly(t *testing.T) {
	e := newEnv(t)
	e.promo(models.PromoPending, "")
	e.rc.SeedPromo(models.Promo{Name: "Live", Status: models.PromoActive})
	e.rc.SeedPromo(models.Promo{Name: "Old", Status: models.PromoArchived})

	promos, err := e.wf.OpenPromos(context.Background())
	if err != nil {
		t.Fatalf("OpenPromos: %v", err)
	}
	if len(promos) != 1 || promos[0].Status != models.PromoPending {
		t.Errorf("promos = %+v", promos)
	}
}
