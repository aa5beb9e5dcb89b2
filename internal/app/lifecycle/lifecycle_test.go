package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/promohub/internal/app/lifecycle"
	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/system/apperr"
	"github.com/dalemusser/promohub/internal/app/system/selection"
	"github.com/dalemusser/promohub/internal/app/workspace"
	"github.com/dalemusser/promohub/internal/domain/models"
	"github.com/dalemusser/promohub/internal/testutil"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var now = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

type env struct {
	clock  clockwork.FakeClock
	guild  *testutil.Guild
	rc     *testutil.Resources
	sel    *selection.Cache
	orch   *lifecycle.Orchestrator
	sched  *lifecycle.Scheduler
	opsID  string
	tmplID string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{clock: clockwork.NewFakeClockAt(now), guild: testutil.NewGuild()}
	e.rc = testutil.NewResources(e.clock)
	e.sel = selection.New(e.clock, selection.DefaultTTL)

	facilitator := e.guild.AddRole("Formateur")
	e.tmplID = e.guild.AddCategory("Modèle",
		platform.ChannelSpec{Name: "annonces", Type: platform.ChannelText},
		platform.ChannelSpec{Name: "general", Type: platform.ChannelText},
		platform.ChannelSpec{Name: "vocal", Type: platform.ChannelVoice},
	)
	e.opsID = e.guild.AddTextChannel("gestion-inscriptions")

	ws := workspace.New(e.guild, workspace.Config{
		TemplateCategoryID: e.tmplID,
		FacilitatorRoleID:  facilitator,
	}, zap.NewNop())
	e.orch = lifecycle.NewOrchestrator(e.rc, ws, e.sel, nil, zap.NewNop())
	e.sched = lifecycle.NewScheduler(e.rc, e.orch,
		lifecycle.NewNotifier(e.guild, e.opsID, zap.NewNop()), nil, zap.NewNop())
	return e
}

func (e *env) seed(name string, status models.PromoStatus, start, end time.Time) models.Promo {
	return e.rc.SeedPromo(models.Promo{Name: name, Status: status, StartDate: start, EndDate: end})
}

func TestStartBatch_CreatedPromoBecomesActive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	prog := e.rc.SeedProgram("CDA", true)
	site := e.rc.SeedSite("Paris", true)
	e.sel.Start("op")
	e.sel.RecordProgram("op", prog.ID)
	e.sel.RecordSite("op", site.ID)

	promo, err := e.orch.CreatePromo(ctx, "op", lifecycle.PromoForm{
		Name:      "CDA-Paris-2025",
		StartDate: now.Format(lifecycle.DateLayout),
		EndDate:   "2026-06-30",
	})
	if err != nil {
		t.Fatalf("CreatePromo: %v", err)
	}
	if promo.Status != models.PromoPending {
		t.Fatalf("new promo status = %s, want pending", promo.Status)
	}

	accepted := e.rc.SeedIdentification("m1", promo.ID, models.IdentificationAccepted)
	pending := e.rc.SeedIdentification("m2", promo.ID, models.IdentificationPending)

	rep, err := e.sched.RunStartBatch(ctx)
	if err != nil {
		t.Fatalf("RunStartBatch: %v", err)
	}
	if rep.Selected != 1 || rep.Succeeded != 1 || rep.Failed != 0 {
		t.Fatalf("report = %+v", rep)
	}

	role, ok := e.guild.RoleByName("Promo CDA-Paris-2025")
	if !ok {
		t.Fatal("access role not created")
	}
	cat, ok := e.guild.ChannelByName("🎓 CDA-Paris-2025")
	if !ok {
		t.Fatal("category not created")
	}
	tmplChildren, _ := e.guild.ChildChannels(ctx, e.tmplID)
	children, _ := e.guild.ChildChannels(ctx, cat.ID)
	if len(children) != len(tmplChildren) {
		t.Fatalf("got %d channels, want %d", len(children), len(tmplChildren))
	}
	for i := range tmplChildren {
		if children[i].Name != tmplChildren[i].Name || children[i].Type != tmplChildren[i].Type {
			t.Errorf("channel %d = %s/%s, want %s/%s", i,
				children[i].Name, children[i].Type, tmplChildren[i].Name, tmplChildren[i].Type)
		}
	}

	got, _ := e.rc.Promo(promo.ID)
	if got.Status != models.PromoActive || got.RoleID != role.ID {
		t.Errorf("promo = %s/%s, want active/%s", got.Status, got.RoleID, role.ID)
	}
	if !e.guild.MemberHasRole(accepted.MemberID, role.ID) {
		t.Error("accepted member should hold the promo role")
	}
	if e.guild.MemberHasRole(pending.MemberID, role.ID) {
		t.Error("pending member should not hold the promo role")
	}
	if len(e.guild.Messages(e.opsID)) != 1 {
		t.Error("start should be announced once")
	}
}

func TestStartBatch_SelectsOnlyDuePendingPromos(t *testing.T) {
	e := newEnv(t)
	e.seed("Active", models.PromoActive, now.AddDate(0, -1, 0), now.AddDate(0, 6, 0))
	e.seed("Archived", models.PromoArchived, now.AddDate(-1, 0, 0), now.AddDate(0, -1, 0))
	e.seed("Later", models.PromoPending, now.AddDate(0, 0, 1), now.AddDate(0, 6, 0))

	rep, err := e.sched.RunStartBatch(context.Background())
	if err != nil {
		t.Fatalf("RunStartBatch: %v", err)
	}
	if rep.Selected != 0 {
		t.Errorf("Selected = %d, want 0", rep.Selected)
	}
	if e.guild.Calls("CreateRole") != 0 {
		t.Error("no workspace should be provisioned")
	}
}

func TestStartBatch_IsolatesFailures(t *testing.T) {
	e := newEnv(t)
	bad := e.seed("A", models.PromoPending, now.AddDate(0, 0, -2), now.AddDate(0, 6, 0))
	good := e.seed("B", models.PromoPending, now.AddDate(0, 0, -1), now.AddDate(0, 6, 0))
	e.guild.FailOnArg("CreateRole", "Promo A", errors.New("missing permissions"))

	rep, err := e.sched.RunStartBatch(context.Background())
	if err != nil {
		t.Fatalf("RunStartBatch: %v", err)
	}
	if rep.Selected != 2 || rep.Succeeded != 1 || rep.Failed != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if p, _ := e.rc.Promo(bad.ID); p.Status != models.PromoPending {
		t.Errorf("failed promo status = %s, want pending so the next run retries it", p.Status)
	}
	if p, _ := e.rc.Promo(good.ID); p.Status != models.PromoActive {
		t.Errorf("second promo status = %s, want active", p.Status)
	}
}

func TestStartBatch_ListFailure(t *testing.T) {
	e := newEnv(t)
	e.rc.FailOn("ListPromosDueToStart", errors.New("api down"))

	if _, err := e.sched.RunStartBatch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	// The archive batch is independent.
	if _, err := e.sched.RunArchiveBatch(context.Background()); err != nil {
		t.Errorf("RunArchiveBatch: %v", err)
	}
}

func TestStartBatch_NotificationFailureDoesNotFailTransition(t *testing.T) {
	e := newEnv(t)
	p := e.seed("CDA", models.PromoPending, now, now.AddDate(0, 6, 0))
	e.guild.FailOnArg("SendMessage", e.opsID, errors.New("no access"))

	rep, err := e.sched.RunStartBatch(context.Background())
	if err != nil || rep.Succeeded != 1 {
		t.Fatalf("rep = %+v, err = %v", rep, err)
	}
	if got, _ := e.rc.Promo(p.ID); got.Status != models.PromoActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestStartPromo_MissingTemplateKeepsPending(t *testing.T) {
	e := newEnv(t)
	p := e.seed("CDA", models.PromoPending, now, now.AddDate(0, 6, 0))
	if err := e.guild.DeleteChannel(context.Background(), e.tmplID); err != nil {
		t.Fatal(err)
	}

	_, err := e.orch.StartPromo(context.Background(), p)
	if apperr.KindOf(err) != apperr.KindConfig {
		t.Fatalf("err = %v, want config error", err)
	}
	if got, _ := e.rc.Promo(p.ID); got.Status != models.PromoPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if e.guild.Calls("CreateRole") != 0 {
		t.Error("no role should be created")
	}
}

func TestStartPromo_GrantFailureDoesNotBlock(t *testing.T) {
	e := newEnv(t)
	p := e.seed("CDA", models.PromoPending, now, now.AddDate(0, 6, 0))
	e.rc.SeedIdentification("m1", p.ID, models.IdentificationAccepted)
	e.rc.SeedIdentification("m2", p.ID, models.IdentificationAccepted)
	e.guild.FailOnArg("AddMemberRole", "m1", errors.New("left the guild"))

	rep, err := e.orch.StartPromo(context.Background(), p)
	if err != nil {
		t.Fatalf("StartPromo: %v", err)
	}
	if rep.Granted != 1 || len(rep.GrantFailures) != 1 || rep.GrantFailures[0] != "m1" {
		t.Errorf("report = %+v", rep)
	}
	if got, _ := e.rc.Promo(p.ID); got.Status != models.PromoActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestStartPromo_StatusWriteFailureRemovesWorkspace(t *testing.T) {
	e := newEnv(t)
	p := e.seed("CDA", models.PromoPending, now, now.AddDate(0, 6, 0))
	e.rc.FailOn("UpdatePromo", errors.New("api down"))

	if _, err := e.orch.StartPromo(context.Background(), p); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := e.guild.RoleByName("Promo CDA"); ok {
		t.Error("role should be removed")
	}
	if _, ok := e.guild.ChannelByName("🎓 CDA"); ok {
		t.Error("category should be removed")
	}
}

func TestStartPromo_ConcurrentStartsProvisionOnce(t *testing.T) {
	e := newEnv(t)
	p := e.seed("CDA-Paris-2025", models.PromoPending, now, now.AddDate(0, 6, 0))
	e.guild.Slow("CreateRole", 20*time.Millisecond)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.orch.StartPromo(context.Background(), p)
		}(i)
	}
	wg.Wait()

	var ok, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.KindOf(err) == apperr.KindTransition:
			refused++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || refused != 1 {
		t.Fatalf("succeeded=%d refused=%d, want 1 and 1 (errs=%v)", ok, refused, errs)
	}
	if n := e.guild.Calls("CreateRole"); n != 1 {
		t.Errorf("CreateRole calls = %d, want 1", n)
	}

	stored, _ := e.rc.GetPromo(context.Background(), p.ID)
	role, found := e.guild.RoleByName("Promo CDA-Paris-2025")
	if !found || stored.RoleID != role.ID {
		t.Errorf("stored role %q does not match the guild role %+v", stored.RoleID, role)
	}
}

func TestStartPromo_LostStatusWriteDiscardsOwnWorkspace(t *testing.T) {
	e := newEnv(t)
	p := e.seed("CDA", models.PromoPending, now, now.AddDate(0, 6, 0))
	// Another instance marks the promo active while this one provisions.
	e.rc.Before("UpdatePromo", func() { e.rc.SetPromoStatus(p.ID, models.PromoActive) })

	_, err := e.orch.StartPromo(context.Background(), p)
	if apperr.KindOf(err) != apperr.KindTransition {
		t.Fatalf("err = %v, want a transition error", err)
	}
	if _, ok := e.guild.RoleByName("Promo CDA"); ok {
		t.Error("role of the losing start should be removed")
	}
	if _, ok := e.guild.ChannelByName("🎓 CDA"); ok {
		t.Error("category of the losing start should be removed")
	}
	stored, _ := e.rc.GetPromo(context.Background(), p.ID)
	if stored.Status != models.PromoActive || stored.RoleID != "" {
		t.Errorf("stored promo changed by the losing start: %+v", stored)
	}
}

func TestArchivePromo_ConcurrentArchivesRunOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.seed("DWWM", models.PromoPending, now, now.AddDate(0, 6, 0))
	if _, err := e.orch.StartPromo(ctx, p); err != nil {
		t.Fatalf("StartPromo: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.orch.ArchivePromo(ctx, p)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else if apperr.KindOf(err) != apperr.KindTransition {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("archives succeeded = %d, want 1 (errs=%v)", ok, errs)
	}
	if n := e.guild.Calls("DeleteRole"); n != 1 {
		t.Errorf("DeleteRole calls = %d, want 1", n)
	}
}

func TestTransitions_OnlyForward(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pending := e.seed("P", models.PromoPending, now, now.AddDate(0, 6, 0))
	active := e.seed("A", models.PromoActive, now, now.AddDate(0, 6, 0))
	archived := e.seed("Z", models.PromoArchived, now, now.AddDate(0, 6, 0))

	if _, err := e.orch.StartPromo(ctx, active); apperr.KindOf(err) != apperr.KindTransition {
		t.Errorf("start active: err = %v", err)
	}
	if _, err := e.orch.StartPromo(ctx, archived); apperr.KindOf(err) != apperr.KindTransition {
		t.Errorf("start archived: err = %v", err)
	}
	if _, err := e.orch.ArchivePromo(ctx, pending); apperr.KindOf(err) != apperr.KindTransition {
		t.Errorf("archive pending: err = %v", err)
	}
	if _, err := e.orch.ArchivePromo(ctx, archived); apperr.KindOf(err) != apperr.KindTransition {
		t.Errorf("archive archived: err = %v", err)
	}
	if _, err := e.orch.StartPromo(ctx, models.Promo{ID: "gone"}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("start unknown: err = %v", err)
	}
}

func TestArchiveBatch_RemovesWorkspace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.seed("CDA", models.PromoPending, now.AddDate(0, -6, 0), now.AddDate(0, 0, 1))
	e.rc.SeedIdentification("m1", p.ID, models.IdentificationAccepted)
	e.rc.SeedIdentification("m2", p.ID, models.IdentificationRejected)

	if _, err := e.sched.RunStartBatch(ctx); err != nil {
		t.Fatal(err)
	}
	started, _ := e.rc.Promo(p.ID)
	cat, _ := e.guild.ChannelByName("🎓 CDA")
	children, _ := e.guild.ChildChannels(ctx, cat.ID)

	e.clock.Advance(48 * time.Hour)
	rep, err := e.sched.RunArchiveBatch(ctx)
	if err != nil {
		t.Fatalf("RunArchiveBatch: %v", err)
	}
	if rep.Selected != 1 || rep.Succeeded != 1 {
		t.Fatalf("report = %+v", rep)
	}

	if _, err := e.guild.Channel(ctx, cat.ID); !platform.IsNotFound(err) {
		t.Error("category should be deleted")
	}
	for _, ch := range children {
		if _, err := e.guild.Channel(ctx, ch.ID); !platform.IsNotFound(err) {
			t.Errorf("channel %s should be deleted", ch.Name)
		}
	}
	if e.guild.HasRoleID(started.RoleID) {
		t.Error("access role should be deleted")
	}
	if e.guild.MemberHasRole("m1", started.RoleID) {
		t.Error("member should no longer hold the role")
	}
	if got, _ := e.rc.Promo(p.ID); got.Status != models.PromoArchived {
		t.Errorf("status = %s, want archived", got.Status)
	}
	if len(e.guild.Messages(e.opsID)) != 2 {
		t.Error("start and archive should both be announced")
	}
}

func TestArchivePromo_CategoryAlreadyDeleted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.seed("CDA", models.PromoActive, now.AddDate(0, -6, 0), now.AddDate(0, 0, -1))

	rep, err := e.orch.ArchivePromo(ctx, p)
	if err != nil {
		t.Fatalf("ArchivePromo: %v", err)
	}
	if rep.CategoryFound {
		t.Error("no category should be found")
	}
	if got, _ := e.rc.Promo(p.ID); got.Status != models.PromoArchived {
		t.Errorf("status = %s, want archived", got.Status)
	}
}

func TestArchivePromo_TeardownFailureKeepsActive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.seed("CDA", models.PromoPending, now, now.AddDate(0, 6, 0))
	if _, err := e.orch.StartPromo(ctx, p); err != nil {
		t.Fatal(err)
	}
	e.guild.FailOn("DeleteChannel", errors.New("rate limited"))

	if _, err := e.orch.ArchivePromo(ctx, p); err == nil {
		t.Fatal("expected error")
	}
	if got, _ := e.rc.Promo(p.ID); got.Status != models.PromoActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestCreatePromo(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	form := lifecycle.PromoForm{Name: "DWWM", StartDate: "2025-10-01", EndDate: "2026-03-31"}

	t.Run("no selection", func(t *testing.T) {
		if _, err := e.orch.CreatePromo(ctx, "u1", form); apperr.KindOf(err) != apperr.KindExpired {
			t.Errorf("err = %v, want expired", err)
		}
	})

	t.Run("expired selection", func(t *testing.T) {
		e.sel.Start("u2")
		e.sel.RecordProgram("u2", "prog")
		e.sel.RecordSite("u2", "site")
		e.clock.Advance(selection.DefaultTTL + time.Second)
		if _, err := e.orch.CreatePromo(ctx, "u2", form); apperr.KindOf(err) != apperr.KindExpired {
			t.Errorf("err = %v, want expired", err)
		}
	})

	t.Run("invalid form keeps the selection", func(t *testing.T) {
		e.sel.Start("u3")
		e.sel.RecordProgram("u3", "prog")
		e.sel.RecordSite("u3", "site")
		bad := form
		bad.EndDate = "2025-09-01"
		if _, err := e.orch.CreatePromo(ctx, "u3", bad); apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("err = %v, want validation", err)
		}
		p, err := e.orch.CreatePromo(ctx, "u3", form)
		if err != nil {
			t.Fatalf("CreatePromo: %v", err)
		}
		if p.ProgramID != "prog" || p.SiteID != "site" {
			t.Errorf("promo refs = %s/%s", p.ProgramID, p.SiteID)
		}
		if _, err := e.orch.CreatePromo(ctx, "u3", form); apperr.KindOf(err) != apperr.KindExpired {
			t.Errorf("second create: err = %v, want expired", err)
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		e.sel.Start("u4")
		e.sel.RecordProgram("u4", "prog")
		e.sel.RecordSite("u4", "site")
		dup := form
		dup.Name = "dwwm"
		if _, err := e.orch.CreatePromo(ctx, "u4", dup); apperr.KindOf(err) != apperr.KindConflict {
			t.Errorf("err = %v, want conflict", err)
		}
	})
}

func TestPromoForm_Parse(t *testing.T) {
	tests := []struct {
		name    string
		form    lifecycle.PromoForm
		wantErr bool
	}{
		{"valid", lifecycle.PromoForm{Name: " CDA ", StartDate: "2025-01-06", EndDate: "2025-07-04"}, false},
		{"empty name", lifecycle.PromoForm{Name: "  ", StartDate: "2025-01-06", EndDate: "2025-07-04"}, true},
		{"markup only", lifecycle.PromoForm{Name: "<b></b>", StartDate: "2025-01-06", EndDate: "2025-07-04"}, true},
		{"french date", lifecycle.PromoForm{Name: "CDA", StartDate: "06/01/2025", EndDate: "2025-07-04"}, true},
		{"end before start", lifecycle.PromoForm{Name: "CDA", StartDate: "2025-07-04", EndDate: "2025-01-06"}, true},
		{"same day", lifecycle.PromoForm{Name: "CDA", StartDate: "2025-07-04", EndDate: "2025-07-04"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.form.Parse()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got.Name != "CDA" {
				t.Errorf("Name = %q", got.Name)
			}
		})
	}
}
