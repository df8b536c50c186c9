package integration

import (
	"context"
	"testing"

	"github.com/healthtrack/healthtrack/internal/domain/account"
	"github.com/healthtrack/healthtrack/internal/domain/careteam"
	"github.com/healthtrack/healthtrack/internal/domain/history"
	"github.com/healthtrack/healthtrack/internal/domain/stats"
)

func TestCareTeam_AssociateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := newSchemaPool(t)
	users := account.NewUserRepoPG(pool)
	teams := careteam.NewRepoPG(pool)

	p := createUser(t, users, "Pat", account.RolePatient)
	c := createUser(t, users, "Cara", account.RoleCaretaker)

	created, err := teams.Associate(ctx, careteam.KindCaretaker, p.ID, c.ID)
	if err != nil || !created {
		t.Fatalf("expected new association, got %v %v", created, err)
	}
	created, err = teams.Associate(ctx, careteam.KindCaretaker, p.ID, c.ID)
	if err != nil || created {
		t.Fatalf("expected existing association, got %v %v", created, err)
	}

	ok, err := teams.IsAssociated(ctx, careteam.KindCaretaker, p.ID, c.ID)
	if err != nil || !ok {
		t.Fatalf("expected associated, got %v %v", ok, err)
	}
	ok, _ = teams.IsAssociated(ctx, careteam.KindDoctor, p.ID, c.ID)
	if ok {
		t.Error("caretaker link must not count as a doctor link")
	}

	if err := teams.Disassociate(ctx, careteam.KindCaretaker, p.ID, c.ID); err != nil {
		t.Fatalf("disassociate: %v", err)
	}
	if err := teams.Disassociate(ctx, careteam.KindCaretaker, p.ID, c.ID); err != nil {
		t.Fatalf("second disassociate: %v", err)
	}
	ok, _ = teams.IsAssociated(ctx, careteam.KindCaretaker, p.ID, c.ID)
	if ok {
		t.Error("expected association to be removed")
	}
}

func TestCareTeam_GroupedLookups(t *testing.T) {
	ctx := context.Background()
	pool := newSchemaPool(t)
	users := account.NewUserRepoPG(pool)
	teams := careteam.NewRepoPG(pool)

	p1 := createUser(t, users, "P1", account.RolePatient)
	p2 := createUser(t, users, "P2", account.RolePatient)
	d1 := createUser(t, users, "D1", account.RoleDoctor)
	d2 := createUser(t, users, "D2", account.RoleDoctor)

	for _, pair := range [][2]int64{{p1.ID, d1.ID}, {p2.ID, d1.ID}, {p1.ID, d2.ID}} {
		if _, err := teams.Associate(ctx, careteam.KindDoctor, pair[0], pair[1]); err != nil {
			t.Fatal(err)
		}
	}

	providers, err := teams.ProvidersOf(ctx, careteam.KindDoctor, []int64{p1.ID, p2.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(providers[p1.ID]) != 2 || len(providers[p2.ID]) != 1 {
		t.Errorf("unexpected providers %v", providers)
	}

	patients, err := teams.PatientsOf(ctx, careteam.KindDoctor, []int64{d1.ID, d2.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(patients[d1.ID]) != 2 || len(patients[d2.ID]) != 1 {
		t.Errorf("unexpected patients %v", patients)
	}

	list, total, err := teams.ListPatientsOf(ctx, careteam.KindDoctor, d1.ID, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(list) != 1 || list[0].ID != p2.ID {
		t.Errorf("expected second page with P2, got %d of %d", len(list), total)
	}
}

func TestDeleteUser_Cascades(t *testing.T) {
	ctx := context.Background()
	pool := newSchemaPool(t)
	users := account.NewUserRepoPG(pool)
	teams := careteam.NewRepoPG(pool)
	records := history.NewRepoPG(pool)

	p := createUser(t, users, "Pat", account.RolePatient)
	c := createUser(t, users, "Cara", account.RoleCaretaker)
	if _, err := teams.Associate(ctx, careteam.KindCaretaker, p.ID, c.ID); err != nil {
		t.Fatal(err)
	}
	if err := records.Create(ctx, &history.Record{PatientID: p.ID, SpO2Reading: 98, SystolicReading: 120, DiastolicReading: 80, TempReading: 36.6, HeartbeatReading: 70}); err != nil {
		t.Fatal(err)
	}

	if err := users.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	patients, err := teams.PatientsOf(ctx, careteam.KindCaretaker, []int64{c.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(patients[c.ID]) != 0 {
		t.Errorf("expected association to cascade, got %v", patients[c.ID])
	}

	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient_histories WHERE patient_id = $1`, p.ID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected history to cascade, got %d rows", n)
	}
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_additional_details WHERE user_id = $1`, p.ID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected details to cascade, got %d rows", n)
	}
}

func TestStats_CountByRole(t *testing.T) {
	pool := newSchemaPool(t)
	users := account.NewUserRepoPG(pool)
	createUser(t, users, "A", account.RoleAdmin)
	createUser(t, users, "P1", account.RolePatient)
	createUser(t, users, "P2", account.RolePatient)

	counts, err := stats.NewCounterPG(pool).CountByRole(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts[account.RoleAdmin] != 1 || counts[account.RolePatient] != 2 || counts[account.RoleDoctor] != 0 {
		t.Errorf("unexpected counts %v", counts)
	}
}
