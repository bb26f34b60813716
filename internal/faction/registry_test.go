package faction

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rossicka/imperium/internal/events"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(events.NewBus(), 0.1, 0.2)
}

func TestCreateAndGet(t *testing.T) {
	r := newTestRegistry(t)

	f, err := r.Create("reds", "Red Alliance", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !r.Exists("reds") {
		t.Fatal("expected exists(reds) == true")
	}
	got := r.Get("reds")
	if got == nil || got.Description != "Red Alliance" {
		t.Fatalf("expected description %q, got %+v", "Red Alliance", got)
	}
	if !f.HasLeader("u1") {
		t.Fatal("expected owner u1 to hold the leader role")
	}
	if f.TaxRate != 0.1 {
		t.Fatalf("expected default tax rate 0.1, got %v", f.TaxRate)
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create("reds", "", "u1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := r.Create("reds", "", "u2")
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateOwnerAlreadyAffiliated(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("reds", "", "u1")

	if _, err := r.Create("blues", "", "u1"); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestConcurrentCreatesKeepSingleAffiliation(t *testing.T) {
	r := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("clan%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Create(id, "", "u1")
		}()
	}
	wg.Wait()

	affiliations := 0
	for _, f := range r.All() {
		if f.HasMember("u1") {
			affiliations++
		}
	}
	if affiliations != 1 {
		t.Fatalf("expected u1 in exactly one faction, found %d", affiliations)
	}
}

func TestAccessorsReturnDetachedCopies(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("reds", "", "u1")

	f := r.Get("reds")
	f.Members["intruder"] = RoleLeader
	f.TaxRate = 0.9
	f.Treasury = 9999

	got := r.Get("reds")
	if got.HasMember("intruder") {
		t.Fatal("mutating a returned snapshot must not touch registry state")
	}
	if got.TaxRate != 0.1 || got.Treasury != 0 {
		t.Fatalf("registry state changed through a snapshot: %+v", got)
	}
}

func TestConcurrentRosterReadsAndWrites(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("reds", "", "u1")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			u := fmt.Sprintf("u%d", i+2)
			r.AddMember("reds", u, RoleMember)
			r.RemoveMember("reds", u)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			for range r.Get("reds").MemberIDs() {
			}
		}
	}()
	wg.Wait()
}

func TestCreatePublishesHook(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe()
	r := NewRegistry(bus, 0.1, 0.2)

	if _, err := r.Create("reds", "", "u1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	ev := <-ch
	if ev.Type != events.FactionCreated || ev.FactionID != "reds" {
		t.Fatalf("expected faction.created for reds, got %+v", ev)
	}
}

func TestGetByMember(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("reds", "", "u1")
	r.Create("blues", "", "u2")

	if f := r.GetByMember("u2"); f == nil || f.ID != "blues" {
		t.Fatalf("expected blues for u2, got %+v", f)
	}
	if f := r.GetByMember("nobody"); f != nil {
		t.Fatalf("expected nil for unaffiliated user, got %+v", f)
	}
}

func TestGetByTaxChest(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("reds", "", "u1")
	r.Create("blues", "", "u2")

	if err := r.SetTaxChest("reds", "chest-1"); err != nil {
		t.Fatalf("set tax chest: %v", err)
	}
	f, err := r.GetByTaxChest("chest-1")
	if err != nil || f == nil || f.ID != "reds" {
		t.Fatalf("expected reds for chest-1, got %+v, %v", f, err)
	}

	f, err = r.GetByTaxChest("chest-unknown")
	if err != nil || f != nil {
		t.Fatalf("expected no match, got %+v, %v", f, err)
	}
}

func TestGetByTaxChestDuplicateIsInvariantViolation(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("reds", "", "u1")
	r.Create("blues", "", "u2")
	r.SetTaxChest("reds", "chest-1")
	r.SetTaxChest("blues", "chest-1")

	_, err := r.GetByTaxChest("chest-1")
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestSetTaxRateBounds(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("reds", "", "u1")

	if err := r.SetTaxRate("reds", 0.15); err != nil {
		t.Fatalf("set tax rate: %v", err)
	}
	if err := r.SetTaxRate("reds", 0.5); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if err := r.SetTaxRate("reds", -0.01); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	// Rejected updates leave the prior rate intact.
	if got := r.Get("reds").TaxRate; got != 0.15 {
		t.Fatalf("expected rate 0.15 after rejected updates, got %v", got)
	}
}

func TestMembership(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("reds", "", "u1")
	r.Create("blues", "", "u2")

	if err := r.AddMember("reds", "u3", RoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}
	// A user belongs to at most one faction.
	if err := r.AddMember("blues", "u3", RoleMember); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	if err := r.SetRole("reds", "u3", RoleManager); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if got := r.Get("reds").Members["u3"]; got != RoleManager {
		t.Fatalf("expected manager role, got %v", got)
	}

	if err := r.RemoveMember("reds", "u3"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if err := r.RemoveMember("reds", "u3"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	// The owner cannot simply leave.
	if err := r.RemoveMember("reds", "u1"); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestTreasury(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("reds", "", "u1")

	if err := r.Deposit("reds", 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := r.TryWithdraw("reds", 60); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if err := r.TryWithdraw("reds", 60); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := r.Get("reds").Treasury; got != 40 {
		t.Fatalf("expected treasury 40, got %d", got)
	}
}

func TestInitDoesNotPublishHooks(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe()
	r := NewRegistry(bus, 0.1, 0.2)

	r.Init([]Record{{
		ID:      "reds",
		OwnerID: "u1",
		Members: map[string]Role{"u1": RoleLeader},
		TaxRate: 0.1,
	}})

	select {
	case ev := <-ch:
		t.Fatalf("restore must not publish hooks, got %+v", ev)
	default:
	}
	if !r.Exists("reds") {
		t.Fatal("expected reds after init")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("reds", "Red Alliance", "u1")
	r.AddMember("reds", "u2", RoleManager)
	r.SetTaxChest("reds", "chest-1")
	r.Deposit("reds", 500)

	records := r.Serialize()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	restored := newTestRegistry(t)
	restored.Init(records)

	f := restored.Get("reds")
	if f == nil {
		t.Fatal("expected reds after round trip")
	}
	if f.Description != "Red Alliance" || f.TaxChestID != "chest-1" || f.Treasury != 500 {
		t.Fatalf("round trip mismatch: %+v", f)
	}
	if f.Members["u2"] != RoleManager {
		t.Fatalf("expected u2 as manager, got %v", f.Members["u2"])
	}
}
