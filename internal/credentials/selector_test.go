package credentials

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
)

func credentialRow(state enums.CredentialState, created time.Time, activeStart *time.Time) models.GatewayAccountCredential {
	return models.GatewayAccountCredential{
		ID:              uuid.New(),
		ExternalID:      uuid.NewString(),
		State:           state,
		CreatedDate:     created,
		ActiveStartDate: activeStart,
	}
}

func TestSelectCurrentEmpty(t *testing.T) {
	selected, outcome := SelectCurrent(nil)
	if selected != nil {
		t.Fatalf("expected nil credential, got %v", selected)
	}
	if outcome != SelectionNone {
		t.Fatalf("expected SelectionNone, got %v", outcome)
	}
}

func TestSelectCurrentSingleRowShortcut(t *testing.T) {
	// A lone row wins regardless of its state, even retired.
	for _, state := range []enums.CredentialState{
		enums.CredentialStateCreated,
		enums.CredentialStateActive,
		enums.CredentialStateRetired,
	} {
		rows := []models.GatewayAccountCredential{
			credentialRow(state, time.Now(), nil),
		}
		selected, outcome := SelectCurrent(rows)
		if selected == nil || selected.ID != rows[0].ID {
			t.Fatalf("state %s: expected the only row to be selected", state)
		}
		if outcome != SelectionSingle {
			t.Fatalf("state %s: expected SelectionSingle, got %v", state, outcome)
		}
	}
}

func TestSelectCurrentActiveTieBreakLatestStartWins(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	earlier := t0.Add(1 * time.Hour)
	later := t0.Add(5 * time.Hour)

	rows := []models.GatewayAccountCredential{
		credentialRow(enums.CredentialStateActive, t0, &earlier),
		credentialRow(enums.CredentialStateActive, t0.Add(time.Minute), &later),
	}

	selected, outcome := SelectCurrent(rows)
	if outcome != SelectionLatestActive {
		t.Fatalf("expected SelectionLatestActive, got %v", outcome)
	}
	if selected.ID != rows[1].ID {
		t.Fatal("expected the row with the later active start date")
	}
}

func TestSelectCurrentNoActiveFallsBackToEarliestCreated(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	rows := []models.GatewayAccountCredential{
		credentialRow(enums.CredentialStateCreated, t2, nil),
		credentialRow(enums.CredentialStateCreated, t1, nil),
	}

	selected, outcome := SelectCurrent(rows)
	if outcome != SelectionNoActiveFallback {
		t.Fatalf("expected SelectionNoActiveFallback, got %v", outcome)
	}
	if !selected.CreatedDate.Equal(t1) {
		t.Fatal("expected the earliest-created row")
	}
}

func TestSelectCurrentRetiredRowsExcludedFromFallback(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	rows := []models.GatewayAccountCredential{
		credentialRow(enums.CredentialStateRetired, t1, nil),
		credentialRow(enums.CredentialStateCreated, t2, nil),
	}

	selected, outcome := SelectCurrent(rows)
	if outcome != SelectionNoActiveFallback {
		t.Fatalf("expected SelectionNoActiveFallback, got %v", outcome)
	}
	if selected.ID != rows[1].ID {
		t.Fatal("retired row must not win the no-active fallback")
	}
}

func TestSelectCurrentAllRetiredFallsBackToStoreOrder(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := []models.GatewayAccountCredential{
		credentialRow(enums.CredentialStateRetired, t1, nil),
		credentialRow(enums.CredentialStateRetired, t1.Add(time.Hour), nil),
	}

	selected, outcome := SelectCurrent(rows)
	if outcome != SelectionAllRetiredFallback {
		t.Fatalf("expected SelectionAllRetiredFallback, got %v", outcome)
	}
	if selected.ID != rows[0].ID {
		t.Fatal("expected the first row in store order")
	}
}

func TestSelectCurrentDeterministic(t *testing.T) {
	t0 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	start := t0.Add(time.Hour)
	rows := []models.GatewayAccountCredential{
		credentialRow(enums.CredentialStateRetired, t0, nil),
		credentialRow(enums.CredentialStateActive, t0.Add(time.Minute), &start),
		credentialRow(enums.CredentialStateCreated, t0.Add(2*time.Minute), nil),
	}

	first, firstOutcome := SelectCurrent(rows)
	second, secondOutcome := SelectCurrent(rows)
	if first.ID != second.ID || firstOutcome != secondOutcome {
		t.Fatal("selection must be deterministic for a fixed row set")
	}
}
