package credentials

import (
	"time"

	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
)

// SelectionOutcome describes which branch of the selection algorithm produced
// the result, so callers can attach observability without the selector doing
// any I/O of its own.
type SelectionOutcome int

const (
	// SelectionNone means the account had no credential rows.
	SelectionNone SelectionOutcome = iota
	// SelectionSingle is the single-row shortcut; state is not inspected.
	SelectionSingle
	// SelectionLatestActive picked the active row with the latest start date.
	SelectionLatestActive
	// SelectionNoActiveFallback found no active row and fell back to the
	// earliest-created non-retired row.
	SelectionNoActiveFallback
	// SelectionAllRetiredFallback found only retired rows and fell back to
	// the first row in store order.
	SelectionAllRetiredFallback
)

// Degraded reports whether the outcome indicates a mis-configured account
// worth a warning log.
func (o SelectionOutcome) Degraded() bool {
	return o == SelectionNoActiveFallback || o == SelectionAllRetiredFallback
}

// SelectCurrent picks the credential set to use right now from the account's
// credential history. rows must be in store order (created_date ascending).
// The function is pure and deterministic: the same rows always yield the same
// result.
func SelectCurrent(rows []models.GatewayAccountCredential) (*models.GatewayAccountCredential, SelectionOutcome) {
	if len(rows) == 0 {
		return nil, SelectionNone
	}
	if len(rows) == 1 {
		return &rows[0], SelectionSingle
	}

	// Accounts may transiently hold two active rows (historical bug window);
	// the latest activation wins.
	if active := latestActive(rows); active != nil {
		return active, SelectionLatestActive
	}

	// Mid-migration or mis-configured: prefer the original, pre-migration
	// credential over a half-configured new one.
	if fallback := earliestNonRetired(rows); fallback != nil {
		return fallback, SelectionNoActiveFallback
	}

	// Every row retired; never return empty for an account known to have
	// credentials.
	return &rows[0], SelectionAllRetiredFallback
}

func latestActive(rows []models.GatewayAccountCredential) *models.GatewayAccountCredential {
	var best *models.GatewayAccountCredential
	var bestStart time.Time
	for i := range rows {
		if rows[i].State != enums.CredentialStateActive {
			continue
		}
		start := time.Time{}
		if rows[i].ActiveStartDate != nil {
			start = *rows[i].ActiveStartDate
		}
		if best == nil || start.After(bestStart) {
			best = &rows[i]
			bestStart = start
		}
	}
	return best
}

func earliestNonRetired(rows []models.GatewayAccountCredential) *models.GatewayAccountCredential {
	var best *models.GatewayAccountCredential
	for i := range rows {
		if rows[i].State == enums.CredentialStateRetired {
			continue
		}
		if best == nil || rows[i].CreatedDate.Before(best.CreatedDate) {
			best = &rows[i]
		}
	}
	return best
}
