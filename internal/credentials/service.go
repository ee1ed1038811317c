package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
	pkgerrors "github.com/calderapay/connector/pkg/errors"
	"github.com/calderapay/connector/pkg/ids"
	"github.com/calderapay/connector/pkg/logger"
)

// requiredCredentialFields lists the fields each provider's credential blob
// must carry before the set can be activated.
var requiredCredentialFields = map[enums.PaymentProvider][]string{
	enums.PaymentProviderSandbox:  {},
	enums.PaymentProviderStripe:   {"stripe_account_id"},
	enums.PaymentProviderWorldpay: {"merchant_id", "username", "password"},
	enums.PaymentProviderEpdq:     {"merchant_id", "username", "password", "sha_in_passphrase"},
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the credential service.
type ServiceParams struct {
	Repo   Repository
	DB     txRunner
	Logger *logger.Logger
	Now    func() time.Time
}

// Service owns credential resolution and rotation for gateway accounts.
type Service struct {
	repo Repository
	db   txRunner
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds a credential service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, db: params.DB, logg: params.Logger, now: now}, nil
}

// ResolveCurrent returns the credential set every new authorisation for the
// account must use. It is the single entry point for "which provider is this
// account on right now".
func (s *Service) ResolveCurrent(ctx context.Context, account *models.GatewayAccount) (*models.GatewayAccountCredential, error) {
	rows, err := s.repo.ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}

	selected, outcome := SelectCurrent(rows)
	if selected == nil {
		return nil, &NoActiveCredentialError{AccountExternalID: account.ExternalID}
	}
	if outcome.Degraded() {
		logCtx := s.logg.WithAccountID(ctx, account.ExternalID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"credential_external_id": selected.ExternalID,
			"credential_state":       selected.State.String(),
			"credential_rows":        len(rows),
		})
		s.logg.Warn(logCtx, "no active credential for account, using fallback credential")
	}
	return selected, nil
}

// GetAccount loads a gateway account by its external id.
func (s *Service) GetAccount(ctx context.Context, accountExternalID string) (*models.GatewayAccount, error) {
	return s.repo.FindAccountByExternalID(ctx, accountExternalID)
}

// List returns the account's full credential history in creation order.
func (s *Service) List(ctx context.Context, account *models.GatewayAccount) ([]models.GatewayAccountCredential, error) {
	return s.repo.ListByAccount(ctx, account.ID)
}

// CreateCredentialParams describes a new credential set.
type CreateCredentialParams struct {
	Provider       enums.PaymentProvider
	Credentials    map[string]string
	Role           enums.CredentialRole
	UserExternalID string
}

// CreateCredential records a new credential set in state created. Going live
// is a separate, explicit activation step.
func (s *Service) CreateCredential(ctx context.Context, account *models.GatewayAccount, params CreateCredentialParams) (*models.GatewayAccountCredential, error) {
	if !params.Provider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment provider %q", params.Provider))
	}
	if err := validateCredentialFields(params.Provider, params.Credentials); err != nil {
		return nil, err
	}

	role := params.Role
	if role == "" {
		role = enums.CredentialRolePrimary
	}

	blob, err := json.Marshal(params.Credentials)
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}

	credential := &models.GatewayAccountCredential{
		ExternalID:       ids.NewExternalID(),
		GatewayAccountID: account.ID,
		PaymentProvider:  params.Provider,
		Credentials:      blob,
		State:            enums.CredentialStateCreated,
		Role:             role,
	}
	if params.UserExternalID != "" {
		credential.LastUpdatedByUserExternalID = &params.UserExternalID
	}

	if err := s.repo.Create(ctx, credential); err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}
	return credential, nil
}

// ActivateCredential promotes a created credential to active and retires the
// previously active set in the same transaction, so no reader ever observes
// zero or two active rows.
func (s *Service) ActivateCredential(ctx context.Context, credentialExternalID, userExternalID string) (*models.GatewayAccountCredential, error) {
	credential, err := s.repo.FindByExternalID(ctx, credentialExternalID)
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	if !credential.State.CanTransitionTo(enums.CredentialStateActive) {
		return nil, &IllegalStateTransitionError{
			From: credential.State.String(),
			To:   enums.CredentialStateActive.String(),
		}
	}

	now := s.now().UTC()
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := retireActive(ctx, tx, credential.GatewayAccountID, now); err != nil {
			return fmt.Errorf("retire previous credential: %w", err)
		}
		updates := map[string]any{
			"active_start_date": now,
		}
		if userExternalID != "" {
			updates["last_updated_by_user_external_id"] = userExternalID
		}
		return s.repo.WithTx(tx).UpdateState(ctx, credential.ID, enums.CredentialStateActive, updates)
	})
	if err != nil {
		return nil, err
	}

	credential.State = enums.CredentialStateActive
	credential.ActiveStartDate = &now
	return credential, nil
}

// RetireCredential ends a credential's life. An active credential gets its
// active_end_date stamped; a created one is simply abandoned.
func (s *Service) RetireCredential(ctx context.Context, credentialExternalID, userExternalID string) error {
	credential, err := s.repo.FindByExternalID(ctx, credentialExternalID)
	if err != nil {
		return fmt.Errorf("find credential: %w", err)
	}
	if !credential.State.CanTransitionTo(enums.CredentialStateRetired) {
		return &IllegalStateTransitionError{
			From: credential.State.String(),
			To:   enums.CredentialStateRetired.String(),
		}
	}

	updates := map[string]any{}
	if credential.State == enums.CredentialStateActive {
		updates["active_end_date"] = s.now().UTC()
	}
	if userExternalID != "" {
		updates["last_updated_by_user_external_id"] = userExternalID
	}
	return s.repo.UpdateState(ctx, credential.ID, enums.CredentialStateRetired, updates)
}

// GooglePayEligible reports whether the account can offer Google Pay. The
// capability is always derived from the resolved credential, never from an
// unresolved or ambiguous set.
func (s *Service) GooglePayEligible(ctx context.Context, account *models.GatewayAccount) (bool, error) {
	if !account.AllowGooglePay {
		return false, nil
	}
	credential, err := s.ResolveCurrent(ctx, account)
	if err != nil {
		return false, err
	}
	switch credential.PaymentProvider {
	case enums.PaymentProviderWorldpay:
		return credential.GooglePayMerchantID() != "", nil
	case enums.PaymentProviderStripe, enums.PaymentProviderSandbox:
		return true, nil
	default:
		return false, nil
	}
}

// UpsertWorldpay3DSFlex stores or replaces the 3DS Flex configuration for a
// Worldpay account. The account must hold at least one non-retired Worldpay
// credential; the configuration is meaningless for any other provider.
func (s *Service) UpsertWorldpay3DSFlex(ctx context.Context, account *models.GatewayAccount, issuer, organisationalUnitID, jwtMACKey string) error {
	if issuer == "" || organisationalUnitID == "" || jwtMACKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "issuer, organisational unit id and jwt mac key are required")
	}
	rows, err := s.repo.FindByAccountAndProvider(ctx, account.ID, enums.PaymentProviderWorldpay)
	if err != nil {
		return fmt.Errorf("list worldpay credentials: %w", err)
	}
	eligible := false
	for _, row := range rows {
		if row.State != enums.CredentialStateRetired {
			eligible = true
			break
		}
	}
	if !eligible {
		return pkgerrors.New(pkgerrors.CodeValidation, "account has no worldpay credentials")
	}
	return s.repo.UpsertWorldpay3DSFlex(ctx, &models.Worldpay3DSFlexCredential{
		GatewayAccountID:     account.ID,
		Issuer:               issuer,
		OrganisationalUnitID: organisationalUnitID,
		JWTMACKey:            jwtMACKey,
	})
}

// GetWorldpay3DSFlex returns the account's 3DS Flex configuration, or a not
// found error when none has been stored.
func (s *Service) GetWorldpay3DSFlex(ctx context.Context, account *models.GatewayAccount) (*models.Worldpay3DSFlexCredential, error) {
	return s.repo.FindWorldpay3DSFlex(ctx, account.ID)
}

func validateCredentialFields(provider enums.PaymentProvider, fields map[string]string) error {
	for _, required := range requiredCredentialFields[provider] {
		if fields[required] == "" {
			return pkgerrors.New(
				pkgerrors.CodeValidation,
				fmt.Sprintf("%s credentials require field %q", provider, required),
			)
		}
	}
	return nil
}
