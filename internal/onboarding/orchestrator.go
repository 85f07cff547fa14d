package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/orthopulse/growth-platform/internal/accounts"
	"github.com/orthopulse/growth-platform/internal/billing"
	"github.com/orthopulse/growth-platform/internal/gbp"
	"github.com/orthopulse/growth-platform/internal/observability/metrics"
	"github.com/orthopulse/growth-platform/internal/organizations"
	"github.com/orthopulse/growth-platform/pkg/logging"
)

var onboardingTracer = otel.Tracer("orthopulse.internal.onboarding")

// ErrValidation marks step-local input errors. They surface to the caller
// as 422s and never touch the flow's terminal error field.
var ErrValidation = errors.New("onboarding: validation failed")

// ErrEmptySelection rejects confirming zero Business Profile locations.
var ErrEmptySelection = fmt.Errorf("%w: at least one location must be selected", ErrValidation)

// AccountStore reads and updates the onboarding account.
type AccountStore interface {
	Get(ctx context.Context, accountID string) (*accounts.Account, error)
	UpdateIdentity(ctx context.Context, accountID, firstName, lastName, businessPhone string) error
}

// OrgCreator creates the organization record and links it to the account.
type OrgCreator interface {
	Create(ctx context.Context, accountID string, p organizations.CreateParams) (string, error)
}

// LocationLister lists candidate Business Profile locations.
type LocationLister interface {
	ListLocations(ctx context.Context, accountID string) ([]gbp.Location, error)
}

// SelectionStore persists confirmed location selections.
type SelectionStore interface {
	Replace(ctx context.Context, orgID string, selections []gbp.Selection) error
	List(ctx context.Context, orgID string) ([]gbp.Selection, error)
}

// CheckoutStarter begins the hosted billing flow.
type CheckoutStarter interface {
	CreateSubscriptionSession(ctx context.Context, params billing.CheckoutParams) (*billing.CheckoutSession, error)
}

// Milestones receives onboarding milestone events. Optional.
type Milestones interface {
	OnOrganizationCreated(ctx context.Context, orgID, practiceName, toEmail, toName string) error
}

// Orchestrator owns the step index and resumability, and brokers the
// side-effecting calls each step makes.
type Orchestrator struct {
	store      *Store
	accounts   AccountStore
	orgs       OrgCreator
	locations  LocationLister
	selections SelectionStore
	checkout   CheckoutStarter
	milestones Milestones
	metrics    *metrics.OnboardingMetrics
	logger     *logging.Logger
}

// Config bundles the orchestrator's collaborators.
type Config struct {
	Store      *Store
	Accounts   AccountStore
	Orgs       OrgCreator
	Locations  LocationLister
	Selections SelectionStore
	Checkout   CheckoutStarter
	Milestones Milestones
	Metrics    *metrics.OnboardingMetrics
	Logger     *logging.Logger
}

// NewOrchestrator creates the step orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Orchestrator{
		store:      cfg.Store,
		accounts:   cfg.Accounts,
		orgs:       cfg.Orgs,
		locations:  cfg.Locations,
		selections: cfg.Selections,
		checkout:   cfg.Checkout,
		milestones: cfg.Milestones,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// StateFor loads the account's flow state, creating it on first contact.
// The initial step is computed exactly once here, from the account's
// organization link, and never re-derived afterwards.
func (o *Orchestrator) StateFor(ctx context.Context, accountID string) (*State, error) {
	state, err := o.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}

	account, err := o.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("onboarding: load account: %w", err)
	}

	state = NewState(accountID, account.HasOrganization())
	state.Profile = ProfileFields{
		FirstName:     account.FirstName,
		LastName:      account.LastName,
		BusinessPhone: account.BusinessPhone,
	}
	if err := o.store.Set(ctx, state); err != nil {
		return nil, err
	}

	o.logger.Info("onboarding flow started", "account_id", accountID, "initial_step", state.CurrentStep)
	return state, nil
}

// Advance moves the flow one step forward. The practice step cannot be
// left until an organization exists, and leaving the final step completes
// and destroys the flow.
func (o *Orchestrator) Advance(ctx context.Context, accountID string) (*State, error) {
	state, err := o.StateFor(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if state.CurrentStep == StepPractice {
		account, err := o.accounts.Get(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("onboarding: load account: %w", err)
		}
		if !account.HasOrganization() {
			return nil, fmt.Errorf("%w: practice registration is not complete", ErrValidation)
		}
	}

	fromStep := state.CurrentStep
	if completed := state.Advance(); completed {
		return o.complete(ctx, state)
	}

	state.Error = ""
	if err := o.store.Set(ctx, state); err != nil {
		return nil, err
	}
	o.metrics.ObserveAdvance(fmt.Sprintf("%d", fromStep))
	return state, nil
}

// Back moves the flow one step backward. It never re-triggers side
// effects, only the index changes.
func (o *Orchestrator) Back(ctx context.Context, accountID string) (*State, error) {
	state, err := o.StateFor(ctx, accountID)
	if err != nil {
		return nil, err
	}

	state.Back()
	if err := o.store.Set(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// SaveProfile persists the identity step and advances to practice
// registration.
func (o *Orchestrator) SaveProfile(ctx context.Context, accountID string, fields ProfileFields) (*State, error) {
	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	state, err := o.StateFor(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := o.accounts.UpdateIdentity(ctx, accountID, fields.FirstName, fields.LastName, fields.BusinessPhone); err != nil {
		o.metrics.ObserveFailure("save_profile")
		return nil, fmt.Errorf("onboarding: save identity: %w", err)
	}

	state.Profile = fields
	state.Error = ""
	if state.CurrentStep == StepIdentity {
		state.Advance()
		o.metrics.ObserveAdvance(fmt.Sprintf("%d", StepIdentity))
	}
	if err := o.store.Set(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// SaveProfileAndCreateOrg validates and submits the practice fields,
// creates the organization, refreshes the account so downstream steps can
// read the new organization id, and only then advances. On failure the
// flow's terminal error is set and the step does not advance.
func (o *Orchestrator) SaveProfileAndCreateOrg(ctx context.Context, accountID string, fields PracticeFields, rawDomain string) (*State, error) {
	ctx, span := onboardingTracer.Start(ctx, "onboarding.create_organization")
	defer span.End()
	span.SetAttributes(attribute.String("orthopulse.account_id", accountID))

	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	domain, err := ValidateDomain(rawDomain)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	state, err := o.StateFor(ctx, accountID)
	if err != nil {
		return nil, err
	}

	state.IsSavingProfile = true
	state.Practice = fields
	state.DomainName = domain
	if err := o.store.Set(ctx, state); err != nil {
		return nil, err
	}

	started := time.Now()
	orgID, err := o.orgs.Create(ctx, accountID, organizations.CreateParams{
		PracticeName: fields.PracticeName,
		Street:       fields.Street,
		City:         fields.City,
		State:        fields.State,
		Zip:          fields.Zip,
		DomainName:   domain,
	})
	if err != nil {
		o.metrics.ObserveFailure("create_organization")
		if errors.Is(err, organizations.ErrDomainTaken) {
			// A claimed domain is fixable in place; keep it step-local.
			state.IsSavingProfile = false
			if setErr := o.store.Set(ctx, state); setErr != nil {
				o.logger.Error("failed to clear saving flag", "account_id", accountID, "error", setErr)
			}
			return nil, fmt.Errorf("%w: domain is already registered to another practice", ErrValidation)
		}
		return nil, o.fail(ctx, state, fmt.Errorf("onboarding: create organization: %w", err))
	}

	// Refresh the account before advancing so the Google step never reads
	// a profile that predates the organization link.
	account, err := o.accounts.Get(ctx, accountID)
	if err != nil {
		o.metrics.ObserveFailure("create_organization")
		return nil, o.fail(ctx, state, fmt.Errorf("onboarding: refresh account: %w", err))
	}
	if !account.HasOrganization() {
		o.metrics.ObserveFailure("create_organization")
		return nil, o.fail(ctx, state, fmt.Errorf("onboarding: organization %s not linked after refresh", orgID))
	}

	state.IsSavingProfile = false
	state.Error = ""
	if state.CurrentStep == StepPractice {
		state.Advance()
		o.metrics.ObserveAdvance(fmt.Sprintf("%d", StepPractice))
	}
	if err := o.store.Set(ctx, state); err != nil {
		return nil, err
	}
	o.metrics.ObserveOperationLatency("create_organization", time.Since(started).Seconds())

	if o.milestones != nil {
		name := fmt.Sprintf("%s %s", state.Profile.FirstName, state.Profile.LastName)
		if err := o.milestones.OnOrganizationCreated(ctx, orgID, fields.PracticeName, account.Email, name); err != nil {
			o.logger.Warn("organization milestone failed", "org_id", orgID, "error", err)
		}
	}

	o.logger.Info("organization created", "account_id", accountID, "org_id", orgID, "domain", domain)
	return state, nil
}

// FetchAvailableGBP lists candidate Business Profile locations for the
// linked Google account. Errors propagate so the caller can offer a retry.
func (o *Orchestrator) FetchAvailableGBP(ctx context.Context, accountID string) ([]gbp.Location, error) {
	locations, err := o.locations.ListLocations(ctx, accountID)
	if err != nil {
		o.metrics.ObserveFailure("fetch_gbp")
		return nil, err
	}
	return locations, nil
}

// SaveGBPSelections persists the chosen locations. The set must be
// non-empty, duplicates collapse by (accountId, locationId), and replaying
// the same set yields the same server state.
func (o *Orchestrator) SaveGBPSelections(ctx context.Context, accountID string, selections []gbp.Selection) (*State, error) {
	if len(selections) == 0 {
		return nil, ErrEmptySelection
	}

	state, err := o.StateFor(ctx, accountID)
	if err != nil {
		return nil, err
	}

	account, err := o.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("onboarding: load account: %w", err)
	}
	if !account.HasOrganization() {
		return nil, fmt.Errorf("%w: no organization to attach locations to", ErrValidation)
	}

	deduped := gbp.NewSelectionSet(selections).List()

	if err := o.selections.Replace(ctx, account.OrganizationID, deduped); err != nil {
		o.metrics.ObserveFailure("save_gbp_selections")
		return nil, fmt.Errorf("onboarding: save selections: %w", err)
	}

	state.SelectedLocations = deduped
	state.Error = ""
	if state.CurrentStep == StepGoogle {
		state.Advance()
		o.metrics.ObserveAdvance(fmt.Sprintf("%d", StepGoogle))
	}
	if err := o.store.Set(ctx, state); err != nil {
		return nil, err
	}

	o.logger.Info("gbp selections saved", "account_id", accountID, "org_id", account.OrganizationID, "count", len(deduped))
	return state, nil
}

// InitiateCheckout begins the hosted billing flow. The processing flag is
// set before the session is created and the orchestrator never polls for
// completion; the billing webhook resolves it out of band.
func (o *Orchestrator) InitiateCheckout(ctx context.Context, accountID string) (*State, *billing.CheckoutSession, error) {
	ctx, span := onboardingTracer.Start(ctx, "onboarding.initiate_checkout")
	defer span.End()
	span.SetAttributes(attribute.String("orthopulse.account_id", accountID))

	state, err := o.StateFor(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}

	account, err := o.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("onboarding: load account: %w", err)
	}
	if !account.HasOrganization() {
		return nil, nil, fmt.Errorf("%w: checkout requires a registered practice", ErrValidation)
	}

	state.IsCheckoutProcessing = true
	state.Error = ""
	if err := o.store.Set(ctx, state); err != nil {
		return nil, nil, err
	}

	session, err := o.checkout.CreateSubscriptionSession(ctx, billing.CheckoutParams{
		OrgID:     account.OrganizationID,
		AccountID: accountID,
		Email:     account.Email,
	})
	if err != nil {
		o.metrics.ObserveFailure("initiate_checkout")
		state.IsCheckoutProcessing = false
		if setErr := o.store.Set(ctx, state); setErr != nil {
			o.logger.Error("failed to clear checkout flag", "account_id", accountID, "error", setErr)
		}
		return nil, nil, fmt.Errorf("onboarding: initiate checkout: %w", err)
	}

	o.logger.Info("checkout initiated", "account_id", accountID, "org_id", account.OrganizationID, "session_id", session.ProviderID)
	return state, session, nil
}

// fail records a terminal error on the flow. The error stays visible until
// a later mutation succeeds, which clears it.
func (o *Orchestrator) fail(ctx context.Context, state *State, cause error) error {
	state.IsSavingProfile = false
	state.Error = cause.Error()
	if err := o.store.Set(ctx, state); err != nil {
		o.logger.Error("failed to persist terminal error", "account_id", state.AccountID, "error", err)
	}
	o.logger.Error("onboarding failed", "account_id", state.AccountID, "step", state.CurrentStep, "error", cause)
	return cause
}

// complete destroys the flow record.
func (o *Orchestrator) complete(ctx context.Context, state *State) (*State, error) {
	if err := o.store.Delete(ctx, state.AccountID); err != nil {
		return nil, err
	}
	o.metrics.ObserveCompletion()
	o.logger.Info("onboarding completed", "account_id", state.AccountID)
	return state, nil
}
