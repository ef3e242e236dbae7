// Package leads assembles the lead report: leads matching a search query,
// joined with their status, responsible user and contacts.
package leads

import (
	"context"
	"fmt"
	"sync"
	"time"

	"amocrm-leads/internal/amocrm"
	"amocrm-leads/internal/common/cache"
	"amocrm-leads/internal/common/errors"
	"amocrm-leads/internal/common/logging"
)

// API is the subset of the CRM client the report reads from
type API interface {
	ListContacts(ctx context.Context) ([]amocrm.Contact, error)
	ListUsers(ctx context.Context) ([]amocrm.User, error)
	ListPipelines(ctx context.Context) ([]amocrm.Pipeline, error)
	ListLeads(ctx context.Context, query string) ([]amocrm.Lead, error)
}

// Authenticator refreshes the credentials API calls are made with
type Authenticator interface {
	EnsureAuthorized(ctx context.Context) error
	Invalidate()
}

// Aggregator owns the contact and user lookup caches.
// GetLeads runs one pipeline at a time, so cache merges never interleave.
type Aggregator struct {
	mu        sync.Mutex
	api       API
	auth      Authenticator
	contacts  *lookup[Contact]
	users     *lookup[User]
	formatter Formatter
	logger    logging.Logger
}

// NewAggregator creates an Aggregator. A nil store selects a process-local cache.
func NewAggregator(api API, auth Authenticator, store cache.Cache, formatter Formatter, logger logging.Logger) *Aggregator {
	if store == nil {
		store = cache.NewLocalCache(0, 10*time.Minute)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.Field{Key: "component", Value: "leads"})

	a := &Aggregator{
		api:       api,
		auth:      auth,
		formatter: formatter,
		logger:    logger,
	}

	a.contacts = newLookup("contact", store, logger, a.loadContacts)
	a.users = newLookup("user", store, logger, a.loadUsers)

	return a
}

// GetLeads returns the report rows for query in remote order.
//
// An authorization failure anywhere re-authorizes and reruns the whole
// pipeline once. Any other failure, or a second one, yields an empty list;
// errors are logged, never returned.
func (a *Aggregator) GetLeads(ctx context.Context, query string) []Lead {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	log := a.logger.WithContext(ctx).WithFields(logging.Field{Key: "query", Value: query})

	leads, err := a.assemble(ctx, query, log)
	if errors.IsAuth(err) {
		log.Warn("Authorization rejected, re-authorizing", logging.Err(err))
		a.auth.Invalidate()
		if err = a.auth.EnsureAuthorized(ctx); err == nil {
			leads, err = a.assemble(ctx, query, log)
		}
	}

	if err != nil {
		log.Error("Failed to assemble leads", err)
		return []Lead{}
	}

	log.Debug("Leads assembled",
		logging.Field{Key: "count", Value: len(leads)},
		logging.Field{Key: "duration", Value: time.Since(start)},
	)
	return leads
}

func (a *Aggregator) assemble(ctx context.Context, query string, log logging.Logger) ([]Lead, error) {
	remote, err := a.api.ListLeads(ctx, query)
	if errors.IsEmpty(err) {
		return []Lead{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}

	statuses, err := a.fetchStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}

	out := make([]Lead, 0, len(remote))
	for i := range remote {
		lead, err := a.buildLead(ctx, i, &remote[i], statuses, log)
		if err != nil {
			return nil, err
		}
		out = append(out, lead)
	}

	return out, nil
}

// buildLead enriches one remote lead. The responsible user is resolved
// before any of the contacts.
func (a *Aggregator) buildLead(ctx context.Context, position int, remote *amocrm.Lead, statuses map[int]*Status, log logging.Logger) (Lead, error) {
	user, found, err := a.users.ensureLoaded(ctx, remote.ResponsibleUserID)
	if err != nil {
		return Lead{}, fmt.Errorf("load responsible user %d: %w", remote.ResponsibleUserID, err)
	}
	if !found {
		return Lead{}, errors.DataIntegrityError(fmt.Sprintf("responsible user %d not found", remote.ResponsibleUserID), nil).
			WithContext("lead_id", remote.ID)
	}

	lead := Lead{
		Key:               position,
		Name:              remote.Name,
		StatusID:          []*Status{statuses[remote.StatusID]},
		ResponsibleUserID: user.Name,
		CreatedAt:         a.formatter.Date(remote.CreatedAt),
		Price:             a.formatter.Price(remote.Price),
		Contacts:          make([]*Contact, 0, len(remote.Contacts())),
	}

	for _, ref := range remote.Contacts() {
		contact, found, err := a.contacts.ensureLoaded(ctx, ref.ID)
		if err != nil {
			return Lead{}, fmt.Errorf("load contact %d: %w", ref.ID, err)
		}
		if !found {
			log.Warn("Contact not found after reload",
				logging.Field{Key: "contact_id", Value: ref.ID},
				logging.Field{Key: "lead_id", Value: remote.ID},
			)
			lead.Contacts = append(lead.Contacts, nil)
			continue
		}
		c := contact
		lead.Contacts = append(lead.Contacts, &c)
	}

	return lead, nil
}

// fetchStatuses flattens every pipeline's statuses into one map.
// It always hits the network; a later pipeline wins on a duplicate ID.
func (a *Aggregator) fetchStatuses(ctx context.Context) (map[int]*Status, error) {
	pipelines, err := a.api.ListPipelines(ctx)
	if errors.IsEmpty(err) {
		return map[int]*Status{}, nil
	}
	if err != nil {
		return nil, err
	}

	statuses := make(map[int]*Status)
	for _, p := range pipelines {
		for _, s := range p.Embedded.Statuses {
			statuses[s.ID] = &Status{Title: s.Name, Color: s.Color}
		}
	}
	return statuses, nil
}

func (a *Aggregator) loadContacts(ctx context.Context) ([]entry[Contact], error) {
	contacts, err := a.api.ListContacts(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]entry[Contact], 0, len(contacts))
	for _, c := range contacts {
		entries = append(entries, entry[Contact]{id: c.ID, value: ContactFromAPI(c)})
	}
	return entries, nil
}

func (a *Aggregator) loadUsers(ctx context.Context) ([]entry[User], error) {
	users, err := a.api.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]entry[User], 0, len(users))
	for _, u := range users {
		entries = append(entries, entry[User]{id: u.ID, value: User{Name: u.Name, Email: u.Email}})
	}
	return entries, nil
}
