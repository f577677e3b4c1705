package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fxdesk/trader-portal/internal/core/domain"
	"github.com/fxdesk/trader-portal/internal/core/ports"
)

var discardLogger = zerolog.Nop()

// ---------------------------------------------------------------------------
// In-memory stub repositories shared by the service tests
// ---------------------------------------------------------------------------

type stubAuthRepo struct {
	users  map[string]*domain.User // keyed by id
	nextID int
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{users: make(map[string]*domain.User)}
}

func (r *stubAuthRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	clone := *user
	r.nextID++
	clone.ID = "user-" + strconv.Itoa(r.nextID)
	r.users[clone.ID] = &clone
	copied := clone
	return &copied, nil
}

func (r *stubAuthRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubAuthRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

type stubProfileRepo struct {
	profiles map[string]*domain.Profile // keyed by user id
	findErr  error                      // if set, lookups fail with this error
}

func newStubProfileRepo() *stubProfileRepo {
	return &stubProfileRepo{profiles: make(map[string]*domain.Profile)}
}

func (r *stubProfileRepo) FindByUserID(_ context.Context, userID string) (*domain.Profile, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *stubProfileRepo) FindByEmail(_ context.Context, email string) (*domain.Profile, error) {
	for _, p := range r.profiles {
		if p.Email == email {
			clone := *p
			return &clone, nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

func (r *stubProfileRepo) FindByReferralCode(_ context.Context, code string) (*domain.Profile, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, p := range r.profiles {
		if p.ReferralCode == code {
			clone := *p
			return &clone, nil
		}
	}
	return nil, domain.ErrReferralCodeNotFound
}

func (r *stubProfileRepo) ListMissingReferralCodes(_ context.Context) ([]*domain.Profile, error) {
	var missing []*domain.Profile
	for _, p := range r.profiles {
		if p.ReferralCode == "" {
			clone := *p
			missing = append(missing, &clone)
		}
	}
	return missing, nil
}

func (r *stubProfileRepo) Upsert(_ context.Context, p *domain.Profile) error {
	clone := *p
	r.profiles[p.UserID] = &clone
	return nil
}

func (r *stubProfileRepo) SetEnrollment(_ context.Context, userID, code string) error {
	p, ok := r.profiles[userID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	if domain.ClassifyStaffKey(code) != domain.FormatUnrecognized {
		p.StaffKey, p.ReferredBy = code, ""
	} else {
		p.ReferredBy, p.StaffKey = code, ""
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

type stubStaffKeyRepo struct {
	keys        map[string]*domain.StaffKey
	primaryErr  error // if set, FindByCode fails with this error
	findCalls   int
	directCalls int
}

func newStubStaffKeyRepo() *stubStaffKeyRepo {
	return &stubStaffKeyRepo{keys: make(map[string]*domain.StaffKey)}
}

func (r *stubStaffKeyRepo) FindByCode(_ context.Context, code string) (*domain.StaffKey, error) {
	r.findCalls++
	if r.primaryErr != nil {
		return nil, r.primaryErr
	}
	k, ok := r.keys[code]
	if !ok {
		return nil, domain.ErrStaffKeyNotFound
	}
	clone := *k
	return &clone, nil
}

func (r *stubStaffKeyRepo) FindByCodeDirect(_ context.Context, code string) (*domain.StaffKey, error) {
	r.directCalls++
	k, ok := r.keys[code]
	if !ok {
		return nil, domain.ErrStaffKeyNotFound
	}
	clone := *k
	return &clone, nil
}

func (r *stubStaffKeyRepo) Assign(_ context.Context, code, userID string) error {
	k, ok := r.keys[code]
	if !ok {
		return domain.ErrStaffKeyNotFound
	}
	if k.Status != domain.StaffKeyActive {
		return domain.ErrStaffKeyInactive
	}
	if k.AssignedTo != "" && k.AssignedTo != userID {
		return domain.ErrStaffKeyAssigned
	}
	k.AssignedTo = userID
	return nil
}

type stubLicenseRepo struct {
	byKey      map[string]*domain.LicenseKey
	byUser     map[string]*domain.LicenseKey
	collisions int // ExistsKey reports taken this many times before yielding
	updates    int
}

func newStubLicenseRepo() *stubLicenseRepo {
	return &stubLicenseRepo{
		byKey:  make(map[string]*domain.LicenseKey),
		byUser: make(map[string]*domain.LicenseKey),
	}
}

func (r *stubLicenseRepo) FindByKey(_ context.Context, key string) (*domain.LicenseKey, error) {
	l, ok := r.byKey[key]
	if !ok {
		return nil, domain.ErrLicenseNotFound
	}
	clone := *l
	return &clone, nil
}

func (r *stubLicenseRepo) FindByUserID(_ context.Context, userID string) (*domain.LicenseKey, error) {
	l, ok := r.byUser[userID]
	if !ok {
		return nil, domain.ErrLicenseNotFound
	}
	clone := *l
	return &clone, nil
}

func (r *stubLicenseRepo) ExistsKey(_ context.Context, key string) (bool, error) {
	if r.collisions > 0 {
		r.collisions--
		return true, nil
	}
	_, taken := r.byKey[key]
	return taken, nil
}

func (r *stubLicenseRepo) Create(_ context.Context, l *domain.LicenseKey) error {
	clone := *l
	r.byKey[l.Key] = &clone
	r.byUser[l.UserID] = &clone
	return nil
}

func (r *stubLicenseRepo) Update(_ context.Context, l *domain.LicenseKey) error {
	r.updates++
	clone := *l
	r.byKey[l.Key] = &clone
	r.byUser[l.UserID] = &clone
	return nil
}

func (r *stubLicenseRepo) SetEnrolledBy(_ context.Context, userID, code string) error {
	l, ok := r.byUser[userID]
	if !ok {
		return domain.ErrLicenseNotFound
	}
	l.EnrolledBy = code
	r.byKey[l.Key] = l
	return nil
}

type stubCustomerRepo struct {
	customers   map[string]*domain.Customer
	accounts    map[string]*domain.CustomerAccount
	upsertErr   error // if set, upserts fail with this error
	setCalls    int
	setAccCalls int
}

func newStubCustomerRepo() *stubCustomerRepo {
	return &stubCustomerRepo{
		customers: make(map[string]*domain.Customer),
		accounts:  make(map[string]*domain.CustomerAccount),
	}
}

func (r *stubCustomerRepo) FindCustomer(_ context.Context, userID string) (*domain.Customer, error) {
	c, ok := r.customers[userID]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *stubCustomerRepo) FindCustomerAccount(_ context.Context, userID string) (*domain.CustomerAccount, error) {
	c, ok := r.accounts[userID]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *stubCustomerRepo) UpsertCustomer(_ context.Context, c *domain.Customer) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	clone := *c
	r.customers[c.UserID] = &clone
	return nil
}

func (r *stubCustomerRepo) UpsertCustomerAccount(_ context.Context, c *domain.CustomerAccount) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	clone := *c
	r.accounts[c.UserID] = &clone
	return nil
}

func (r *stubCustomerRepo) SetCustomerEnrolledBy(_ context.Context, userID, code string) error {
	r.setCalls++
	c, ok := r.customers[userID]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	c.EnrolledBy = code
	return nil
}

func (r *stubCustomerRepo) SetCustomerAccountEnrollingCode(_ context.Context, userID, code string) error {
	r.setAccCalls++
	c, ok := r.accounts[userID]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	c.EnrollingCode = code
	return nil
}

// ---------------------------------------------------------------------------
// Change notification stubs
// ---------------------------------------------------------------------------

type stubPublisher struct {
	mu      sync.Mutex
	changes []ports.Change
}

func (p *stubPublisher) Publish(_ context.Context, change ports.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
	return nil
}

func (p *stubPublisher) published(table string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.changes {
		if c.Table == table {
			n++
		}
	}
	return n
}

type stubSubscriber struct {
	ch       chan ports.Change
	released bool
}

func newStubSubscriber() *stubSubscriber {
	return &stubSubscriber{ch: make(chan ports.Change, 8)}
}

func (s *stubSubscriber) Subscribe(_ context.Context, _ ...string) (<-chan ports.Change, func(), error) {
	return s.ch, func() { s.released = true }, nil
}

// ---------------------------------------------------------------------------
// Trading stubs
// ---------------------------------------------------------------------------

type stubSessionRepo struct {
	tokens map[string]string
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{tokens: make(map[string]string)}
}

func (r *stubSessionRepo) Read(_ context.Context, userID string) (string, error) {
	return r.tokens[userID], nil
}

func (r *stubSessionRepo) Write(_ context.Context, userID, token string, _ time.Duration) error {
	r.tokens[userID] = token
	return nil
}

func (r *stubSessionRepo) Clear(_ context.Context, userID string) error {
	delete(r.tokens, userID)
	return nil
}

type stubFxClient struct {
	token      string
	loginErr   error
	callErr    error // returned by Accounts/DailyGain/History when set
	accounts   []domain.TradingAccount
	daily      []domain.DailyGain
	trades     []domain.Trade
	loggedOut  []string
	lastFrom   time.Time
	lastTo     time.Time
	lastTokens []string
}

func (c *stubFxClient) Login(_ context.Context, _, _ string) (string, error) {
	if c.loginErr != nil {
		return "", c.loginErr
	}
	return c.token, nil
}

func (c *stubFxClient) Accounts(_ context.Context, session string) ([]domain.TradingAccount, error) {
	c.lastTokens = append(c.lastTokens, session)
	if c.callErr != nil {
		return nil, c.callErr
	}
	return c.accounts, nil
}

func (c *stubFxClient) DailyGain(_ context.Context, session string, _ int, from, to time.Time) ([]domain.DailyGain, error) {
	c.lastTokens = append(c.lastTokens, session)
	c.lastFrom, c.lastTo = from, to
	if c.callErr != nil {
		return nil, c.callErr
	}
	return c.daily, nil
}

func (c *stubFxClient) History(_ context.Context, session string, _ int) ([]domain.Trade, error) {
	c.lastTokens = append(c.lastTokens, session)
	if c.callErr != nil {
		return nil, c.callErr
	}
	return c.trades, nil
}

func (c *stubFxClient) Logout(_ context.Context, session string) error {
	c.loggedOut = append(c.loggedOut, session)
	return nil
}

// ---------------------------------------------------------------------------
// Misc
// ---------------------------------------------------------------------------

type stubRepairQueue struct {
	enqueued []string
}

func (q *stubRepairQueue) Enqueue(userID string) {
	q.enqueued = append(q.enqueued, userID)
}
