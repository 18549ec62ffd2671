// Package memory is an in-process repository.Store.
//
// It backs the service and handler tests and can be selected at runtime with
// database.driver = "memory" for local demos. Nothing survives a restart.
//
// Transactions are serialised, and calls made outside a transaction wait for
// the open one to finish. A failed transaction restores the snapshot taken
// when it began, which then holds every write committed before it.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository"
	"github.com/sakif/vouchnet/internal/tier"
)

var _ repository.Store = (*Store)(nil)

type data struct {
	users       []model.User
	developers  []model.Developer
	projects    []model.Project
	hackathons  []model.HackathonParticipation
	grants      []model.GrantRecipient
	contribs    []model.OpenSourceContribution
	scores      []model.ReputationScore
	history     []model.ReputationHistory
	vouches     []model.Vouch
	eligibility map[string]model.VouchEligibility
}

func (d *data) clone() *data {
	c := &data{
		users:       slices.Clone(d.users),
		developers:  make([]model.Developer, len(d.developers)),
		projects:    make([]model.Project, len(d.projects)),
		hackathons:  slices.Clone(d.hackathons),
		grants:      slices.Clone(d.grants),
		contribs:    slices.Clone(d.contribs),
		scores:      slices.Clone(d.scores),
		history:     slices.Clone(d.history),
		vouches:     make([]model.Vouch, len(d.vouches)),
		eligibility: make(map[string]model.VouchEligibility, len(d.eligibility)),
	}
	for i, dev := range d.developers {
		c.developers[i] = copyDeveloper(dev)
	}
	for i, p := range d.projects {
		c.projects[i] = copyProject(p)
	}
	for i, v := range d.vouches {
		c.vouches[i] = copyVouch(v)
	}
	for k, e := range d.eligibility {
		c.eligibility[k] = copyEligibility(e)
	}
	return c
}

type state struct {
	mu   sync.Mutex // guards d
	txMu sync.Mutex // held for the whole of a transaction, or one call outside it
	d    *data
}

// Store implements repository.Store over plain slices guarded by a mutex.
type Store struct {
	st   *state
	inTx bool
}

// New returns an empty store.
func New() *Store {
	return &Store{st: &state{d: &data{eligibility: map[string]model.VouchEligibility{}}}}
}

// lock guards one store call. Outside a transaction it also takes txMu, so
// the call never interleaves with an open transaction.
func (s *Store) lock() func() {
	if s.inTx {
		s.st.mu.Lock()
		return s.st.mu.Unlock
	}
	s.st.txMu.Lock()
	s.st.mu.Lock()
	return func() {
		s.st.mu.Unlock()
		s.st.txMu.Unlock()
	}
}

func now() time.Time { return time.Now().UTC() }

// WithinTx runs fn with all other transactions excluded and rolls the store
// back to its prior state if fn fails or panics.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) (err error) {
	if s.inTx {
		return fn(ctx, s)
	}

	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	s.st.mu.Lock()
	snapshot := s.st.d.clone()
	s.st.mu.Unlock()

	restore := func() {
		s.st.mu.Lock()
		s.st.d = snapshot
		s.st.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()

	if err = fn(ctx, &Store{st: s.st, inTx: true}); err != nil {
		restore()
	}
	return err
}

// =========================================================================
// USERS
// =========================================================================

func (s *Store) Upsert(_ context.Context, user *model.User) error {
	defer s.lock()()
	d := s.st.d

	ts := now()
	for i := range d.users {
		if d.users[i].GitHubID == user.GitHubID {
			existing := &d.users[i]
			existing.Login = user.Login
			existing.Email = user.Email
			existing.AvatarURL = user.AvatarURL
			existing.UpdatedAt = ts
			*user = *existing
			return nil
		}
	}

	user.ID = xid.New().String()
	user.CreatedAt = ts
	user.UpdatedAt = ts
	d.users = append(d.users, *user)
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	defer s.lock()()
	for _, u := range s.st.d.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

// =========================================================================
// DEVELOPERS
// =========================================================================

func (s *Store) CreateDeveloper(_ context.Context, dev *model.Developer) error {
	defer s.lock()()
	d := s.st.d

	for _, existing := range d.developers {
		if existing.UserID == dev.UserID {
			return apperror.Conflict("developer", dev.UserID)
		}
	}

	ts := now()
	dev.ID = xid.New().String()
	dev.CreatedAt = ts
	dev.UpdatedAt = ts
	if dev.Tier == "" {
		dev.Tier = tier.Tier4
	}
	if dev.SocialLinks == nil {
		dev.SocialLinks = map[string]string{}
	}
	d.developers = append(d.developers, copyDeveloper(*dev))
	return nil
}

func (s *Store) findDeveloper(id string) *model.Developer {
	for i := range s.st.d.developers {
		if s.st.d.developers[i].ID == id {
			return &s.st.d.developers[i]
		}
	}
	return nil
}

func (s *Store) GetDeveloperByID(_ context.Context, id string) (*model.Developer, error) {
	defer s.lock()()
	if dev := s.findDeveloper(id); dev != nil {
		out := copyDeveloper(*dev)
		return &out, nil
	}
	return nil, apperror.NotFound("developer", id)
}

func (s *Store) GetDeveloperByUserID(_ context.Context, userID string) (*model.Developer, error) {
	defer s.lock()()
	for _, dev := range s.st.d.developers {
		if dev.UserID == userID {
			out := copyDeveloper(dev)
			return &out, nil
		}
	}
	return nil, apperror.NotFound("developer for user", userID)
}

func (s *Store) ListDevelopers(_ context.Context, filter model.DeveloperFilter) ([]model.Developer, error) {
	defer s.lock()()
	opts := repository.ListOptions{Limit: filter.Limit, Offset: filter.Offset}.Normalize()

	matched := []model.Developer{}
	for _, dev := range s.st.d.developers {
		if filter.Tier != "" && dev.Tier != filter.Tier {
			continue
		}
		matched = append(matched, copyDeveloper(dev))
	}
	slices.SortStableFunc(matched, func(a, b model.Developer) int {
		return cmp.Compare(b.ReputationScore, a.ReputationScore)
	})

	if opts.Offset >= len(matched) {
		return []model.Developer{}, nil
	}
	end := min(opts.Offset+opts.Limit, len(matched))
	return matched[opts.Offset:end], nil
}

func (s *Store) ListDeveloperIDs(_ context.Context) ([]string, error) {
	defer s.lock()()
	ids := make([]string, 0, len(s.st.d.developers))
	for _, dev := range s.st.d.developers {
		ids = append(ids, dev.ID)
	}
	return ids, nil
}

func (s *Store) UpdateDeveloperProfile(_ context.Context, dev *model.Developer) error {
	defer s.lock()()
	existing := s.findDeveloper(dev.ID)
	if existing == nil {
		return apperror.NotFound("developer", dev.ID)
	}
	if dev.SocialLinks == nil {
		dev.SocialLinks = map[string]string{}
	}
	dev.UpdatedAt = now()

	existing.DisplayName = dev.DisplayName
	existing.Bio = dev.Bio
	existing.Location = dev.Location
	existing.GitHubURL = dev.GitHubURL
	existing.Contact = dev.Contact
	existing.SocialLinks = maps.Clone(dev.SocialLinks)
	existing.UpdatedAt = dev.UpdatedAt
	return nil
}

func (s *Store) UpdateDeveloperReputation(_ context.Context, id string, score float64, t tier.Tier) error {
	defer s.lock()()
	existing := s.findDeveloper(id)
	if existing == nil {
		return apperror.NotFound("developer", id)
	}
	existing.ReputationScore = score
	existing.Tier = t
	return nil
}

// SetDeveloperTimes overrides a profile's timestamps. Tests use it to build
// accounts of a given age and activity.
func (s *Store) SetDeveloperTimes(id string, createdAt, updatedAt time.Time) {
	defer s.lock()()
	if dev := s.findDeveloper(id); dev != nil {
		dev.CreatedAt = createdAt
		dev.UpdatedAt = updatedAt
	}
}

// =========================================================================
// PROJECTS
// =========================================================================

func (s *Store) CreateProject(_ context.Context, p *model.Project) error {
	defer s.lock()()
	ts := now()
	p.ID = xid.New().String()
	p.CreatedAt = ts
	p.UpdatedAt = ts
	if p.Technologies == nil {
		p.Technologies = []string{}
	}
	s.st.d.projects = append(s.st.d.projects, copyProject(*p))
	return nil
}

func (s *Store) findProject(id string) *model.Project {
	for i := range s.st.d.projects {
		if s.st.d.projects[i].ID == id {
			return &s.st.d.projects[i]
		}
	}
	return nil
}

func (s *Store) GetProjectByID(_ context.Context, id string) (*model.Project, error) {
	defer s.lock()()
	if p := s.findProject(id); p != nil {
		out := copyProject(*p)
		return &out, nil
	}
	return nil, apperror.NotFound("project", id)
}

func (s *Store) ListProjectsByDeveloper(_ context.Context, developerID string) ([]model.Project, error) {
	defer s.lock()()
	out := []model.Project{}
	for _, p := range slices.Backward(s.st.d.projects) {
		if p.DeveloperID == developerID {
			out = append(out, copyProject(p))
		}
	}
	return out, nil
}

func (s *Store) UpdateProject(_ context.Context, p *model.Project) error {
	defer s.lock()()
	existing := s.findProject(p.ID)
	if existing == nil {
		return apperror.NotFound("project", p.ID)
	}
	if p.Technologies == nil {
		p.Technologies = []string{}
	}
	p.UpdatedAt = now()
	p.DeveloperID = existing.DeveloperID
	p.CreatedAt = existing.CreatedAt
	*existing = copyProject(*p)
	return nil
}

// SetProjectUpdatedAt backdates a project. Used by tests.
func (s *Store) SetProjectUpdatedAt(id string, updatedAt time.Time) {
	defer s.lock()()
	if p := s.findProject(id); p != nil {
		p.UpdatedAt = updatedAt
	}
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	defer s.lock()()
	i := slices.IndexFunc(s.st.d.projects, func(p model.Project) bool { return p.ID == id })
	if i < 0 {
		return apperror.NotFound("project", id)
	}
	s.st.d.projects = slices.Delete(s.st.d.projects, i, i+1)
	return nil
}

func (s *Store) CountVerifiedProjects(_ context.Context, developerID string) (int, error) {
	defer s.lock()()
	n := 0
	for _, p := range s.st.d.projects {
		if p.DeveloperID == developerID && p.IsVerified {
			n++
		}
	}
	return n, nil
}

// =========================================================================
// ACTIVITY
// =========================================================================

func (s *Store) CreateHackathonParticipation(_ context.Context, h *model.HackathonParticipation) error {
	defer s.lock()()
	h.ID = xid.New().String()
	h.CreatedAt = now()
	s.st.d.hackathons = append(s.st.d.hackathons, *h)
	return nil
}

func (s *Store) ListVerifiedHackathons(_ context.Context, developerID string) ([]model.HackathonParticipation, error) {
	defer s.lock()()
	out := []model.HackathonParticipation{}
	for _, h := range slices.Backward(s.st.d.hackathons) {
		if h.DeveloperID == developerID && h.IsVerified {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) CreateGrant(_ context.Context, g *model.GrantRecipient) error {
	defer s.lock()()
	g.ID = xid.New().String()
	g.CreatedAt = now()
	s.st.d.grants = append(s.st.d.grants, *g)
	return nil
}

func (s *Store) ListVerifiedGrants(_ context.Context, developerID string) ([]model.GrantRecipient, error) {
	defer s.lock()()
	out := []model.GrantRecipient{}
	for _, g := range slices.Backward(s.st.d.grants) {
		if g.DeveloperID == developerID && g.IsVerified {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) CreateContribution(_ context.Context, c *model.OpenSourceContribution) error {
	defer s.lock()()
	c.ID = xid.New().String()
	c.CreatedAt = now()
	s.st.d.contribs = append(s.st.d.contribs, *c)
	return nil
}

func (s *Store) ListContributions(_ context.Context, developerID string) ([]model.OpenSourceContribution, error) {
	defer s.lock()()
	out := []model.OpenSourceContribution{}
	for _, c := range slices.Backward(s.st.d.contribs) {
		if c.DeveloperID == developerID {
			out = append(out, c)
		}
	}
	return out, nil
}

// =========================================================================
// REPUTATION
// =========================================================================

func (s *Store) CreateReputationScore(_ context.Context, score *model.ReputationScore) error {
	defer s.lock()()
	if score.ID == "" {
		score.ID = xid.New().String()
	}
	if score.CalculatedAt.IsZero() {
		score.CalculatedAt = now()
	}
	s.st.d.scores = append(s.st.d.scores, *score)
	return nil
}

func (s *Store) GetLatestReputationScore(_ context.Context, developerID string) (*model.ReputationScore, error) {
	defer s.lock()()
	var latest *model.ReputationScore
	for i := range s.st.d.scores {
		sc := &s.st.d.scores[i]
		if sc.DeveloperID != developerID {
			continue
		}
		// Later rows win ties, matching insertion order.
		if latest == nil || !sc.CalculatedAt.Before(latest.CalculatedAt) {
			latest = sc
		}
	}
	if latest == nil {
		return nil, apperror.NotFound("reputation score for developer", developerID)
	}
	out := *latest
	return &out, nil
}

func (s *Store) CreateReputationHistory(_ context.Context, h *model.ReputationHistory) error {
	defer s.lock()()
	if h.ID == "" {
		h.ID = xid.New().String()
	}
	if h.Date.IsZero() {
		h.Date = now()
	}
	s.st.d.history = append(s.st.d.history, *h)
	return nil
}

func (s *Store) ListReputationHistory(_ context.Context, developerID string, limit int) ([]model.ReputationHistory, error) {
	defer s.lock()()
	if limit <= 0 {
		limit = repository.DefaultHistoryLimit
	}
	out := []model.ReputationHistory{}
	for _, h := range slices.Backward(s.st.d.history) {
		if h.DeveloperID == developerID {
			out = append(out, h)
		}
	}
	slices.SortStableFunc(out, func(a, b model.ReputationHistory) int {
		return b.Date.Compare(a.Date)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// =========================================================================
// VOUCHES
// =========================================================================

func (s *Store) CreateVouch(_ context.Context, v *model.Vouch) error {
	defer s.lock()()
	for _, existing := range s.st.d.vouches {
		if existing.IsActive && existing.VoucherID == v.VoucherID && existing.VouchedUserID == v.VouchedUserID {
			return apperror.Conflict("vouch", v.VoucherID+"->"+v.VouchedUserID)
		}
	}

	if v.ID == "" {
		v.ID = xid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now()
	}
	if v.SkillsEndorsed == nil {
		v.SkillsEndorsed = []string{}
	}
	v.IsActive = true
	s.st.d.vouches = append(s.st.d.vouches, copyVouch(*v))
	return nil
}

func (s *Store) GetVouchByID(_ context.Context, id string) (*model.Vouch, error) {
	defer s.lock()()
	for _, v := range s.st.d.vouches {
		if v.ID == id {
			out := copyVouch(v)
			return &out, nil
		}
	}
	return nil, apperror.NotFound("vouch", id)
}

func (s *Store) HasActiveVouch(_ context.Context, voucherID, vouchedUserID string) (bool, error) {
	defer s.lock()()
	for _, v := range s.st.d.vouches {
		if v.IsActive && v.VoucherID == voucherID && v.VouchedUserID == vouchedUserID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) activeVouches(match func(model.Vouch) bool) []model.Vouch {
	out := []model.Vouch{}
	for _, v := range slices.Backward(s.st.d.vouches) {
		if v.IsActive && match(v) {
			out = append(out, copyVouch(v))
		}
	}
	slices.SortStableFunc(out, func(a, b model.Vouch) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func (s *Store) ListActiveVouchesReceived(_ context.Context, developerID string) ([]model.Vouch, error) {
	defer s.lock()()
	return s.activeVouches(func(v model.Vouch) bool { return v.VouchedUserID == developerID }), nil
}

func (s *Store) ListActiveVouchesGiven(_ context.Context, developerID string) ([]model.Vouch, error) {
	defer s.lock()()
	return s.activeVouches(func(v model.Vouch) bool { return v.VoucherID == developerID }), nil
}

func (s *Store) CountActiveVouchesGivenSince(_ context.Context, voucherID string, since time.Time) (int, error) {
	defer s.lock()()
	n := 0
	for _, v := range s.st.d.vouches {
		if v.IsActive && v.VoucherID == voucherID && !v.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) RevokeVouch(_ context.Context, id string, revokedAt time.Time, reason string) error {
	defer s.lock()()
	for i := range s.st.d.vouches {
		v := &s.st.d.vouches[i]
		if v.ID == id && v.IsActive {
			at := revokedAt
			v.IsActive = false
			v.RevokedAt = &at
			v.RevokeReason = reason
			return nil
		}
	}
	return apperror.NotFound("active vouch", id)
}

// =========================================================================
// ELIGIBILITY
// =========================================================================

func (s *Store) UpsertVouchEligibility(_ context.Context, e *model.VouchEligibility) error {
	defer s.lock()()
	if e.LastCheckedAt.IsZero() {
		e.LastCheckedAt = now()
	}
	if e.ReasonsNotEligible == nil {
		e.ReasonsNotEligible = []string{}
	}
	s.st.d.eligibility[e.DeveloperID] = copyEligibility(*e)
	return nil
}

func (s *Store) GetVouchEligibility(_ context.Context, developerID string) (*model.VouchEligibility, error) {
	defer s.lock()()
	e, ok := s.st.d.eligibility[developerID]
	if !ok {
		return nil, apperror.NotFound("vouch eligibility", developerID)
	}
	out := copyEligibility(e)
	return &out, nil
}

// =========================================================================
// COPY HELPERS
// =========================================================================

func copyDeveloper(d model.Developer) model.Developer {
	d.SocialLinks = maps.Clone(d.SocialLinks)
	return d
}

func copyProject(p model.Project) model.Project {
	p.Technologies = slices.Clone(p.Technologies)
	return p
}

func copyVouch(v model.Vouch) model.Vouch {
	v.SkillsEndorsed = slices.Clone(v.SkillsEndorsed)
	if v.RevokedAt != nil {
		at := *v.RevokedAt
		v.RevokedAt = &at
	}
	return v
}

func copyEligibility(e model.VouchEligibility) model.VouchEligibility {
	e.ReasonsNotEligible = slices.Clone(e.ReasonsNotEligible)
	return e
}
