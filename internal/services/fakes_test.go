package services

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/storage"
	"github.com/evotar/apiserver/internal/store"
	"github.com/evotar/apiserver/internal/syslog"
	"github.com/evotar/apiserver/internal/wallet"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memory is an in-memory stand-in for the database shared by the fake
// repositories below.
type memory struct {
	mu sync.Mutex

	clock time.Time

	users         map[uuid.UUID]types.User
	elections     map[uuid.UUID]types.Election
	candidates    map[uuid.UUID]types.Candidate
	votes         []types.Vote
	results       map[uuid.UUID][]types.ElectionResult
	wallets       map[uuid.UUID]types.Wallet
	ledger        []types.LedgerEntry
	departments   []types.Department
	electionTypes map[int]types.ElectionType
	positions     map[int]types.Position
	detached      []uuid.UUID

	ballotLocks []string
	lockErr     error
}

func newMemory() *memory {
	m := &memory{
		clock:         time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		users:         map[uuid.UUID]types.User{},
		elections:     map[uuid.UUID]types.Election{},
		candidates:    map[uuid.UUID]types.Candidate{},
		results:       map[uuid.UUID][]types.ElectionResult{},
		wallets:       map[uuid.UUID]types.Wallet{},
		electionTypes: map[int]types.ElectionType{},
		positions:     map[int]types.Position{},
	}
	m.departments = []types.Department{{ID: 1, Name: "Engineering"}, {ID: 2, Name: "Science"}, {ID: 3, Name: "Arts"}}
	m.electionTypes[1] = types.ElectionType{ID: 1, Name: "Student Council", Strategy: types.StrategyStandard}
	m.electionTypes[2] = types.ElectionType{ID: 2, Name: "University Executive", Strategy: types.StrategyExecutive}
	m.positions[1] = types.Position{ID: 1, ElectionTypeID: 1, Name: "President", DisplayOrder: 1}
	m.positions[2] = types.Position{ID: 2, ElectionTypeID: 1, Name: "Vice President", DisplayOrder: 2}
	m.positions[3] = types.Position{ID: 3, ElectionTypeID: 2, Name: "Chancellor", DisplayOrder: 1}
	return m
}

// tick returns strictly increasing timestamps so creation order is stable.
func (m *memory) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memory) snapshot() *memory {
	c := &memory{
		clock:         m.clock,
		users:         map[uuid.UUID]types.User{},
		elections:     map[uuid.UUID]types.Election{},
		candidates:    map[uuid.UUID]types.Candidate{},
		votes:         append([]types.Vote(nil), m.votes...),
		results:       map[uuid.UUID][]types.ElectionResult{},
		wallets:       map[uuid.UUID]types.Wallet{},
		ledger:        append([]types.LedgerEntry(nil), m.ledger...),
		departments:   append([]types.Department(nil), m.departments...),
		electionTypes: map[int]types.ElectionType{},
		positions:     map[int]types.Position{},
		detached:      append([]uuid.UUID(nil), m.detached...),
	}
	for k, v := range m.users {
		c.users[k] = v
	}
	for k, v := range m.elections {
		c.elections[k] = v
	}
	for k, v := range m.candidates {
		c.candidates[k] = v
	}
	for k, v := range m.results {
		c.results[k] = append([]types.ElectionResult(nil), v...)
	}
	for k, v := range m.wallets {
		c.wallets[k] = v
	}
	for k, v := range m.electionTypes {
		c.electionTypes[k] = v
	}
	for k, v := range m.positions {
		c.positions[k] = v
	}
	return c
}

func (m *memory) restore(c *memory) {
	m.clock = c.clock
	m.users = c.users
	m.elections = c.elections
	m.candidates = c.candidates
	m.votes = c.votes
	m.results = c.results
	m.wallets = c.wallets
	m.ledger = c.ledger
	m.departments = c.departments
	m.electionTypes = c.electionTypes
	m.positions = c.positions
	m.detached = c.detached
}

// memoryTx discards every write of a failed transaction.
type memoryTx struct {
	m     *memory
	calls int
}

func (t *memoryTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.m.mu.Lock()
	before := t.m.snapshot()
	t.calls++
	t.m.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.m.mu.Lock()
		t.m.restore(before)
		t.m.mu.Unlock()
		return err
	}
	return nil
}

type fakeUsers struct{ m *memory }

func (f fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	u, ok := f.m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f fakeUsers) GetByStudentID(ctx context.Context, studentID string) (types.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, u := range f.m.users {
		if u.StudentID == studentID {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f fakeUsers) GetByEmail(ctx context.Context, email string) (types.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, u := range f.m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f fakeUsers) List(ctx context.Context, role string, offset, limit int) ([]types.User, int, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var all []types.User
	for _, u := range f.m.users {
		if role == "" || u.Role == role {
			all = append(all, u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	end := min(offset+limit, len(all))
	offset = min(offset, end)
	return all[offset:end], len(all), nil
}

func (f fakeUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, u := range f.m.users {
		if u.StudentID == user.StudentID || strings.EqualFold(u.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = f.m.tick()
	user.UpdatedAt = user.CreatedAt
	f.m.users[user.ID] = user
	return user, nil
}

func (f fakeUsers) Update(ctx context.Context, user types.User) (types.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = f.m.tick()
	f.m.users[user.ID] = user
	return user, nil
}

func (f fakeUsers) Delete(ctx context.Context, id uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.m.users, id)
	return nil
}

func (f fakeUsers) References(ctx context.Context, id uuid.UUID) (store.UserReferences, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var refs store.UserReferences
	for _, e := range f.m.elections {
		if e.CreatedBy != nil && *e.CreatedBy == id {
			refs.CreatedElections = true
		}
	}
	for _, v := range f.m.votes {
		if v.UserID == id {
			refs.CastVotes = true
		}
	}
	for _, c := range f.m.candidates {
		if c.UserID == id {
			refs.Candidacies = true
		}
	}
	return refs, nil
}

func (f fakeUsers) CountVotersByDepartment(ctx context.Context) (map[int]int, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	counts := map[int]int{}
	for _, u := range f.m.users {
		if u.DepartmentID != nil {
			counts[*u.DepartmentID]++
		}
	}
	return counts, nil
}

type fakeElections struct{ m *memory }

func (f fakeElections) Get(ctx context.Context, id uuid.UUID) (types.Election, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	e, ok := f.m.elections[id]
	if !ok {
		return types.Election{}, store.ErrNotFound
	}
	return e, nil
}

func (f fakeElections) GetForUpdate(ctx context.Context, id uuid.UUID) (types.Election, error) {
	return f.Get(ctx, id)
}

func (f fakeElections) List(ctx context.Context, status string, offset, limit int) ([]types.Election, int, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var all []types.Election
	for _, e := range f.m.elections {
		if status == "" || e.Status == status {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartDate.After(all[j].StartDate) })
	end := min(offset+limit, len(all))
	offset = min(offset, end)
	return all[offset:end], len(all), nil
}

func (f fakeElections) Create(ctx context.Context, e types.Election) (types.Election, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = f.m.tick()
	e.UpdatedAt = e.CreatedAt
	f.m.elections[e.ID] = e
	return e, nil
}

func (f fakeElections) Update(ctx context.Context, e types.Election) (types.Election, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.elections[e.ID]; !ok {
		return types.Election{}, store.ErrNotFound
	}
	e.UpdatedAt = f.m.tick()
	f.m.elections[e.ID] = e
	return e, nil
}

type fakeCandidates struct{ m *memory }

func (f fakeCandidates) withUser(c types.Candidate) types.Candidate {
	if u, ok := f.m.users[c.UserID]; ok {
		c.Name = u.Name
		c.StudentID = u.StudentID
	}
	return c
}

func (f fakeCandidates) Get(ctx context.Context, id uuid.UUID) (types.Candidate, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.candidates[id]
	if !ok {
		return types.Candidate{}, store.ErrNotFound
	}
	return f.withUser(c), nil
}

func (f fakeCandidates) ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.Candidate, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	out := []types.Candidate{}
	for _, c := range f.m.candidates {
		if c.ElectionID == electionID {
			out = append(out, f.withUser(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PositionID != out[j].PositionID {
			return out[i].PositionID < out[j].PositionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (f fakeCandidates) Create(ctx context.Context, c types.Candidate) (types.Candidate, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, existing := range f.m.candidates {
		if existing.ElectionID == c.ElectionID && existing.PositionID == c.PositionID && existing.UserID == c.UserID {
			return types.Candidate{}, store.ErrConflict
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = f.m.tick()
	f.m.candidates[c.ID] = c
	return c, nil
}

func (f fakeCandidates) Delete(ctx context.Context, id uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.candidates[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.m.candidates, id)
	return nil
}

func (f fakeCandidates) HasVotes(ctx context.Context, id uuid.UUID) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, v := range f.m.votes {
		if v.CandidateID == id {
			return true, nil
		}
	}
	return false, nil
}

type fakeVotes struct{ m *memory }

func (f fakeVotes) Create(ctx context.Context, v types.Vote) (types.Vote, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, existing := range f.m.votes {
		if existing.ElectionID == v.ElectionID && existing.PositionID == v.PositionID && existing.UserID == v.UserID {
			return types.Vote{}, store.ErrConflict
		}
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = f.m.tick()
	f.m.votes = append(f.m.votes, v)
	return v, nil
}

func (f fakeVotes) LockBallot(ctx context.Context, userID, electionID uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.lockErr != nil {
		return f.m.lockErr
	}
	f.m.ballotLocks = append(f.m.ballotLocks, userID.String()+":"+electionID.String())
	return nil
}

func (f fakeVotes) HasUserVoted(ctx context.Context, userID, electionID uuid.UUID) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, v := range f.m.votes {
		if v.UserID == userID && v.ElectionID == electionID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeVotes) ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.Vote, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	out := []types.Vote{}
	for _, v := range f.m.votes {
		if v.ElectionID == electionID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f fakeVotes) CountByCandidate(ctx context.Context, electionID uuid.UUID) ([]types.VoteCount, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	type key struct {
		position  int
		candidate uuid.UUID
		dept      int
	}
	counts := map[key]int{}
	var order []key
	for _, v := range f.m.votes {
		if v.ElectionID != electionID {
			continue
		}
		k := key{position: v.PositionID, candidate: v.CandidateID}
		if v.DepartmentID != nil {
			k.dept = *v.DepartmentID
		}
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
	}
	out := make([]types.VoteCount, 0, len(order))
	for _, k := range order {
		c := types.VoteCount{PositionID: k.position, CandidateID: k.candidate, Votes: counts[k]}
		if k.dept != 0 {
			dept := k.dept
			c.DepartmentID = &dept
		}
		out = append(out, c)
	}
	return out, nil
}

type fakeResults struct {
	m     *memory
	calls int
}

func (f *fakeResults) Replace(ctx context.Context, electionID uuid.UUID, results []types.ElectionResult) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.calls++
	f.m.results[electionID] = append([]types.ElectionResult(nil), results...)
	return nil
}

func (f *fakeResults) ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.ElectionResult, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	return append([]types.ElectionResult{}, f.m.results[electionID]...), nil
}

type fakeWallets struct{ m *memory }

func (f fakeWallets) Get(ctx context.Context, userID uuid.UUID) (types.Wallet, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	w, ok := f.m.wallets[userID]
	if !ok {
		return types.Wallet{}, store.ErrNotFound
	}
	return w, nil
}

func (f fakeWallets) Upsert(ctx context.Context, w types.Wallet) (types.Wallet, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	w.CreatedAt = f.m.tick()
	f.m.wallets[w.UserID] = w
	return w, nil
}

func (f fakeWallets) Delete(ctx context.Context, userID uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	delete(f.m.wallets, userID)
	return nil
}

type fakeLedger struct {
	m     *memory
	locks int
}

func (f *fakeLedger) Lock(ctx context.Context, electionID uuid.UUID) error {
	f.locks++
	return nil
}

func (f *fakeLedger) Last(ctx context.Context, electionID uuid.UUID) (types.LedgerEntry, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for i := len(f.m.ledger) - 1; i >= 0; i-- {
		if f.m.ledger[i].ElectionID == electionID {
			return f.m.ledger[i], nil
		}
	}
	return types.LedgerEntry{}, store.ErrNotFound
}

func (f *fakeLedger) Append(ctx context.Context, entry types.LedgerEntry) (types.LedgerEntry, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	entry.Seq = int64(len(f.m.ledger) + 1)
	f.m.ledger = append(f.m.ledger, entry)
	return entry, nil
}

func (f *fakeLedger) ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.LedgerEntry, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	out := []types.LedgerEntry{}
	for _, e := range f.m.ledger {
		if e.ElectionID == electionID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeLookups struct{ m *memory }

func (f fakeLookups) ListDepartments(ctx context.Context) ([]types.Department, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	return append([]types.Department(nil), f.m.departments...), nil
}

func (f fakeLookups) CreateDepartment(ctx context.Context, name string) (types.Department, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, d := range f.m.departments {
		if d.Name == name {
			return types.Department{}, store.ErrConflict
		}
	}
	d := types.Department{ID: len(f.m.departments) + 1, Name: name}
	f.m.departments = append(f.m.departments, d)
	return d, nil
}

func (f fakeLookups) GetElectionType(ctx context.Context, id int) (types.ElectionType, error) {
	f.m.mu.Lock()
	et, ok := f.m.electionTypes[id]
	f.m.mu.Unlock()
	if !ok {
		return types.ElectionType{}, store.ErrNotFound
	}
	positions, _ := f.ListPositions(ctx, id)
	et.Positions = positions
	return et, nil
}

func (f fakeLookups) ListElectionTypes(ctx context.Context) ([]types.ElectionType, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	out := []types.ElectionType{}
	for _, et := range f.m.electionTypes {
		out = append(out, et)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeLookups) CreateElectionType(ctx context.Context, et types.ElectionType) (types.ElectionType, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, existing := range f.m.electionTypes {
		if existing.Name == et.Name {
			return types.ElectionType{}, store.ErrConflict
		}
	}
	et.ID = len(f.m.electionTypes) + 1
	f.m.electionTypes[et.ID] = et
	return et, nil
}

func (f fakeLookups) ListPositions(ctx context.Context, electionTypeID int) ([]types.Position, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	out := []types.Position{}
	for _, p := range f.m.positions {
		if p.ElectionTypeID == electionTypeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (f fakeLookups) GetPosition(ctx context.Context, id int) (types.Position, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	p, ok := f.m.positions[id]
	if !ok {
		return types.Position{}, store.ErrNotFound
	}
	return p, nil
}

func (f fakeLookups) CreatePosition(ctx context.Context, p types.Position) (types.Position, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	p.ID = len(f.m.positions) + 1
	f.m.positions[p.ID] = p
	return p, nil
}

type fakeLogs struct{ m *memory }

func (f fakeLogs) DetachUser(ctx context.Context, userID uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.detached = append(f.m.detached, userID)
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []syslog.Event
}

func (r *recorder) Log(ctx context.Context, e syslog.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

func (r *recorder) count(action string) int {
	n := 0
	for _, a := range r.actions() {
		if a == action {
			n++
		}
	}
	return n
}

type publishedMessage struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakePublisher struct {
	messages []publishedMessage
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.messages = append(p.messages, publishedMessage{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

type fakeArchive struct {
	objects map[string][]byte
	meta    map[string]map[string]string
	order   []string
}

func (a *fakeArchive) Put(ctx context.Context, obj storage.Object) error {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return err
	}
	if a.objects == nil {
		a.objects = map[string][]byte{}
		a.meta = map[string]map[string]string{}
	}
	a.objects[obj.Key] = data
	a.meta[obj.Key] = obj.Metadata
	a.order = append(a.order, obj.Key)
	return nil
}

func (a *fakeArchive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := a.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (a *fakeArchive) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for i := len(a.order) - 1; i >= 0; i-- {
		key := a.order[i]
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(a.objects[key]))})
		}
	}
	return out, nil
}

// world wires every service to one shared memory.
type world struct {
	m      *memory
	tx     *memoryTx
	events *recorder
	ledger *fakeLedger
	result *fakeResults

	users      *UserService
	auth       *AuthService
	elections  *ElectionService
	candidates *CandidateService
	votes      *VoteService
	wallets    *WalletService
	tabulation *TabulationService
	lookups    *LookupService

	now time.Time
}

func newWorld(t *testing.T, withLedger bool) *world {
	t.Helper()
	m := newMemory()
	w := &world{
		m:      m,
		tx:     &memoryTx{m: m},
		events: &recorder{},
		ledger: &fakeLedger{m: m},
		result: &fakeResults{m: m},
		now:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return w.now }

	var sealer *wallet.Sealer
	if withLedger {
		var err error
		sealer, err = wallet.NewSealer(bytes.Repeat([]byte{7}, 32))
		require.NoError(t, err)
	}

	w.users = NewUserService(w.tx, fakeUsers{m}, fakeLogs{m}, fakeWallets{m}, w.events)
	w.auth = NewAuthService(fakeUsers{m}, fakeWallets{m}, w.events)
	w.elections = NewElectionService(w.tx, fakeElections{m}, fakeLookups{m}, w.events)
	w.candidates = NewCandidateService(w.tx, fakeCandidates{m}, fakeElections{m}, fakeLookups{m}, w.users, w.events)
	w.wallets = NewWalletService(w.tx, fakeWallets{m}, w.ledger, fakeVotes{m}, sealer, w.events)
	w.wallets.now = clock

	var ballotLedger BallotLedger
	if withLedger {
		ballotLedger = w.wallets
	}
	w.votes = NewVoteService(w.tx, fakeVotes{m}, fakeElections{m}, fakeCandidates{m}, fakeUsers{m}, ballotLedger, w.events)
	w.votes.now = clock

	w.tabulation = NewTabulationService(w.tx, fakeElections{m}, fakeLookups{m}, fakeCandidates{m}, fakeVotes{m}, fakeUsers{m}, w.result, w.events)
	w.tabulation.now = clock
	w.elections.SetTabulator(w.tabulation)

	w.lookups = NewLookupService(fakeLookups{m}, w.events)
	return w
}

// addUser stores a user directly, bypassing the service.
func (w *world) addUser(t *testing.T, studentID, role string, dept *int) types.User {
	t.Helper()
	u, err := fakeUsers{w.m}.Create(context.Background(), types.User{
		StudentID:    studentID,
		Name:         "User " + studentID,
		Email:        strings.ToLower(studentID) + "@example.edu",
		Role:         role,
		DepartmentID: dept,
	})
	require.NoError(t, err)
	return u
}

func (w *world) sessionFor(u types.User) session.Session {
	return session.ForUser(u, "")
}

func (w *world) admin(t *testing.T) session.Session {
	t.Helper()
	return w.sessionFor(w.addUser(t, "ADM-"+uuid.NewString()[:8], types.RoleAdmin, nil))
}

// addElection stores an active election whose window contains w.now.
func (w *world) addElection(t *testing.T, typeID int, dept *int) types.Election {
	t.Helper()
	e, err := fakeElections{w.m}.Create(context.Background(), types.Election{
		Title:          "Election " + uuid.NewString()[:6],
		ElectionTypeID: typeID,
		DepartmentID:   dept,
		StartDate:      w.now.Add(-time.Hour),
		EndDate:        w.now.Add(time.Hour),
		Status:         types.StatusActive,
	})
	require.NoError(t, err)
	return e
}

func (w *world) addCandidate(t *testing.T, electionID uuid.UUID, positionID int, user types.User) types.Candidate {
	t.Helper()
	c, err := fakeCandidates{w.m}.Create(context.Background(), types.Candidate{
		ElectionID: electionID,
		PositionID: positionID,
		UserID:     user.ID,
	})
	require.NoError(t, err)
	return c
}

func intp(v int) *int { return &v }
