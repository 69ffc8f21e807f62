package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taskhub/apiserver/internal/notify"
	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/types"
)

// memData is an in-memory datastore that mimics the Postgres constraints
// the services rely on.
type memData struct {
	users      map[int]types.User
	profiles   map[int]types.Profile
	categories map[int]types.Category
	tasks      map[int]types.Task
	otps       map[int64]types.OTP
	regs       map[int]types.PendingRegistration
	nextID     int
}

func newMemData() *memData {
	return &memData{
		users:      map[int]types.User{},
		profiles:   map[int]types.Profile{},
		categories: map[int]types.Category{},
		tasks:      map[int]types.Task{},
		otps:       map[int64]types.OTP{},
		regs:       map[int]types.PendingRegistration{},
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.profiles {
		c.profiles[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.tasks {
		c.tasks[k] = v
	}
	for k, v := range d.otps {
		c.otps[k] = v
	}
	for k, v := range d.regs {
		c.regs[k] = v
	}
	c.nextID = d.nextID
	return c
}

func (d *memData) id() int {
	d.nextID++
	return d.nextID
}

// memStore implements Store. Transactions are serialized and roll back by
// restoring a snapshot. A non-nil profileErr fails every profile insert.
type memStore struct {
	mu         sync.Mutex
	data       *memData
	profileErr error
}

func newMemStore() *memStore {
	return &memStore{data: newMemData()}
}

func (s *memStore) Repositories() Repositories {
	return Repositories{
		Users:         memUsers{s},
		Profiles:      memProfiles{s},
		Categories:    memCategories{s},
		Tasks:         memTasks{s},
		OTPs:          memOTPs{s},
		Registrations: memRegistrations{s},
	}
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := fn(ctx, s.Repositories()); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

type memUsers struct{ s *memStore }

func (r memUsers) GetByID(_ context.Context, id int) (types.User, error) {
	u, ok := r.s.data.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, u := range r.s.data.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r memUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	if _, err := r.GetByEmail(ctx, user.Email); err == nil {
		return types.User{}, store.ErrDuplicate
	}
	user.ID = r.s.data.id()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.s.data.users[user.ID] = user
	return user, nil
}

func (r memUsers) UpdatePassword(_ context.Context, id int, hash string) error {
	u, ok := r.s.data.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	r.s.data.users[id] = u
	return nil
}

func (r memUsers) SetActive(_ context.Context, id int, active bool) error {
	u, ok := r.s.data.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.IsActive = active
	r.s.data.users[id] = u
	return nil
}

func (r memUsers) Delete(_ context.Context, id int) error {
	d := r.s.data
	if _, ok := d.users[id]; !ok {
		return store.ErrNotFound
	}
	doomed := map[int]bool{}
	for cid, c := range d.categories {
		if c.OwnedBy(id) {
			doomed[cid] = true
		}
	}
	for uid, p := range d.profiles {
		if uid != id && p.DefaultCategoryID != nil && doomed[*p.DefaultCategoryID] {
			return store.ErrReferenced
		}
	}
	delete(d.users, id)
	delete(d.profiles, id)
	for cid := range doomed {
		delete(d.categories, cid)
	}
	for tid, t := range d.tasks {
		if t.UserID == id {
			delete(d.tasks, tid)
			continue
		}
		if t.CategoryID != nil && doomed[*t.CategoryID] {
			t.CategoryID = nil
			d.tasks[tid] = t
		}
	}
	for oid, o := range d.otps {
		if o.UserID == id {
			delete(d.otps, oid)
		}
	}
	return nil
}

func (r memUsers) List(_ context.Context) ([]types.UserSummary, error) {
	out := make([]types.UserSummary, 0, len(r.s.data.users))
	for _, u := range r.s.data.users {
		summary := types.UserSummary{ID: u.ID, Email: u.Email, IsActive: u.IsActive, Role: types.RoleUser, Status: types.StatusApproved}
		if p, ok := r.s.data.profiles[u.ID]; ok {
			summary.Name, summary.Role, summary.Status = p.Name, p.Role, p.Status
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memProfiles struct{ s *memStore }

func (r memProfiles) Get(_ context.Context, userID int) (types.Profile, error) {
	p, ok := r.s.data.profiles[userID]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (r memProfiles) Ensure(ctx context.Context, userID int) (types.Profile, error) {
	if _, ok := r.s.data.users[userID]; !ok {
		return types.Profile{}, store.ErrReferenced
	}
	if _, ok := r.s.data.profiles[userID]; !ok {
		r.s.data.profiles[userID] = types.Profile{UserID: userID, Role: types.RoleUser, Status: types.StatusApproved, CreatedAt: time.Now()}
	}
	return r.Get(ctx, userID)
}

func (r memProfiles) checkCategory(id *int) error {
	if id == nil {
		return nil
	}
	if _, ok := r.s.data.categories[*id]; !ok {
		return store.ErrReferenced
	}
	return nil
}

func (r memProfiles) Create(_ context.Context, p types.Profile) (types.Profile, error) {
	if r.s.profileErr != nil {
		return types.Profile{}, r.s.profileErr
	}
	if _, ok := r.s.data.profiles[p.UserID]; ok {
		return types.Profile{}, store.ErrDuplicate
	}
	if err := r.checkCategory(p.DefaultCategoryID); err != nil {
		return types.Profile{}, err
	}
	p.CreatedAt = time.Now()
	r.s.data.profiles[p.UserID] = p
	return p, nil
}

func (r memProfiles) Update(_ context.Context, p types.Profile) (types.Profile, error) {
	if _, ok := r.s.data.profiles[p.UserID]; !ok {
		return types.Profile{}, store.ErrNotFound
	}
	if err := r.checkCategory(p.DefaultCategoryID); err != nil {
		return types.Profile{}, err
	}
	r.s.data.profiles[p.UserID] = p
	return p, nil
}

func (r memProfiles) AssignDefaultCategory(_ context.Context, userID, categoryID int) (bool, error) {
	p, ok := r.s.data.profiles[userID]
	if !ok || p.DefaultCategoryID != nil {
		return false, nil
	}
	if err := r.checkCategory(&categoryID); err != nil {
		return false, err
	}
	p.DefaultCategoryID = &categoryID
	r.s.data.profiles[userID] = p
	return true, nil
}

func (r memProfiles) SetRole(_ context.Context, userID int, role types.Role) error {
	p, ok := r.s.data.profiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	p.Role = role
	r.s.data.profiles[userID] = p
	return nil
}

func (r memProfiles) ReferencesCategory(_ context.Context, categoryID int) (bool, error) {
	for _, p := range r.s.data.profiles {
		if p.DefaultCategoryID != nil && *p.DefaultCategoryID == categoryID {
			return true, nil
		}
	}
	return false, nil
}

type memCategories struct{ s *memStore }

func (r memCategories) GetOrCreateDefault(_ context.Context) (types.Category, error) {
	for _, c := range r.s.data.categories {
		if c.Name == types.DefaultCategoryName {
			return c, nil
		}
	}
	c := types.Category{ID: r.s.data.id(), Name: types.DefaultCategoryName, IsGeneral: true, CreatedAt: time.Now()}
	r.s.data.categories[c.ID] = c
	return c, nil
}

func (r memCategories) MarkGeneral(_ context.Context, id int, setGeneral, clearCreator bool) error {
	c, ok := r.s.data.categories[id]
	if !ok {
		return store.ErrNotFound
	}
	if setGeneral {
		c.IsGeneral = true
	}
	if clearCreator {
		c.CreatorID = nil
	}
	r.s.data.categories[id] = c
	return nil
}

func (r memCategories) Get(_ context.Context, id int) (types.Category, error) {
	c, ok := r.s.data.categories[id]
	if !ok {
		return types.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (r memCategories) GetVisible(ctx context.Context, id, viewerID int) (types.Category, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return types.Category{}, err
	}
	if !c.IsGeneral && !c.OwnedBy(viewerID) {
		return types.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (r memCategories) ListVisible(_ context.Context, viewerID int) ([]types.Category, error) {
	out := []types.Category{}
	for _, c := range r.s.data.categories {
		if c.IsGeneral || c.OwnedBy(viewerID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsGeneral != out[j].IsGeneral {
			return out[i].IsGeneral
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memCategories) Create(_ context.Context, c types.Category) (types.Category, error) {
	if !c.Consistent() {
		return types.Category{}, errors.New("check constraint violated")
	}
	c.ID = r.s.data.id()
	c.CreatedAt = time.Now()
	r.s.data.categories[c.ID] = c
	return c, nil
}

func (r memCategories) Rename(_ context.Context, id int, name string) error {
	c, ok := r.s.data.categories[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Name = name
	r.s.data.categories[id] = c
	return nil
}

func (r memCategories) Delete(ctx context.Context, id int) error {
	if _, ok := r.s.data.categories[id]; !ok {
		return store.ErrNotFound
	}
	if referenced, _ := memProfiles(r).ReferencesCategory(ctx, id); referenced {
		return store.ErrReferenced
	}
	delete(r.s.data.categories, id)
	for tid, t := range r.s.data.tasks {
		if t.CategoryID != nil && *t.CategoryID == id {
			t.CategoryID = nil
			r.s.data.tasks[tid] = t
		}
	}
	return nil
}

type memTasks struct{ s *memStore }

func (r memTasks) Get(_ context.Context, id int) (types.Task, error) {
	t, ok := r.s.data.tasks[id]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	return t, nil
}

func (r memTasks) List(_ context.Context, f types.TaskFilter) ([]types.Task, int, error) {
	matched := []types.Task{}
	for _, t := range r.s.data.tasks {
		if f.OwnerID != nil && t.UserID != *f.OwnerID {
			continue
		}
		if f.DueFrom != nil && (t.DueDate == nil || t.DueDate.Before(*f.DueFrom)) {
			continue
		}
		if f.DueTo != nil && (t.DueDate == nil || t.DueDate.After(*f.DueTo)) {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	if f.Offset >= len(matched) {
		return []types.Task{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (r memTasks) Create(_ context.Context, t types.Task) (types.Task, error) {
	t.ID = r.s.data.id()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	r.s.data.tasks[t.ID] = t
	return t, nil
}

func (r memTasks) Update(_ context.Context, t types.Task) (types.Task, error) {
	if _, ok := r.s.data.tasks[t.ID]; !ok {
		return types.Task{}, store.ErrNotFound
	}
	t.UpdatedAt = time.Now()
	r.s.data.tasks[t.ID] = t
	return t, nil
}

func (r memTasks) Delete(_ context.Context, id int) error {
	if _, ok := r.s.data.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.data.tasks, id)
	return nil
}

type memOTPs struct{ s *memStore }

func (r memOTPs) Create(_ context.Context, o types.OTP) (types.OTP, error) {
	o.ID = int64(r.s.data.id())
	o.IsUsed = false
	r.s.data.otps[o.ID] = o
	return o, nil
}

func (r memOTPs) InvalidateActive(_ context.Context, userID int) (int64, error) {
	var n int64
	for id, o := range r.s.data.otps {
		if o.UserID == userID && !o.IsUsed {
			o.IsUsed = true
			r.s.data.otps[id] = o
			n++
		}
	}
	return n, nil
}

func (r memOTPs) FindUnused(_ context.Context, userID int, code string) (types.OTP, error) {
	var (
		best  types.OTP
		found bool
	)
	for _, o := range r.s.data.otps {
		if o.UserID != userID || o.Code != code || o.IsUsed {
			continue
		}
		if !found || o.CreatedAt.After(best.CreatedAt) || (o.CreatedAt.Equal(best.CreatedAt) && o.ID > best.ID) {
			best, found = o, true
		}
	}
	if !found {
		return types.OTP{}, store.ErrNotFound
	}
	return best, nil
}

func (r memOTPs) MarkUsed(_ context.Context, id int64) error {
	o, ok := r.s.data.otps[id]
	if !ok || o.IsUsed {
		return store.ErrNotFound
	}
	o.IsUsed = true
	r.s.data.otps[id] = o
	return nil
}

type memRegistrations struct{ s *memStore }

func (r memRegistrations) Create(ctx context.Context, reg types.PendingRegistration) (types.PendingRegistration, error) {
	if _, err := r.GetByEmail(ctx, reg.Email); err == nil {
		return types.PendingRegistration{}, store.ErrDuplicate
	}
	reg.ID = r.s.data.id()
	reg.CreatedAt = time.Now()
	r.s.data.regs[reg.ID] = reg
	return reg, nil
}

func (r memRegistrations) Get(_ context.Context, id int) (types.PendingRegistration, error) {
	reg, ok := r.s.data.regs[id]
	if !ok {
		return types.PendingRegistration{}, store.ErrNotFound
	}
	return reg, nil
}

func (r memRegistrations) GetByEmail(_ context.Context, email string) (types.PendingRegistration, error) {
	for _, reg := range r.s.data.regs {
		if strings.EqualFold(reg.Email, email) {
			return reg, nil
		}
	}
	return types.PendingRegistration{}, store.ErrNotFound
}

func (r memRegistrations) ListPending(_ context.Context) ([]types.PendingRegistration, error) {
	out := []types.PendingRegistration{}
	for _, reg := range r.s.data.regs {
		if reg.Status == types.StatusPending {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memRegistrations) Delete(_ context.Context, id int) error {
	if _, ok := r.s.data.regs[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.data.regs, id)
	return nil
}

// seedUser inserts an active account with a bare profile of the given role.
func (s *memStore) seedUser(email string, role types.Role) types.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, err := hashPassword("password123")
	if err != nil {
		panic(err)
	}
	u := types.User{ID: s.data.id(), Email: email, PasswordHash: hash, IsActive: true, CreatedAt: time.Now()}
	s.data.users[u.ID] = u
	s.data.profiles[u.ID] = types.Profile{UserID: u.ID, Role: role, Status: types.StatusApproved}
	return u
}

func (s *memStore) profile(userID int) types.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.profiles[userID]
}

func (s *memStore) categoriesNamed(name string) []types.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Category
	for _, c := range s.data.categories {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (s *memStore) otpsOf(userID int) []types.OTP {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.OTP
	for _, o := range s.data.otps {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

type memDenylist struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDenylist) Consume(_ context.Context, jti string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[jti] {
		return false, nil
	}
	d.seen[jti] = true
	return true, nil
}
