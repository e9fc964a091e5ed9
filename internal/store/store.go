// Package store keeps users, crime reports and their status history in memory
// and persists them as a msgpack snapshot.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabrielmiguelok/crimedesk/pkg/state"
)

// Common store errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username taken")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidInput  = errors.New("invalid input")
	ErrClosed        = errors.New("store closed")
)

// Report statuses.
const (
	StatusPending       = "Pending"
	StatusInvestigating = "Investigating"
	StatusResolved      = "Resolved"
)

// Statuses lists every valid status in workflow order.
var Statuses = []string{StatusPending, StatusInvestigating, StatusResolved}

// ValidStatus reports whether s is a known status.
func ValidStatus(s string) bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// DefaultLocation is stored when a report is filed without one.
const DefaultLocation = "Unknown"

// User is a registered account.
type User struct {
	ID           int64     `msgpack:"id"`
	Username     string    `msgpack:"username"`
	PasswordHash string    `msgpack:"password_hash"`
	IsAdmin      bool      `msgpack:"is_admin"`
	CreatedAt    time.Time `msgpack:"created_at"`
}

// Report is a filed crime report.
type Report struct {
	ID                    int64     `msgpack:"id"`
	UserID                int64     `msgpack:"user_id"`
	CrimeType             string    `msgpack:"crime_type"`
	Description           string    `msgpack:"description"`
	Location              string    `msgpack:"location"`
	Additional            string    `msgpack:"additional"`
	Status                string    `msgpack:"status"`
	Timestamp             time.Time `msgpack:"timestamp"`
	Attachment            string    `msgpack:"attachment"`
	Latitude              *float64  `msgpack:"latitude"`
	Longitude             *float64  `msgpack:"longitude"`
	VerificationRequested bool      `msgpack:"verification_requested"`
	IsVerified            bool      `msgpack:"is_verified"`
}

// Audit records one status change of a report.
type Audit struct {
	ID        int64     `msgpack:"id"`
	ReportID  int64     `msgpack:"report_id"`
	OldStatus string    `msgpack:"old_status"`
	NewStatus string    `msgpack:"new_status"`
	ChangedBy int64     `msgpack:"changed_by"`
	Timestamp time.Time `msgpack:"timestamp"`
}

type snapshot struct {
	Users   []User   `msgpack:"users"`
	Reports []Report `msgpack:"reports"`
	Audits  []Audit  `msgpack:"audits"`
}

// Store is an in-memory repository guarded by a RWMutex.
// When opened with a path every write is persisted before returning.
type Store struct {
	users   map[int64]*User
	byName  map[string]int64
	reports map[int64]*Report
	audits  map[int64][]Audit

	lastUser   int64
	lastReport int64
	lastAudit  int64

	path   string
	codec  *state.MsgPackSerializer
	now    func() time.Time
	closed bool

	mu sync.RWMutex
}

// New creates an empty store that is never persisted.
func New() *Store {
	return &Store{
		users:   make(map[int64]*User),
		byName:  make(map[string]int64),
		reports: make(map[int64]*Report),
		audits:  make(map[int64][]Audit),
		codec:   state.NewMsgPackSerializer(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Open loads the snapshot at path, if any, and persists to it afterwards.
func Open(path string) (*Store, error) {
	s := New()
	s.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := s.codec.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	s.load(snap)
	return s, nil
}

func (s *Store) load(snap snapshot) {
	for i := range snap.Users {
		u := snap.Users[i]
		s.users[u.ID] = &u
		s.byName[u.Username] = u.ID
		s.lastUser = max(s.lastUser, u.ID)
	}
	for i := range snap.Reports {
		r := snap.Reports[i]
		s.reports[r.ID] = &r
		s.lastReport = max(s.lastReport, r.ID)
	}
	for _, a := range snap.Audits {
		s.audits[a.ReportID] = append(s.audits[a.ReportID], a)
		s.lastAudit = max(s.lastAudit, a.ID)
	}
}

// persist writes the snapshot atomically. Callers hold the write lock.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}

	snap := snapshot{
		Users:   make([]User, 0, len(s.users)),
		Reports: make([]Report, 0, len(s.reports)),
	}
	for _, u := range s.users {
		snap.Users = append(snap.Users, *u)
	}
	for _, r := range s.reports {
		snap.Reports = append(snap.Reports, *r)
	}
	for _, list := range s.audits {
		snap.Audits = append(snap.Audits, list...)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })
	sort.Slice(snap.Reports, func(i, j int) bool { return snap.Reports[i].ID < snap.Reports[j].ID })
	sort.Slice(snap.Audits, func(i, j int) bool { return snap.Audits[i].ID < snap.Audits[j].ID })

	data, err := s.codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Path returns the snapshot file, or "" for a memory-only store.
func (s *Store) Path() string {
	return s.path
}

// Ping reports whether the store still accepts operations.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Close writes a final snapshot and rejects further writes.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.persist()
}

// writable is called with the write lock held.
func (s *Store) writable(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// CreateUser registers a user. Usernames are unique and compared exactly.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, admin bool) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || passwordHash == "" {
		return User{}, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(ctx); err != nil {
		return User{}, err
	}
	if _, taken := s.byName[username]; taken {
		return User{}, ErrUsernameTaken
	}

	s.lastUser++
	u := &User{
		ID:           s.lastUser,
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      admin,
		CreatedAt:    s.now(),
	}
	s.users[u.ID] = u
	s.byName[username] = u.ID

	if err := s.persist(); err != nil {
		return User{}, err
	}
	return *u, nil
}

// EnsureUser creates the user unless the username already exists.
// It reports whether a user was created.
func (s *Store) EnsureUser(ctx context.Context, username, passwordHash string, admin bool) (bool, error) {
	_, err := s.CreateUser(ctx, username, passwordHash, admin)
	switch {
	case errors.Is(err, ErrUsernameTaken):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// User returns the user with id.
func (s *Store) User(ctx context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

// UserByName returns the user with username.
func (s *Store) UserByName(ctx context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return *s.users[id], nil
}

// Users returns every user ordered by id.
func (s *Store) Users(ctx context.Context) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateReport stores r for an existing user. ID, Timestamp and Status are
// assigned here; a blank location becomes DefaultLocation.
func (s *Store) CreateReport(ctx context.Context, r Report) (Report, error) {
	r.CrimeType = strings.TrimSpace(r.CrimeType)
	r.Description = strings.TrimSpace(r.Description)
	r.Location = strings.TrimSpace(r.Location)
	if r.CrimeType == "" || r.Description == "" {
		return Report{}, fmt.Errorf("%w: crime type and description are required", ErrInvalidInput)
	}
	if r.Location == "" {
		r.Location = DefaultLocation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(ctx); err != nil {
		return Report{}, err
	}
	if _, ok := s.users[r.UserID]; !ok {
		return Report{}, fmt.Errorf("report owner %d: %w", r.UserID, ErrNotFound)
	}

	s.lastReport++
	r.ID = s.lastReport
	r.Status = StatusPending
	r.Timestamp = s.now()
	stored := r
	s.reports[r.ID] = &stored

	if err := s.persist(); err != nil {
		return Report{}, err
	}
	return r, nil
}

// Report returns the report with id.
func (s *Store) Report(ctx context.Context, id int64) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return Report{}, ErrNotFound
	}
	return *r, nil
}

// ReportByAttachment returns the report that owns an attachment key.
func (s *Store) ReportByAttachment(ctx context.Context, key string) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if key != "" && r.Attachment == key {
			return *r, nil
		}
	}
	return Report{}, ErrNotFound
}

// ReportWithHistory pairs a report with its audit trail.
type ReportWithHistory struct {
	Report
	Audits []Audit
}

// ReportsByUser returns a user's reports, newest first, with their audit trail.
func (s *Store) ReportsByUser(ctx context.Context, userID int64) []ReportWithHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ReportWithHistory
	for _, r := range s.reports {
		if r.UserID != userID {
			continue
		}
		out = append(out, ReportWithHistory{
			Report: *r,
			Audits: append([]Audit(nil), s.audits[r.ID]...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].Report, out[j].Report) })
	return out
}

// Audits returns the status history of a report, oldest first.
func (s *Store) Audits(ctx context.Context, reportID int64) []Audit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Audit(nil), s.audits[reportID]...)
}

// UpdateStatus sets a report's status and appends an Audit row.
func (s *Store) UpdateStatus(ctx context.Context, reportID int64, status string, changedBy int64) (Audit, error) {
	if !ValidStatus(status) {
		return Audit{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(ctx); err != nil {
		return Audit{}, err
	}
	r, ok := s.reports[reportID]
	if !ok {
		return Audit{}, ErrNotFound
	}

	s.lastAudit++
	a := Audit{
		ID:        s.lastAudit,
		ReportID:  reportID,
		OldStatus: r.Status,
		NewStatus: status,
		ChangedBy: changedBy,
		Timestamp: s.now(),
	}
	r.Status = status
	s.audits[reportID] = append(s.audits[reportID], a)

	if err := s.persist(); err != nil {
		return Audit{}, err
	}
	return a, nil
}

func newer(a, b Report) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}
