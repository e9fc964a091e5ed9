package store

import (
	"context"
	"sort"
	"strings"
)

// DefaultPageSize is the number of rows on one admin page.
const DefaultPageSize = 15

// Listing is a report joined with its author's username.
type Listing struct {
	Report
	Username string
}

// Totals counts the filtered reports by status.
type Totals struct {
	Total         int
	Pending       int
	Investigating int
	Resolved      int
}

// Query selects reports for the admin panel.
type Query struct {
	// Text is matched case-insensitively against description, location,
	// crime type and author username. Blank matches everything.
	Text     string
	Page     int
	PageSize int
}

// Page is one page of search results.
type Page struct {
	Reports    []Listing
	Totals     Totals
	Page       int
	TotalPages int
}

// Search filters reports, computes totals over the whole filtered set and then
// returns the requested page ordered newest first. Pages below 1 are treated
// as 1; pages past the end are empty.
func (s *Store) Search(ctx context.Context, q Query) Page {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}

	matched := s.filter(q.Text)

	var totals Totals
	for _, l := range matched {
		totals.Total++
		switch l.Status {
		case StatusPending:
			totals.Pending++
		case StatusInvestigating:
			totals.Investigating++
		case StatusResolved:
			totals.Resolved++
		}
	}

	sort.Slice(matched, func(i, j int) bool { return newer(matched[i].Report, matched[j].Report) })

	pages := len(matched) / q.PageSize
	if len(matched)%q.PageSize != 0 || pages == 0 {
		pages++
	}

	// Bounded by pages first so the offset cannot overflow.
	var rows []Listing
	if q.Page <= pages {
		start := (q.Page - 1) * q.PageSize
		rows = matched[start : start+min(q.PageSize, len(matched)-start)]
	}

	return Page{
		Reports:    rows,
		Totals:     totals,
		Page:       q.Page,
		TotalPages: pages,
	}
}

// Export returns every report matching text ordered by id.
func (s *Store) Export(ctx context.Context, text string) []Listing {
	matched := s.filter(text)
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched
}

func (s *Store) filter(text string) []Listing {
	needle := strings.ToLower(strings.TrimSpace(text))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Listing, 0, len(s.reports))
	for _, r := range s.reports {
		username := ""
		if u, ok := s.users[r.UserID]; ok {
			username = u.Username
		}
		if needle != "" && !matches(needle, r.Description, r.Location, r.CrimeType, username) {
			continue
		}
		out = append(out, Listing{Report: *r, Username: username})
	}
	return out
}

func matches(needle string, haystacks ...string) bool {
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}
