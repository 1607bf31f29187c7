// Package catalog resolves free-text or numeric complaint-type hints against
// the active type catalog.
package catalog

import (
	"context"
	"strconv"
	"strings"

	"civico/backend/internal/models"
	"civico/backend/internal/storage"
)

// wasteSynonyms is the fixed keyword fallback: common ways citizens refer to
// the waste-collection type without naming it.
var wasteSynonyms = []string{"trash", "garbage", "sanitation", "basura", "aseo"}

// Service answers catalog queries on top of the storage layer.
type Service struct {
	Storage storage.Storage
}

// NewService creates a new catalog service.
func NewService(s storage.Storage) *Service {
	return &Service{Storage: s}
}

// ActiveTypes lists the catalog entries offered for new complaints.
func (s *Service) ActiveTypes(ctx context.Context) ([]models.ComplaintType, error) {
	return s.Storage.ActiveTypes(ctx)
}

// ResolveHint maps a hint to a type id against the active catalog. A miss is
// (0, false), never an error: the caller keeps asking.
func (s *Service) ResolveHint(ctx context.Context, hint string) (uint, bool, error) {
	types, err := s.Storage.ActiveTypes(ctx)
	if err != nil {
		return 0, false, err
	}
	id, ok := Resolve(hint, types)
	return id, ok, nil
}

// Resolve matches a hint against active types. Attempts in order, first
// match wins: numeric id, case-insensitive substring match in either
// direction against the label, per-type keyword match, then the fixed
// waste-synonym fallback.
func Resolve(hint string, types []models.ComplaintType) (uint, bool) {
	n := strings.ToLower(strings.TrimSpace(hint))
	if n == "" {
		return 0, false
	}

	if id, err := strconv.Atoi(n); err == nil && id > 0 {
		for _, t := range types {
			if t.ID == uint(id) {
				return t.ID, true
			}
		}
	}

	for _, t := range types {
		label := strings.ToLower(strings.TrimSpace(t.Name))
		if label == "" {
			continue
		}
		if strings.Contains(label, n) || strings.Contains(n, label) {
			return t.ID, true
		}
	}

	for _, t := range types {
		for _, kw := range t.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if strings.Contains(n, kw) || strings.Contains(kw, n) {
				return t.ID, true
			}
		}
	}

	for _, syn := range wasteSynonyms {
		if !strings.Contains(n, syn) {
			continue
		}
		for _, t := range types {
			label := strings.ToLower(t.Name)
			if strings.Contains(label, "waste") || strings.Contains(label, "basura") {
				return t.ID, true
			}
		}
	}

	return 0, false
}
