package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
	tsclient "github.com/zatekoja/campuslink/backend/internal/infrastructure/clients/typesense"
)

const (
	maxSearchHits = 250
	queryBy       = "name,tags,search_terms,description"
	// one infix mode per queryBy field
	queryInfix = "always,always,always,always"
)

// TypesenseAdapter implements utility text search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.UtilitySearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// Index upserts a utility document
func (a *TypesenseAdapter) Index(ctx context.Context, utility *entities.Utility) error {
	_, err := a.client.Client().Collection(tsclient.UtilitiesCollection).Documents().Upsert(ctx, utilityDocument(utility))
	if err != nil {
		return fmt.Errorf("failed to index utility: %w", err)
	}
	return nil
}

// Delete removes a utility from index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.UtilitiesCollection).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete utility from index: %w", err)
	}
	return nil
}

// Search returns IDs of utilities matching query, best match first. At most
// maxSearchHits IDs are returned, so callers use them for ranking only.
func (a *TypesenseAdapter) Search(ctx context.Context, query string, filter entities.UtilityFilter) ([]string, error) {
	params := &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String(queryBy),
		Infix:   pointer.String(queryInfix),
		PerPage: pointer.Int(maxSearchHits),
	}
	if f := filterBy(filter); f != "" {
		params.FilterBy = pointer.String(f)
	}

	result, err := a.client.Client().Collection(tsclient.UtilitiesCollection).Documents().Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search utilities: %w", err)
	}
	if result.Hits == nil {
		return []string{}, nil
	}

	ids := make([]string, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func utilityDocument(u *entities.Utility) map[string]interface{} {
	return map[string]interface{}{
		"id":                  u.ID,
		"name":                u.Name,
		"description":         u.Description,
		"tags":                u.Tags,
		"search_terms":        buildSearchTerms(u),
		"category":            string(u.Category),
		"verification_status": string(u.Verification.State()),
		"added_by":            u.AddedBy,
		"is_active":           u.IsActive,
		"location":            []float64{u.Location.Latitude, u.Location.Longitude},
		"rating":              u.Rating,
		"created_at":          u.CreatedAt.Unix(),
	}
}

// buildSearchTerms lowercases and de-duplicates the name, category and tags
func buildSearchTerms(u *entities.Utility) []string {
	if u == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var terms []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		terms = append(terms, s)
	}

	add(u.Name)
	add(string(u.Category))
	for _, tag := range u.Tags {
		add(tag)
	}
	return terms
}

func filterBy(f entities.UtilityFilter) string {
	var clauses []string
	if f.OnlyVisible {
		clauses = append(clauses, "is_active:=true", "verification_status:="+string(entities.VerificationVerified))
	}
	if f.Category != nil {
		clauses = append(clauses, "category:="+string(*f.Category))
	}
	if f.AddedBy != "" {
		clauses = append(clauses, "added_by:=`"+f.AddedBy+"`")
	}
	if f.State != nil {
		clauses = append(clauses, "verification_status:="+string(*f.State))
	}
	if f.Verified != nil {
		op := ":="
		if !*f.Verified {
			op = ":!="
		}
		clauses = append(clauses, "verification_status"+op+string(entities.VerificationVerified))
	}
	return strings.Join(clauses, " && ")
}
