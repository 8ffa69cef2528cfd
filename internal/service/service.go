package service

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"resaleledger/backend/internal/cache"
	"resaleledger/backend/internal/domain"
	"resaleledger/backend/internal/store"
	"resaleledger/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	StockTTL    time.Duration
	Reference   domain.ReferenceData
	MonthLocale string
	Location    *time.Location
}

type Service struct {
	repo       store.Repository
	stockCache cache.StockCache
	stockTTL   time.Duration
	reference  domain.ReferenceData
	locale     string
	loc        *time.Location
	now        func() time.Time

	stockGroup    singleflight.Group
	stockMu       sync.Mutex
	stockVersions map[string]uint64
}

func New(repo store.Repository, stockCache cache.StockCache, opts Options) *Service {
	if stockCache == nil {
		stockCache = cache.NoopStockCache{}
	}
	if opts.StockTTL <= 0 {
		opts.StockTTL = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MonthLocale == "" {
		opts.MonthLocale = "pt-BR"
	}

	return &Service{
		repo:          repo,
		stockCache:    stockCache,
		stockTTL:      opts.StockTTL,
		reference:     normalizeReference(opts.Reference),
		locale:        opts.MonthLocale,
		loc:           opts.Location,
		now:           func() time.Time { return time.Now().UTC() },
		stockVersions: make(map[string]uint64),
	}
}

func (s *Service) requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.UserID) == "" {
		return domain.Actor{}, fmt.Errorf("%w: authenticated user required", store.ErrPermission)
	}
	return actor, nil
}

func (s *Service) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, actor.UserID, includeInactive)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		UserID:  actor.UserID,
		Name:    strings.TrimSpace(req.Name),
		Model:   strings.TrimSpace(req.Model),
		Storage: strings.TrimSpace(req.Storage),
		Color:   strings.TrimSpace(req.Color),
	}
	if product.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrValidation)
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,storage=%s,color=%s", created.Name, created.Storage, created.Color))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, actor.UserID, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
		}
		updated.Name = name
	}
	if req.Model != nil {
		updated.Model = strings.TrimSpace(*req.Model)
	}
	if req.Storage != nil {
		updated.Storage = strings.TrimSpace(*req.Storage)
	}
	if req.Color != nil {
		updated.Color = strings.TrimSpace(*req.Color)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateStock(ctx, actor.UserID)
	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("name=%s,active=%t", saved.Name, saved.Active))
	return *saved, nil
}

// DeleteProduct removes a product that was never purchased. Products with
// purchases are deactivated instead so their history stays intact.
func (s *Service) DeleteProduct(ctx context.Context, id string) (domain.ProductDeleteResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.ProductDeleteResponse{}, err
	}

	id = strings.TrimSpace(id)
	existing, err := s.repo.GetProduct(ctx, actor.UserID, id)
	if err != nil {
		return domain.ProductDeleteResponse{}, err
	}

	referenced, err := s.repo.CountPurchasesByProduct(ctx, actor.UserID, id)
	if err != nil {
		return domain.ProductDeleteResponse{}, err
	}

	if referenced > 0 {
		deactivated := *existing
		deactivated.Active = false
		if _, err := s.repo.UpdateProduct(ctx, deactivated); err != nil {
			return domain.ProductDeleteResponse{}, err
		}
		s.logAudit(ctx, "product_deactivate", "product", id, fmt.Sprintf("purchases=%d", referenced))
		return domain.ProductDeleteResponse{ProductID: id, Deactivated: true}, nil
	}

	if err := s.repo.DeleteProduct(ctx, actor.UserID, id); err != nil {
		return domain.ProductDeleteResponse{}, err
	}
	s.invalidateStock(ctx, actor.UserID)
	s.logAudit(ctx, "product_delete", "product", id, "name="+existing.Name)
	return domain.ProductDeleteResponse{ProductID: id, Deleted: true}, nil
}

func (s *Service) Reference() domain.ReferenceData {
	return domain.ReferenceData{
		Accounts:       slices.Clone(s.reference.Accounts),
		ClubsAndStores: slices.Clone(s.reference.ClubsAndStores),
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	date = strings.TrimSpace(date)
	if date == "" {
		date = s.now().In(s.loc).Format("2006-01-02")
	}
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrValidation)
	}
	from := day.UTC()
	to := day.AddDate(0, 0, 1).UTC()

	return s.repo.ListAuditLogs(ctx, actor.UserID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		UserID:        actor.UserID,
		ActorUsername: actor.Username,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

// checkReference warns about labels outside the configured lists. Free text
// stays accepted.
func (s *Service) checkReference(account string, clubAndStore string) {
	if account != "" && len(s.reference.Accounts) > 0 && !containsFold(s.reference.Accounts, account) {
		log.Printf("[service] WARN: account %q is not in the configured reference list", account)
	}
	if clubAndStore != "" && len(s.reference.ClubsAndStores) > 0 && !containsFold(s.reference.ClubsAndStores, clubAndStore) {
		log.Printf("[service] WARN: club/store %q is not in the configured reference list", clubAndStore)
	}
}

func normalizeReference(ref domain.ReferenceData) domain.ReferenceData {
	return domain.ReferenceData{
		Accounts:       compactLabels(ref.Accounts),
		ClubsAndStores: compactLabels(ref.ClubsAndStores),
	}
}

func compactLabels(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || containsFold(out, value) {
			continue
		}
		out = append(out, value)
	}
	return out
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(value, target) {
			return true
		}
	}
	return false
}
