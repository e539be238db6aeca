package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/cache"
	"github.com/pr0br0/cyboard/internal/config"
	"github.com/pr0br0/cyboard/internal/db"
	"github.com/pr0br0/cyboard/internal/events"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/storage"
	"github.com/pr0br0/cyboard/internal/utils"
)

const (
	// IncomingPrefix holds client uploads that still need normalizing.
	IncomingPrefix = "incoming"
	// ListingImagePrefix holds normalized listing images.
	ListingImagePrefix = "listings"

	MaxListingImages     = 10
	ReportDescriptionMax = 500
	slugRetries          = 3
	expireBatchSize      = 200
)

// viewMilestones trigger a listing_view notification to the author.
var viewMilestones = map[int]bool{100: true, 500: true, 1000: true, 5000: true}

func viewKey(listingID utils.SixID, visitor string) string {
	return "views:" + listingID.String() + ":" + visitor
}

// ImageScheduler queues normalization of an image uploaded straight to storage.
type ImageScheduler interface {
	ScheduleImageProcessing(ctx context.Context, listingID, imageID utils.SixID) error
}

type IListingService interface {
	Create(ctx context.Context, actor Actor, in models.ListingInput) (*models.Listing, error)
	// Get returns a listing visible to actor and counts the view once per visitor.
	// visitor identifies anonymous callers, usually by client IP.
	Get(ctx context.Context, actor Actor, id utils.SixID, visitor string) (*models.Listing, error)
	Update(ctx context.Context, actor Actor, id utils.SixID, patch models.ListingPatch) (*models.Listing, error)
	Delete(ctx context.Context, actor Actor, id utils.SixID) error
	ListByUser(ctx context.Context, actor Actor, userID utils.SixID, page, limit int) (*ListingPage, error)

	AddImages(ctx context.Context, actor Actor, id utils.SixID, images []models.ImageInput) (*models.Listing, error)
	DeleteImage(ctx context.Context, actor Actor, id, imageID utils.SixID) (*models.Listing, error)
	ReorderImages(ctx context.Context, actor Actor, id utils.SixID, order []utils.SixID) (*models.Listing, error)
	SetMainImage(ctx context.Context, actor Actor, id, imageID utils.SixID) (*models.Listing, error)
	// ProcessImage normalizes an image that was uploaded through a presigned URL.
	ProcessImage(ctx context.Context, listingID, imageID utils.SixID) error

	ToggleFavorite(ctx context.Context, actor Actor, id utils.SixID) (bool, error)
	Favorites(ctx context.Context, actor Actor, page, limit int) (*ListingPage, error)
	Report(ctx context.Context, actor Actor, id utils.SixID, reason models.ReportReason, description string) error
	Extend(ctx context.Context, actor Actor, id utils.SixID) (*models.Listing, error)
	SetStatus(ctx context.Context, actor Actor, id utils.SixID, status models.ListingStatus, note string) (*models.Listing, error)
	// ExpireDue moves active listings past expiresAt to expired and notifies their authors.
	ExpireDue(ctx context.Context) (int, error)
}

type listingService struct {
	store         *repository.Store
	categories    ICategoryService
	cascade       ICascadeService
	notifications INotificationService
	cache         cache.Store
	objects       storage.ObjectStore
	images        ImageScheduler
	publisher     events.Publisher
	cfg           config.ListingsConfig
	maxDimension  int
	logger        *zap.Logger
	now           func() time.Time
}

// NewListingService wires the listing lifecycle. images may be nil, in which case
// presigned uploads are kept as uploaded.
func NewListingService(store *repository.Store, categories ICategoryService, cascade ICascadeService,
	notifications INotificationService, c cache.Store, objects storage.ObjectStore, images ImageScheduler,
	publisher events.Publisher, cfg config.ListingsConfig, maxDimension int, logger *zap.Logger) IListingService {
	return &listingService{
		store:         store,
		categories:    categories,
		cascade:       cascade,
		notifications: notifications,
		cache:         c,
		objects:       objects,
		images:        images,
		publisher:     publisher,
		cfg:           cfg,
		maxDimension:  maxDimension,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func validateLocalized(v *validator, field string, l models.Localized, min, max int) {
	for _, lang := range models.Languages {
		text := strings.TrimSpace(localizedField(l, lang))
		n := utf8.RuneCountInString(text)
		switch {
		case n == 0:
			v.add(field+"."+lang, "Required")
		case n < min || n > max:
			v.add(field+"."+lang, fmt.Sprintf("Must be between %d and %d characters", min, max))
		}
	}
}

func localizedField(l models.Localized, lang string) string {
	switch lang {
	case models.LangRu:
		return l.Ru
	case models.LangEl:
		return l.El
	default:
		return l.En
	}
}

func trimLocalized(l models.Localized) models.Localized {
	return models.Localized{En: strings.TrimSpace(l.En), Ru: strings.TrimSpace(l.Ru), El: strings.TrimSpace(l.El)}
}

func validatePrice(v *validator, p models.Price) {
	v.check(p.Amount >= 0 && p.Amount <= models.PriceMax, "price.amount", "Must be between 0 and 999999999")
	v.check(models.IsCurrency(p.Currency), "price.currency", "Must be EUR or USD")
}

func validateLocation(v *validator, loc models.ListingLocation) {
	v.check(strings.TrimSpace(loc.City) != "", "location.city", "Required")
	if p := loc.Point; p != nil {
		lng, lat := p.Coordinates[0], p.Coordinates[1]
		v.check(lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180, "location.point", "Invalid coordinates")
	}
}

func validateImages(v *validator, images []models.ImageInput) {
	for i, img := range images {
		field := "images." + strconv.Itoa(i)
		if strings.TrimSpace(img.URL) == "" {
			v.add(field+".url", "Required")
		}
		if img.StorageKey != "" {
			if err := storage.ValidKey(img.StorageKey); err != nil {
				v.add(field+".storageKey", "Invalid storage key")
			}
		}
	}
}

func (s *listingService) activeCategory(ctx context.Context, v *validator, id utils.SixID) {
	if id.IsZero() {
		v.add("category", "Required")
		return
	}
	c, err := s.store.Categories.FindByID(ctx, id)
	if err != nil || !c.IsActive {
		v.add("category", "Category not found")
	}
}

// appendImages adds images after the existing ones. The first image of an empty listing becomes main.
func appendImages(l *models.Listing, in []models.ImageInput) []models.ListingImage {
	added := make([]models.ListingImage, 0, len(in))
	for _, img := range in {
		li := models.ListingImage{
			ID:         utils.NewSixID(),
			URL:        strings.TrimSpace(img.URL),
			StorageKey: img.StorageKey,
			Order:      len(l.Images),
			Main:       len(l.Images) == 0,
		}
		l.Images = append(l.Images, li)
		added = append(added, li)
	}
	return added
}

func listingSlug(title string, id utils.SixID) string {
	suffix := strings.ToLower(id.String()[:6])
	base := utils.Slugify(title)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

func (s *listingService) Create(ctx context.Context, actor Actor, in models.ListingInput) (*models.Listing, error) {
	if actor.Anonymous() {
		return nil, ErrUnauthorized
	}
	in.Title = trimLocalized(in.Title)
	in.Description = trimLocalized(in.Description)

	var v validator
	validateLocalized(&v, "title", in.Title, models.TitleMinLen, models.TitleMaxLen)
	validateLocalized(&v, "description", in.Description, models.DescriptionMinLen, models.DescriptionMaxLen)
	validatePrice(&v, in.Price)
	validateLocation(&v, in.Location)
	v.check(len(in.Images) > 0, "images", "At least one image is required")
	v.check(len(in.Images) <= MaxListingImages, "images", fmt.Sprintf("At most %d images", MaxListingImages))
	validateImages(&v, in.Images)
	s.activeCategory(ctx, &v, in.Category)
	if err := v.err(); err != nil {
		return nil, err
	}

	now := s.now()
	status := models.ListingActive
	if s.cfg.Moderation {
		status = models.ListingPending
	}
	l := &models.Listing{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		Location:    in.Location,
		Images:      []models.ListingImage{},
		Author:      actor.UserID,
		Status:      status,
		ExpiresAt:   now.Add(s.cfg.TTL()),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	added := appendImages(l, in.Images)

	isDup := func(err error) bool { return errors.Is(err, repository.ErrDuplicate) }
	err := db.WithRetries(func() error {
		l.GenID()
		l.Slug = listingSlug(l.Title.En, l.ID)
		return s.store.Listings.Create(ctx, l)
	}, slugRetries, isDup)
	if err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	if err := s.store.Users.AddListing(ctx, actor.UserID, l.ID); err != nil {
		s.logger.Error("Failed to attach listing to author", zap.String("listing_id", l.ID.String()), zap.Error(err))
	}
	s.recount(ctx, l.Category)
	s.scheduleIncoming(ctx, l.ID, added)
	s.publish(ctx, events.SubjectListingCreated, l)

	s.logger.Info("Listing created", zap.String("listing_id", l.ID.String()), zap.String("author_id", actor.UserID.String()),
		zap.String("status", string(l.Status)))
	return l, nil
}

func (s *listingService) recount(ctx context.Context, categoryID utils.SixID) {
	if err := s.categories.UpdateListingCount(ctx, categoryID); err != nil {
		s.logger.Warn("Failed to recount category", zap.String("category_id", categoryID.String()), zap.Error(err))
	}
}

func (s *listingService) publish(ctx context.Context, subject string, l *models.Listing) {
	err := s.publisher.Publish(ctx, subject, events.ListingEvent{
		ListingID:  l.ID.String(),
		AuthorID:   l.Author.String(),
		CategoryID: l.Category.String(),
		Status:     string(l.Status),
		At:         s.now(),
	})
	if err != nil {
		s.logger.Warn("Failed to publish listing event", zap.String("subject", subject), zap.String("listing_id", l.ID.String()), zap.Error(err))
	}
}

// scheduleIncoming queues normalization for images still under IncomingPrefix.
func (s *listingService) scheduleIncoming(ctx context.Context, listingID utils.SixID, images []models.ListingImage) {
	if s.images == nil {
		return
	}
	for _, img := range images {
		if !strings.HasPrefix(img.StorageKey, IncomingPrefix+"/") {
			continue
		}
		if err := s.images.ScheduleImageProcessing(ctx, listingID, img.ID); err != nil {
			s.logger.Warn("Failed to schedule image processing", zap.String("listing_id", listingID.String()),
				zap.String("key", img.StorageKey), zap.Error(err))
		}
	}
}

// canSee reports whether actor may read l.
func (s *listingService) canSee(actor Actor, l *models.Listing) bool {
	if l.IsLive(s.now()) {
		return true
	}
	if l.Status == models.ListingDeleted {
		return actor.Can(models.CapViewHiddenListings)
	}
	return actor.Owns(l.Author) || actor.Can(models.CapViewHiddenListings)
}

// redactReports drops report details from listings read by actors who cannot moderate.
func redactReports(actor Actor, listings ...*models.Listing) *models.Listing {
	if !actor.Can(models.CapModerateListings) {
		for _, l := range listings {
			l.Reports = nil
		}
	}
	if len(listings) == 0 {
		return nil
	}
	return listings[0]
}

func (s *listingService) Get(ctx context.Context, actor Actor, id utils.SixID, visitor string) (*models.Listing, error) {
	l, err := s.view(ctx, actor, id, visitor)
	if err != nil {
		return nil, err
	}
	return redactReports(actor, l), nil
}

// view loads a visible listing and counts a deduplicated view for non-authors.
func (s *listingService) view(ctx context.Context, actor Actor, id utils.SixID, visitor string) (*models.Listing, error) {
	l, err := s.store.Listings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canSee(actor, l) {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if actor.Owns(l.Author) {
		return l, nil
	}

	if !actor.Anonymous() {
		visitor = actor.UserID.String()
	}
	if visitor == "" {
		return l, nil
	}
	fresh, err := s.cache.SetNX(ctx, viewKey(l.ID, visitor), s.cfg.ViewDedupTTL)
	if err != nil {
		s.logger.Warn("View dedup check failed", zap.String("listing_id", l.ID.String()), zap.Error(err))
		return l, nil
	}
	if !fresh {
		return l, nil
	}
	if err := s.store.Listings.IncrementViews(ctx, l.ID); err != nil {
		s.logger.Warn("Failed to count listing view", zap.String("listing_id", l.ID.String()), zap.Error(err))
		return l, nil
	}
	l.Views.Total++
	if viewMilestones[l.Views.Total] {
		s.notify(ctx, l, models.NotificationListingView, map[string]string{"views": strconv.Itoa(l.Views.Total)})
	}
	return l, nil
}

func (s *listingService) notify(ctx context.Context, l *models.Listing, t models.NotificationType, extra map[string]string) {
	metadata := map[string]string{
		"listingId":    l.ID.String(),
		"listingTitle": l.Title.En,
	}
	for k, v := range extra {
		metadata[k] = v
	}
	_, err := s.notifications.Send(ctx, NotificationInput{
		UserID:   l.Author,
		Type:     t,
		Metadata: metadata,
		Link:     "/listings/" + l.ID.String(),
	})
	if err != nil {
		s.logger.Warn("Failed to notify listing author", zap.String("listing_id", l.ID.String()),
			zap.String("type", string(t)), zap.Error(err))
	}
}

// editable loads a listing the actor may modify.
func (s *listingService) editable(ctx context.Context, actor Actor, id utils.SixID) (*models.Listing, error) {
	if actor.Anonymous() {
		return nil, ErrUnauthorized
	}
	l, err := s.store.Listings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Status == models.ListingDeleted {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if !actor.Owns(l.Author) && !actor.Can(models.CapEditAnyListing) {
		return nil, ErrForbidden
	}
	return l, nil
}

func (s *listingService) save(ctx context.Context, l *models.Listing) (*models.Listing, error) {
	l.UpdatedAt = s.now()
	if err := s.store.Listings.Update(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *listingService) Update(ctx context.Context, actor Actor, id utils.SixID, patch models.ListingPatch) (*models.Listing, error) {
	l, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	var v validator
	if patch.Title != nil {
		t := trimLocalized(*patch.Title)
		validateLocalized(&v, "title", t, models.TitleMinLen, models.TitleMaxLen)
		l.Title = t
	}
	if patch.Description != nil {
		d := trimLocalized(*patch.Description)
		validateLocalized(&v, "description", d, models.DescriptionMinLen, models.DescriptionMaxLen)
		l.Description = d
	}
	previousCategory := l.Category
	if patch.Category != nil && *patch.Category != l.Category {
		s.activeCategory(ctx, &v, *patch.Category)
		l.Category = *patch.Category
	}
	if patch.Price != nil {
		validatePrice(&v, *patch.Price)
		l.Price = *patch.Price
	}
	if patch.Location != nil {
		validateLocation(&v, *patch.Location)
		l.Location = *patch.Location
	}
	if patch.Status != nil && *patch.Status != l.Status {
		// authors may only pause and resume; everything else goes through moderation
		toggle := (l.Status == models.ListingActive && *patch.Status == models.ListingInactive) ||
			(l.Status == models.ListingInactive && *patch.Status == models.ListingActive)
		v.check(toggle, "status", "Status can only be switched between active and inactive")
		l.Status = *patch.Status
	}
	v.check(len(l.Images)+len(patch.Images) <= MaxListingImages, "images", fmt.Sprintf("At most %d images", MaxListingImages))
	validateImages(&v, patch.Images)
	if err := v.err(); err != nil {
		return nil, err
	}
	added := appendImages(l, patch.Images)

	if _, err := s.save(ctx, l); err != nil {
		return nil, err
	}
	s.scheduleIncoming(ctx, l.ID, added)
	if l.Category != previousCategory {
		s.recount(ctx, previousCategory)
		s.recount(ctx, l.Category)
	} else if patch.Status != nil {
		s.recount(ctx, l.Category)
	}
	return redactReports(actor, l), nil
}

func (s *listingService) Delete(ctx context.Context, actor Actor, id utils.SixID) error {
	l, err := s.editable(ctx, actor, id)
	if err != nil {
		return err
	}
	job, err := s.cascade.Start(ctx, l)
	if err != nil {
		return err
	}
	s.logger.Info("Listing deleted", zap.String("listing_id", id.String()), zap.String("job_id", job.ID.String()),
		zap.String("cascade_status", string(job.Status)))
	return nil
}

// visibleStatuses is every status an owner sees in their own index.
var visibleStatuses = []models.ListingStatus{
	models.ListingPending, models.ListingActive, models.ListingInactive,
	models.ListingExpired, models.ListingRejected, models.ListingReported,
}

func (s *listingService) ListByUser(ctx context.Context, actor Actor, userID utils.SixID, page, limit int) (*ListingPage, error) {
	if _, err := s.store.Users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	p := models.NewPage(page, limit, models.DefaultPageSize)
	q := repository.ListingQuery{AuthorID: &userID, Skip: p.Skip(), Limit: p.Size}
	if actor.Owns(userID) || actor.Can(models.CapViewHiddenListings) {
		q.Statuses = visibleStatuses
	} else {
		now := s.now()
		q.LiveAt = &now
	}
	items, total, err := s.store.Listings.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	redactReports(actor, items...)
	return &ListingPage{Items: items, Pagination: p.Paginate(int(total))}, nil
}

func (s *listingService) AddImages(ctx context.Context, actor Actor, id utils.SixID, images []models.ImageInput) (*models.Listing, error) {
	l, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	var v validator
	v.check(len(images) > 0, "images", "At least one image is required")
	v.check(len(l.Images)+len(images) <= MaxListingImages, "images", fmt.Sprintf("At most %d images", MaxListingImages))
	validateImages(&v, images)
	if err := v.err(); err != nil {
		return nil, err
	}
	added := appendImages(l, images)
	if _, err := s.save(ctx, l); err != nil {
		return nil, err
	}
	s.scheduleIncoming(ctx, l.ID, added)
	return redactReports(actor, l), nil
}

func imageIndex(l *models.Listing, imageID utils.SixID) int {
	for i := range l.Images {
		if l.Images[i].ID == imageID {
			return i
		}
	}
	return -1
}

// renumber rewrites order to match slice position.
func renumber(images []models.ListingImage) {
	for i := range images {
		images[i].Order = i
	}
}

func (s *listingService) DeleteImage(ctx context.Context, actor Actor, id, imageID utils.SixID) (*models.Listing, error) {
	l, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	idx := imageIndex(l, imageID)
	if idx < 0 {
		return nil, ErrImageNotFound
	}
	if len(l.Images) == 1 {
		return nil, ErrLastImage
	}
	removed := l.Images[idx]
	l.Images = append(l.Images[:idx], l.Images[idx+1:]...)
	renumber(l.Images)
	if removed.Main {
		l.Images[0].Main = true
	}
	if _, err := s.save(ctx, l); err != nil {
		return nil, err
	}
	if removed.StorageKey != "" {
		if err := s.objects.Delete(ctx, removed.StorageKey); err != nil {
			s.logger.Warn("Failed to release listing image", zap.String("key", removed.StorageKey), zap.Error(err))
		}
	}
	return redactReports(actor, l), nil
}

func (s *listingService) ReorderImages(ctx context.Context, actor Actor, id utils.SixID, order []utils.SixID) (*models.Listing, error) {
	l, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if len(order) != len(l.Images) {
		return nil, ErrInvalidImageOrder
	}
	position := make(map[utils.SixID]int, len(order))
	for i, imageID := range order {
		if _, dup := position[imageID]; dup {
			return nil, ErrInvalidImageOrder
		}
		position[imageID] = i
	}
	for _, img := range l.Images {
		if _, ok := position[img.ID]; !ok {
			return nil, ErrInvalidImageOrder
		}
	}
	sort.Slice(l.Images, func(i, j int) bool { return position[l.Images[i].ID] < position[l.Images[j].ID] })
	renumber(l.Images)
	if _, err := s.save(ctx, l); err != nil {
		return nil, err
	}
	return redactReports(actor, l), nil
}

func (s *listingService) SetMainImage(ctx context.Context, actor Actor, id, imageID utils.SixID) (*models.Listing, error) {
	l, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if imageIndex(l, imageID) < 0 {
		return nil, ErrImageNotFound
	}
	for i := range l.Images {
		l.Images[i].Main = l.Images[i].ID == imageID
	}
	if _, err := s.save(ctx, l); err != nil {
		return nil, err
	}
	return redactReports(actor, l), nil
}

func (s *listingService) ProcessImage(ctx context.Context, listingID, imageID utils.SixID) error {
	l, err := s.store.Listings.FindByID(ctx, listingID)
	if err != nil {
		return err
	}
	idx := imageIndex(l, imageID)
	if idx < 0 {
		return ErrImageNotFound
	}
	img := l.Images[idx]
	if !strings.HasPrefix(img.StorageKey, IncomingPrefix+"/") {
		return nil
	}

	data, _, err := s.objects.Get(ctx, img.StorageKey)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", img.StorageKey, err)
	}
	normalized, err := storage.NormalizeImage(data, s.maxDimension)
	if err != nil {
		return err
	}
	ext := ".jpg"
	if normalized.ContentType == "image/png" {
		ext = ".png"
	}
	key := storage.ObjectKey(ListingImagePrefix, l.Author.String(), "image"+ext)
	url, err := s.objects.Put(ctx, key, normalized.ContentType, normalized.Data)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}

	// reload so concurrent edits made while resizing are kept
	l, err = s.store.Listings.FindByID(ctx, listingID)
	if err != nil {
		return err
	}
	if idx = imageIndex(l, imageID); idx < 0 {
		_ = s.objects.Delete(ctx, key)
		return nil
	}
	l.Images[idx].URL = url
	l.Images[idx].StorageKey = key
	if _, err := s.save(ctx, l); err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, img.StorageKey); err != nil {
		s.logger.Warn("Failed to remove incoming upload", zap.String("key", img.StorageKey), zap.Error(err))
	}
	s.logger.Info("Listing image processed", zap.String("listing_id", listingID.String()), zap.String("key", key),
		zap.Int("width", normalized.Width), zap.Int("height", normalized.Height), zap.Bool("resized", normalized.Resized))
	return nil
}

func (s *listingService) ToggleFavorite(ctx context.Context, actor Actor, id utils.SixID) (bool, error) {
	if actor.Anonymous() {
		return false, ErrUnauthorized
	}
	l, err := s.store.Listings.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	user, err := s.store.Users.FindByID(ctx, actor.UserID)
	if err != nil {
		return false, err
	}
	if user.HasFavorite(id) {
		return false, s.store.Users.RemoveFavorite(ctx, actor.UserID, id)
	}
	if !s.canSee(actor, l) {
		return false, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	return true, s.store.Users.AddFavorite(ctx, actor.UserID, id)
}

func (s *listingService) Favorites(ctx context.Context, actor Actor, page, limit int) (*ListingPage, error) {
	if actor.Anonymous() {
		return nil, ErrUnauthorized
	}
	user, err := s.store.Users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	p := models.NewPage(page, limit, models.DefaultPageSize)
	if len(user.Favorites) == 0 {
		return &ListingPage{Items: []*models.Listing{}, Pagination: p.Paginate(0)}, nil
	}
	now := s.now()
	items, total, err := s.store.Listings.Find(ctx, repository.ListingQuery{
		IDs:    user.Favorites,
		LiveAt: &now,
		Skip:   p.Skip(),
		Limit:  p.Size,
	})
	if err != nil {
		return nil, err
	}
	redactReports(actor, items...)
	return &ListingPage{Items: items, Pagination: p.Paginate(int(total))}, nil
}

func (s *listingService) Report(ctx context.Context, actor Actor, id utils.SixID, reason models.ReportReason, description string) error {
	if actor.Anonymous() {
		return ErrUnauthorized
	}
	description = strings.TrimSpace(description)
	var v validator
	v.check(reason.Valid(), "reason", "Unknown report reason")
	v.check(utf8.RuneCountInString(description) <= ReportDescriptionMax, "description", "Must be at most 500 characters")
	if err := v.err(); err != nil {
		return err
	}
	l, err := s.store.Listings.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.canSee(actor, l) {
		return fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	err = s.store.Listings.AddReport(ctx, id, models.Report{
		Reporter:    actor.UserID,
		Reason:      reason,
		Description: description,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return err
	}
	s.logger.Info("Listing reported", zap.String("listing_id", id.String()), zap.String("reason", string(reason)))
	return nil
}

func (s *listingService) Extend(ctx context.Context, actor Actor, id utils.SixID) (*models.Listing, error) {
	l, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	l.ExpiresAt = s.now().Add(s.cfg.TTL())
	revived := l.Status == models.ListingExpired
	if revived {
		l.Status = models.ListingActive
	}
	if _, err := s.save(ctx, l); err != nil {
		return nil, err
	}
	s.recount(ctx, l.Category)
	return redactReports(actor, l), nil
}

func (s *listingService) SetStatus(ctx context.Context, actor Actor, id utils.SixID, status models.ListingStatus, note string) (*models.Listing, error) {
	if actor.Anonymous() {
		return nil, ErrUnauthorized
	}
	if !actor.Can(models.CapModerateListings) {
		return nil, ErrForbidden
	}
	if !status.Valid() || status == models.ListingDeleted {
		return nil, NewValidationError("status", "Unknown status")
	}
	l, err := s.store.Listings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	if err := s.store.Listings.SetStatus(ctx, id, status, note, s.now()); err != nil {
		return nil, err
	}
	previous := l.Status
	l.Status = status
	l.StatusNote = note
	l.UpdatedAt = s.now()

	switch status {
	case models.ListingActive:
		s.notify(ctx, l, models.NotificationListingApproved, nil)
	case models.ListingRejected:
		s.notify(ctx, l, models.NotificationListingRejected, map[string]string{"reason": note})
	}
	s.recount(ctx, l.Category)
	s.publish(ctx, events.SubjectListingStatusChanged, l)
	s.logger.Info("Listing status changed", zap.String("listing_id", id.String()), zap.String("from", string(previous)),
		zap.String("to", string(status)), zap.String("moderator_id", actor.UserID.String()))
	return l, nil
}

func (s *listingService) ExpireDue(ctx context.Context) (int, error) {
	now := s.now()
	expired := 0
	touched := map[utils.SixID]bool{}
	defer func() {
		for categoryID := range touched {
			s.recount(ctx, categoryID)
		}
		if expired > 0 {
			s.logger.Info("Listings expired", zap.Int("count", expired))
		}
	}()

	// Expired listings leave the filter, so every batch reads from the front.
	for {
		batch, _, err := s.store.Listings.Find(ctx, repository.ListingQuery{
			Statuses:      []models.ListingStatus{models.ListingActive},
			ExpiresBefore: &now,
			Sort:          repository.SortOldest,
			Limit:         expireBatchSize,
		})
		if err != nil {
			return expired, err
		}
		for _, l := range batch {
			if err := s.store.Listings.SetStatus(ctx, l.ID, models.ListingExpired, "", now); err != nil {
				return expired, fmt.Errorf("expire listing %s: %w", l.ID, err)
			}
			l.Status = models.ListingExpired
			s.notify(ctx, l, models.NotificationListingExpired, nil)
			touched[l.Category] = true
			expired++
		}
		if len(batch) < expireBatchSize {
			return expired, nil
		}
	}
}
