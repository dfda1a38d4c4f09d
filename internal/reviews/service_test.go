package reviews

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/adiwidodo/backend-belanja/internal/common"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

type ratingAggregate struct {
	sum   int64
	count int32
}

type fakeStore struct {
	product    store.Product
	reviews    map[uuid.UUID]store.Review
	votes      map[uuid.UUID]map[uuid.UUID]bool
	purchasers map[uuid.UUID]bool
	aggregates map[uuid.UUID]ratingAggregate
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		product:    store.Product{ID: uuid.New(), Name: "Blender Dapur", Slug: "blender-dapur", IsActive: true},
		reviews:    map[uuid.UUID]store.Review{},
		votes:      map[uuid.UUID]map[uuid.UUID]bool{},
		purchasers: map[uuid.UUID]bool{},
		aggregates: map[uuid.UUID]ratingAggregate{},
	}
}

func (f *fakeStore) ListProductReviews(_ context.Context, productID uuid.UUID, _, _ int) ([]store.Review, int64, error) {
	var out []store.Review
	for _, r := range f.reviews {
		if r.ProductID == productID && r.IsApproved {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) ListPendingReviews(_ context.Context, _, _ int) ([]store.Review, int64, error) {
	var out []store.Review
	for _, r := range f.reviews {
		if !r.IsApproved {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) GetReview(_ context.Context, id uuid.UUID) (store.Review, error) {
	r, ok := f.reviews[id]
	if !ok {
		return store.Review{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) CreateReview(_ context.Context, productID, userID uuid.UUID, rating int32, comment string) (store.Review, error) {
	for _, r := range f.reviews {
		if r.ProductID == productID && r.UserID == userID {
			return store.Review{}, store.ErrConflict
		}
	}
	r := store.Review{ID: uuid.New(), ProductID: productID, UserID: userID, Rating: rating, Comment: comment}
	f.reviews[r.ID] = r
	return r, nil
}

func (f *fakeStore) UpdateReview(_ context.Context, id, userID uuid.UUID, rating int32, comment string) (store.Review, error) {
	r, ok := f.reviews[id]
	if !ok || r.UserID != userID {
		return store.Review{}, store.ErrNotFound
	}
	r.Rating = rating
	r.Comment = comment
	r.IsApproved = false
	f.reviews[id] = r
	return r, nil
}

func (f *fakeStore) DeleteReview(_ context.Context, id, userID uuid.UUID) (store.Review, error) {
	r, ok := f.reviews[id]
	if !ok || r.UserID != userID {
		return store.Review{}, store.ErrNotFound
	}
	delete(f.reviews, id)
	return r, nil
}

func (f *fakeStore) DeleteReviewByID(_ context.Context, id uuid.UUID) (store.Review, error) {
	r, ok := f.reviews[id]
	if !ok {
		return store.Review{}, store.ErrNotFound
	}
	delete(f.reviews, id)
	return r, nil
}

func (f *fakeStore) SetReviewApproval(_ context.Context, id uuid.UUID, approved bool) (store.Review, error) {
	r, ok := f.reviews[id]
	if !ok {
		return store.Review{}, store.ErrNotFound
	}
	r.IsApproved = approved
	f.reviews[id] = r
	return r, nil
}

func (f *fakeStore) MarkReviewHelpful(_ context.Context, reviewID, userID uuid.UUID) (store.Review, error) {
	r, ok := f.reviews[reviewID]
	if !ok {
		return store.Review{}, store.ErrNotFound
	}
	if f.votes[reviewID] == nil {
		f.votes[reviewID] = map[uuid.UUID]bool{}
	}
	if f.votes[reviewID][userID] {
		return store.Review{}, store.ErrConflict
	}
	f.votes[reviewID][userID] = true
	r.HelpfulCount++
	f.reviews[reviewID] = r
	return r, nil
}

func (f *fakeStore) UserHasPurchased(_ context.Context, userID, _ uuid.UUID) (bool, error) {
	return f.purchasers[userID], nil
}

func (f *fakeStore) GetProductBySlug(_ context.Context, slug string) (store.Product, error) {
	if slug != f.product.Slug {
		return store.Product{}, store.ErrNotFound
	}
	return f.product, nil
}

func (f *fakeStore) AdjustRating(_ context.Context, productID uuid.UUID, sumDelta int64, countDelta int32) error {
	agg := f.aggregates[productID]
	agg.sum += sumDelta
	agg.count += countDelta
	f.aggregates[productID] = agg
	return nil
}

func newReviewService(t *testing.T, st *fakeStore) *Service {
	t.Helper()
	svc, err := NewService(st)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func buyer(st *fakeStore) uuid.UUID {
	id := uuid.New()
	st.purchasers[id] = true
	return id
}

func TestCreateRequiresPurchase(t *testing.T) {
	st := newFakeStore()
	svc := newReviewService(t, st)

	_, err := svc.Create(context.Background(), uuid.New(), st.product.Slug, 5, "Bagus sekali")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "NOT_PURCHASED" {
		t.Fatalf("expected NOT_PURCHASED, got %v", err)
	}
	if appErr.HTTPStatus != 403 {
		t.Fatalf("expected 403, got %d", appErr.HTTPStatus)
	}
}

func TestCreateOncePerProduct(t *testing.T) {
	st := newFakeStore()
	svc := newReviewService(t, st)
	userID := buyer(st)

	if _, err := svc.Create(context.Background(), userID, st.product.Slug, 5, "Bagus"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.Create(context.Background(), userID, st.product.Slug, 4, "Lagi")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "ALREADY_REVIEWED" {
		t.Fatalf("expected ALREADY_REVIEWED, got %v", err)
	}
}

func TestCreateRejectsOutOfRangeRating(t *testing.T) {
	st := newFakeStore()
	svc := newReviewService(t, st)
	userID := buyer(st)

	for _, rating := range []int32{0, 6, -1} {
		_, err := svc.Create(context.Background(), userID, st.product.Slug, rating, "")
		var appErr *common.AppError
		if !errors.As(err, &appErr) || appErr.Code != "VALIDATION_ERROR" {
			t.Fatalf("rating %d: expected VALIDATION_ERROR, got %v", rating, err)
		}
	}
}

func TestModerationMaintainsAggregate(t *testing.T) {
	st := newFakeStore()
	svc := newReviewService(t, st)
	userID := buyer(st)

	created, err := svc.Create(context.Background(), userID, st.product.Slug, 4, "Oke")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	reviewID := uuid.MustParse(created.ID)

	approved, err := svc.Moderate(context.Background(), reviewID, true)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !approved.IsApproved {
		t.Fatal("expected review approved")
	}
	if agg := st.aggregates[st.product.ID]; agg.sum != 4 || agg.count != 1 {
		t.Fatalf("unexpected aggregate after approval %+v", agg)
	}

	// Re-approving must not double count.
	if _, err := svc.Moderate(context.Background(), reviewID, true); err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if agg := st.aggregates[st.product.ID]; agg.sum != 4 || agg.count != 1 {
		t.Fatalf("aggregate changed on re-approval %+v", agg)
	}

	if _, err := svc.Moderate(context.Background(), reviewID, false); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if agg := st.aggregates[st.product.ID]; agg.sum != 0 || agg.count != 0 {
		t.Fatalf("unexpected aggregate after rejection %+v", agg)
	}
}

func TestUpdateSendsApprovedReviewBackToModeration(t *testing.T) {
	st := newFakeStore()
	svc := newReviewService(t, st)
	userID := buyer(st)

	created, err := svc.Create(context.Background(), userID, st.product.Slug, 5, "Mantap")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	reviewID := uuid.MustParse(created.ID)
	if _, err := svc.Moderate(context.Background(), reviewID, true); err != nil {
		t.Fatalf("approve: %v", err)
	}

	updated, err := svc.Update(context.Background(), userID, reviewID, 3, "Biasa saja")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.IsApproved {
		t.Fatal("expected edited review back in moderation")
	}
	if agg := st.aggregates[st.product.ID]; agg.sum != 0 || agg.count != 0 {
		t.Fatalf("expected aggregate cleared after edit, got %+v", agg)
	}
}

func TestDeleteApprovedReviewAdjustsAggregate(t *testing.T) {
	st := newFakeStore()
	svc := newReviewService(t, st)
	userID := buyer(st)

	created, err := svc.Create(context.Background(), userID, st.product.Slug, 5, "Mantap")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	reviewID := uuid.MustParse(created.ID)
	if _, err := svc.Moderate(context.Background(), reviewID, true); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if err := svc.Delete(context.Background(), userID, reviewID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if agg := st.aggregates[st.product.ID]; agg.sum != 0 || agg.count != 0 {
		t.Fatalf("expected aggregate cleared after delete, got %+v", agg)
	}
}

func TestDeleteForeignReviewHidden(t *testing.T) {
	st := newFakeStore()
	svc := newReviewService(t, st)
	userID := buyer(st)

	created, err := svc.Create(context.Background(), userID, st.product.Slug, 5, "Mantap")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = svc.Delete(context.Background(), uuid.New(), uuid.MustParse(created.ID))
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND for foreign delete, got %v", err)
	}
}

func TestMarkHelpfulOncePerUser(t *testing.T) {
	st := newFakeStore()
	svc := newReviewService(t, st)
	author := buyer(st)
	voter := uuid.New()

	created, err := svc.Create(context.Background(), author, st.product.Slug, 5, "Mantap")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	reviewID := uuid.MustParse(created.ID)

	voted, err := svc.MarkHelpful(context.Background(), voter, reviewID)
	if err != nil {
		t.Fatalf("mark helpful: %v", err)
	}
	if voted.HelpfulCount != 1 {
		t.Fatalf("expected helpful count 1, got %d", voted.HelpfulCount)
	}

	_, err = svc.MarkHelpful(context.Background(), voter, reviewID)
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "ALREADY_VOTED" {
		t.Fatalf("expected ALREADY_VOTED, got %v", err)
	}
}

func TestListForProductShowsOnlyApproved(t *testing.T) {
	st := newFakeStore()
	svc := newReviewService(t, st)
	first := buyer(st)
	second := buyer(st)

	approved, err := svc.Create(context.Background(), first, st.product.Slug, 5, "Mantap")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(context.Background(), second, st.product.Slug, 2, "Kurang"); err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := svc.Moderate(context.Background(), uuid.MustParse(approved.ID), true); err != nil {
		t.Fatalf("approve: %v", err)
	}

	items, _, err := svc.ListForProduct(context.Background(), st.product.Slug, 1, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != approved.ID {
		t.Fatalf("expected only the approved review, got %+v", items)
	}
}
