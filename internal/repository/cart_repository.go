package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fos7a/institute-api/internal/models"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
)

const cartKeyPrefix = "cart:"

// CartRepository keeps the single-slot cart of each user in the session store.
type CartRepository struct {
	store *CacheRepository
	ttl   time.Duration
}

// NewCartRepository constructs the repository.
func NewCartRepository(store *CacheRepository, ttl time.Duration) *CartRepository {
	return &CartRepository{store: store, ttl: ttl}
}

// Get returns the cart of userID. An absent cart is empty, not an error.
func (r *CartRepository) Get(ctx context.Context, userID string) (models.Cart, error) {
	cart := models.Cart{UserID: userID}
	var courseID string
	if err := r.store.Get(ctx, cartKeyPrefix+userID, &courseID); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return cart, nil
		}
		return cart, err
	}
	if courseID != "" {
		cart.CourseID = &courseID
	}
	return cart, nil
}

// Hold places courseID in the cart when it is empty. When another course already
// occupies the slot it reports false and returns the held course.
func (r *CartRepository) Hold(ctx context.Context, userID, courseID string) (string, bool, error) {
	ok, err := r.store.SetIfAbsent(ctx, cartKeyPrefix+userID, courseID, r.ttl)
	if err != nil {
		return "", false, err
	}
	if ok {
		return courseID, true, nil
	}
	cart, err := r.Get(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if cart.Empty() {
		// expired between the two calls
		return r.Hold(ctx, userID, courseID)
	}
	return *cart.CourseID, false, nil
}

// Clear empties the cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	return r.store.Delete(ctx, cartKeyPrefix+userID)
}
