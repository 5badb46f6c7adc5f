// Package sessionvalidator lets services that share the token store authorize bearer tokens
// without calling the account service. It only reads the store.
package sessionvalidator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Getter reads a string value; found is false when the key is absent or expired.
type Getter interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
}

// Config configures the Validator.
type Config struct {
	Store Getter
}

// DefaultContextKey is used by GinMiddleware when no explicit key is provided.
const DefaultContextKey = "auth_account_id"

const (
	accessTokenPrefix  = "access_token:"
	generalTokenPrefix = "auth_token:"
	maxTokenLength     = 256
	bearerPrefix       = "Bearer "
)

// Probe order matches the issuing service: access tokens first, then general tokens.
// Refresh tokens never authorize a request.
var probePrefixes = []string{accessTokenPrefix, generalTokenPrefix}

// Sentinel errors exposed by the validator.
var (
	ErrMissingStore     = errors.New("session.validator.missing_store")
	ErrMissingToken     = errors.New("session.validator.missing_token")
	ErrInvalidToken     = errors.New("session.validator.invalid_token")
	ErrStoreUnavailable = errors.New("session.validator.store_unavailable")
	// ErrCorruptRecord is returned by a Getter when the key holds a value of the wrong type.
	ErrCorruptRecord = errors.New("session.validator.corrupt_record")
)

// Validator resolves bearer tokens to account ids.
type Validator struct {
	store Getter
}

// New constructs a Validator after validating the supplied configuration.
func New(configuration Config) (*Validator, error) {
	if configuration.Store == nil {
		return nil, fmt.Errorf("session.validator.new: %w", ErrMissingStore)
	}
	return &Validator{store: configuration.Store}, nil
}

// ValidateToken returns the account id the token was issued for. The token is looked up
// exactly as given. Unparsable or wrongly typed records are reported as invalid and left in
// place for the issuing service to heal.
func (validator *Validator) ValidateToken(ctx context.Context, token string) (int64, error) {
	if strings.TrimSpace(token) == "" {
		return 0, fmt.Errorf("session.validator.validate_token: %w", ErrMissingToken)
	}
	if len(token) > maxTokenLength {
		return 0, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidToken)
	}
	for _, prefix := range probePrefixes {
		value, found, err := validator.store.Get(ctx, prefix+token)
		if errors.Is(err, ErrCorruptRecord) {
			return 0, fmt.Errorf("session.validator.validate_token: %w: %w", ErrInvalidToken, err)
		}
		if err != nil {
			return 0, fmt.Errorf("session.validator.validate_token: %w: %w", ErrStoreUnavailable, err)
		}
		if !found {
			continue
		}
		accountID, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr != nil {
			return 0, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidToken)
		}
		return accountID, nil
	}
	return 0, fmt.Errorf("session.validator.validate_token: %w", ErrInvalidToken)
}

// ValidateRequest reads the Authorization bearer token from the request and validates it.
func (validator *Validator) ValidateRequest(request *http.Request) (int64, error) {
	if request == nil {
		return 0, fmt.Errorf("session.validator.validate_request: %w", ErrMissingToken)
	}
	header := request.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return 0, fmt.Errorf("session.validator.validate_request: %w", ErrMissingToken)
	}
	return validator.ValidateToken(request.Context(), strings.TrimSpace(header[len(bearerPrefix):]))
}

// GinMiddleware returns a Gin middleware that validates the bearer token and injects the account id.
func (validator *Validator) GinMiddleware(contextKey string) gin.HandlerFunc {
	if strings.TrimSpace(contextKey) == "" {
		contextKey = DefaultContextKey
	}
	return func(contextGin *gin.Context) {
		accountID, err := validator.ValidateRequest(contextGin.Request)
		if err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				contextGin.AbortWithStatus(http.StatusServiceUnavailable)
				return
			}
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.Set(contextKey, accountID)
		contextGin.Next()
	}
}

// RedisStore adapts a go-redis client to Getter.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Getter.
func (store *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := store.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) && strings.HasPrefix(replyErr.Error(), "WRONGTYPE") {
		return "", false, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
