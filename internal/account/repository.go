package account

import "context"

// Repository persists accounts and profiles. Lookups report absence with ErrAccountNotFound or
// ErrProfileNotFound; unique-key collisions surface as ErrUsernameTaken or ErrNicknameTaken.
type Repository interface {
	CreateAccount(ctx context.Context, account Account) (Account, error)
	SaveAccount(ctx context.Context, account Account) (Account, error)
	FindAccountByID(ctx context.Context, accountID int64) (Account, error)
	FindAccountByUsername(ctx context.Context, username string) (Account, error)
	FindActiveAccountByUsername(ctx context.Context, username string) (Account, error)
	FindAccountByProvider(ctx context.Context, provider AuthProvider, providerID string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	ListInactiveAccounts(ctx context.Context) ([]Account, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	DeleteAccount(ctx context.Context, accountID int64) error

	CreateProfile(ctx context.Context, profile Profile) (Profile, error)
	SaveProfile(ctx context.Context, profile Profile) (Profile, error)
	FindProfileByAccountID(ctx context.Context, accountID int64) (Profile, error)
	FindProfileByNickname(ctx context.Context, nickname string) (Profile, error)
	SearchProfilesByNickname(ctx context.Context, keyword string) ([]Profile, error)
	NicknameExists(ctx context.Context, nickname string) (bool, error)
	DeleteProfile(ctx context.Context, accountID int64) error
}
