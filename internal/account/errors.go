package account

import "errors"

var (
	// ErrAccountNotFound indicates no account matched the lookup.
	ErrAccountNotFound = errors.New("account.not_found")
	// ErrProfileNotFound indicates the account has no profile.
	ErrProfileNotFound = errors.New("account.profile_not_found")
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("account.username_taken")
	// ErrNicknameTaken indicates another profile already uses the nickname.
	ErrNicknameTaken = errors.New("account.nickname_taken")
	// ErrProfileExists indicates the account already has a profile.
	ErrProfileExists = errors.New("account.profile_exists")
	// ErrSocialAccountExists indicates the provider identity is already linked.
	ErrSocialAccountExists = errors.New("account.social_account_exists")
	// ErrInvalidCredentials covers unknown usernames, inactive accounts, and wrong passwords.
	ErrInvalidCredentials = errors.New("account.invalid_credentials")
	// ErrInvalidInput indicates a request field failed validation.
	ErrInvalidInput = errors.New("account.invalid_input")
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("account_store.unsupported_dialect")
)
