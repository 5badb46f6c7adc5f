package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/myrealpet/accountauth/internal/authkit"
	"github.com/myrealpet/accountauth/internal/credential"
	"github.com/myrealpet/accountauth/internal/phone"
)

const (
	maxLocalUsernameLength = 20
	maxNicknameInUsername  = 40
)

// TokenAuthority is the subset of the token authority the account service drives.
type TokenAuthority interface {
	TokenTTL(kind authkit.TokenKind) time.Duration
	IssueGeneralToken(ctx context.Context, accountID int64) (string, error)
	IssueTokenPair(ctx context.Context, accountID int64) (authkit.TokenPair, error)
	ValidateToken(ctx context.Context, token string) (int64, error)
	InvalidateToken(ctx context.Context, token string) error
	InvalidateAllUserTokens(ctx context.Context, accountID int64) error
}

// Service implements account lifecycle and authentication flows.
type Service struct {
	repository Repository
	tokens     TokenAuthority
	hasher     credential.Hasher
	logger     *zap.Logger
}

// NewService wires the account service. A nil logger disables logging.
func NewService(repository Repository, tokens TokenAuthority, hasher credential.Hasher, logger *zap.Logger) *Service {
	if repository == nil || tokens == nil || hasher == nil {
		panic("account: repository, token authority, and hasher are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repository: repository,
		tokens:     tokens,
		hasher:     hasher,
		logger:     logger,
	}
}

// CreateAccount registers a local account with a hashed password.
func (service *Service) CreateAccount(ctx context.Context, username string, password string) (Account, error) {
	username = strings.TrimSpace(username)
	if err := validateLocalCredentials(username, password); err != nil {
		return Account{}, err
	}
	return service.createLocal(ctx, Account{Username: username}, password)
}

// CreateSocialAccount links a new account to a provider identity.
func (service *Service) CreateSocialAccount(ctx context.Context, username string, provider AuthProvider, providerID string) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || !provider.Valid() || provider == ProviderLocal || strings.TrimSpace(providerID) == "" {
		return Account{}, fmt.Errorf("account.create_social: %w", ErrInvalidInput)
	}
	_, findErr := service.repository.FindAccountByProvider(ctx, provider, providerID)
	if findErr == nil {
		return Account{}, fmt.Errorf("account.create_social: %w", ErrSocialAccountExists)
	}
	if !errors.Is(findErr, ErrAccountNotFound) {
		return Account{}, findErr
	}
	taken, existsErr := service.repository.UsernameExists(ctx, username)
	if existsErr != nil {
		return Account{}, existsErr
	}
	if taken {
		return Account{}, fmt.Errorf("account.create_social: %w", ErrUsernameTaken)
	}
	created, createErr := service.repository.CreateAccount(ctx, Account{
		Username:   username,
		Provider:   provider,
		ProviderID: providerID,
		Role:       RoleUser,
		Active:     true,
	})
	if createErr != nil {
		return Account{}, createErr
	}
	service.logger.Info("social account created", zap.Int64("account_id", created.ID), zap.String("provider", string(provider)))
	return created, nil
}

// FindAccountByID loads an account by id.
func (service *Service) FindAccountByID(ctx context.Context, accountID int64) (Account, error) {
	return service.repository.FindAccountByID(ctx, accountID)
}

// FindAccountByUsername loads an account by username.
func (service *Service) FindAccountByUsername(ctx context.Context, username string) (Account, error) {
	return service.repository.FindAccountByUsername(ctx, username)
}

// FindAccountByProvider loads the account linked to a provider identity.
func (service *Service) FindAccountByProvider(ctx context.Context, provider AuthProvider, providerID string) (Account, error) {
	return service.repository.FindAccountByProvider(ctx, provider, providerID)
}

// FindAllAccounts lists every account.
func (service *Service) FindAllAccounts(ctx context.Context) ([]Account, error) {
	return service.repository.ListAccounts(ctx)
}

// FindInactiveAccounts lists deactivated accounts.
func (service *Service) FindInactiveAccounts(ctx context.Context) ([]Account, error) {
	return service.repository.ListInactiveAccounts(ctx)
}

// IsUsernameTaken reports whether the username is registered.
func (service *Service) IsUsernameTaken(ctx context.Context, username string) (bool, error) {
	return service.repository.UsernameExists(ctx, strings.TrimSpace(username))
}

// UpdatePassword replaces the password record of an account.
func (service *Service) UpdatePassword(ctx context.Context, accountID int64, newPassword string) (Account, error) {
	if newPassword == "" {
		return Account{}, fmt.Errorf("account.update_password: %w", ErrInvalidInput)
	}
	existing, err := service.repository.FindAccountByID(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	record, hashErr := service.hasher.Hash(newPassword)
	if hashErr != nil {
		return Account{}, fmt.Errorf("account.update_password: %w", hashErr)
	}
	return service.repository.SaveAccount(ctx, existing.WithPasswordRecord(record))
}

// DeactivateAccount marks the account inactive and revokes its tokens.
func (service *Service) DeactivateAccount(ctx context.Context, accountID int64) (Account, error) {
	existing, err := service.repository.FindAccountByID(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	saved, saveErr := service.repository.SaveAccount(ctx, existing.Deactivated())
	if saveErr != nil {
		return Account{}, saveErr
	}
	service.revokeAll(ctx, accountID, "deactivate")
	return saved, nil
}

// ActivateAccount marks the account active.
func (service *Service) ActivateAccount(ctx context.Context, accountID int64) (Account, error) {
	existing, err := service.repository.FindAccountByID(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	return service.repository.SaveAccount(ctx, existing.Activated())
}

// DeleteAccount removes the account with its profile and revokes its tokens.
func (service *Service) DeleteAccount(ctx context.Context, accountID int64) error {
	if err := service.repository.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	service.revokeAll(ctx, accountID, "delete")
	return nil
}

// Login authenticates a local account and issues a general token.
func (service *Service) Login(ctx context.Context, username string, password string) (LoginResponse, error) {
	existing, err := service.repository.FindActiveAccountByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return LoginResponse{}, fmt.Errorf("account.login: %w", ErrInvalidCredentials)
		}
		return LoginResponse{}, err
	}
	if existing.PasswordRecord == "" || !service.hasher.Verify(password, existing.PasswordRecord) {
		service.logger.Info("login rejected", zap.String("code", "account.invalid_credentials"), zap.Int64("account_id", existing.ID))
		return LoginResponse{}, fmt.Errorf("account.login: %w", ErrInvalidCredentials)
	}
	if service.hasher.NeedsRehash(existing.PasswordRecord) {
		service.rehash(ctx, existing, password)
	}
	return service.generalLogin(ctx, existing)
}

// Register creates a local account from a sign-up request and logs it in.
func (service *Service) Register(ctx context.Context, request RegisterRequest) (LoginResponse, error) {
	username := strings.TrimSpace(request.Username)
	if err := validateLocalCredentials(username, request.Password); err != nil {
		return LoginResponse{}, err
	}
	formattedPhone, phoneErr := phone.Format(request.PhoneNumber)
	if phoneErr != nil {
		return LoginResponse{}, fmt.Errorf("account.register: %w: %w", ErrInvalidInput, phoneErr)
	}
	created, createErr := service.createLocal(ctx, Account{
		Username:    username,
		Name:        strings.TrimSpace(request.Name),
		PhoneNumber: formattedPhone,
	}, request.Password)
	if createErr != nil {
		return LoginResponse{}, createErr
	}
	return service.generalLogin(ctx, created)
}

// Logout revokes a single general token.
func (service *Service) Logout(ctx context.Context, token string) error {
	return service.tokens.InvalidateToken(ctx, token)
}

// LogoutAll revokes every token of the account.
func (service *Service) LogoutAll(ctx context.Context, accountID int64) error {
	return service.tokens.InvalidateAllUserTokens(ctx, accountID)
}

// LoginWithSocial finds or creates the account linked to identity and issues an access/refresh pair.
func (service *Service) LoginWithSocial(ctx context.Context, identity SocialIdentity) (LoginResponse, error) {
	if !identity.Provider.Valid() || identity.Provider == ProviderLocal || strings.TrimSpace(identity.ProviderID) == "" {
		return LoginResponse{}, fmt.Errorf("account.social_login: %w", ErrInvalidInput)
	}
	linked, findErr := service.repository.FindAccountByProvider(ctx, identity.Provider, identity.ProviderID)
	switch {
	case findErr == nil:
		if !linked.Active {
			reactivated, activateErr := service.repository.SaveAccount(ctx, linked.Activated())
			if activateErr != nil {
				return LoginResponse{}, activateErr
			}
			linked = reactivated
		}
	case errors.Is(findErr, ErrAccountNotFound):
		created, createErr := service.repository.CreateAccount(ctx, Account{
			Username:   socialUsername(identity),
			Provider:   identity.Provider,
			ProviderID: identity.ProviderID,
			Role:       RoleUser,
			Active:     true,
		})
		if createErr != nil {
			return LoginResponse{}, createErr
		}
		linked = created
		service.logger.Info("social account created", zap.Int64("account_id", linked.ID), zap.String("provider", string(identity.Provider)))
	default:
		return LoginResponse{}, findErr
	}
	pair, issueErr := service.tokens.IssueTokenPair(ctx, linked.ID)
	if issueErr != nil {
		return LoginResponse{}, issueErr
	}
	return LoginResponse{
		Token:            pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccountID:        linked.ID,
		Username:         linked.Username,
		ExpiresInSeconds: int64(service.tokens.TokenTTL(authkit.TokenKindAccess).Seconds()),
	}, nil
}

// CurrentAccount resolves the account that owns token.
func (service *Service) CurrentAccount(ctx context.Context, token string) (Account, error) {
	accountID, err := service.tokens.ValidateToken(ctx, token)
	if err != nil {
		return Account{}, err
	}
	return service.repository.FindAccountByID(ctx, accountID)
}

func (service *Service) createLocal(ctx context.Context, draft Account, password string) (Account, error) {
	taken, existsErr := service.repository.UsernameExists(ctx, draft.Username)
	if existsErr != nil {
		return Account{}, existsErr
	}
	if taken {
		return Account{}, fmt.Errorf("account.create: %w", ErrUsernameTaken)
	}
	record, hashErr := service.hasher.Hash(password)
	if hashErr != nil {
		return Account{}, fmt.Errorf("account.create: %w", hashErr)
	}
	draft.PasswordRecord = record
	draft.Provider = ProviderLocal
	draft.Role = RoleUser
	draft.Active = true
	created, createErr := service.repository.CreateAccount(ctx, draft)
	if createErr != nil {
		return Account{}, createErr
	}
	service.logger.Info("account created", zap.Int64("account_id", created.ID))
	return created, nil
}

func (service *Service) generalLogin(ctx context.Context, loggedIn Account) (LoginResponse, error) {
	token, err := service.tokens.IssueGeneralToken(ctx, loggedIn.ID)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{
		Token:            token,
		AccountID:        loggedIn.ID,
		Username:         loggedIn.Username,
		ExpiresInSeconds: int64(service.tokens.TokenTTL(authkit.TokenKindGeneral).Seconds()),
	}, nil
}

func (service *Service) rehash(ctx context.Context, existing Account, password string) {
	record, err := service.hasher.Hash(password)
	if err != nil {
		service.logger.Warn("password rehash failed", zap.String("code", "account.rehash"), zap.Error(err))
		return
	}
	if _, saveErr := service.repository.SaveAccount(ctx, existing.WithPasswordRecord(record)); saveErr != nil {
		service.logger.Warn("password rehash not persisted", zap.String("code", "account.rehash"), zap.Error(saveErr))
	}
}

func (service *Service) revokeAll(ctx context.Context, accountID int64, operation string) {
	if err := service.tokens.InvalidateAllUserTokens(ctx, accountID); err != nil {
		service.logger.Warn("token revocation failed", zap.String("code", "account."+operation), zap.Int64("account_id", accountID), zap.Error(err))
	}
}

func validateLocalCredentials(username string, password string) error {
	length := utf8.RuneCountInString(username)
	if length == 0 || length > maxLocalUsernameLength {
		return fmt.Errorf("account.username: %w", ErrInvalidInput)
	}
	if password == "" {
		return fmt.Errorf("account.password: %w", ErrInvalidInput)
	}
	return nil
}

func socialUsername(identity SocialIdentity) string {
	nickname := strings.TrimSpace(identity.Nickname)
	if nickname == "" {
		nickname = strings.ToLower(string(identity.Provider)) + "-user"
	}
	if utf8.RuneCountInString(nickname) > maxNicknameInUsername {
		nickname = string([]rune(nickname)[:maxNicknameInUsername])
	}
	return nickname + "_" + identity.ProviderID
}
