package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// DefaultKakaoUserInfoURL is Kakao's user-info endpoint.
const DefaultKakaoUserInfoURL = "https://kapi.kakao.com/v2/user/me"

const kakaoDefaultNickname = "kakao-user"

// KakaoClient resolves a Kakao access token to the Kakao user it was issued for.
type KakaoClient struct {
	userInfoURL string
	httpClient  *http.Client
}

// NewKakaoClient builds a client; an empty URL selects DefaultKakaoUserInfoURL and a nil
// httpClient selects http.DefaultClient.
func NewKakaoClient(userInfoURL string, httpClient *http.Client) *KakaoClient {
	if strings.TrimSpace(userInfoURL) == "" {
		userInfoURL = DefaultKakaoUserInfoURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &KakaoClient{userInfoURL: userInfoURL, httpClient: httpClient}
}

type kakaoUserInfo struct {
	ID         json.Number `json:"id"`
	Properties *struct {
		Nickname string `json:"nickname"`
	} `json:"properties"`
}

// FetchIdentity calls the user-info endpoint with accessToken as the bearer credential.
func (client *KakaoClient) FetchIdentity(ctx context.Context, accessToken string) (Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Identity{}, fmt.Errorf("oauth.kakao: %w", ErrInvalidIdentity)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client.httpClient)
	authorized := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, client.userInfoURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("oauth.kakao.request: %w", err)
	}
	response, err := authorized.Do(request)
	if err != nil {
		return Identity{}, fmt.Errorf("oauth.kakao.call: %w: %w", ErrProviderUnavailable, err)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusBadRequest:
		return Identity{}, fmt.Errorf("oauth.kakao.status_%d: %w", response.StatusCode, ErrInvalidIdentity)
	case response.StatusCode != http.StatusOK:
		return Identity{}, fmt.Errorf("oauth.kakao.status_%d: %w", response.StatusCode, ErrProviderUnavailable)
	}

	var userInfo kakaoUserInfo
	decoder := json.NewDecoder(response.Body)
	decoder.UseNumber()
	if decodeErr := decoder.Decode(&userInfo); decodeErr != nil {
		return Identity{}, fmt.Errorf("oauth.kakao.decode: %w: %w", ErrInvalidIdentity, decodeErr)
	}
	providerID := userInfo.ID.String()
	if providerID == "" {
		return Identity{}, fmt.Errorf("oauth.kakao.missing_id: %w", ErrInvalidIdentity)
	}
	nickname := kakaoDefaultNickname
	if userInfo.Properties != nil && strings.TrimSpace(userInfo.Properties.Nickname) != "" {
		nickname = userInfo.Properties.Nickname
	}
	return Identity{ProviderID: providerID, Nickname: nickname}, nil
}
