// Package tiktok implements the external platform integration: OAuth code
// exchange, token refresh and the multi-step video upload/publish flow.
package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/social-post-scheduler/internal/model"
)

// ErrNotConnected is returned when a user has no usable TikTok credential
// and cannot obtain one by refreshing.
var ErrNotConnected = errors.New("tiktok account not connected")

// TokenStore persists refreshed platform credentials back onto the user
// record. *repository.UserRepo satisfies it.
type TokenStore interface {
	SetTikTokTokens(ctx context.Context, userID uint64, access, refresh, openID string, expiresAt time.Time) error
}

// TokenData mirrors the fields of TikTok's oauth token response that we
// care about.
type TokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	OpenID       string `json:"open_id"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Client talks to the TikTok open API. The zero value is not usable;
// construct with New. BaseURL is variable so tests can point the client
// at a local httptest server.
type Client struct {
	ClientKey    string
	ClientSecret string
	RedirectURI  string
	BaseURL      string
	AuthURL      string
	HTTP         *http.Client
	Now          func() time.Time
}

func New(clientKey, clientSecret, redirectURI string) *Client {
	return &Client{
		ClientKey:    clientKey,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		BaseURL:      "https://open.tiktokapis.com/v2",
		AuthURL:      "https://www.tiktok.com/v2/auth/authorize/",
		HTTP:         &http.Client{Timeout: 30 * time.Second},
		Now:          time.Now,
	}
}

// Enabled reports whether platform credentials were configured. When
// false the TikTok routes answer with an explanatory error instead of
// calling out with empty credentials.
func (c *Client) Enabled() bool {
	return c.ClientKey != "" && c.ClientSecret != ""
}

// AuthorizationURL builds the user-facing consent URL. The state value is
// echoed back on the callback and must be verified there.
func (c *Client) AuthorizationURL(state string) string {
	q := url.Values{}
	q.Set("client_key", c.ClientKey)
	q.Set("response_type", "code")
	q.Set("scope", "user.info.basic,video.publish")
	q.Set("redirect_uri", c.RedirectURI)
	q.Set("state", state)
	return c.AuthURL + "?" + q.Encode()
}

// ExchangeCode trades an authorization code for a token set.
func (c *Client) ExchangeCode(ctx context.Context, code string) (TokenData, error) {
	form := url.Values{}
	form.Set("client_key", c.ClientKey)
	form.Set("client_secret", c.ClientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.RedirectURI)
	return c.tokenRequest(ctx, form)
}

// RefreshToken trades a platform refresh token for a new token set.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (TokenData, error) {
	form := url.Values{}
	form.Set("client_key", c.ClientKey)
	form.Set("client_secret", c.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.tokenRequest(ctx, form)
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (TokenData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/oauth/token/", strings.NewReader(form.Encode()))
	if err != nil {
		return TokenData{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return TokenData{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return TokenData{}, fmt.Errorf("tiktok token request failed: %s: %s", resp.Status, body)
	}
	var td TokenData
	if err := json.NewDecoder(resp.Body).Decode(&td); err != nil {
		return TokenData{}, err
	}
	if td.AccessToken == "" {
		return TokenData{}, errors.New("tiktok token response missing access_token")
	}
	return td, nil
}

// EnsureValidToken returns a usable access token for the user, refreshing
// and persisting it when the stored one expires within five minutes.
// ErrNotConnected means the user must go through the consent flow again.
func (c *Client) EnsureValidToken(ctx context.Context, store TokenStore, user *model.User) (string, error) {
	if user.TikTokAccessToken == nil {
		return "", ErrNotConnected
	}
	deadline := c.Now().UTC().Add(5 * time.Minute)
	if user.TikTokTokenExpiresAt != nil && !user.TikTokTokenExpiresAt.UTC().After(deadline) {
		if user.TikTokRefreshToken == nil {
			return "", ErrNotConnected
		}
		td, err := c.RefreshToken(ctx, *user.TikTokRefreshToken)
		if err != nil {
			return "", ErrNotConnected
		}
		exp := c.Now().UTC().Add(time.Duration(td.ExpiresIn) * time.Second)
		openID := td.OpenID
		if openID == "" && user.TikTokOpenID != nil {
			openID = *user.TikTokOpenID
		}
		if err := store.SetTikTokTokens(ctx, user.ID, td.AccessToken, td.RefreshToken, openID, exp); err != nil {
			return "", err
		}
		user.TikTokAccessToken = &td.AccessToken
		user.TikTokRefreshToken = &td.RefreshToken
		user.TikTokTokenExpiresAt = &exp
	}
	return *user.TikTokAccessToken, nil
}

// PostVideo runs the three-step publish flow: init the upload, send the
// video bytes, then publish. Returns the platform post id.
func (c *Client) PostVideo(ctx context.Context, accessToken string, video []byte, caption string) (string, error) {
	// Step 1: initialize the upload.
	initBody, _ := json.Marshal(map[string]any{
		"post_info": map[string]any{"title": caption, "privacy_level": "PUBLIC"},
	})
	var initResp struct {
		Data struct {
			UploadID string `json:"upload_id"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, accessToken, "/video/init/", bytes.NewReader(initBody), "application/json", &initResp); err != nil {
		return "", fmt.Errorf("init upload: %w", err)
	}
	if initResp.Data.UploadID == "" {
		return "", errors.New("tiktok init response missing upload_id")
	}

	// Step 2: upload the video bytes as multipart form data.
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("upload_id", initResp.Data.UploadID); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("video", "video.mp4")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(video); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	if err := c.doJSON(ctx, accessToken, "/video/upload/", &buf, w.FormDataContentType(), nil); err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}

	// Step 3: publish the upload.
	publishBody, _ := json.Marshal(map[string]string{"upload_id": initResp.Data.UploadID})
	var publishResp struct {
		Data struct {
			PostID string `json:"post_id"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, accessToken, "/video/publish/", bytes.NewReader(publishBody), "application/json", &publishResp); err != nil {
		return "", fmt.Errorf("publish video: %w", err)
	}
	return publishResp.Data.PostID, nil
}

func (c *Client) doJSON(ctx context.Context, accessToken, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", contentType)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: %s", resp.Status, b)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
