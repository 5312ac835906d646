package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
)

// shopifyScopes is the read surface the dashboard needs: orders, products,
// inventory and the analytics reports behind ShopifyQL.
const shopifyScopes = "read_orders,read_products,read_inventory,read_analytics,read_reports"

const oauthStateCookie = "shopify_oauth_state"

// ShopifyAuthorize starts the Shopify OAuth handshake by redirecting the
// browser to the store's authorize page, with a state nonce pinned in a
// short-lived cookie.
//
//	GET /auth/shopify
func (h *Handlers) ShopifyAuthorize(w http.ResponseWriter, r *http.Request) {
	state := uuid.New().String()

	q := url.Values{}
	q.Set("client_id", h.shopifyCfg.ClientID)
	q.Set("scope", shopifyScopes)
	q.Set("redirect_uri", h.appURL+"/auth/shopify/callback")
	q.Set("state", state)

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.shopifyAuthBase+"/admin/oauth/authorize?"+q.Encode(), http.StatusFound)
}

// ShopifyCallback finishes the handshake: verifies the state nonce,
// exchanges the authorization code for an access token and persists it.
//
//	GET /auth/shopify/callback?code=...&state=...
func (h *Handlers) ShopifyCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code", "")
		return
	}
	if c, err := r.Cookie(oauthStateCookie); err != nil || c.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "state mismatch", "")
		return
	}

	payload, _ := json.Marshal(map[string]string{
		"client_id":     h.shopifyCfg.ClientID,
		"client_secret": h.shopifyCfg.ClientSecret,
		"code":          code,
	})
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
		h.shopifyAuthBase+"/admin/oauth/access_token", bytes.NewReader(payload))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token exchange failed", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token exchange failed", err.Error())
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token exchange failed", err.Error())
		return
	}
	if resp.StatusCode != http.StatusOK {
		writeError(w, http.StatusInternalServerError, "token exchange failed",
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
		return
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		writeError(w, http.StatusInternalServerError, "token exchange failed", err.Error())
		return
	}

	if err := h.tokens.UpsertToken(r.Context(), domain.OAuthToken{
		Platform:    "shopify",
		Shop:        h.shopifyCfg.StoreDomain,
		AccessToken: tok.AccessToken,
		Scope:       tok.Scope,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "storing token failed", err.Error())
		return
	}

	logger.Info("shopify oauth token stored", "shop", h.shopifyCfg.StoreDomain, "scope", tok.Scope)
	http.Redirect(w, r, h.appURL+"/?auth=success", http.StatusFound)
}

// TikTokAuthorize redirects to the TikTok Business auth portal.
//
//	GET /auth/tiktok
func (h *Handlers) TikTokAuthorize(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	q.Set("app_id", h.tiktokCfg.ClientKey)
	q.Set("redirect_uri", h.appURL+"/auth/tiktok/callback")
	q.Set("state", uuid.New().String())

	http.Redirect(w, r, h.tiktokAuthBase+"/portal/auth?"+q.Encode(), http.StatusFound)
}

// TikTokCallback exchanges the auth code for a long-lived Business API
// token and persists it against the first advertiser account.
//
//	GET /auth/tiktok/callback?auth_code=...
func (h *Handlers) TikTokCallback(w http.ResponseWriter, r *http.Request) {
	authCode := r.URL.Query().Get("auth_code")
	if authCode == "" {
		writeError(w, http.StatusBadRequest, "missing auth code", "")
		return
	}

	payload, _ := json.Marshal(map[string]string{
		"app_id":    h.tiktokCfg.ClientKey,
		"secret":    h.tiktokCfg.ClientSecret,
		"auth_code": authCode,
	})
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
		h.tiktokAuthBase+"/open_api/v1.3/oauth2/access_token/", bytes.NewReader(payload))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token exchange failed", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token exchange failed", err.Error())
		return
	}
	defer resp.Body.Close()

	var out struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			AccessToken   string   `json:"access_token"`
			AdvertiserIDs []string `json:"advertiser_ids"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		writeError(w, http.StatusInternalServerError, "token exchange failed", err.Error())
		return
	}
	if out.Code != 0 {
		writeError(w, http.StatusBadRequest, "token exchange rejected", out.Message)
		return
	}

	advertiserID := h.tiktokCfg.AdvertiserID
	if advertiserID == "" && len(out.Data.AdvertiserIDs) > 0 {
		advertiserID = out.Data.AdvertiserIDs[0]
	}
	if err := h.tokens.UpsertToken(r.Context(), domain.OAuthToken{
		Platform:    "tiktok",
		Shop:        advertiserID,
		AccessToken: out.Data.AccessToken,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "storing token failed", err.Error())
		return
	}

	logger.Info("tiktok oauth token stored", "advertiser_id", advertiserID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"advertiser_ids": out.Data.AdvertiserIDs,
	})
}
