package broker

import (
	"encoding/json"
	"fmt"
	"time"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ensureToken returns a cached access token, refreshing it when absent or
// within one minute of expiry.
func (c *Client) ensureToken() (string, error) {
	c.mu.RLock()
	token := c.accessToken
	expiry := c.tokenExpiry
	c.mu.RUnlock()

	if token != "" && time.Until(expiry) > time.Minute {
		return token, nil
	}

	raw, err := c.doRequest(requestJob{
		method: "POST",
		path:   "/oauth2/tokenP",
		body: map[string]string{
			"grant_type": "client_credentials",
			"appkey":     c.appKey,
			"appsecret":  c.appSecret,
		},
	})
	if err != nil {
		return "", fmt.Errorf("broker: token refresh: %w", err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("broker: parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("broker: token refresh returned no access_token")
	}

	c.mu.Lock()
	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.mu.Unlock()

	return tok.AccessToken, nil
}

type approvalResponse struct {
	ApprovalKey string `json:"approval_key"`
}

// ApprovalKey obtains a fresh WebSocket approval key, used to open a
// Gateway session without consuming the REST access-token quota.
func (c *Client) ApprovalKey() (string, error) {
	raw, err := c.call("POST", "/oauth2/Approval", "", nil, map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey,
		"secretkey":  c.appSecret,
	}, false)
	if err != nil {
		return "", fmt.Errorf("broker: approval key: %w", err)
	}

	var res approvalResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("broker: parse approval response: %w", err)
	}
	if res.ApprovalKey == "" {
		return "", fmt.Errorf("broker: approval response had no approval_key")
	}
	return res.ApprovalKey, nil
}
