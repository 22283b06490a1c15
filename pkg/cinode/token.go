package cinode

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	errs "cinodeharvest/pkg/errors"
)

// Authenticate exchanges accessCode for a bearer token.
// The access code is sent base64 encoded as a Basic credential.
func Authenticate(ctx context.Context, httpClient *http.Client, tokenURL, accessCode string) (*Token, error) {
	if accessCode == "" {
		return nil, errs.New(errs.ErrorTypeAuth, 0, "access code is empty")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeAuth, err, "failed to create token request")
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(accessCode)))

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "token request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read token response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.Quota(resp.StatusCode, "token endpoint rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.ErrorTypeAuth, resp.StatusCode, fmt.Sprintf("token endpoint returned %d", resp.StatusCode))
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeAuth, err, "failed to decode token response")
	}
	if token.AccessToken == "" {
		return nil, errs.New(errs.ErrorTypeAuth, resp.StatusCode, "token response carries no access token")
	}
	return &token, nil
}
