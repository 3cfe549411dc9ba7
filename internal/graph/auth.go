package graph

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"groupsync/internal/domain"
)

// scopes requests the directory's default audience; granular permissions are
// carried by the app registration, not the token request.
var scopes = []string{"https://graph.microsoft.com/.default"}

// TokenProvider supplies bearer tokens for directory requests. The azidentity
// credential types satisfy it; tests substitute a static provider.
type TokenProvider interface {
	GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error)
}

// NewClientSecretProvider builds an app-only credential from a client secret.
// This is the provider for unattended runs (daemon mode, CI).
func NewClientSecretProvider(tenantID, clientID, clientSecret string) (TokenProvider, error) {
	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	if err != nil {
		return nil, domain.ErrAuth("create client secret credential: %v", err)
	}
	return cred, nil
}

// NewDeviceCodeProvider builds an interactive device-code credential. The
// sign-in instructions are written to w.
func NewDeviceCodeProvider(tenantID, clientID string, w io.Writer) (TokenProvider, error) {
	cred, err := azidentity.NewDeviceCodeCredential(&azidentity.DeviceCodeCredentialOptions{
		TenantID: tenantID,
		ClientID: clientID,
		UserPrompt: func(_ context.Context, msg azidentity.DeviceCodeMessage) error {
			_, err := fmt.Fprintln(w, msg.Message)
			return err
		},
	})
	if err != nil {
		return nil, domain.ErrAuth("create device code credential: %v", err)
	}
	return cred, nil
}
