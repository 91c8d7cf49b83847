package vault

import (
	"fmt"

	"github.com/hashicorp/vault/api"
)

// Vault holds the kv mount where payment gateway credentials live. The
// engine reads the API key at startup; it is never persisted elsewhere.
type Vault struct {
	GatewayPath string
	*api.Client
}

func New(token, unsealKey, address, gatewayPath string) (*Vault, error) {
	config := &api.Config{
		Address: address,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("new: error initializing vault: %w", err)
	}

	client.SetToken(token)

	s := client.Sys()
	status, err := s.SealStatus()
	if err != nil {
		return nil, fmt.Errorf("new: error getting seal status: %w", err)
	}

	if status.Sealed {
		unsealResponse, err := s.Unseal(unsealKey)
		if err != nil {
			return nil, fmt.Errorf("new: error getting unseal response: %w", err)
		}
		if unsealResponse.Sealed {
			return nil, fmt.Errorf("new: vault unseal unsuccesfull")
		}
	}

	if err := createIfNotExists(client, gatewayPath); err != nil {
		return nil, fmt.Errorf("new: unable to mount gateway path: %w", err)
	}

	return &Vault{GatewayPath: gatewayPath, Client: client}, nil
}

// GatewayCredential reads the named secret under the gateway mount.
func (v *Vault) GatewayCredential(key string) (string, error) {
	secret, err := v.Logical().Read(v.GatewayPath + "/credentials")
	if err != nil {
		return "", fmt.Errorf("gatewayCredential: error reading secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("gatewayCredential: no credentials at %s", v.GatewayPath)
	}

	value, ok := secret.Data[key].(string)
	if !ok {
		return "", fmt.Errorf("gatewayCredential: key %s missing", key)
	}
	return value, nil
}

// StoreGatewayCredential writes the credential; used by provisioning tooling
// and tests.
func (v *Vault) StoreGatewayCredential(key, value string) error {
	_, err := v.Logical().Write(v.GatewayPath+"/credentials", map[string]interface{}{key: value})
	if err != nil {
		return fmt.Errorf("storeGatewayCredential: error writing secret: %w", err)
	}
	return nil
}

func createIfNotExists(client *api.Client, path string) error {
	mounts, err := client.Sys().ListMounts()
	if err != nil {
		return fmt.Errorf("createIfNotExists: unable to list mounts: %w", err)
	}

	if _, ok := mounts[path+"/"]; !ok {
		err = client.Sys().Mount(path, &api.MountInput{Type: "kv"})
		if err != nil {
			return fmt.Errorf("createIfNotExists: unable to create path: %w", err)
		}
	}

	return nil
}
