package auth

import (
	"os"
	"strconv"
	"time"
)

// EnvironmentStore reads a single credential from CINODE_ACCESS and
// CINODE_COMPANY_ID. It is read-only.
type EnvironmentStore struct{}

// DefaultCredentialName names the credential taken from the environment
const DefaultCredentialName = "default"

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credential. Only an empty name or
// DefaultCredentialName match it.
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	access := os.Getenv("CINODE_ACCESS")
	if access == "" {
		return nil, ErrCredentialsNotFound
	}
	if name != "" && name != DefaultCredentialName {
		return nil, ErrCredentialsNotFound
	}

	companyID, _ := strconv.Atoi(os.Getenv("CINODE_COMPANY_ID"))
	return &Credential{
		Name:         DefaultCredentialName,
		AccessCode:   access,
		CompanyID:    companyID,
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
