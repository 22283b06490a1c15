package cinode

import (
	"fmt"
	"strings"
)

const (
	// DefaultBaseURL is the API root without the company segment
	DefaultBaseURL = "https://api.cinode.com/v0.1"

	// DefaultTokenURL exchanges an access code for a bearer token
	DefaultTokenURL = "https://api.cinode.com/token"
)

// Endpoints builds request paths below one company root such as
// https://api.cinode.com/v0.1/companies/31. Paths are formatted
// deterministically since they double as cache keys.
type Endpoints struct {
	Root string
}

// NewEndpoints returns the endpoints for companyID under baseURL
func NewEndpoints(baseURL string, companyID int) Endpoints {
	return Endpoints{Root: fmt.Sprintf("%s/companies/%d", strings.TrimRight(baseURL, "/"), companyID)}
}

func (e Endpoints) Customers() string {
	return e.Root + "/customers"
}

func (e Endpoints) Customer(id int) string {
	return fmt.Sprintf("%s/customers/%d", e.Root, id)
}

func (e Endpoints) CustomerAttachment(customerID int, attachmentID string) string {
	return fmt.Sprintf("%s/customers/%d/attachments/%s", e.Root, customerID, attachmentID)
}

func (e Endpoints) Projects() string {
	return e.Root + "/projects"
}

func (e Endpoints) Project(id int) string {
	return fmt.Sprintf("%s/projects/%d", e.Root, id)
}

func (e Endpoints) ProjectAttachment(projectID int, attachmentID string) string {
	return fmt.Sprintf("%s/projects/%d/attachments/%s", e.Root, projectID, attachmentID)
}

func (e Endpoints) SubContractors() string {
	return e.Root + "/subcontractors"
}

func (e Endpoints) SubContractorAttachment(subContractorID int, attachmentID string) string {
	return fmt.Sprintf("%s/subcontractors/%d/attachments/%s", e.Root, subContractorID, attachmentID)
}
