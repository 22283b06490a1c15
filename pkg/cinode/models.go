package cinode

import "errors"

// AttachmentType tells how an attachment is materialized
type AttachmentType int

const (
	AttachmentTypeFile AttachmentType = 0
	AttachmentTypeURI  AttachmentType = 1
)

// Customer is one entry of the customer list
type Customer struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CustomerDetail is a single customer with its claimed projects.
// The zero value means the customer has nothing to harvest.
type CustomerDetail struct {
	ID          *int         `json:"id"`
	Projects    []ProjectRef `json:"projects"`
	Attachments []Attachment `json:"attachments"`
}

// Empty reports whether the customer has neither attachments nor projects
func (d CustomerDetail) Empty() bool {
	return len(d.Attachments) == 0 && len(d.Projects) == 0
}

// Validate rejects bodies lacking the projects or attachments arrays,
// such as API error objects
func (d CustomerDetail) Validate() error {
	if d.Projects == nil || d.Attachments == nil {
		return errors.New("customer detail without projects or attachments")
	}
	return nil
}

// ProjectRef is the lightweight project reference found inside a customer
type ProjectRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// ProjectDetailed is an entry of the global project list
type ProjectDetailed struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	CustomerID int    `json:"customerId"`
}

// Attachment is a file or link owned by a customer or project
type Attachment struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	AttachmentType AttachmentType `json:"attachmentType"`
	Links          []Link         `json:"links,omitempty"`
}

// IsFile reports whether the attachment is written as a binary file
func (a Attachment) IsFile() bool {
	return a.AttachmentType == AttachmentTypeFile
}

type Link struct {
	Href    string   `json:"href"`
	Rel     *string  `json:"rel,omitempty"`
	Methods []string `json:"methods"`
}

// ProjectAttachments is the attachment listing of one project
type ProjectAttachments struct {
	Attachments []Attachment `json:"attachments"`
}

// Validate rejects bodies lacking the attachments array
func (p ProjectAttachments) Validate() error {
	if p.Attachments == nil {
		return errors.New("project listing without attachments")
	}
	return nil
}

// SubContractor is one entry of the sub-contractor list
type SubContractor struct {
	ID            int                          `json:"id"`
	CompanyUserID int                          `json:"companyUserId"`
	FirstName     string                       `json:"firstName"`
	LastName      string                       `json:"lastName"`
	Attachments   []SubContractorAttachmentRef `json:"attachments"`
}

// FullName is the directory name used for the sub-contractor
func (s SubContractor) FullName() string {
	return s.FirstName + " " + s.LastName
}

type SubContractorAttachmentRef struct {
	ID string `json:"id"`
}

// Token is the response of the token endpoint
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
