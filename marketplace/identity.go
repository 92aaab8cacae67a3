package marketplace

// AdminInfo is the identity of a marketplace administrator.
type AdminInfo struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// OwnerInfo is the identity of a property owner.
type OwnerInfo struct {
	ID         string `json:"id"`
	Domain     string `json:"domain"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Properties int    `json:"properties,omitempty"`
}

// TenantInfo is the identity of a tenant.
type TenantInfo struct {
	ID      string `json:"id"`
	Domain  string `json:"domain"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	LeaseID string `json:"lease_id,omitempty"`
}

// Dashboard is the payload of the protected dashboard resource.
type Dashboard struct {
	Domain  string `json:"domain"`
	Subject string `json:"subject"`
}
