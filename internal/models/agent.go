package models

// Agent is one configured reviewer: a stable human-readable name bound to the
// opaque id the gateway routes on.
type Agent struct {
	Name string `json:"name" mapstructure:"name"`
	ID   string `json:"id" mapstructure:"id"`
}

// DefaultAgents is the stock three-reviewer roster.
func DefaultAgents() []Agent {
	return []Agent{
		{Name: "melchior", ID: "d37c1cc8-bcc4-4b73-9f49-a93a30971f2c"},
		{Name: "balthasar", ID: "6634d0ec-d700-4a92-9066-4960a0f11927"},
		{Name: "casper", ID: "89cbe912-25d0-47b0-97da-b25622bfac0d"},
	}
}
