package instance

// Wire payloads for the instance-lifecycle pub/sub channels .

type instanceRecord struct {
	ID                string   `json:"id"`
	Priority          int      `json:"priority"`
	RegisteredClients []string `json:"registeredClients"`
}

type instanceEventMsg struct {
	Instance instanceRecord `json:"instance"`
}

type regenerateClientsMsg struct {
	Names []string `json:"names,omitempty"` // empty/nil means "all"
}

type destroyClientMsg struct {
	Name string `json:"name"`
}
