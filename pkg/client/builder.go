package client

// BuilderClient is the builder-authenticated state. Every signed request
// carries the POLY_BUILDER_* header set in addition to the normal L2
// headers; the second signature comes from the configured BuilderSigner
// (local HMAC or remote signing service).
type BuilderClient struct {
	AuthedClient
}

// Clone creates a peer builder handle.
func (bc *BuilderClient) Clone() *BuilderClient {
	bc.c.handles.Add(1)
	return &BuilderClient{AuthedClient: AuthedClient{Client: Client{c: bc.c}}}
}

// Demote drops the builder signer and returns the plain authenticated
// handle. The heartbeat task, if running, is cancelled and awaited
// before the transition and restarted after it. Requires a sole handle.
func (bc *BuilderClient) Demote() (*AuthedClient, error) {
	c := bc.c
	if err := c.requireSoleHandle("demote from builder"); err != nil {
		return nil, err
	}

	interval := bc.pauseHeartbeat()

	c.mu.Lock()
	c.builder = nil
	c.mu.Unlock()

	ac := &AuthedClient{Client: Client{c: c}}
	if interval > 0 {
		ac.StartHeartbeat(interval)
	}
	c.logger.Info("demoted from builder")
	return ac, nil
}
