package client

import (
	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
	"polymarket-sdk/pkg/ws"
)

// channelHandle pairs one channel's connection with its router. Channels
// are created lazily on the first subscribe and live until the last
// client handle closes (user channel: or until deauthentication).
type channelHandle struct {
	conn   *ws.Conn
	router *ws.Router
}

func (h *channelHandle) close() {
	h.router.Close()
	h.conn.Close()
}

func (c *core) openChannel(channel ws.Channel) *channelHandle {
	cfg := ws.Config{
		URL:    c.wsBase + "/" + string(channel),
		Logger: c.logger,
	}
	if c.wsTune != nil {
		c.wsTune(&cfg)
	}
	conn := ws.NewConn(cfg)
	return &channelHandle{
		conn:   conn,
		router: ws.NewRouter(conn, channel, c.logger),
	}
}

// marketChannel returns the public channel, creating it on first use.
func (c *core) marketChannel() *ws.Router {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.market == nil {
		c.market = c.openChannel(ws.ChannelMarket)
	}
	return c.market.router
}

func (c *core) userChannel() *ws.Router {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		c.user = c.openChannel(ws.ChannelUser)
	}
	return c.user.router
}

// MarketSubscription describes a public market-data demand.
type MarketSubscription struct {
	AssetIDs    []string
	Kinds       []types.EventKind
	InitialDump *bool
}

// WatchMarkets subscribes to public market-data events for the given
// asset ids. The returned stream yields only the requested kinds and
// assets; closing it releases this consumer's share of the subscription.
func (cl *Client) WatchMarkets(sub MarketSubscription) (*ws.Stream, error) {
	kinds := sub.Kinds
	if len(kinds) == 0 {
		kinds = []types.EventKind{
			types.KindBook,
			types.KindPriceChange,
			types.KindTickSizeChange,
			types.KindLastTradePrice,
			types.KindBestBidAsk,
		}
	}
	return cl.c.marketChannel().Subscribe(ws.SubscribeRequest{
		Kinds:       kinds,
		Keys:        sub.AssetIDs,
		InitialDump: sub.InitialDump,
	})
}

// MarketChannelStatus reports the public channel's connection status.
// Disconnected is returned before the first subscribe.
func (cl *Client) MarketChannelStatus() types.ConnStatus {
	cl.c.mu.Lock()
	market := cl.c.market
	cl.c.mu.Unlock()
	if market == nil {
		return types.ConnStatus{State: types.Disconnected}
	}
	return market.conn.Status()
}

// WatchUser subscribes to the authenticated account's order and trade
// events for the given market (condition) ids.
func (ac *AuthedClient) WatchUser(markets []string, kinds ...types.EventKind) (*ws.Stream, error) {
	ac.c.mu.Lock()
	creds := ac.c.creds
	hasCreds := ac.c.hasCreds
	ac.c.mu.Unlock()
	if !hasCreds {
		return nil, apierr.Validationf("user channel requires credentials")
	}

	if len(kinds) == 0 {
		kinds = []types.EventKind{types.KindOrder, types.KindTrade}
	}
	return ac.c.userChannel().Subscribe(ws.SubscribeRequest{
		Kinds: kinds,
		Keys:  markets,
		Auth:  creds.WSAuth(),
	})
}

// closeUserChannel tears the user channel down entirely; used by
// deauthentication.
func (c *core) closeUserChannel() {
	c.mu.Lock()
	user := c.user
	c.user = nil
	c.mu.Unlock()
	if user != nil {
		user.close()
	}
}
