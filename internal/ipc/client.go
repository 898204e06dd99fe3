package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// eventWaitTimeout bounds a blocking Events poll so clients re-poll instead
// of pinning a connection forever.
const eventWaitTimeout = 30 * time.Second

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Gantry.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests daemon shutdown.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Gantry.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit schedules pipeline work for one account.
func (c *Client) Submit(email, mode string, force bool) (*SubmitResponse, error) {
	var resp SubmitResponse
	req := SubmitRequest{Email: email, Mode: mode, Force: force}
	if err := c.client.Call("Gantry.Submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitAll schedules every runnable account.
func (c *Client) SubmitAll(mode string) (*SubmitAllResponse, error) {
	var resp SubmitAllResponse
	if err := c.client.Call("Gantry.SubmitAll", SubmitAllRequest{Mode: mode}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel withdraws or aborts an account's in-flight work.
func (c *Client) Cancel(email string) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.client.Call("Gantry.Cancel", CancelRequest{Email: email}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AccountList returns accounts matching the filter.
func (c *Client) AccountList(req AccountListRequest) (*AccountListResponse, error) {
	var resp AccountListResponse
	if err := c.client.Call("Gantry.AccountList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AccountShow fetches a single account by email.
func (c *Client) AccountShow(email string) (*AccountShowResponse, error) {
	var resp AccountShowResponse
	if err := c.client.Call("Gantry.AccountShow", AccountShowRequest{Email: email}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AccountAdd inserts or updates account credentials.
func (c *Client) AccountAdd(req AccountAddRequest) (*AccountAddResponse, error) {
	var resp AccountAddResponse
	if err := c.client.Call("Gantry.AccountAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AccountRemove deletes an account record.
func (c *Client) AccountRemove(email string) (*AccountRemoveResponse, error) {
	var resp AccountRemoveResponse
	if err := c.client.Call("Gantry.AccountRemove", AccountRemoveRequest{Email: email}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Import ingests bulk credential text.
func (c *Client) Import(content, separator string) (*ImportResponse, error) {
	var resp ImportResponse
	req := ImportRequest{Content: content, Separator: separator}
	if err := c.client.Call("Gantry.Import", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Export renders accounts as bulk credential text.
func (c *Client) Export(status string) (*ExportResponse, error) {
	var resp ExportResponse
	if err := c.client.Call("Gantry.Export", ExportRequest{Status: status}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats fetches aggregated account counts.
func (c *Client) Stats() (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.client.Call("Gantry.Stats", StatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events polls progress events after a sequence cursor.
func (c *Client) Events(since uint64, limit int, wait bool) (*EventsResponse, error) {
	var resp EventsResponse
	req := EventsRequest{Since: since, Limit: limit, Wait: wait}
	if err := c.client.Call("Gantry.Events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Gantry.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
