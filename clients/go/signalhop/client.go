// Package signalhop provides a client for the SignalHop polling signaling relay.
package signalhop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a SignalHop API client. Token is the bearer token returned by
// Register; requests to the rtc endpoints fail without it.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new SignalHop client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request.
func (c *Client) doRequest(method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("signalhop error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// RegisterResponse is the response from caller registration.
type RegisterResponse struct {
	ID         string `json:"id"`
	Token      string `json:"token"`
	ProfileURL string `json:"profile_url"`
}

// Register registers a new caller and stores the returned token on the client.
func (c *Client) Register(name string) (*RegisterResponse, error) {
	body, _ := json.Marshal(map[string]string{"name": name})
	respBody, err := c.doRequest("POST", "/register", body)
	if err != nil {
		return nil, err
	}

	var resp RegisterResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}

	c.Token = resp.Token
	return &resp, nil
}

// JoinResponse is the response from joining a room.
type JoinResponse struct {
	Success      bool     `json:"success"`
	Participants []string `json:"participants"`
}

// Join registers presence in a room and returns the other participants.
func (c *Client) Join(room string) (*JoinResponse, error) {
	respBody, err := c.doRequest("POST", "/rtc/join/"+room, nil)
	if err != nil {
		return nil, err
	}

	var resp JoinResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Leave drops presence in a room.
func (c *Client) Leave(room string) error {
	_, err := c.doRequest("POST", "/rtc/leave/"+room, nil)
	return err
}

// SendRequest is the request body for sending a signal. TargetID nil means
// broadcast to every other participant.
type SendRequest struct {
	TargetID *string `json:"target_id,omitempty"`
	Kind     string  `json:"kind"`
	Payload  string  `json:"payload"`
}

// SendResponse is the response from sending a signal.
type SendResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

// Send relays one signaling message into the room.
func (c *Client) Send(room string, targetID *string, kind, payload string) (*SendResponse, error) {
	body, _ := json.Marshal(SendRequest{TargetID: targetID, Kind: kind, Payload: payload})
	respBody, err := c.doRequest("POST", "/rtc/signal/"+room, body)
	if err != nil {
		return nil, err
	}

	var resp SendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signal is one relayed signaling message.
type Signal struct {
	ID        int64   `json:"id"`
	Room      string  `json:"room"`
	SenderID  string  `json:"sender_id"`
	TargetID  *string `json:"target_id"`
	Kind      string  `json:"kind"`
	Payload   string  `json:"payload"`
	CreatedAt string  `json:"created_at"`
}

// PollResponse is the response from polling a room. Latest is the cursor to
// pass as since on the next poll.
type PollResponse struct {
	Success bool     `json:"success"`
	Signals []Signal `json:"signals"`
	Latest  int64    `json:"latest"`
}

// Poll fetches signals addressed to this caller with id > since.
func (c *Client) Poll(room string, since int64) (*PollResponse, error) {
	respBody, err := c.doRequest("GET", fmt.Sprintf("/rtc/poll/%s?since=%d", room, since), nil)
	if err != nil {
		return nil, err
	}

	var resp PollResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RoomInfo represents one active room.
type RoomInfo struct {
	Room         string `json:"room"`
	Participants int64  `json:"participants"`
	LastSeen     string `json:"last_seen"`
}

// RoomsResponse is the response from listing active rooms.
type RoomsResponse struct {
	Rooms []RoomInfo `json:"rooms"`
	Total int        `json:"total"`
}

// ListRooms lists rooms with at least one present participant.
func (c *Client) ListRooms() (*RoomsResponse, error) {
	respBody, err := c.doRequest("GET", "/rooms", nil)
	if err != nil {
		return nil, err
	}

	var resp RoomsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health() (*HealthResponse, error) {
	respBody, err := c.doRequest("GET", "/health", nil)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
