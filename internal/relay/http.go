package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"roomkey/internal/domain"
)

// HTTP is a JSON-over-HTTP meeting API client.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a client rooted at base. A nil client falls back to
// http.DefaultClient.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Base: base, HTTP: client}
}

// GetMeeting fetches meeting metadata.
func (c *HTTP) GetMeeting(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	var out domain.Meeting
	err := c.getJSON(ctx, "/meetings/"+url.PathEscape(id.String()), &out)
	return out, err
}

// ListParticipants returns the meeting's current occupants.
func (c *HTTP) ListParticipants(ctx context.Context, id domain.MeetingID) ([]domain.ParticipantID, error) {
	var out struct {
		Participants []domain.ParticipantID `json:"participants"`
	}
	path := "/meetings/" + url.PathEscape(id.String()) + "/participants"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Participants, nil
}

// RequestAdmission knocks on the waiting room for a guest session.
func (c *HTTP) RequestAdmission(ctx context.Context, id domain.MeetingID, session domain.SessionID) error {
	path := "/meetings/" + url.PathEscape(id.String()) +
		"/external/" + url.PathEscape(session.String()) + "/request-admission"
	return c.post(ctx, path, nil, nil)
}

// JoinExternal registers an invitation token plus freshly generated public
// key material and returns the resulting guest session.
func (c *HTTP) JoinExternal(ctx context.Context, token, displayName string, bundle domain.PublicKeyBundle) (domain.ExternalSession, error) {
	var out domain.ExternalSession
	body := struct {
		DisplayName string                 `json:"displayName"`
		Keys        domain.PublicKeyBundle `json:"keys"`
	}{DisplayName: displayName, Keys: bundle}
	path := "/meetings/external/join/" + url.PathEscape(token)
	if err := c.post(ctx, path, body, &out); err != nil {
		return domain.ExternalSession{}, fmt.Errorf("%w: %v", domain.ErrRegistrationFailed, err)
	}
	return out, nil
}

func (c *HTTP) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if in != nil {
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("meeting api post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("meeting api get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Compile-time assertion that HTTP implements domain.MeetingAPI.
var _ domain.MeetingAPI = (*HTTP)(nil)
