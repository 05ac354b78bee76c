package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/soundmesh-core/internal/speaker"
)

// HTTP client defaults.
const (
	// maxResponseBytes bounds how much of a device response is read.
	// Status payloads are well under 4 KiB; anything larger is garbage.
	maxResponseBytes = 64 * 1024

	// volumeScale converts between the device's 0-100 integer volume
	// and the internal 0.0-1.0 scale.
	volumeScale = 100
)

// HTTPClient implements Controller against the speakers' LinkPlay-style
// HTTP API: every operation is a GET on /httpapi.asp?command=<cmd>.
type HTTPClient struct {
	httpc *http.Client
}

// NewHTTPClient creates a speaker HTTP client.
//
// Per-request deadlines come from the caller's context; the embedded
// http.Client carries no timeout of its own so a single slow device
// cannot stretch beyond what the poller or coordinator allows.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		httpc: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// playerStatus is the wire form of a status/topology poll response.
// The firmware reports every numeric field as a string.
type playerStatus struct {
	Status     string `json:"status"`      // play, pause, stop, load
	Volume     string `json:"vol"`         // "0".."100"
	Mute       string `json:"mute"`        // "0" or "1"
	Source     string `json:"source"`      // wifi, bluetooth, line-in, ...
	Group      string `json:"group"`       // "0" solo, "1" grouped
	MasterUUID string `json:"master_uuid"` // present on slaves only
}

// deviceStatus is the wire form of a health poll response. It carries the
// same playback fields plus slow-changing device attributes.
type deviceStatus struct {
	playerStatus
	DeviceName string `json:"DeviceName"`
	Firmware   string `json:"firmware"`
}

// Poll fetches the speaker's current state.
//
// Status and topology polls hit getPlayerStatus; health polls hit
// getStatusEx, which additionally reports the device name and firmware.
func (c *HTTPClient) Poll(ctx context.Context, address string, kind PollKind) (Status, error) {
	observedAt := time.Now().UTC()

	if kind == PollHealth {
		body, err := c.get(ctx, address, "getStatusEx")
		if err != nil {
			return Status{}, err
		}
		var ds deviceStatus
		if err := json.Unmarshal(body, &ds); err != nil {
			return Status{}, fmt.Errorf("%w: %w", ErrBadResponse, err)
		}
		return Status{
			Snapshot: decodeSnapshot(ds.playerStatus, observedAt),
			Name:     ds.DeviceName,
			Firmware: ds.Firmware,
		}, nil
	}

	body, err := c.get(ctx, address, "getPlayerStatus")
	if err != nil {
		return Status{}, err
	}
	var ps playerStatus
	if err := json.Unmarshal(body, &ps); err != nil {
		return Status{}, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return Status{Snapshot: decodeSnapshot(ps, observedAt)}, nil
}

// SetVolume sets the absolute volume level.
func (c *HTTPClient) SetVolume(ctx context.Context, address string, level float64) error {
	level = math.Min(1, math.Max(0, level))
	steps := int(math.Round(level * volumeScale))
	return c.command(ctx, address, fmt.Sprintf("setPlayerCmd:vol:%d", steps))
}

// SetMute sets the mute state.
func (c *HTTPClient) SetMute(ctx context.Context, address string, muted bool) error {
	flag := "0"
	if muted {
		flag = "1"
	}
	return c.command(ctx, address, "setPlayerCmd:mute:"+flag)
}

// RequestJoin asks the slave to synchronise with the master.
func (c *HTTPClient) RequestJoin(ctx context.Context, slaveAddress, masterAddress string) error {
	return c.command(ctx, slaveAddress, "ConnectMasterAp:JoinGroupMaster:eth"+masterAddress+":wifi0.0.0.0")
}

// RequestLeave detaches the speaker from its group. Sent to a master this
// dissolves the whole group, which is why Disband shares the command.
func (c *HTTPClient) RequestLeave(ctx context.Context, address string) error {
	return c.command(ctx, address, "multiroom:Ungroup")
}

// RequestDisband dissolves the group mastered at masterAddress.
func (c *HTTPClient) RequestDisband(ctx context.Context, masterAddress string) error {
	return c.command(ctx, masterAddress, "multiroom:Ungroup")
}

// command issues a fire-and-verify command: the device answers "OK" when
// it accepts the command.
func (c *HTTPClient) command(ctx context.Context, address, cmd string) error {
	body, err := c.get(ctx, address, cmd)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) != "OK" {
		return fmt.Errorf("%w: %q", ErrRejected, truncate(string(body), 64))
	}
	return nil
}

// get performs one HTTP API request and returns the raw body.
func (c *HTTPClient) get(ctx context.Context, address, cmd string) ([]byte, error) {
	u := url.URL{
		Scheme:   "http",
		Host:     address,
		Path:     "/httpapi.asp",
		RawQuery: "command=" + url.QueryEscape(cmd),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best-effort close of response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d", ErrBadResponse, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrUnreachable, err)
	}
	return body, nil
}

// decodeSnapshot converts the wire status to the tagged snapshot model.
//
// Unknown play states decode to idle and unknown group indicators are
// passed through raw so role detection fails safe to solo downstream.
func decodeSnapshot(ps playerStatus, observedAt time.Time) speaker.StatusSnapshot {
	snap := speaker.StatusSnapshot{
		PlayState:  decodePlayState(ps.Status),
		Volume:     decodeVolume(ps.Volume),
		Muted:      ps.Mute == "1",
		Source:     ps.Source,
		ObservedAt: observedAt,
	}

	switch ps.Group {
	case "", "0":
		snap.GroupField = "solo"
	case "1":
		if ps.MasterUUID != "" {
			master := ps.MasterUUID
			snap.GroupField = "slave"
			snap.MasterID = &master
		} else {
			snap.GroupField = "master"
		}
	default:
		snap.GroupField = ps.Group
	}
	return snap
}

func decodePlayState(status string) speaker.PlayState {
	switch strings.ToLower(status) {
	case "play":
		return speaker.PlayStatePlaying
	case "pause":
		return speaker.PlayStatePaused
	case "load":
		return speaker.PlayStateLoading
	default:
		// "stop" and anything unrecognised
		return speaker.PlayStateIdle
	}
}

func decodeVolume(vol string) float64 {
	n, err := strconv.Atoi(strings.TrimSpace(vol))
	if err != nil {
		return 0
	}
	return math.Min(1, math.Max(0, float64(n)/volumeScale))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
