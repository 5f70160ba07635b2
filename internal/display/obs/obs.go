// Package obs drives the countdown scene of an OBS Studio instance over the
// obs-websocket v5 protocol.
package obs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	DefaultSceneName = "Countdown Scene"
	DefaultFontFace  = "Help Me"
	DefaultFontSize  = 240

	subprotocol = "obswebsocket.json"
	rpcVersion  = 1
	textKind    = "text_ft2_source_v2"
	inputPrefix = "Countdown Timer "
)

// obs-websocket opcodes
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opRequest         = 6
	opRequestResponse = 7
)

var ErrNotConnected = errors.New("obs: not connected")

// RequestError is a request OBS received and rejected.
type RequestError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("obs: %s failed (%d): %s", e.RequestType, e.Code, e.Comment)
}

type Config struct {
	Addr      string
	Password  string
	SceneName string
	FontFace  string
	FontSize  int
}

// Client is not safe for concurrent use.
type Client struct {
	cfg    Config
	conn   *websocket.Conn
	nextID atomic.Uint64

	inputName   string
	sceneItemID int
}

func New(cfg Config) *Client {
	if cfg.SceneName == "" {
		cfg.SceneName = DefaultSceneName
	}
	if cfg.FontFace == "" {
		cfg.FontFace = DefaultFontFace
	}
	if cfg.FontSize == 0 {
		cfg.FontSize = DefaultFontSize
	}
	return &Client{cfg: cfg}
}

type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type hello struct {
	RPCVersion     int `json:"rpcVersion"`
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type identify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type request struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type response struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData"`
}

// Connect dials OBS and completes the Hello/Identify handshake.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		_ = c.Close()
	}

	conn, _, err := websocket.Dial(ctx, "ws://"+c.cfg.Addr, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
	})
	if err != nil {
		return fmt.Errorf("obs: dial %s: %w", c.cfg.Addr, err)
	}

	if err := c.handshake(ctx, conn); err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, "handshake failed")
		return err
	}
	c.conn = conn
	return nil
}

func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) error {
	var env envelope
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		return fmt.Errorf("obs: read hello: %w", err)
	}
	if env.Op != opHello {
		return fmt.Errorf("obs: expected hello, got op %d", env.Op)
	}
	var h hello
	if err := json.Unmarshal(env.D, &h); err != nil {
		return fmt.Errorf("obs: decode hello: %w", err)
	}

	id := identify{RPCVersion: rpcVersion}
	if h.Authentication != nil {
		id.Authentication = AuthResponse(c.cfg.Password, h.Authentication.Salt, h.Authentication.Challenge)
	}
	if err := write(ctx, conn, opIdentify, id); err != nil {
		return fmt.Errorf("obs: identify: %w", err)
	}

	if err := wsjson.Read(ctx, conn, &env); err != nil {
		return fmt.Errorf("obs: read identified: %w", err)
	}
	if env.Op != opIdentified {
		return fmt.Errorf("obs: expected identified, got op %d", env.Op)
	}
	return nil
}

// AuthResponse computes the obs-websocket authentication string.
func AuthResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

func write(ctx context.Context, conn *websocket.Conn, op int, d any) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, envelope{Op: op, D: payload})
}

// call sends one request and waits for its response, skipping events.
func (c *Client) call(ctx context.Context, requestType string, data any, out any) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	id := strconv.FormatUint(c.nextID.Add(1), 10)
	req := request{RequestType: requestType, RequestID: id, RequestData: data}
	if err := write(ctx, c.conn, opRequest, req); err != nil {
		return fmt.Errorf("obs: send %s: %w", requestType, err)
	}

	for {
		var env envelope
		if err := wsjson.Read(ctx, c.conn, &env); err != nil {
			return fmt.Errorf("obs: await %s: %w", requestType, err)
		}
		if env.Op != opRequestResponse {
			continue
		}
		var resp response
		if err := json.Unmarshal(env.D, &resp); err != nil {
			return fmt.Errorf("obs: decode %s: %w", requestType, err)
		}
		if resp.RequestID != id {
			continue
		}
		if !resp.RequestStatus.Result {
			return &RequestError{RequestType: requestType, Code: resp.RequestStatus.Code, Comment: resp.RequestStatus.Comment}
		}
		if out != nil && len(resp.ResponseData) > 0 {
			if err := json.Unmarshal(resp.ResponseData, out); err != nil {
				return fmt.Errorf("obs: decode %s data: %w", requestType, err)
			}
		}
		return nil
	}
}

type font struct {
	Face string `json:"face"`
	Size int    `json:"size"`
}

// ResetScene drops any previous countdown scene and builds a fresh one whose
// text input is named after runID.
func (c *Client) ResetScene(ctx context.Context, runID string) error {
	scene := map[string]any{"sceneName": c.cfg.SceneName}

	var reqErr *RequestError
	if err := c.call(ctx, "RemoveScene", scene, nil); err != nil && !errors.As(err, &reqErr) {
		return err
	}
	if err := c.call(ctx, "CreateScene", scene, nil); err != nil {
		return err
	}
	if err := c.call(ctx, "SetCurrentProgramScene", scene, nil); err != nil {
		return err
	}

	inputName := inputPrefix + runID
	var created struct {
		SceneItemID int `json:"sceneItemId"`
	}
	err := c.call(ctx, "CreateInput", map[string]any{
		"sceneName": c.cfg.SceneName,
		"inputName": inputName,
		"inputKind": textKind,
		"inputSettings": map[string]any{
			"text":   "5:00",
			"font":   font{Face: c.cfg.FontFace, Size: c.cfg.FontSize},
			"color":  uint32(0xFFFFFFFF),
			"color1": uint32(0xFF001FEF),
			"color2": uint32(0xFF000069),
		},
	}, &created)
	if err != nil {
		return err
	}
	c.inputName = inputName
	c.sceneItemID = created.SceneItemID

	// alignment 0 anchors the item at its centre
	return c.call(ctx, "SetSceneItemTransform", map[string]any{
		"sceneName":          c.cfg.SceneName,
		"sceneItemId":        c.sceneItemID,
		"sceneItemTransform": map[string]any{"alignment": 0},
	}, nil)
}

func (c *Client) SetText(ctx context.Context, text string) error {
	return c.call(ctx, "SetInputSettings", map[string]any{
		"inputName": c.inputName,
		"inputSettings": map[string]any{
			"text": text,
			"font": font{Face: c.cfg.FontFace, Size: c.cfg.FontSize},
		},
	}, nil)
}

func (c *Client) CanvasWidth(ctx context.Context) (float64, error) {
	var vs struct {
		BaseWidth float64 `json:"baseWidth"`
	}
	if err := c.call(ctx, "GetVideoSettings", nil, &vs); err != nil {
		return 0, err
	}
	return vs.BaseWidth, nil
}

func (c *Client) SetElementPosition(ctx context.Context, x float64) error {
	return c.call(ctx, "SetSceneItemTransform", map[string]any{
		"sceneName":          c.cfg.SceneName,
		"sceneItemId":        c.sceneItemID,
		"sceneItemTransform": map[string]any{"positionX": x},
	}, nil)
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close(websocket.StatusNormalClosure, "bye")
}
