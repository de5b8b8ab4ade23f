// Package navbackend talks to the robot's navigation/localization REST API:
// the POI catalogue, move actions and the current localization pose.
package navbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roundsbot/internal/adapter/httpclient"
	"roundsbot/internal/app/ports"
	"roundsbot/internal/domain/visit"
)

const moveActionName = "slamtec.agent.actions.MoveToAction"

type Config struct {
	BaseURL     string        `yaml:"base_url"`
	POIPath     string        `yaml:"poi_path"`
	ActionsPath string        `yaml:"actions_path"`
	PosePath    string        `yaml:"pose_path"`
	Timeout     time.Duration `yaml:"timeout"`
	// TransportRetries is how many times a move is re-sent after a timeout
	// or connection error. Application-level rejections are never retried.
	TransportRetries int           `yaml:"transport_retries"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:          "http://192.168.11.1:1448",
		POIPath:          "/api/core/artifact/v1/pois",
		ActionsPath:      "/api/core/motion/v1/actions",
		PosePath:         "/api/core/slam/v1/localization/pose/",
		Timeout:          10 * time.Second,
		TransportRetries: 2,
		RetryDelay:       500 * time.Millisecond,
	}
}

type Client struct {
	cfg    Config
	http   *httpclient.Client
	goals  ports.GoalSink
	logger *slog.Logger
}

func New(cfg Config, goals ports.GoalSink, logger *slog.Logger) (*Client, error) {
	def := DefaultConfig()
	if cfg.POIPath == "" {
		cfg.POIPath = def.POIPath
	}
	if cfg.ActionsPath == "" {
		cfg.ActionsPath = def.ActionsPath
	}
	if cfg.PosePath == "" {
		cfg.PosePath = def.PosePath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.TransportRetries < 0 {
		cfg.TransportRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	hc, err := httpclient.New(httpclient.Options{Service: "navigation backend", Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, http: hc, goals: goals, logger: logger}, nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

type moveRequest struct {
	ActionName string      `json:"action_name"`
	Options    moveOptions `json:"options"`
}

type moveOptions struct {
	Target      moveTarget    `json:"target"`
	MoveOptions moveBehaviour `json:"move_options"`
}

type moveTarget struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type moveBehaviour struct {
	Mode                int      `json:"mode"`
	Flags               []string `json:"flags"`
	Yaw                 float64  `json:"yaw"`
	AcceptablePrecision float64  `json:"acceptable_precision"`
	FailRetryCount      int      `json:"fail_retry_count"`
}

func buildMoveRequest(cmd visit.NavigationCommand) moveRequest {
	flags := make([]string, 0, 2)
	if cmd.YawRequired {
		flags = append(flags, "with_yaw")
	}
	if cmd.Precision == visit.PrecisionPrecise {
		flags = append(flags, "precise")
	}
	return moveRequest{
		ActionName: moveActionName,
		Options: moveOptions{
			Target: moveTarget{X: cmd.Target.X, Y: cmd.Target.Y, Z: 0},
			MoveOptions: moveBehaviour{
				Mode:           0,
				Flags:          flags,
				Yaw:            cmd.Target.Yaw,
				FailRetryCount: cmd.MaxRetries,
			},
		},
	}
}

// MoveTo sends one move action. A 2xx answer only acknowledges the goal;
// arrival is reported later by the operator surface.
func (c *Client) MoveTo(ctx context.Context, cmd visit.NavigationCommand) (ports.MoveAck, error) {
	body, err := json.Marshal(buildMoveRequest(cmd))
	if err != nil {
		return ports.MoveAck{}, fmt.Errorf("encode move action: %w", err)
	}

	maxAttempts := 1 + c.cfg.TransportRetries
	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reply, err := c.http.PostJSON(ctx, c.url(c.cfg.ActionsPath), body)
		if err == nil {
			if !reply.OK() {
				return ports.MoveAck{Attempts: attempt, Status: reply.Status}, &ports.UpstreamError{
					Service: "navigation backend",
					Status:  reply.Status,
					Body:    httpclient.Snippet(reply.Body),
				}
			}
			c.logger.Info("navigation command sent", "location", cmd.LocationLabel, "x", cmd.Target.X, "y", cmd.Target.Y, "yaw", cmd.Target.Yaw, "attempt", attempt)
			if c.goals != nil {
				c.goals.Publish(cmd)
			}
			return ports.MoveAck{Attempts: attempt, Status: reply.Status}, nil
		}
		if ctx.Err() != nil {
			return ports.MoveAck{Attempts: attempt}, ctx.Err()
		}
		last = err
		c.logger.Warn("navigation command transport failure", "location", cmd.LocationLabel, "attempt", attempt, "max_attempts", maxAttempts, "error", err)
		if attempt < maxAttempts && c.cfg.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return ports.MoveAck{Attempts: attempt}, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}
	}
	return ports.MoveAck{Attempts: maxAttempts}, &ports.RetryExhaustedError{Attempts: maxAttempts, Last: last}
}

type poiRecord struct {
	Metadata *struct {
		DisplayName *string `json:"display_name"`
	} `json:"metadata"`
	Pose *poseBody `json:"pose"`
}

type poseBody struct {
	X   *float64 `json:"x"`
	Y   *float64 `json:"y"`
	Yaw *float64 `json:"yaw"`
}

// FetchCatalogue returns every POI record. The whole answer is rejected if it
// is not a JSON list of objects.
func (c *Client) FetchCatalogue(ctx context.Context) ([]ports.CatalogueRecord, error) {
	reply, err := c.http.Get(ctx, c.url(c.cfg.POIPath))
	if err != nil {
		return nil, err
	}
	if !reply.OK() {
		return nil, &ports.UpstreamError{Service: "poi catalogue", Status: reply.Status, Body: httpclient.Snippet(reply.Body)}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(reply.Body, &raw); err != nil {
		return nil, fmt.Errorf("%w: poi response is not a list: %v", ports.ErrInvalidPayload, err)
	}
	out := make([]ports.CatalogueRecord, 0, len(raw))
	for i, item := range raw {
		var rec poiRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, fmt.Errorf("%w: poi %d: %v", ports.ErrInvalidPayload, i, err)
		}
		var entry ports.CatalogueRecord
		if rec.Metadata != nil {
			entry.DisplayName = rec.Metadata.DisplayName
		}
		if rec.Pose != nil {
			p := visit.Pose{X: deref(rec.Pose.X), Y: deref(rec.Pose.Y), Yaw: deref(rec.Pose.Yaw)}
			entry.Pose = &p
		}
		out = append(out, entry)
	}
	return out, nil
}

// CurrentPose reads the robot's localization estimate.
func (c *Client) CurrentPose(ctx context.Context) (visit.Pose, error) {
	reply, err := c.http.Get(ctx, c.url(c.cfg.PosePath))
	if err != nil {
		return visit.Pose{}, err
	}
	if !reply.OK() {
		return visit.Pose{}, &ports.UpstreamError{Service: "localization", Status: reply.Status, Body: httpclient.Snippet(reply.Body)}
	}
	var body poseBody
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return visit.Pose{}, fmt.Errorf("%w: localization pose: %v", ports.ErrInvalidPayload, err)
	}
	if body.X == nil || body.Y == nil || body.Yaw == nil {
		return visit.Pose{}, fmt.Errorf("%w: localization did not return x, y, yaw", ports.ErrInvalidPayload)
	}
	return visit.Pose{X: *body.X, Y: *body.Y, Yaw: *body.Yaw}, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
