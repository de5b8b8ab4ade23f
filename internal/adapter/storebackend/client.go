// Package storebackend forwards captured poses to the bed-data service.
package storebackend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roundsbot/internal/adapter/httpclient"
	"roundsbot/internal/app/ports"
)

type Config struct {
	BaseURL            string        `yaml:"base_url"`
	SlotPath           string        `yaml:"slot_path"`
	RoomEntryPath      string        `yaml:"room_entry_path"`
	RoomExitPath       string        `yaml:"room_exit_path"`
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:            "https://192.168.11.200",
		SlotPath:           "/api/medicalbot/bed/data/slot/position/create/",
		RoomEntryPath:      "/api/medicalbot/bed/data/room/entry-point/position/create/",
		RoomExitPath:       "/api/medicalbot/bed/data/room/exit-point/position/create/",
		Timeout:            10 * time.Second,
		InsecureSkipVerify: true,
	}
}

type Client struct {
	cfg    Config
	http   *httpclient.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	def := DefaultConfig()
	if cfg.SlotPath == "" {
		cfg.SlotPath = def.SlotPath
	}
	if cfg.RoomEntryPath == "" {
		cfg.RoomEntryPath = def.RoomEntryPath
	}
	if cfg.RoomExitPath == "" {
		cfg.RoomExitPath = def.RoomExitPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	hc, err := httpclient.New(httpclient.Options{
		Service:            "bed data backend",
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, http: hc, logger: logger}, nil
}

func (c *Client) path(kind ports.PositionKind) (string, error) {
	switch kind {
	case ports.PositionSlot:
		return c.cfg.SlotPath, nil
	case ports.PositionRoomEntry:
		return c.cfg.RoomEntryPath, nil
	case ports.PositionRoomExit:
		return c.cfg.RoomExitPath, nil
	default:
		return "", fmt.Errorf("unknown position kind %q", kind)
	}
}

// CreatePosition posts {<id field>: id, x, y, yaw}. The pose is sent as read
// from localization, without rounding.
func (c *Client) CreatePosition(ctx context.Context, rec ports.PositionRecord) error {
	path, err := c.path(rec.Kind)
	if err != nil {
		return err
	}
	if rec.IDField == "" {
		return &ports.MissingFieldError{Field: "id field"}
	}
	body, err := json.Marshal(map[string]any{
		rec.IDField: rec.IDValue(),
		"x":         rec.Pose.X,
		"y":         rec.Pose.Y,
		"yaw":       rec.Pose.Yaw,
	})
	if err != nil {
		return fmt.Errorf("encode position: %w", err)
	}
	reply, err := c.http.PostJSON(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	if !reply.OK() {
		return &ports.UpstreamError{Service: "bed data backend", Status: reply.Status, Body: httpclient.Snippet(reply.Body)}
	}
	c.logger.Info("position stored", "kind", rec.Kind, rec.IDField, rec.ID, "x", rec.Pose.X, "y", rec.Pose.Y, "yaw", rec.Pose.Yaw)
	return nil
}
