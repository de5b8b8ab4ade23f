package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"roundsbot/internal/app/gateway"
	"roundsbot/internal/app/ports"
	"roundsbot/internal/app/replay"
	"roundsbot/internal/app/status"
	"roundsbot/internal/domain/visit"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

type Handler struct {
	GatewayUC gateway.UseCase
	StatusUC  status.UseCase
	ReplayUC  replay.UseCase
	KPI       kpiSnapshotProvider
	Telemetry kpiSnapshotProvider
	CORS      CORSPolicy
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware(h.CORS))

	webhook := s.Group("/webhook")
	webhook.POST("/skip-slot/", h.skipSlot)
	webhook.POST("/trigger-slot-position/", h.slotPosition)
	webhook.POST("/create-room-entry-position/", h.roomEntryPosition)
	webhook.POST("/create-room-exit-position/", h.roomExitPosition)
	webhook.POST("/demo-shown-completed/", h.demoCompleted)
	webhook.POST("/get/volume/", h.volume)

	task := s.Group("/api/task")
	task.GET("/status", h.taskStatus)
	task.GET("/history", h.taskHistory)

	s.GET("/ops/kpi", h.kpi)
	s.GET("/ops/telemetry", h.telemetry)
}

// scalar accepts a JSON string or number and keeps its text form. Operator
// tablets send ids both ways; number records which one arrived so ids can be
// echoed back in the same JSON type.
type scalar struct {
	text   string
	number bool
}

func (s *scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = scalar{}
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = scalar{text: v}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = scalar{text: n.String(), number: true}
	return nil
}

type skipRequest struct {
	Reason  scalar `json:"reason"`
	BatchID scalar `json:"batch_id"`
}

type slotRequest struct {
	SlotID scalar `json:"slot_id"`
}

type roomPositionRequest struct {
	RoomPosID scalar `json:"room_pos_id"`
}

type demoRequest struct {
	PatientID scalar `json:"patient_id"`
}

type volumeRequest struct {
	Volume scalar `json:"volume"`
}

var reasonMessages = map[visit.EventKind]string{
	visit.EventTimeout:          "The slot is timed out",
	visit.EventHelp:             "The patient has requested help",
	visit.EventNotMe:            "The patient is not the person",
	visit.EventConfirmed:        "The patient is confirmed",
	visit.EventPatientCompleted: "The patient is confirmed",
}

func (h Handler) skipSlot(c context.Context, ctx *app.RequestContext) {
	var body skipRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "Invalid JSON payload.")
		return
	}
	resp, err := h.GatewayUC.Skip(c, gateway.SkipRequest{Reason: body.Reason.text, BatchID: body.BatchID.text})
	if err != nil {
		writeError(ctx, err)
		return
	}
	message := "unhandled reason"
	if resp.Handled {
		message = reasonMessages[resp.Event]
	}
	writeOK(ctx, consts.StatusOK, message, resp)
}

func (h Handler) slotPosition(c context.Context, ctx *app.RequestContext) {
	var body slotRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "Invalid JSON payload.")
		return
	}
	resp, err := h.GatewayUC.CreateSlotPosition(c, gateway.PositionRequest{ID: body.SlotID.text, Numeric: body.SlotID.number})
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeOK(ctx, consts.StatusCreated, "Slot created successfully.", resp.Body())
}

func (h Handler) roomEntryPosition(c context.Context, ctx *app.RequestContext) {
	var body roomPositionRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "Invalid JSON payload.")
		return
	}
	resp, err := h.GatewayUC.CreateRoomEntryPosition(c, gateway.PositionRequest{ID: body.RoomPosID.text, Numeric: body.RoomPosID.number})
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeOK(ctx, consts.StatusCreated, "Entry point position created successfully.", resp.Body())
}

func (h Handler) roomExitPosition(c context.Context, ctx *app.RequestContext) {
	var body roomPositionRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "Invalid JSON payload.")
		return
	}
	resp, err := h.GatewayUC.CreateRoomExitPosition(c, gateway.PositionRequest{ID: body.RoomPosID.text, Numeric: body.RoomPosID.number})
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeOK(ctx, consts.StatusCreated, "Exit point position created successfully.", resp.Body())
}

func (h Handler) demoCompleted(c context.Context, ctx *app.RequestContext) {
	var body demoRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "Invalid JSON payload.")
		return
	}
	if err := h.GatewayUC.DemoCompleted(c, body.PatientID.text); err != nil {
		writeError(ctx, err)
		return
	}
	writeOK(ctx, consts.StatusOK, "Camera detection started", map[string]string{"patient_id": body.PatientID.text})
}

func (h Handler) volume(c context.Context, ctx *app.RequestContext) {
	var body volumeRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "Invalid JSON payload.")
		return
	}
	if err := h.GatewayUC.SetVolume(c, body.Volume.text); err != nil {
		writeError(ctx, err)
		return
	}
	writeOK(ctx, consts.StatusOK, "Volume updated", map[string]string{"volume": body.Volume.text})
}

func (h Handler) taskStatus(c context.Context, ctx *app.RequestContext) {
	resp, err := h.StatusUC.Execute(c)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeOK(ctx, consts.StatusOK, "ok", resp)
}

func (h Handler) taskHistory(c context.Context, ctx *app.RequestContext) {
	limit, err := queryInt(ctx, "limit")
	if err != nil {
		writeError(ctx, replay.ErrInvalidRequest)
		return
	}
	from, err := queryInt(ctx, "finished_from")
	if err != nil {
		writeError(ctx, replay.ErrInvalidRequest)
		return
	}
	to, err := queryInt(ctx, "finished_to")
	if err != nil {
		writeError(ctx, replay.ErrInvalidRequest)
		return
	}
	resp, err := h.ReplayUC.Execute(c, replay.Request{
		Limit:        int(limit),
		Outcome:      string(ctx.Query("outcome")),
		FinishedFrom: from,
		FinishedTo:   to,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeOK(ctx, consts.StatusOK, "ok", resp)
}

type kpiSnapshotProvider interface {
	SnapshotAny() any
}

func (h Handler) kpi(_ context.Context, ctx *app.RequestContext) {
	if h.KPI == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "kpi provider not configured")
		return
	}
	writeOK(ctx, consts.StatusOK, "ok", h.KPI.SnapshotAny())
}

func (h Handler) telemetry(_ context.Context, ctx *app.RequestContext) {
	if h.Telemetry == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "telemetry not configured")
		return
	}
	writeOK(ctx, consts.StatusOK, "ok", h.Telemetry.SnapshotAny())
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := bytes.TrimSpace(ctx.Request.Body())
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, out)
}

func queryInt(ctx *app.RequestContext, key string) (int64, error) {
	raw := string(ctx.Query(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func writeError(ctx *app.RequestContext, err error) {
	var upstream *ports.UpstreamError
	switch {
	case errors.Is(err, ports.ErrMissingField):
		writeErrorBody(ctx, consts.StatusUnprocessableEntity, "missing_field", err.Error())
	case errors.Is(err, replay.ErrInvalidRequest):
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
	case errors.As(err, &upstream):
		writeErrorData(ctx, consts.StatusBadGateway, "upstream_rejected", err.Error(), upstream.Body)
	case errors.Is(err, ports.ErrInvalidPayload):
		writeErrorBody(ctx, consts.StatusBadGateway, "upstream_invalid_payload", err.Error())
	case errors.Is(err, ports.ErrTimeout),
		errors.Is(err, ports.ErrConnection):
		writeErrorBody(ctx, consts.StatusGatewayTimeout, "upstream_unreachable", err.Error())
	case errors.Is(err, ports.ErrQueueFull):
		writeErrorBody(ctx, consts.StatusInternalServerError, "event_queue_full", err.Error())
	default:
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeOK(ctx *app.RequestContext, status int, message string, data any) {
	ctx.JSON(status, map[string]any{
		"status":  "success",
		"message": message,
		"data":    data,
	})
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	writeErrorData(ctx, status, code, message, nil)
}

func writeErrorData(ctx *app.RequestContext, status int, code, message string, detail any) {
	data := map[string]any{"code": code}
	if detail != nil {
		data["detail"] = detail
	}
	ctx.JSON(status, map[string]any{
		"status":  "error",
		"message": message,
		"data":    data,
	})
}
