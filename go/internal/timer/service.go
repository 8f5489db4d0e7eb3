package timer

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// TimerServiceName is the fully-qualified name of the timer RPC service
const TimerServiceName = "arena.timer.v1.TimerService"

// Procedure paths, in the form connect clients dial
const (
	TimerServiceStatusProcedure     = "/" + TimerServiceName + "/Status"
	TimerServiceStartProcedure      = "/" + TimerServiceName + "/Start"
	TimerServicePauseProcedure      = "/" + TimerServiceName + "/Pause"
	TimerServiceResumeProcedure     = "/" + TimerServiceName + "/Resume"
	TimerServiceRestartProcedure    = "/" + TimerServiceName + "/Restart"
	TimerServiceRemoveTimeProcedure = "/" + TimerServiceName + "/RemoveTime"
)

// Request fields understood by the service
const (
	FieldTimer           = "timer"
	FieldDurationSeconds = "duration_seconds"
	FieldWithCountdown   = "with_countdown"
	FieldSeconds         = "seconds"
)

type (
	structRequest  = connect.Request[structpb.Struct]
	structResponse = connect.Response[structpb.Struct]
)

// TimerServiceHandler is the server side of arena.timer.v1.TimerService
type TimerServiceHandler interface {
	Status(context.Context, *structRequest) (*structResponse, error)
	Start(context.Context, *structRequest) (*structResponse, error)
	Pause(context.Context, *structRequest) (*structResponse, error)
	Resume(context.Context, *structRequest) (*structResponse, error)
	Restart(context.Context, *structRequest) (*structResponse, error)
	RemoveTime(context.Context, *structRequest) (*structResponse, error)
}

// NewTimerServiceHandler builds an HTTP handler serving every procedure of the service.
// It returns the path prefix to mount it on.
func NewTimerServiceHandler(svc TimerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	handlers := map[string]http.Handler{
		TimerServiceStatusProcedure:     connect.NewUnaryHandler(TimerServiceStatusProcedure, svc.Status, opts...),
		TimerServiceStartProcedure:      connect.NewUnaryHandler(TimerServiceStartProcedure, svc.Start, opts...),
		TimerServicePauseProcedure:      connect.NewUnaryHandler(TimerServicePauseProcedure, svc.Pause, opts...),
		TimerServiceResumeProcedure:     connect.NewUnaryHandler(TimerServiceResumeProcedure, svc.Resume, opts...),
		TimerServiceRestartProcedure:    connect.NewUnaryHandler(TimerServiceRestartProcedure, svc.Restart, opts...),
		TimerServiceRemoveTimeProcedure: connect.NewUnaryHandler(TimerServiceRemoveTimeProcedure, svc.RemoveTime, opts...),
	}
	return "/" + TimerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// Service implements the timer RPC interface on top of the registry
type Service struct {
	registry *Registry
}

// NewService creates a new timer RPC service
func NewService(registry *Registry) *Service {
	return &Service{registry: registry}
}

// Verify that Service implements the TimerServiceHandler interface
var _ TimerServiceHandler = (*Service)(nil)

// Status returns the snapshot of the requested timer
func (s *Service) Status(ctx context.Context, req *structRequest) (*structResponse, error) {
	engine, err := s.engine(req.Msg)
	if err != nil {
		return nil, err
	}
	return snapshotResponse(engine.Snapshot(), nil)
}

// Start starts the requested timer
func (s *Service) Start(ctx context.Context, req *structRequest) (*structResponse, error) {
	engine, err := s.engine(req.Msg)
	if err != nil {
		return nil, err
	}
	fields := req.Msg.GetFields()
	duration, err := Seconds(fields[FieldDurationSeconds].GetNumberValue())
	if err != nil {
		return nil, connect.NewError(ErrorCode(err), err)
	}
	withCountdown := fields[FieldWithCountdown].GetBoolValue()
	return snapshotResponse(engine.Start(duration, withCountdown))
}

// Pause pauses the requested timer
func (s *Service) Pause(ctx context.Context, req *structRequest) (*structResponse, error) {
	engine, err := s.engine(req.Msg)
	if err != nil {
		return nil, err
	}
	return snapshotResponse(engine.Pause())
}

// Resume resumes the requested timer
func (s *Service) Resume(ctx context.Context, req *structRequest) (*structResponse, error) {
	engine, err := s.engine(req.Msg)
	if err != nil {
		return nil, err
	}
	withCountdown := req.Msg.GetFields()[FieldWithCountdown].GetBoolValue()
	return snapshotResponse(engine.Resume(withCountdown))
}

// Restart resets the requested timer to Idle
func (s *Service) Restart(ctx context.Context, req *structRequest) (*structResponse, error) {
	engine, err := s.engine(req.Msg)
	if err != nil {
		return nil, err
	}
	return snapshotResponse(engine.Restart(), nil)
}

// RemoveTime removes seconds from the requested timer
func (s *Service) RemoveTime(ctx context.Context, req *structRequest) (*structResponse, error) {
	engine, err := s.engine(req.Msg)
	if err != nil {
		return nil, err
	}
	seconds, err := Seconds(req.Msg.GetFields()[FieldSeconds].GetNumberValue())
	if err != nil {
		return nil, connect.NewError(ErrorCode(err), err)
	}
	return snapshotResponse(engine.RemoveTime(seconds))
}

func (s *Service) engine(msg *structpb.Struct) (*Engine, error) {
	name := strings.TrimSpace(msg.GetFields()[FieldTimer].GetStringValue())
	if name == "" {
		name = MatchTimer
	}
	engine, err := s.registry.Get(name)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	return engine, nil
}

func snapshotResponse(snap Snapshot, opErr error) (*structResponse, error) {
	if opErr != nil {
		return nil, connect.NewError(ErrorCode(opErr), opErr)
	}
	msg, err := SnapshotToStruct(snap)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// ErrorCode maps timer errors onto connect codes
func ErrorCode(err error) connect.Code {
	switch {
	case errors.Is(err, ErrInvalidDuration):
		return connect.CodeInvalidArgument
	case errors.Is(err, ErrNotRunning), errors.Is(err, ErrNothingToResume):
		return connect.CodeFailedPrecondition
	case errors.Is(err, ErrUnknownTimer):
		return connect.CodeNotFound
	default:
		return connect.CodeInternal
	}
}

// SnapshotToStruct converts a snapshot to its protobuf Struct form
func SnapshotToStruct(snap Snapshot) (*structpb.Struct, error) {
	var countdown interface{}
	if snap.CountdownText != nil {
		countdown = *snap.CountdownText
	}
	return structpb.NewStruct(map[string]interface{}{
		"timer":             snap.Timer,
		"phase":             snap.Phase.String(),
		"is_running":        snap.IsRunning,
		"time_left_seconds": snap.TimeLeftSeconds,
		"duration_seconds":  snap.DurationSeconds,
		"countdown_text":    countdown,
		"generation":        float64(snap.Generation),
		"display":           snap.Display,
	})
}

// SnapshotFromStruct is the inverse of SnapshotToStruct, used by clients
func SnapshotFromStruct(msg *structpb.Struct) Snapshot {
	fields := msg.GetFields()
	snap := Snapshot{
		Timer:           fields["timer"].GetStringValue(),
		Phase:           ParsePhase(fields["phase"].GetStringValue()),
		IsRunning:       fields["is_running"].GetBoolValue(),
		TimeLeftSeconds: fields["time_left_seconds"].GetNumberValue(),
		DurationSeconds: fields["duration_seconds"].GetNumberValue(),
		Generation:      uint64(fields["generation"].GetNumberValue()),
		Display:         fields["display"].GetStringValue(),
	}
	if v, ok := fields["countdown_text"].GetKind().(*structpb.Value_StringValue); ok {
		text := v.StringValue
		snap.CountdownText = &text
	}
	return snap
}

// ParsePhase parses a phase name, returning PhaseIdle for unknown names
func ParsePhase(name string) Phase {
	for p := PhaseIdle; p <= PhaseFinished; p++ {
		if p.String() == name {
			return p
		}
	}
	return PhaseIdle
}
