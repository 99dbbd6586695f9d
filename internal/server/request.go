package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/scoresmith/internal/score"
	"github.com/kingrea/scoresmith/internal/store"
)

const (
	// ProtocolVersion identifies the HTTP contract exposed via /health.
	ProtocolVersion = "1.0.0"
	// RequestSchemaVersion is the supported build request version.
	RequestSchemaVersion = 1
)

// ErrUnknownScore is returned by a Builder for scores it cannot resolve.
var ErrUnknownScore = errors.New("unknown score")

// BuildRequest asks for one score, or one segment of it, to be rebuilt.
type BuildRequest struct {
	Version   int       `json:"version"`
	RequestID string    `json:"request_id,omitempty"`
	Score     string    `json:"score"`
	Segment   string    `json:"segment,omitempty"`
	Received  time.Time `json:"received"`
}

// Normalize applies defaults and trims identifiers before validation.
func (r *BuildRequest) Normalize() {
	if r.Version == 0 {
		r.Version = RequestSchemaVersion
	}
	r.RequestID = strings.TrimSpace(r.RequestID)
	r.Score = strings.TrimSpace(r.Score)
	r.Segment = strings.TrimSpace(r.Segment)
}

// Validate enforces baseline schema requirements.
func (r BuildRequest) Validate() error {
	if r.Version != RequestSchemaVersion {
		return fmt.Errorf("version %d not supported", r.Version)
	}
	if r.Score == "" {
		return errors.New("score is required")
	}
	if strings.ContainsAny(r.Score+r.Segment, `/\`) {
		return errors.New("score and segment must not contain path separators")
	}
	return nil
}

// Builder runs build requests.
type Builder interface {
	HandleBuild(ctx context.Context, req BuildRequest) (*score.Report, error)
}

// BuilderFunc adapts a function into a Builder.
type BuilderFunc func(context.Context, BuildRequest) (*score.Report, error)

// HandleBuild executes f(ctx, req).
func (f BuilderFunc) HandleBuild(ctx context.Context, req BuildRequest) (*score.Report, error) {
	return f(ctx, req)
}

// Catalog is the read side of the segment store.
type Catalog interface {
	Scores() ([]string, error)
	Segments(score string) ([]string, error)
	Load(score, name string) (store.Record, error)
}

// Logger records server status information. It matches logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Builds        int64  `json:"builds"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type buildResponse struct {
	Status    string        `json:"status"`
	RequestID string        `json:"request_id,omitempty"`
	Received  time.Time     `json:"received"`
	Report    *score.Report `json:"report,omitempty"`
	Error     string        `json:"error,omitempty"`
}
