package syncapi

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tablesync/core/dataset"
	"tablesync/core/portal"
	"tablesync/core/sync"
)

// RunRequest is the body of a sync request.
type RunRequest struct {
	// SourceTable is the database table records are read from.
	SourceTable string `json:"source_table"`

	// TargetTable is a database table to sync into. Mutually exclusive
	// with TargetService.
	TargetTable string `json:"target_table"`

	// TargetService is a feature-service table URL to sync into.
	TargetService string `json:"target_service"`

	// Method is TRUNCATE or COMPARE.
	Method string `json:"method"`

	// IDField keys the comparison. Empty falls back to the configured
	// default.
	IDField string `json:"id_field"`

	// ChunkSize caps records per batch. Zero falls back to the default.
	ChunkSize int `json:"chunk_size"`

	// ExcludedFields are skipped on top of the built-in exclusions.
	ExcludedFields []string `json:"excluded_fields"`

	// Profile names a stored portal profile for TargetService access.
	Profile string `json:"profile"`

	// PortalURL, Username and Password are the explicit login alternative
	// to Profile.
	PortalURL string `json:"portal_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// RunResponse summarizes a finished run for the API caller.
type RunResponse struct {
	RunID         string        `json:"run_id"`
	State         string        `json:"state"`
	Method        string        `json:"method"`
	Inserts       int           `json:"inserts"`
	Updates       int           `json:"updates"`
	Deletes       int           `json:"deletes"`
	RecordCount   int           `json:"record_count"`
	ElapsedMs     int64         `json:"elapsed_ms"`
	FailedBatches []BatchReport `json:"failed_batches,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// BatchReport is one failed batch in the response.
type BatchReport struct {
	Operation string `json:"operation"`
	Batch     int    `json:"batch"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Error     string `json:"error"`
}

// Service runs syncs on behalf of the API.
type Service struct {
	engine   *sync.Engine
	db       *gorm.DB
	defaults sync.Config
	logger   *zap.Logger
}

// NewService creates a new sync service.
func NewService(engine *sync.Engine, db *gorm.DB, defaults sync.Config, logger *zap.Logger) *Service {
	return &Service{engine: engine, db: db, defaults: defaults, logger: logger}
}

// Run builds the spec from the request and executes it. Spec validation is
// the engine's job; the response carries whatever it decides.
func (s *Service) Run(ctx context.Context, req RunRequest) *RunResponse {
	result := s.engine.Refresh(ctx, s.buildSpec(req))
	return toResponse(result)
}

func (s *Service) buildSpec(req RunRequest) sync.Spec {
	idField := req.IDField
	if idField == "" {
		idField = s.defaults.IDField
	}
	chunk := req.ChunkSize
	if chunk == 0 {
		chunk = s.defaults.ChunkSize
	}

	spec := sync.Spec{
		Method:         sync.Method(req.Method),
		IDField:        idField,
		ChunkSize:      chunk,
		ExcludedFields: req.ExcludedFields,
	}

	if req.SourceTable != "" {
		spec.Source = dataset.NewSQLTable(s.db, req.SourceTable, idField)
	}
	if req.TargetTable != "" {
		spec.Target = dataset.NewSQLTable(s.db, req.TargetTable, idField)
	}
	if req.TargetService != "" {
		spec.TargetService = req.TargetService
		creds := resolveCredentials(req)
		spec.Credentials = &creds
	}

	return spec
}

// resolveCredentials picks the credential form; a named profile wins over an
// explicit login when both are supplied.
func resolveCredentials(req RunRequest) portal.CredentialSpec {
	if req.Profile != "" {
		return portal.ProfileCredentials(req.Profile)
	}
	return portal.LoginCredentials(req.PortalURL, req.Username, req.Password)
}

func toResponse(result *sync.Result) *RunResponse {
	resp := &RunResponse{
		RunID:       result.RunID,
		State:       string(result.State),
		Method:      string(result.Method),
		Inserts:     result.Inserts,
		Updates:     result.Updates,
		Deletes:     result.Deletes,
		RecordCount: result.RecordCount,
		ElapsedMs:   result.Elapsed.Milliseconds(),
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	for _, o := range result.FailedBatches() {
		resp.FailedBatches = append(resp.FailedBatches, BatchReport{
			Operation: string(o.Kind),
			Batch:     o.BatchIndex,
			Attempted: o.Attempted,
			Succeeded: o.Succeeded,
			Error:     o.Err.Error(),
		})
	}
	return resp
}
