package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sqlitoy/sqlitoy/internal/engine"
	"github.com/sqlitoy/sqlitoy/internal/sql"
)

type queryRequest struct {
	Query string `json:"query"`
}

// handleQuery parses the request body's query into a statement batch,
// runs it against the engine, and reports the last statement's result
// and the batch's runtime. Any engine error (parse, schema, constraint,
// value, or I/O) maps to HTTP 400; the specific kind is logged but not
// distinguished in the response.
func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Query) > MaxQueryLength {
		BadRequestError(c, fmt.Sprintf("query too long, maximum %d bytes", MaxQueryLength))
		return
	}

	start := time.Now()
	stmts, err := sql.PlanBatch(req.Query)
	if err != nil {
		s.respondError(c, req.Query, err)
		return
	}

	result, err := s.eng.RunBatch(stmts)
	runtime := time.Since(start).Seconds()
	if err != nil {
		s.respondError(c, req.Query, err)
		return
	}

	s.log.LogResponse("query", runtime*1000, "request_id", requestID(c))
	writeResult(c, resultPayload(result), runtime)
}

// resultPayload renders a Result the way the /query response's "result"
// field expects: null for DDL/INSERT, a bare count for DELETE/UPDATE, or
// the row list for SELECT.
func resultPayload(r engine.Result) interface{} {
	switch r.Kind {
	case engine.CountResult:
		return r.Count
	case engine.RowsResult:
		if r.Rows == nil {
			return []interface{}{}
		}
		return r.Rows
	default:
		return nil
	}
}

func (s *Server) respondError(c *gin.Context, query string, err error) {
	s.log.LogError("query", err, "request_id", requestID(c), "query", query)
	BadRequestError(c, err.Error())
}
