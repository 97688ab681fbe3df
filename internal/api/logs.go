package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/edgelatency/internal/api/models"
	"github.com/smazurov/edgelatency/internal/logging"
)

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Newest entries from the in-memory log buffer, oldest first",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, in *models.LogsRequest) (*models.LogsResponse, error) {
		entries := filterLogs(logging.GetBuffer(), in.Level, in.Module, in.Limit)
		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Count: len(entries)},
		}, nil
	})
}

func filterLogs(buf *logging.RingBuffer, level, module string, limit int) []models.LogEntry {
	out := []models.LogEntry{}
	if buf == nil {
		return out
	}

	var floor slog.Level
	if level != "" {
		_ = floor.UnmarshalText([]byte(level))
	}

	keep := func(e logging.LogEntry) bool {
		if level != "" {
			var l slog.Level
			if err := l.UnmarshalText([]byte(e.Level)); err == nil && l < floor {
				return false
			}
		}
		return module == "" || strings.EqualFold(e.Module, module)
	}

	for _, e := range buf.Tail(limit, keep) {
		out = append(out, models.LogEntry{
			Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
			Level:      e.Level,
			Module:     e.Module,
			Message:    e.Message,
			Attributes: e.Attributes,
		})
	}
	return out
}
