package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/edgelatency/internal/api/models"
)

func (s *Server) registerSystemdRoutes() {
	if s.options.Systemd == nil || s.options.ServiceUnit == "" {
		return
	}

	unit := s.options.ServiceUnit

	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-status",
		Method:      http.MethodGet,
		Path:        "/api/systemd/status",
		Summary:     "Service Status",
		Description: "ActiveState of the edgelatency systemd unit",
		Tags:        []string{"systemd"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, _ *struct{}) (*models.SystemdServiceStatusResponse, error) {
		status, err := s.options.Systemd.ServiceStatus(ctx, unit)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get service status", err)
		}
		return &models.SystemdServiceStatusResponse{
			Body: models.SystemdServiceStatus{Service: unit, Status: status},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-service",
		Method:      http.MethodPost,
		Path:        "/api/systemd/restart",
		Summary:     "Restart Service",
		Description: "Queue a restart of the edgelatency systemd unit",
		Tags:        []string{"systemd"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, _ *struct{}) (*models.SystemdServiceActionResponse, error) {
		if err := s.options.Systemd.RestartService(ctx, unit); err != nil {
			return nil, huma.Error500InternalServerError("Failed to restart service", err)
		}
		s.logger.Info("Service restart requested", "unit", unit)
		return &models.SystemdServiceActionResponse{
			Body: models.SystemdServiceAction{Service: unit, Action: "restart", Success: true},
		}, nil
	})
}
