package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/edgelatency/internal/api/models"
	"github.com/smazurov/edgelatency/internal/firmware"
)

func (s *Server) registerActuatorRoutes() {
	if s.options.Firmware == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-actuator",
		Method:      http.MethodGet,
		Path:        "/api/actuator",
		Summary:     "Actuator State",
		Description: "Current actuator state, transport link state and the most recent latency sample",
		Tags:        []string{"actuator"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.ActuatorResponse, error) {
		resp := &models.ActuatorResponse{Body: toActuatorData(s.options.Firmware.Status())}
		if s.options.Events != nil {
			if e, ok := s.options.Events.Last(); ok {
				resp.Body.Last = &models.LastEvent{
					Seq:           e.Seq,
					On:            e.On,
					ElapsedCycles: e.ElapsedCycles,
					ElapsedNs:     e.ElapsedNs,
					Sent:          e.Sent,
				}
			}
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "trigger-edge",
		Method:        http.MethodPost,
		Path:          "/api/trigger",
		Summary:       "Inject Edge",
		Description:   "Run the edge detector once, exactly as a falling edge on the input pin would",
		Tags:          []string{"actuator"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.TriggerResponse, error) {
		s.options.Firmware.Trigger()
		return &models.TriggerResponse{
			Body: models.TriggerData{Accepted: true, Message: "edge injected"},
		}, nil
	})
}

func toActuatorData(st firmware.Status) models.ActuatorData {
	return models.ActuatorData{
		On:             st.On,
		StateText:      st.StateText,
		Transport:      st.Transport,
		TransportState: st.TransportState,
		RecipientID:    st.RecipientID,
		EdgesSignalled: st.EdgesSignalled,
		EdgesCoalesced: st.EdgesCoalesced,
		EdgeSource:     st.EdgeSource,
		Indicator:      st.Indicator,
	}
}
