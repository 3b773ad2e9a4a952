package api

import (
	"math"
	"math/rand"
	"time"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/state"
)

func ensureProjectStreams(c *Context, projectID string) []state.TelemetryStream {
	st := c.State
	if streams, ok := st.ProjectTelemetry[projectID]; ok {
		return streams
	}
	streams := []state.TelemetryStream{
		{ID: "telem_" + projectID + "_cpu", Label: "CPU", Type: "system.cpu", Bands: []string{"pct"}, Status: "online"},
		{ID: "telem_" + projectID + "_ram", Label: "RAM", Type: "system.ram", Bands: []string{"used_bytes"}, Status: "online"},
	}
	st.ProjectTelemetry[projectID] = streams
	return streams
}

func (s *Server) handleTelemetryStreamsList(c *Context) (*Response, error) {
	projectID := c.Param("project_id")
	if _, err := c.State.EnsureProject(projectID); err != nil {
		return nil, err
	}
	page, next := Paginate(c, ensureProjectStreams(c, projectID))
	return OK(map[string]any{"items": page, "next_cursor": next}), nil
}

func (s *Server) handleTelemetryQuery(c *Context) (*Response, error) {
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	if bodyString(body, "stream_id") == "" {
		return nil, apierr.BadRequest("invalid_request", "stream_id is required.")
	}
	timeRange, ok := body["time_range"].(map[string]any)
	if !ok {
		return nil, apierr.BadRequest("invalid_request", "time_range is required.")
	}
	from, fromOK := ParseISO(bodyString(timeRange, "from"))
	to, toOK := ParseISO(bodyString(timeRange, "to"))
	if !fromOK || !toOK || !to.After(from) {
		return nil, apierr.BadRequest("invalid_request", "time_range must contain valid from/to values.")
	}
	limit := bodyInt(body, "limit", 5000)
	if limit < 1 {
		limit = 1
	}
	if limit > 100000 {
		limit = 100000
	}
	spanSeconds := to.Sub(from).Seconds()
	if spanSeconds < 1 {
		spanSeconds = 1
	}
	pointsCount := limit
	if pointsCount > 300 {
		pointsCount = 300
	}
	step := spanSeconds / float64(pointsCount)
	series := make([]map[string]any, 0, pointsCount)
	for idx := 0; idx < pointsCount; idx++ {
		ts := from.Add(time.Duration(float64(idx) * step * float64(time.Second)))
		base := math.Sin(float64(idx)/10.0)*10.0 + 50.0
		value := math.Round((base+rand.Float64()*2.0-1.0)*10000) / 10000
		series = append(series, map[string]any{
			"ts":    ts.UTC().Format(time.RFC3339),
			"value": value,
		})
	}
	anomalies := []map[string]any{}
	if pointsCount > 10 && rand.Float64() < 0.3 {
		mid := pointsCount / 2
		anomalies = append(anomalies, map[string]any{
			"type":       "spike_detect",
			"confidence": 0.92,
			"coords":     []float64{float64(mid), series[mid]["value"].(float64)},
			"ts":         series[mid]["ts"],
		})
	}
	return OK(map[string]any{"series": series, "anomalies": anomalies}), nil
}

func (s *Server) handleTelemetryAlertsCreate(c *Context) (*Response, error) {
	body, err := c.JSON(true)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"name", "stream_id", "condition", "actions"} {
		if _, ok := body[key]; !ok {
			return nil, apierr.BadRequest("invalid_request", key+" is required.")
		}
	}
	actions, _ := bodyList(body, "actions")
	alert := &state.Alert{
		ID:        state.NewID("alert"),
		Name:      bodyString(body, "name"),
		StreamID:  bodyString(body, "stream_id"),
		Condition: bodyMap(body, "condition"),
		Actions:   actions,
		CreatedAt: state.NowISO(),
	}
	c.State.Alerts[alert.ID] = alert
	c.State.Notify("info", "Alert created", "Telemetry alert created: "+alert.Name)
	return OK(map[string]any{"alert_id": alert.ID}), nil
}
