package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/llm"
)

// MessageToText flattens a message's content parts into prompt text.
func MessageToText(m *Message) string {
	var parts []string
	for _, item := range m.Content {
		itemType, _ := item["type"].(string)
		if itemType == "" {
			itemType = "text"
		}
		var text string
		switch itemType {
		case "text", "code":
			text, _ = item["text"].(string)
		case "json":
			raw, _ := json.Marshal(item["value"])
			text = string(raw)
		case "image":
			url, _ := item["url"].(string)
			text = "[image] " + url
		case "diff_ref":
			id, _ := item["diff_id"].(string)
			text = "[diff_ref] " + id
		case "tool_call":
			name, _ := item["tool_name"].(string)
			text = "[tool_call] " + name
		case "tool_result":
			name, _ := item["tool_name"].(string)
			text = "[tool_result] " + name
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// AppendRunEvent adds an event to a run's log. Caller holds the lock.
func (s *State) AppendRunEvent(runID string, event RunEvent) {
	s.RunEvents[runID] = append(s.RunEvents[runID], event)
}

func statusEvent(status string, progress float64) RunEvent {
	return RunEvent{"type": "status", "ts": NowISO(), "status": status, "progress": progress}
}

// CreateRun registers a queued run for a session and launches its
// worker. Caller holds the lock.
func (s *State) CreateRun(sessionID string, request map[string]any) *Run {
	run := &Run{
		ID:        NewID("run"),
		SessionID: sessionID,
		Status:    RunQueued,
		Progress:  0.0,
		StartedAt: NowISO(),
		Result:    map[string]any{},
		Usage:     map[string]any{},
		Request:   request,
	}
	s.Runs[run.ID] = run
	s.SessionRuns[sessionID] = append(s.SessionRuns[sessionID], run.ID)
	s.RunEvents[run.ID] = []RunEvent{statusEvent(RunQueued, 0.0)}
	go s.runWorker(run.ID)
	return run
}

// CancelRun marks a run canceled unless it already reached a terminal
// status. Caller holds the lock.
func (s *State) CancelRun(runID string) (*Run, error) {
	run, err := s.EnsureRun(runID)
	if err != nil {
		return nil, err
	}
	switch run.Status {
	case RunCompleted, RunFailed, RunCanceled:
		return run, nil
	}
	now := NowISO()
	run.Status = RunCanceled
	run.Progress = 1.0
	run.EndedAt = &now
	s.AppendRunEvent(runID, statusEvent(RunCanceled, 1.0))
	s.metrics.RecordRun(RunCanceled)
	return run, nil
}

// runWorker drives one run from queued to a terminal status. The store
// lock is released while the chat backend generates, so other requests
// proceed during generation.
func (s *State) runWorker(runID string) {
	s.Mu.Lock()
	run, ok := s.Runs[runID]
	if !ok || run.Status == RunCanceled {
		s.Mu.Unlock()
		return
	}
	run.Status = RunRunning
	run.Progress = 0.05
	run.StartedAt = NowISO()
	s.AppendRunEvent(runID, statusEvent(RunRunning, 0.05))
	sessionID := run.SessionID
	request := run.Request
	s.PersistLocked()
	s.Mu.Unlock()

	responseText, prompt, err := s.generate(sessionID, request)
	if err != nil {
		s.failRun(runID, err)
		return
	}

	s.Mu.Lock()
	defer s.Mu.Unlock()
	run, ok = s.Runs[runID]
	if !ok {
		return
	}
	if run.Status == RunCanceled {
		s.AppendRunEvent(runID, statusEvent(RunCanceled, 1.0))
		s.PersistLocked()
		return
	}

	now := NowISO()
	assistant := &Message{
		ID:        NewID("msg"),
		SessionID: sessionID,
		Role:      "assistant",
		Content:   []map[string]any{{"type": "text", "text": responseText}},
		Meta:      map[string]any{},
		TS:        now,
	}
	s.Messages[assistant.ID] = assistant
	s.SessionMessages[sessionID] = append(s.SessionMessages[sessionID], assistant.ID)

	summary := responseText
	if len(summary) > 2000 {
		summary = summary[:2000]
	}
	run.Status = RunCompleted
	run.Progress = 1.0
	run.EndedAt = &now
	run.Result = map[string]any{
		"summary":    summary,
		"message_id": assistant.ID,
		"diff_ids":   []string{},
	}
	run.Usage = map[string]any{
		"input_tokens":  wordCount(prompt),
		"output_tokens": wordCount(responseText),
		"cost_usd":      0.0,
	}
	s.AppendRunEvent(runID, RunEvent{"type": "token", "ts": now, "message_id": assistant.ID, "text": responseText})
	s.AppendRunEvent(runID, statusEvent(RunCompleted, 1.0))
	s.metrics.RecordRun(RunCompleted)
	if sess, ok := s.Sessions[sessionID]; ok {
		s.RecordAudit("system", "run.completed", map[string]any{"run_id": runID}, sess.ProjectID)
	} else {
		s.PersistLocked()
	}
}

// generate renders the session's pending input into a conversation and
// calls the chat backend. It takes and releases the lock around state
// reads only; the Generate call runs unlocked.
func (s *State) generate(sessionID string, request map[string]any) (response, prompt string, err error) {
	s.Mu.Lock()
	sess, ok := s.Sessions[sessionID]
	if !ok {
		s.Mu.Unlock()
		return "", "", apierr.BadRequest("invalid_request", "Session not found: "+sessionID)
	}
	input, _ := request["input"].(map[string]any)
	messageID, _ := input["message_id"].(string)
	message, ok := s.Messages[strings.TrimSpace(messageID)]
	if !ok {
		s.Mu.Unlock()
		return "", "", apierr.BadRequest("invalid_request", "Input message_id was not found.")
	}
	prompt = MessageToText(message)
	var instructions string
	if agent, ok := request["agent"].(map[string]any); ok {
		instructions, _ = agent["instructions"].(string)
	}
	model := sess.ModelID
	provider := sess.ProviderID
	s.Mu.Unlock()

	if model == "" {
		model = "gpt-4o-mini"
	}
	var messages []llm.Message
	if strings.TrimSpace(instructions) != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: strings.TrimSpace(instructions)})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	response, err = s.chat.Generate(context.Background(), messages, model, provider)
	if err != nil {
		return "", prompt, fmt.Errorf("chat generate: %w", err)
	}
	return response, prompt, nil
}

func (s *State) failRun(runID string, cause error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	run, ok := s.Runs[runID]
	if !ok || run.Status == RunCanceled {
		return
	}
	now := NowISO()
	run.Status = RunFailed
	run.Progress = 1.0
	run.EndedAt = &now
	s.AppendRunEvent(runID, RunEvent{
		"type": "error",
		"ts":   now,
		"error": map[string]any{
			"code":    "run_failed",
			"message": cause.Error(),
		},
	})
	s.AppendRunEvent(runID, statusEvent(RunFailed, 1.0))
	s.metrics.RecordRun(RunFailed)
	s.log.Warn().Err(cause).Str("run_id", runID).Msg("run failed")
	s.PersistLocked()
}

func wordCount(text string) int {
	n := len(strings.Fields(text))
	if n < 1 {
		return 1
	}
	return n
}
