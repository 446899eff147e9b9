package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Paths on the LLM service.
const (
	llmChatStreamPath    = "/api/llm/chat/stream"
	llmParseCVPath       = "/api/llm/parse-cv"
	llmGenerateDocPath   = "/api/llm/generate-document"
	llmInterviewPrepPath = "/api/llm/interview-prep"
	llmDiscoverPath      = "/api/llm/scholarships/discover"

	maxChatMessage  = 2000
	minCVContent    = 10
	maxCVContent    = 50000
	rawChunkSize    = 4096
	maxErrorBodyLen = 512
)

var errStreamClosed = errors.New("assistant is shutting down")

// Streamer relays a reply to one user as it is produced. The notification
// hub implements it.
type Streamer interface {
	StreamChunk(ctx context.Context, userID uuid.UUID, sessionID, chunk string)
	StreamComplete(ctx context.Context, userID uuid.UUID, sessionID, fullResponse string)
	StreamError(ctx context.Context, userID uuid.UUID, sessionID, message string)
}

// LLMService talks to the LLM service. Assistant requests return a session
// ID at once and the reply is relayed in the background through a Streamer;
// discovery is a plain request/response call.
//
// Stream formats:
//   - chat: server-sent events, "data: {"content": ...}" lines ending with
//     "data: [DONE]"; "data: {"error": ...}" aborts the stream
//   - CV parsing, document generation and interview prep: the response body
//     is relayed as it arrives, in chunks of at most 4 KiB
//
// Every stream ends with exactly one StreamComplete or StreamError.
type LLMService struct {
	baseURL       string
	apiKey        string
	timeout       time.Duration
	streamTimeout time.Duration
	http          *http.Client
	streamer      Streamer

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewLLMService returns a client for cfg.ServiceURL. A nil httpClient uses
// a default client; timeouts are applied per request from cfg.
func NewLLMService(cfg *config.LLMConfig, streamer Streamer, httpClient *http.Client) *LLMService {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LLMService{
		baseURL:       strings.TrimRight(cfg.ServiceURL, "/"),
		apiKey:        cfg.APIKey,
		timeout:       cfg.Timeout,
		streamTimeout: cfg.StreamTimeout,
		http:          httpClient,
		streamer:      streamer,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Chat starts a streamed assistant reply to req.Message.
func (s *LLMService) Chat(userID uuid.UUID, req models.ChatRequest) (string, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return "", invalid("message is required")
	}
	if utf8.RuneCountInString(req.Message) > maxChatMessage {
		return "", invalid("message must be at most %d characters", maxChatMessage)
	}
	return s.start(userID, "chat", llmChatStreamPath, true, map[string]interface{}{
		"message": req.Message,
		"context": req.Context,
	})
}

// ParseCV streams the structured reading of a CV.
func (s *LLMService) ParseCV(userID uuid.UUID, req models.CVParseRequest) (string, error) {
	n := utf8.RuneCountInString(strings.TrimSpace(req.CVContent))
	if n < minCVContent || n > maxCVContent {
		return "", invalid("cv_content must be between %d and %d characters", minCVContent, maxCVContent)
	}
	return s.start(userID, "cv-parse", llmParseCVPath, false, map[string]interface{}{
		"cv_text": req.CVContent,
		"stream":  true,
	})
}

// GenerateDocument streams a draft of the requested document type.
func (s *LLMService) GenerateDocument(userID uuid.UUID, req models.GenerateDocumentRequest) (string, error) {
	if !req.DocumentType.Valid() {
		return "", invalid("unknown document type %q", req.DocumentType)
	}
	return s.start(userID, "document-generation", llmGenerateDocPath, false, map[string]interface{}{
		"document_type": req.DocumentType,
		"data":          req.Data,
		"stream":        true,
	})
}

// InterviewPrep streams practice feedback for an interview question.
func (s *LLMService) InterviewPrep(userID uuid.UUID, req models.InterviewPrepRequest) (string, error) {
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return "", invalid("question is required")
	}
	return s.start(userID, "interview-prep", llmInterviewPrepPath, false, map[string]interface{}{
		"question": req.Question,
		"context":  req.Context,
		"stream":   true,
	})
}

// DiscoverScholarships asks the LLM service for up to count real
// scholarship opportunities. Transport failures and 5xx answers are
// reported as ErrUnavailable.
func (s *LLMService) DiscoverScholarships(ctx context.Context, count int) ([]models.DiscoveredScholarship, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]int{"count": count})
	if err != nil {
		return nil, fmt.Errorf("encode discovery request: %w", err)
	}

	resp, err := s.post(ctx, llmDiscoverPath, payload, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Scholarships []models.DiscoveredScholarship `json:"scholarships"`
		Count        int                            `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode discovery response: %w", err)
	}

	log.Info().
		Int("requested", count).
		Int("discovered", len(body.Scholarships)).
		Msg("Scholarships discovered by LLM service")
	return body.Scholarships, nil
}

// Close cancels running streams and waits for their goroutines. Requests
// made afterwards fail.
func (s *LLMService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *LLMService) start(userID uuid.UUID, kind, path string, sse bool, body interface{}) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode %s request: %w", kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("%s: %w: %w", kind, errStreamClosed, ErrUnavailable)
	}

	sessionID := uuid.NewString()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.streamTimeout)
		defer cancel()
		s.relay(ctx, userID, sessionID, kind, path, sse, payload)
	}()

	log.Info().
		Str("user_id", userID.String()).
		Str("session_id", sessionID).
		Str("kind", kind).
		Msg("Assistant stream started")
	return sessionID, nil
}

// relay copies one upstream stream to the user. Notifications use a context
// detached from the stream deadline so the final event still reaches the
// mailbox after a timeout.
func (s *LLMService) relay(ctx context.Context, userID uuid.UUID, sessionID, kind, path string, sse bool, payload []byte) {
	notifyCtx := context.WithoutCancel(ctx)
	fail := func(msg string) {
		s.streamer.StreamError(notifyCtx, userID, sessionID, msg)
	}

	resp, err := s.post(ctx, path, payload, sse)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Str("kind", kind).Msg("Assistant request failed")
		if errors.Is(err, ErrUnavailable) {
			fail("assistant is unavailable, please try again later")
		} else {
			fail("assistant rejected the request")
		}
		return
	}
	defer resp.Body.Close()

	var (
		full    strings.Builder
		emitted bool
	)
	chunk := func(text string) {
		full.WriteString(text)
		emitted = true
		s.streamer.StreamChunk(notifyCtx, userID, sessionID, text)
	}

	if sse {
		done, errMsg, err := readEvents(resp.Body, chunk)
		switch {
		case errMsg != "":
			fail(errMsg)
			return
		case err != nil && !done:
			fail(streamFailure(ctx, err))
			return
		case !done && !emitted:
			fail("assistant ended the stream without a reply")
			return
		}
	} else if err := readRaw(resp.Body, chunk); err != nil {
		fail(streamFailure(ctx, err))
		return
	}

	s.streamer.StreamComplete(notifyCtx, userID, sessionID, full.String())
}

// post sends a JSON body to path. Non-2xx answers are turned into errors;
// 5xx and transport failures wrap ErrUnavailable.
func (s *LLMService) post(ctx context.Context, path string, payload []byte, sse bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build LLM request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sse {
		req.Header.Set("Accept", "text/event-stream")
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call LLM service %s: %w: %w", path, err, ErrUnavailable)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	err = fmt.Errorf("LLM service %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: %w", err, ErrUnavailable)
	}
	return nil, err
}

// readEvents parses a server-sent event stream. It reports whether [DONE]
// was seen and the upstream error message, if any. Malformed events are
// skipped.
func readEvents(r io.Reader, chunk func(string)) (done bool, errMsg string, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		data, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return true, "", nil
		}

		var event struct {
			Content string `json:"content"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			log.Warn().Err(err).Str("data", data).Msg("Skipping malformed assistant event")
			continue
		}
		if event.Error != "" {
			return false, event.Error, nil
		}
		if event.Content != "" {
			chunk(event.Content)
		}
	}
	return false, "", scanner.Err()
}

// readRaw relays r as it arrives. A rune split across reads is held back
// until it is complete.
func readRaw(r io.Reader, chunk func(string)) error {
	buf := make([]byte, rawChunkSize)
	var pending []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(pending, buf[:n]...)
			cut := completeRunes(data)
			if cut > 0 {
				chunk(string(data[:cut]))
			}
			pending = append([]byte(nil), data[cut:]...)
		}
		if errors.Is(err, io.EOF) {
			if len(pending) > 0 {
				chunk(string(pending))
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// completeRunes returns the length of data without a trailing partial rune.
func completeRunes(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if utf8.FullRune(data[i:]) {
				return len(data)
			}
			return i
		}
	}
	return len(data)
}

func streamFailure(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "assistant took too long to answer"
	}
	if ctx.Err() != nil {
		return "assistant stream was cancelled"
	}
	log.Warn().Err(err).Msg("Assistant stream broke")
	return "assistant stream was interrupted"
}
