package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/6ixhq/creator/internal/metrics"
	"github.com/6ixhq/creator/internal/middleware"
	"github.com/6ixhq/creator/internal/model"
)

const maxRequestBody = 1 << 20

// Config はAIルーターの設定。
type Config struct {
	Upstream  UpstreamConfig
	Models    UpstreamModels
	KeepAlive time.Duration
}

// Handler は POST /api/chat を処理する。
type Handler struct {
	config   Config
	upstream *Upstream
	verifier PlanVerifier
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler は新しいHandlerを生成する。verifierがnilの場合はNoPlanVerifierを使う。
func NewHandler(config Config, verifier PlanVerifier, m metrics.MetricsCollector, logger *slog.Logger) *Handler {
	if verifier == nil {
		verifier = NoPlanVerifier{}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.KeepAlive <= 0 {
		config.KeepAlive = 12 * time.Second
	}
	if config.Upstream.Timeout <= 0 {
		config.Upstream.Timeout = 45 * time.Second
	}
	return &Handler{
		config:   config,
		upstream: NewUpstream(config.Upstream, nil),
		verifier: verifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Prepared は上流へ送る直前まで確定したリクエスト。
type Prepared struct {
	Resolution   Resolution
	SystemPrompt string
	Payload      Payload
}

// Prepare はプラン・モデル・モードを解決し、システムプロンプトとペイロードを組み立てる。
// 入力エラーの場合は*model.APIErrorを返す。
func (h *Handler) Prepare(ctx context.Context, req *Request, planHeader string) (*Prepared, error) {
	verified := model.Plan("")
	if userID, err := middleware.UserIDFromContext(ctx); err == nil {
		p, err := h.verifier.VerifyPlan(ctx, userID)
		if err != nil {
			h.logger.Warn("plan lookup failed, falling back to request signals",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else {
			verified = p
		}
	}
	plan := ResolvePlan(verified, planHeader, req.Plan)

	res := Resolve(plan, req)

	msgs := FilterMessages(req.Messages)
	if len(msgs) == 0 {
		return nil, model.NewEmptyMessagesError()
	}

	prompt := BuildSystemPrompt(PromptParamsFrom(res))
	return &Prepared{
		Resolution:   res,
		SystemPrompt: prompt,
		Payload:      BuildPayload(res, h.config.Models.NameFor(res.Entry), prompt, msgs),
	}, nil
}

// ServeHTTP はチャットリクエストを処理し、上流のSSEを中継する。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.config.Upstream.APIKey == "" {
		h.logger.Error("chat request rejected: provider api key is not configured")
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewAINotConfiguredError())
		return
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	prepared, err := h.Prepare(r.Context(), &req, r.Header.Get(PlanHeader))
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
			return
		}
		h.logger.Error("failed to prepare chat request", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	res := prepared.Resolution
	h.metrics.RecordChatRequest(string(res.Plan), res.Entry.ID)
	if res.Substituted() {
		h.logger.Info("chat model substituted",
			slog.String("plan", string(res.Plan)),
			slog.String("requested", res.RequestedModel),
			slog.String("model", res.Entry.ID),
		)
	}

	start := h.now()
	resp, err := h.upstream.Stream(r.Context(), prepared.Payload)

	SetStreamHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	if err != nil {
		status, detail, reason := 0, "", "network"
		var upErr *UpstreamError
		switch {
		case errors.As(err, &upErr):
			status, detail, reason = upErr.Status, upErr.Detail, "status"
		case errors.Is(err, ErrUpstreamTimeout):
			reason = "timeout"
		}
		if r.Context().Err() == nil {
			h.logger.Warn("chat upstream failed, sending fallback stream",
				slog.String("reason", reason),
				slog.Int("upstream_status", status),
				slog.String("error", err.Error()),
			)
		}
		h.metrics.RecordChatUpstreamFailure(reason)
		if werr := WriteFallback(w, res.Entry.ID, status, detail, h.now()); werr != nil {
			h.logger.Debug("failed to write fallback stream", slog.String("error", werr.Error()))
		}
		return
	}

	n := Relay(r.Context(), w, resp.Body, h.config.KeepAlive, h.logger)
	h.metrics.RecordChatStream(h.now().Sub(start))
	h.logger.Debug("chat stream finished",
		slog.String("model", res.Entry.ID),
		slog.Int64("bytes", n),
	)
}
