package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HolkerDev/rozmova-server/internal/billing"
	"github.com/HolkerDev/rozmova-server/internal/chat"
	"github.com/HolkerDev/rozmova-server/internal/review"
	"github.com/HolkerDev/rozmova-server/internal/scenario"
	"github.com/HolkerDev/rozmova-server/internal/settings"
	"github.com/HolkerDev/rozmova-server/internal/transcript"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const maxAudioUploadBytes = 32 << 20

// ChatService is the chat orchestration surface the API exposes.
type ChatService interface {
	StartChat(ctx context.Context, scenarioID string) (chat.Chat, error)
	FetchChatByID(ctx context.Context, id string) (chat.Chat, error)
	SendMessage(ctx context.Context, chatID, text string) (chat.SendResult, error)
	SendAudioMessage(ctx context.Context, chatID, audioPath string) (chat.SendResult, error)
	FinishChat(ctx context.Context, chatID string) (chat.FinishResult, error)
	GetReview(ctx context.Context, reviewID string) (review.Result, error)
	ArchiveChat(ctx context.Context, chatID string) error
	DeleteChat(ctx context.Context, chatID string) error
	Chats(ctx context.Context) ([]chat.Chat, error)
	LatestChat(ctx context.Context) (chat.Chat, error)
}

// ScenarioStore lists the available practice scenarios.
type ScenarioStore interface {
	Scenarios(f scenario.Filter) ([]scenario.Scenario, error)
	GetScenario(id string) (scenario.Scenario, error)
}

// SettingsService reads and writes user preferences.
type SettingsService interface {
	Get() (settings.Settings, error)
	Save(next settings.Settings) error
}

// BillingService answers subscription questions.
type BillingService interface {
	Products() []billing.Product
	Status() (billing.Status, error)
	Register(ctx context.Context, productID, purchaseToken string) (billing.Status, error)
	Refresh(ctx context.Context) (billing.Status, error)
}

func registerAPIRoutes(mux *http.ServeMux, chats ChatService, scenarios ScenarioStore, prefs SettingsService, bills BillingService, audioDir string) {
	mux.HandleFunc("GET /api/chats", func(w http.ResponseWriter, r *http.Request) {
		list, err := chats.Chats(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list chats: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	mux.HandleFunc("POST /api/chats", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ScenarioID string `json:"scenario_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ScenarioID) == "" {
			writeJSONError(w, http.StatusBadRequest, "scenario_id is required")
			return
		}

		c, err := chats.StartChat(r.Context(), req.ScenarioID)
		if err != nil {
			writeJSONError(w, statusForError(err), fmt.Sprintf("start chat: %v", err))
			return
		}
		writeJSON(w, http.StatusCreated, c)
	})

	mux.HandleFunc("GET /api/chats/latest", func(w http.ResponseWriter, r *http.Request) {
		c, err := chats.LatestChat(r.Context())
		if err != nil {
			writeJSONError(w, statusForError(err), fmt.Sprintf("latest chat: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, c)
	})

	mux.HandleFunc("GET /api/chats/{id}", func(w http.ResponseWriter, r *http.Request) {
		chatID := r.PathValue("id")
		if !validID(chatID) {
			writeJSONError(w, http.StatusForbidden, "invalid chat id")
			return
		}

		c, err := chats.FetchChatByID(r.Context(), chatID)
		if err != nil {
			writeJSONError(w, statusForError(err), fmt.Sprintf("get chat: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, c)
	})

	mux.HandleFunc("POST /api/chats/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		chatID := r.PathValue("id")
		if !validID(chatID) {
			writeJSONError(w, http.StatusForbidden, "invalid chat id")
			return
		}

		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		res, err := chats.SendMessage(r.Context(), chatID, req.Text)
		if err != nil {
			writeJSONError(w, statusForError(err), fmt.Sprintf("send message: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("POST /api/chats/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
		chatID := r.PathValue("id")
		if !validID(chatID) {
			writeJSONError(w, http.StatusForbidden, "invalid chat id")
			return
		}

		audioPath, err := saveUpload(r, audioDir)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("read audio upload: %v", err))
			return
		}

		res, err := chats.SendAudioMessage(r.Context(), chatID, audioPath)
		if err != nil {
			// The exchange persisted nothing, so the staged file goes too.
			_ = os.Remove(audioPath)
			writeJSONError(w, statusForError(err), fmt.Sprintf("send audio message: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("POST /api/chats/{id}/finish", func(w http.ResponseWriter, r *http.Request) {
		chatID := r.PathValue("id")
		if !validID(chatID) {
			writeJSONError(w, http.StatusForbidden, "invalid chat id")
			return
		}

		res, err := chats.FinishChat(r.Context(), chatID)
		if err != nil {
			writeJSONError(w, statusForError(err), fmt.Sprintf("finish chat: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("POST /api/chats/{id}/archive", func(w http.ResponseWriter, r *http.Request) {
		chatID := r.PathValue("id")
		if !validID(chatID) {
			writeJSONError(w, http.StatusForbidden, "invalid chat id")
			return
		}

		if err := chats.ArchiveChat(r.Context(), chatID); err != nil {
			writeJSONError(w, statusForError(err), fmt.Sprintf("archive chat: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE /api/chats/{id}", func(w http.ResponseWriter, r *http.Request) {
		chatID := r.PathValue("id")
		if !validID(chatID) {
			writeJSONError(w, http.StatusForbidden, "invalid chat id")
			return
		}

		if err := chats.DeleteChat(r.Context(), chatID); err != nil {
			writeJSONError(w, statusForError(err), fmt.Sprintf("delete chat: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/chats/{id}/messages/{messageID}/audio", func(w http.ResponseWriter, r *http.Request) {
		chatID := r.PathValue("id")
		messageID := r.PathValue("messageID")
		if !validID(chatID) || !validID(messageID) {
			writeJSONError(w, http.StatusForbidden, "invalid id")
			return
		}

		c, err := chats.FetchChatByID(r.Context(), chatID)
		if err != nil {
			writeJSONError(w, statusForError(err), "chat not found")
			return
		}

		msg, ok := c.Transcript.ByID(messageID)
		if !ok || !msg.HasAudio() {
			writeJSONError(w, http.StatusNotFound, "audio not available")
			return
		}

		// User recordings are stored as bare file names under the audio
		// directory; anything that resolves outside it is rejected.
		base := filepath.Base(msg.AudioRef)
		if base == "." || base == ".." || base != msg.AudioRef {
			writeJSONError(w, http.StatusForbidden, "invalid audio path")
			return
		}

		cleanPath := filepath.Join(audioDir, base)
		f, err := os.Open(cleanPath)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "audio file not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat audio: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("Content-Type", contentTypeForAudio(cleanPath))
		http.ServeContent(w, r, base, info.ModTime(), f)
	})

	mux.HandleFunc("GET /api/reviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		reviewID := r.PathValue("id")
		if !validID(reviewID) {
			writeJSONError(w, http.StatusForbidden, "invalid review id")
			return
		}

		result, err := chats.GetReview(r.Context(), reviewID)
		if err != nil {
			writeJSONError(w, statusForError(err), fmt.Sprintf("get review: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"review":       result,
			"presentation": review.Present(result),
		})
	})

	mux.HandleFunc("GET /api/scenarios", func(w http.ResponseWriter, r *http.Request) {
		filter := scenario.Filter{
			Type:       scenario.Type(r.URL.Query().Get("type")),
			Difficulty: scenario.Difficulty(r.URL.Query().Get("difficulty")),
		}

		list, err := scenarios.Scenarios(filter)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list scenarios: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	mux.HandleFunc("GET /api/scenarios/{id}", func(w http.ResponseWriter, r *http.Request) {
		scenarioID := r.PathValue("id")
		if !validID(scenarioID) {
			writeJSONError(w, http.StatusForbidden, "invalid scenario id")
			return
		}

		sc, err := scenarios.GetScenario(scenarioID)
		if err != nil {
			writeJSONError(w, statusForError(err), fmt.Sprintf("get scenario: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, sc)
	})

	mux.HandleFunc("GET /api/settings", func(w http.ResponseWriter, r *http.Request) {
		prefsData, err := prefs.Get()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get settings: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, prefsData)
	})

	mux.HandleFunc("PUT /api/settings", func(w http.ResponseWriter, r *http.Request) {
		var next settings.Settings
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := prefs.Save(next); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("save settings: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, next)
	})

	mux.HandleFunc("GET /api/subscription", func(w http.ResponseWriter, r *http.Request) {
		status, err := bills.Status()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get subscription: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": status,
			"active": status.Active(time.Now()),
		})
	})

	mux.HandleFunc("GET /api/subscription/products", func(w http.ResponseWriter, r *http.Request) {
		products := bills.Products()
		if products == nil {
			products = []billing.Product{}
		}
		writeJSON(w, http.StatusOK, products)
	})

	mux.HandleFunc("POST /api/subscription/purchases", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProductID     string `json:"product_id"`
			PurchaseToken string `json:"purchase_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" || req.PurchaseToken == "" {
			writeJSONError(w, http.StatusBadRequest, "product_id and purchase_token are required")
			return
		}

		status, err := bills.Register(r.Context(), req.ProductID, req.PurchaseToken)
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("register purchase: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, status)
	})

	mux.HandleFunc("POST /api/subscription/refresh", func(w http.ResponseWriter, r *http.Request) {
		status, err := bills.Refresh(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("refresh subscription: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, status)
	})
}

// saveUpload stages a multipart audio upload under the audio directory with
// a timestamped name, preserving the upload's extension.
func saveUpload(r *http.Request, audioDir string) (string, error) {
	if err := r.ParseMultipartForm(maxAudioUploadBytes); err != nil {
		return "", fmt.Errorf("parse multipart form: %w", err)
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", fmt.Errorf("missing audio field: %w", err)
	}
	defer func() { _ = file.Close() }()

	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".m4a"
	}
	name := fmt.Sprintf("rec_%s_%s%s", time.Now().UTC().Format("20060102150405"), uuid.NewString()[:8], ext)

	return stageAudioFile(audioDir, name, file)
}

// stageAudioFile writes the upload to its final name under audioDir. A
// failed or short copy removes the staged file so the directory never holds
// a truncated recording.
func stageAudioFile(audioDir, name string, src io.Reader) (string, error) {
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio directory: %w", err)
	}

	dst, err := os.Create(filepath.Join(audioDir, name))
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("write audio file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("close audio file: %w", err)
	}

	return dst.Name(), nil
}

func validID(id string) bool {
	return idPattern.MatchString(id)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrBusy), errors.Is(err, chat.ErrChatClosed):
		return http.StatusConflict
	case errors.Is(err, chat.ErrTranscriptionUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, os.ErrNotExist), errors.Is(err, transcript.ErrMessageNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func contentTypeForAudio(path string) string {
	switch filepath.Ext(path) {
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
