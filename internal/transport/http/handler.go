package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/service"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	sessionSvc *service.SessionService
	memberSvc  *service.MemberService
	syncSvc    *service.SyncService
}

func NewHandler(session *service.SessionService, member *service.MemberService, sync *service.SyncService) *Handler {
	return &Handler{
		sessionSvc: session,
		memberSvc:  member,
		syncSvc:    sync,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /sessions — вызывается auth-коллаборатором после успешного логина.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	if req.UserID <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
		return
	}

	sess, err := h.sessionSvc.Create(r.Context(), domain.UserID(req.UserID), req.DisplayName, req.Thumbnail)
	if err != nil {
		if errors.Is(err, domain.ErrCapacity) {
			writeJSON(w, http.StatusInsufficientStorage, ErrorResponse{Error: "session capacity exceeded"})
			return
		}
		slog.Error("handler.CreateSession:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, toSessionItem(sess))
}

// DELETE /sessions/{id} — идемпотентный logout.
func (h *Handler) DestroySession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessionSvc.Destroy(r.Context(), id); err != nil {
		slog.Error("handler.DestroySession:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /rooms/switch
func (h *Handler) SwitchRoom(w http.ResponseWriter, r *http.Request) {
	sess := httpmw.SessionFromCtx(r.Context())
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid_session"})
		return
	}

	var req SwitchRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	updated, members, err := h.memberSvc.SwitchRoom(r.Context(), sess.ID, req.Room)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSession):
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid_session"})
		case errors.Is(err, domain.ErrEmptyRoom), errors.Is(err, domain.ErrRoomTooLong):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			slog.Error("handler.SwitchRoom:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, SwitchRoomResponse{
		Session: toSessionItem(updated),
		Members: toMemberItems(members),
	})
}

// GET /rooms/{room}/members — запасной путь для клиентов, пропустивших
// presence-события.
func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	members, err := h.memberSvc.ListMembers(r.Context(), room)
	if err != nil {
		slog.Error("handler.GetMembers:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, MembersResponse{Items: toMemberItems(members)})
}

// POST /transactions
func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	sess := httpmw.SessionFromCtx(r.Context())
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid_session"})
		return
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	stored, err := h.syncSvc.Submit(r.Context(), toDomainTransaction(req, sess.UserID))
	if err != nil {
		if isValidationErr(err) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		slog.Error("handler.SubmitTransaction:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "persistence error"})
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionItem(stored))
}

// POST /transactions/bulk — офлайн-клиент сливает локальную очередь.
// В ответе только подтверждённые offline_id; всё, чего нет в списке,
// клиент переотправит позже.
func (h *Handler) SubmitTransactionBatch(w http.ResponseWriter, r *http.Request) {
	sess := httpmw.SessionFromCtx(r.Context())
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid_session"})
		return
	}

	var req BulkSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	items := make([]domain.Transaction, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, toDomainTransaction(it, sess.UserID))
	}

	acked, err := h.syncSvc.SubmitBatch(r.Context(), sess.UserID, items)
	if err != nil {
		slog.Error("handler.SubmitTransactionBatch:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "persistence error"})
		return
	}

	writeJSON(w, http.StatusOK, BulkSubmitResponse{OfflineIDs: acked})
}

// GET /transactions?limit=&cursor=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	cursor := r.URL.Query().Get("cursor")

	txs, next, err := h.syncSvc.List(r.Context(), limit, cursor)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.ListTransactions:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := TransactionsListResponse{Items: make([]TransactionItem, 0, len(txs)), NextCursor: next}
	for i := range txs {
		resp.Items = append(resp.Items, toTransactionItem(&txs[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

func toDomainTransaction(req TransactionRequest, author domain.UserID) domain.Transaction {
	t := domain.Transaction{
		OfflineID: req.OfflineID,
		AuthorID:  author,
		Room:      req.Room,
		Payload:   req.Payload,
	}
	if req.CreatedAt > 0 {
		t.CreatedAt = time.Unix(req.CreatedAt, 0)
	}
	return t
}

func isValidationErr(err error) bool {
	return errors.Is(err, domain.ErrEmptyOfflineID) ||
		errors.Is(err, domain.ErrEmptyPayload) ||
		errors.Is(err, domain.ErrPayloadTooLong) ||
		errors.Is(err, domain.ErrEmptyRoom)
}
